package kline

import (
	"fmt"
	"strconv"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/core"
)

/*
AggExpr maps a primary bar buffer to a derived one.
Push-style states consume one primary bar at a time and report whether a derived bar
finished on it; the finished flags form the mask used for back-projection.
*/
type AggExpr interface {
	Key() string
	Validate() *errs.Error
	// Extensible false means the whole derived buffer depends on every input bar
	Extensible() bool
	NewState(info *core.TickerInfo) State
}

type State interface {
	Push(bar core.Bar) (core.Bar, bool)
}

// Primary custom aggregator driven by Event
type Primary interface {
	Key() string
	Validate() *errs.Error
	NewState(info *core.TickerInfo) State
}

type TimeFrame struct {
	Name   string
	Layout btime.Layout
}

type HeikenAshi struct {
	Window int
}

type Event struct {
	Primary Primary
}

type Pipe struct {
	Pre  AggExpr
	Post AggExpr
}

type VolumeFilter struct {
	Window     int
	Percentile float64
}

type Log struct{}

type FlatTick struct{}

func mustValid(expr AggExpr) AggExpr {
	if err := expr.Validate(); err != nil {
		panic(err.Short())
	}
	return expr
}

func NewTimeFrame(name string, layout btime.Layout) *TimeFrame {
	return mustValid(&TimeFrame{Name: name, Layout: layout}).(*TimeFrame)
}

/*
TF time frame of mins minutes cut from the trading sessions of the ticker
*/
func TF(info *core.TickerInfo, mins int) *TimeFrame {
	return NewTimeFrame(strconv.Itoa(mins)+"m", btime.SplitSessions(info.Sessions, int64(mins)*btime.MSMin))
}

func NewHeikenAshi(window int) *HeikenAshi {
	return mustValid(&HeikenAshi{Window: window}).(*HeikenAshi)
}

func NewEvent(primary Primary) *Event {
	return mustValid(&Event{Primary: primary}).(*Event)
}

func NewPipe(pre, post AggExpr) *Pipe {
	return mustValid(&Pipe{Pre: pre, Post: post}).(*Pipe)
}

func NewVolumeFilter(window int, percentile float64) *VolumeFilter {
	return mustValid(&VolumeFilter{Window: window, Percentile: percentile}).(*VolumeFilter)
}

/*
Chain pipes exprs from left to right
*/
func Chain(exprs ...AggExpr) AggExpr {
	if len(exprs) == 0 {
		panic("Chain requires at least one aggregation")
	}
	res := exprs[0]
	for _, e := range exprs[1:] {
		res = NewPipe(res, e)
	}
	return res
}

func (a *TimeFrame) Key() string { return "tf:" + a.Name }

func (a *TimeFrame) Validate() *errs.Error {
	if a.Name == "" {
		return errs.NewMsg(core.ErrInvalidAgg, "time frame name is empty")
	}
	if err := a.Layout.Validate(); err != nil {
		return errs.NewMsg(core.ErrInvalidAgg, "time frame %s: %s", a.Name, err.Short())
	}
	return nil
}

func (a *TimeFrame) Extensible() bool { return true }

func (a *TimeFrame) NewState(_ *core.TickerInfo) State { return identity{} }

func (a *HeikenAshi) Key() string { return fmt.Sprintf("ha(%d)", a.Window) }

func (a *HeikenAshi) Validate() *errs.Error {
	if a.Window < 1 {
		return errs.NewMsg(core.ErrInvalidAgg, "heiken ashi window must be positive: %d", a.Window)
	}
	return nil
}

func (a *HeikenAshi) Extensible() bool { return true }

func (a *HeikenAshi) NewState(_ *core.TickerInfo) State {
	return &haState{ema: core.NewEMAPeriod(a.Window)}
}

func (a *Event) Key() string {
	if a.Primary == nil {
		return "event(nil)"
	}
	return "event(" + a.Primary.Key() + ")"
}

func (a *Event) Validate() *errs.Error {
	if a.Primary == nil {
		return errs.NewMsg(core.ErrInvalidAgg, "event without primary aggregator")
	}
	return a.Primary.Validate()
}

func (a *Event) Extensible() bool { return true }

func (a *Event) NewState(info *core.TickerInfo) State { return a.Primary.NewState(info) }

func (a *Pipe) Key() string {
	if a.Pre == nil || a.Post == nil {
		return "pipe(nil)"
	}
	return a.Pre.Key() + ">" + a.Post.Key()
}

func (a *Pipe) Validate() *errs.Error {
	if a.Pre == nil || a.Post == nil {
		return errs.NewMsg(core.ErrInvalidAgg, "pipe requires both sides")
	}
	if err := a.Pre.Validate(); err != nil {
		return err
	}
	return a.Post.Validate()
}

func (a *Pipe) Extensible() bool { return a.Pre.Extensible() && a.Post.Extensible() }

func (a *Pipe) NewState(info *core.TickerInfo) State {
	return &pipeState{pre: a.Pre.NewState(info), post: a.Post.NewState(info)}
}

func (a *VolumeFilter) Key() string {
	return fmt.Sprintf("vf(%d,%s)", a.Window, strconv.FormatFloat(a.Percentile, 'f', -1, 64))
}

func (a *VolumeFilter) Validate() *errs.Error {
	if a.Window < 1 {
		return errs.NewMsg(core.ErrInvalidAgg, "volume filter window must be positive: %d", a.Window)
	}
	if a.Percentile < 0 || a.Percentile > 1 {
		return errs.NewMsg(core.ErrInvalidAgg, "volume filter percentile out of [0,1]: %v", a.Percentile)
	}
	return nil
}

func (a *VolumeFilter) Extensible() bool { return true }

func (a *VolumeFilter) NewState(_ *core.TickerInfo) State {
	return &volFilterState{window: a.Window, pct: a.Percentile}
}

func (a *Log) Key() string { return "log" }

func (a *Log) Validate() *errs.Error { return nil }

// Extensible is false: a new low rescales every earlier bar
func (a *Log) Extensible() bool { return false }

func (a *Log) NewState(_ *core.TickerInfo) State { return nil }

func (a *FlatTick) Key() string { return "flat" }

func (a *FlatTick) Validate() *errs.Error { return nil }

func (a *FlatTick) Extensible() bool { return true }

func (a *FlatTick) NewState(info *core.TickerInfo) State {
	return &flatState{tick: info.TickSize}
}

/*
RootTimeFrame the native time frame at the left end of expr, nil if expr does not
start with one
*/
func RootTimeFrame(expr AggExpr) *TimeFrame {
	switch a := expr.(type) {
	case *TimeFrame:
		return a
	case *Pipe:
		return RootTimeFrame(a.Pre)
	}
	return nil
}

/*
IsIdentity true when expr maps the primary buffer onto itself
*/
func IsIdentity(expr AggExpr) bool {
	switch a := expr.(type) {
	case *TimeFrame:
		return true
	case *Pipe:
		return IsIdentity(a.Pre) && IsIdentity(a.Post)
	}
	return false
}
