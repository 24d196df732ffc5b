package kline

import (
	"github.com/banbox/banexg/errs"
	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/core"
	"go.uber.org/zap"
)

/*
Updater turns the tick stream of one instrument into finished bars.
Every tick produces exactly one BarState. When a tick arrives after the closing second
of the open session without any tick on that second, the scratch bar is finished
without the tick and the tick starts (or is skipped for) the next bar; the returned
state is still Finished. A bar the buffer rejects (not after its last bar) is dropped: the
tick then reports Ignore, or the state of the bar it starts.
*/
type Updater struct {
	Code    core.Ticker
	clock   *sessionClock
	state   core.BarState
	bar     core.Bar
	last    core.Bar
	skipped int
	lastCum float64
	hasCum  bool
	buf     *Buffer
	OnBar   func(bar *core.Bar) // optional, called for each finished bar
}

func NewUpdater(code core.Ticker, layout btime.Layout, buf *Buffer) *Updater {
	if err := layout.Validate(); err != nil {
		panic(err.Short())
	}
	return &Updater{
		Code:  code,
		clock: newSessionClock(layout),
		state: core.BarIgnore,
		buf:   buf,
	}
}

/*
MakeUpdater builds an updater for the native time frame of expr. Derived parts of the
expression are computed from the buffer later.
*/
func MakeUpdater(expr AggExpr, code core.Ticker, buf *Buffer) (*Updater, *errs.Error) {
	tf := RootTimeFrame(expr)
	if tf == nil {
		return nil, errs.NewMsg(core.ErrInvalidAgg, "%s has no time frame root", expr.Key())
	}
	if err := tf.Validate(); err != nil {
		return nil, err
	}
	return NewUpdater(code, tf.Layout, buf), nil
}

func (u *Updater) tickVolume(t *core.Tick) float64 {
	vol := t.CumVolume
	if u.hasCum && t.CumVolume >= u.lastCum {
		vol = t.CumVolume - u.lastCum
	}
	u.lastCum = t.CumVolume
	u.hasCum = true
	return vol
}

func (u *Updater) Update(t *core.Tick) core.BarState {
	vol := u.tickVolume(t)
	if u.state != core.BarBegin && u.state != core.BarMerging {
		return u.enter(t, vol)
	}
	switch u.clock.check(t.Time, t.Time) {
	case phaseFinishIn:
		u.merge(t, vol)
		u.state = core.BarFinished
		if !u.finish() {
			return core.BarIgnore
		}
	case phaseFinishOut:
		ok := u.finish()
		state := u.enter(t, vol)
		if !ok {
			return state
		}
	default:
		u.merge(t, vol)
		u.state = core.BarMerging
		return core.BarMerging
	}
	return core.BarFinished
}

func (u *Updater) enter(t *core.Tick, vol float64) core.BarState {
	if !u.clock.enter(t.Time) {
		u.skipped += 1
		u.state = core.BarIgnore
		return core.BarIgnore
	}
	u.bar = core.Bar{
		OpenTime:  t.Time,
		CloseTime: t.Time,
		Open:      t.Price,
		High:      t.Price,
		Low:       t.Price,
		Close:     t.Price,
		Volume:    vol,
		Info: core.KlineInfo{
			OpenTime:     u.clock.openAt,
			SkippedTicks: u.skipped,
			TicksInBar:   1,
			ContractID:   t.ContractID,
		},
	}
	u.skipped = 0
	u.state = core.BarBegin
	return core.BarBegin
}

func (u *Updater) merge(t *core.Tick, vol float64) {
	b := &u.bar
	b.High = max(b.High, t.Price)
	b.Low = min(b.Low, t.Price)
	b.Close = t.Price
	b.CloseTime = t.Time
	b.Volume += vol
	b.Info.TicksInBar += 1
	b.Info.ContractID = t.ContractID
}

// finish closes the scratch bar, false when the buffer rejected it
func (u *Updater) finish() bool {
	u.clock.close()
	if u.buf != nil {
		if err := u.buf.Append(u.bar); err != nil {
			log.Warn("drop bar", zap.String("ticker", string(u.Code)), zap.Error(err))
			return false
		}
	}
	u.last = u.bar
	if u.OnBar != nil {
		u.OnBar(&u.last)
	}
	return true
}

// Last most recent finished bar
func (u *Updater) Last() core.Bar {
	return u.last
}

// Scratch the bar under construction, false when no session is open
func (u *Updater) Scratch() (core.Bar, bool) {
	if u.state == core.BarBegin || u.state == core.BarMerging {
		return u.bar, true
	}
	return core.Bar{}, false
}
