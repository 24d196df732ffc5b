package kline

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/core"
	"gonum.org/v1/gonum/stat"
)

type identity struct{}

func (identity) Push(bar core.Bar) (core.Bar, bool) { return bar, true }

type haState struct {
	ema *core.Ema
}

func (s *haState) Push(bar core.Bar) (core.Bar, bool) {
	if s.ema.Age == 0 {
		s.ema.Seed(bar.Open)
	}
	haOpen := s.ema.Val
	haClose := (bar.Open + bar.High + bar.Low + bar.Close) / 4
	res := bar
	res.Open = haOpen
	res.Close = haClose
	res.High = max(bar.High, haOpen, haClose)
	res.Low = min(bar.Low, haOpen, haClose)
	s.ema.Update(haClose)
	return res, true
}

type pipeState struct {
	pre  State
	post State
}

func (s *pipeState) Push(bar core.Bar) (core.Bar, bool) {
	mid, ok := s.pre.Push(bar)
	if !ok {
		return core.Bar{}, false
	}
	return s.post.Push(mid)
}

type volFilterState struct {
	window int
	pct    float64
	hist   []float64
	sorted []float64
}

func (s *volFilterState) Push(bar core.Bar) (core.Bar, bool) {
	keep := true
	if len(s.hist) > 0 {
		s.sorted = append(s.sorted[:0], s.hist...)
		slices.Sort(s.sorted)
		keep = bar.Volume > stat.Quantile(s.pct, stat.Empirical, s.sorted, nil)
	}
	s.hist = append(s.hist, bar.Volume)
	if len(s.hist) > s.window {
		s.hist = s.hist[1:]
	}
	return bar, keep
}

type flatState struct {
	tick float64
	ref  float64
	init bool
}

func (s *flatState) flat(v float64) float64 {
	if math.Abs(v-s.ref) <= s.tick*(1+1e-9) {
		return s.ref
	}
	return v
}

func (s *flatState) Push(bar core.Bar) (core.Bar, bool) {
	if !s.init {
		s.ref = bar.Close
		s.init = true
		return bar, true
	}
	res := bar
	res.Open = s.flat(bar.Open)
	res.High = s.flat(bar.High)
	res.Low = s.flat(bar.Low)
	res.Close = s.flat(bar.Close)
	res.High = max(res.High, res.Open, res.Close)
	res.Low = min(res.Low, res.Open, res.Close)
	s.ref = res.Close
	return res, true
}

// merger accumulates several input bars into one output bar
type merger struct {
	bar  core.Bar
	open bool
}

func (m *merger) begin(bar core.Bar) {
	m.bar = bar
	m.open = true
}

func (m *merger) add(bar core.Bar) {
	b := &m.bar
	b.High = max(b.High, bar.High)
	b.Low = min(b.Low, bar.Low)
	b.Close = bar.Close
	b.CloseTime = bar.CloseTime
	b.Volume += bar.Volume
	b.Info.TicksInBar += bar.Info.TicksInBar
	b.Info.ContractID = bar.Info.ContractID
}

func (m *merger) take() core.Bar {
	m.open = false
	return m.bar
}

/*
OrderFlow finishes a bar once the accumulated volume reaches Volume
*/
type OrderFlow struct {
	Volume float64
}

func (p *OrderFlow) Key() string {
	return "of(" + strconv.FormatFloat(p.Volume, 'f', -1, 64) + ")"
}

func (p *OrderFlow) Validate() *errs.Error {
	if !(p.Volume > 0) {
		return errs.NewMsg(core.ErrInvalidAgg, "order flow volume must be positive: %v", p.Volume)
	}
	return nil
}

func (p *OrderFlow) NewState(_ *core.TickerInfo) State {
	return &orderFlowState{limit: p.Volume}
}

type orderFlowState struct {
	limit float64
	m     merger
}

func (s *orderFlowState) Push(bar core.Bar) (core.Bar, bool) {
	if !s.m.open {
		s.m.begin(bar)
	} else {
		s.m.add(bar)
	}
	if s.m.bar.Volume >= s.limit {
		return s.m.take(), true
	}
	return core.Bar{}, false
}

/*
SessionLayout re-aggregates bars onto a coarser intraday layout. A bar belongs to the
session its open time falls in; bars outside every session are skipped.
*/
type SessionLayout struct {
	Layout btime.Layout
}

func (p *SessionLayout) Key() string {
	return "sess(" + p.Layout.String() + ")"
}

func (p *SessionLayout) Validate() *errs.Error {
	if err := p.Layout.Validate(); err != nil {
		return errs.NewMsg(core.ErrInvalidAgg, "session layout: %s", err.Short())
	}
	return nil
}

func (p *SessionLayout) NewState(_ *core.TickerInfo) State {
	return &sessionState{clock: newSessionClock(p.Layout)}
}

type sessionState struct {
	clock   *sessionClock
	m       merger
	skipped int
}

func (s *sessionState) enter(bar core.Bar) {
	if !s.clock.enter(bar.OpenTime) {
		s.skipped += 1
		return
	}
	s.m.begin(bar)
	s.m.bar.Info.OpenTime = s.clock.openAt
	s.m.bar.Info.SkippedTicks = s.skipped
	s.skipped = 0
}

func (s *sessionState) Push(bar core.Bar) (core.Bar, bool) {
	if !s.m.open {
		s.enter(bar)
		if s.m.open && s.clock.check(bar.OpenTime, bar.CloseTime) == phaseFinishIn {
			s.clock.close()
			return s.m.take(), true
		}
		return core.Bar{}, false
	}
	switch s.clock.check(bar.OpenTime, bar.CloseTime) {
	case phaseFinishIn:
		s.m.add(bar)
		s.clock.close()
		return s.m.take(), true
	case phaseFinishOut:
		s.clock.close()
		res := s.m.take()
		// the bar opening the next session can not finish on the same index
		s.enter(bar)
		return res, true
	default:
		s.m.add(bar)
	}
	return core.Bar{}, false
}

/*
Apply computes the derived buffer of expr over bars, and the finished mask aligned
with bars.
*/
func Apply(expr AggExpr, bars []core.Bar, info *core.TickerInfo) ([]core.Bar, []bool) {
	switch a := expr.(type) {
	case *Log:
		return applyLog(bars)
	case *Pipe:
		if !a.Extensible() {
			mid, preMask := Apply(a.Pre, bars, info)
			out, postMask := Apply(a.Post, mid, info)
			return out, ComposeMask(preMask, postMask)
		}
	}
	if !expr.Extensible() {
		panic(fmt.Sprintf("no batch form for %s", expr.Key()))
	}
	state := expr.NewState(info)
	out := make([]core.Bar, 0, len(bars))
	mask := make([]bool, len(bars))
	for i, b := range bars {
		if res, ok := state.Push(b); ok {
			out = append(out, res)
			mask[i] = true
		}
	}
	return out, mask
}

func applyLog(bars []core.Bar) ([]core.Bar, []bool) {
	mask := make([]bool, len(bars))
	if len(bars) == 0 {
		return nil, mask
	}
	minLow := math.Inf(1)
	for _, b := range bars {
		minLow = min(minLow, b.Low)
	}
	out := make([]core.Bar, len(bars))
	for i, b := range bars {
		res := b
		res.Open = math.Log(b.Open / minLow)
		res.High = math.Log(b.High / minLow)
		res.Low = math.Log(b.Low / minLow)
		res.Close = math.Log(b.Close / minLow)
		out[i] = res
		mask[i] = true
	}
	return out, mask
}
