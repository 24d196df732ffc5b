package kline

import (
	"math"
	"testing"

	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = btime.DayKeyToMS(20240305)

func at(h, m, s int) int64 {
	return day + btime.Clock(h, m, s)
}

func fiveMin() btime.Layout {
	return btime.Layout{
		btime.Time(btime.Clock(9, 0, 0), btime.Clock(9, 4, 59)),
		btime.Time(btime.Clock(9, 5, 0), btime.Clock(9, 9, 59)),
	}
}

func tick(ms int64, price, cum float64) *core.Tick {
	return &core.Tick{Code: "rb", Time: ms, Price: price, CumVolume: cum, BidPrice: price - 1,
		AskPrice: price + 1, ContractID: 2405}
}

func TestUpdaterFiveMinute(t *testing.T) {
	buf := NewBuffer("rb", nil)
	u := NewUpdater("rb", fiveMin(), buf)
	ticks := []*core.Tick{
		tick(at(9, 0, 0), 100, 1),
		tick(at(9, 2, 30), 101, 2),
		tick(at(9, 4, 59), 102, 3),
		tick(at(9, 5, 0), 99, 4),
		tick(at(9, 5, 1), 103, 5),
	}
	var states []core.BarState
	for _, tk := range ticks {
		states = append(states, u.Update(tk))
	}
	assert.Equal(t, []core.BarState{core.BarBegin, core.BarMerging, core.BarFinished, core.BarBegin,
		core.BarMerging}, states)
	require.Equal(t, 1, buf.Len())
	bar := buf.Snapshot()[0]
	assert.Equal(t, 100.0, bar.Open)
	assert.Equal(t, 102.0, bar.High)
	assert.Equal(t, 100.0, bar.Low)
	assert.Equal(t, 102.0, bar.Close)
	assert.Equal(t, 3.0, bar.Volume)
	assert.Equal(t, at(9, 4, 59), bar.CloseTime)
	assert.Equal(t, 3, bar.Info.TicksInBar)
	scratch, ok := u.Scratch()
	require.True(t, ok)
	assert.Equal(t, at(9, 5, 0), scratch.OpenTime)
	assert.Equal(t, 2.0, scratch.Volume)
}

func TestUpdaterDropsRejectedBar(t *testing.T) {
	seed := core.Bar{OpenTime: at(9, 5, 0), CloseTime: at(9, 9, 59), Open: 100, High: 100, Low: 100, Close: 100}
	buf := NewBuffer("rb", []core.Bar{seed})
	u := NewUpdater("rb", fiveMin(), buf)
	finished := 0
	u.OnBar = func(bar *core.Bar) { finished++ }
	assert.Equal(t, core.BarBegin, u.Update(tick(at(9, 0, 0), 100, 1)))
	assert.Equal(t, core.BarIgnore, u.Update(tick(at(9, 4, 59), 101, 2)))
	assert.Equal(t, core.BarBegin, u.Update(tick(at(9, 5, 0), 102, 3)))
	assert.Equal(t, core.BarIgnore, u.Update(tick(at(9, 10, 0), 103, 4)))
	assert.Equal(t, 1, buf.Len())
	assert.Equal(t, 0, finished)
	assert.Equal(t, core.Bar{}, u.Last())
}

func TestUpdaterFinishOutAndSkip(t *testing.T) {
	buf := NewBuffer("rb", nil)
	u := NewUpdater("rb", fiveMin(), buf)
	finished := 0
	u.OnBar = func(bar *core.Bar) { finished++ }
	assert.Equal(t, core.BarIgnore, u.Update(tick(at(8, 59, 0), 100, 5)))
	assert.Equal(t, core.BarBegin, u.Update(tick(at(9, 0, 10), 100, 10)))
	assert.Equal(t, core.BarMerging, u.Update(tick(at(9, 3, 0), 104, 15)))
	assert.Equal(t, core.BarFinished, u.Update(tick(at(9, 6, 0), 98, 18)))
	assert.Equal(t, core.BarFinished, u.Update(tick(at(9, 10, 0), 97, 20)))
	assert.Equal(t, core.BarBegin, u.Update(tick(at(9, 0, 0)+btime.MSDay, 96, 2)))

	bars := buf.Snapshot()
	require.Len(t, bars, 2)
	assert.Equal(t, 2, finished)
	assert.Equal(t, 1, bars[0].Info.SkippedTicks)
	assert.Equal(t, 10.0, bars[0].Volume)
	assert.Equal(t, at(9, 3, 0), bars[0].CloseTime)
	assert.Equal(t, 3.0, bars[1].Volume)
	assert.Equal(t, 1, bars[1].Info.TicksInBar)
	assert.Equal(t, at(9, 5, 0), bars[1].Info.OpenTime)

	scratch, ok := u.Scratch()
	require.True(t, ok)
	assert.Equal(t, 1, scratch.Info.SkippedTicks)
	assert.Equal(t, 2.0, scratch.Volume)
}

func TestUpdaterNoReopenSameSession(t *testing.T) {
	u := NewUpdater("rb", fiveMin(), nil)
	u.Update(tick(at(9, 4, 0), 100, 1))
	assert.Equal(t, core.BarFinished, u.Update(tick(at(9, 4, 59), 100, 2)))
	assert.Equal(t, core.BarIgnore, u.Update(tick(at(9, 4, 59)+500, 100, 3)))
	assert.Equal(t, core.BarBegin, u.Update(tick(at(9, 5, 0), 100, 4)))
}

func TestFinishedCountMatchesBuffer(t *testing.T) {
	info := core.MustGetTicker("rb")
	buf := NewBuffer("rb", nil)
	u := NewUpdater("rb", TF(info, 1).Layout, buf)
	finished := 0
	cum := 0.0
	for ms := at(8, 58, 0); ms < at(11, 40, 0); ms += 7300 {
		cum += 2
		if u.Update(tick(ms, 3500+float64(ms/1000%13), cum)) == core.BarFinished {
			finished++
		}
	}
	assert.Equal(t, finished, buf.Len())
	bars := buf.Snapshot()
	for i := 1; i < len(bars); i++ {
		assert.Less(t, bars[i-1].OpenTime, bars[i].OpenTime)
	}
}

func TestBufferOrder(t *testing.T) {
	buf := NewBuffer("rb", nil)
	require.Nil(t, buf.Append(core.Bar{OpenTime: 10}))
	snap := buf.Snapshot()
	err := buf.Append(core.Bar{OpenTime: 10})
	require.NotNil(t, err)
	assert.Equal(t, core.ErrInvalidBars, err.Code)
	require.Nil(t, buf.Append(core.Bar{OpenTime: 20}))
	assert.Len(t, snap, 1)
	last, ok := buf.Last()
	require.True(t, ok)
	assert.Equal(t, int64(20), last.OpenTime)
}

func TestHeikenAshi(t *testing.T) {
	bars := []core.Bar{{Open: 10, High: 12, Low: 9, Close: 11}}
	out, mask := Apply(NewHeikenAshi(2), bars, nil)
	require.Len(t, out, 1)
	assert.Equal(t, []bool{true}, mask)
	assert.Equal(t, 10.0, out[0].Open)
	assert.Equal(t, 10.5, out[0].Close)
	assert.Equal(t, 12.0, out[0].High)
	assert.Equal(t, 9.0, out[0].Low)

	bars = append(bars, core.Bar{Open: 11, High: 11.2, Low: 10.9, Close: 11})
	out, _ = Apply(NewHeikenAshi(2), bars, nil)
	// ema(2) of ha close: 10 + (10.5-10)*2/3
	assert.InDelta(t, 10+0.5*2.0/3, out[1].Open, 1e-9)
}

func rampBars(n int) []core.Bar {
	res := make([]core.Bar, n)
	for i := range res {
		c := 100 + float64(i%7) - float64(i%3)
		res[i] = core.Bar{
			OpenTime:  at(9, 0, 0) + int64(i)*btime.MSMin,
			CloseTime: at(9, 0, 59) + int64(i)*btime.MSMin,
			Open:      c - 0.5, High: c + 1, Low: c - 1, Close: c,
			Volume: float64(10 + (i*7)%23),
			Info:   core.KlineInfo{TicksInBar: 3},
		}
	}
	return res
}

func TestVolumeFilterAndOrderFlow(t *testing.T) {
	bars := rampBars(40)
	out, mask := Apply(NewVolumeFilter(5, 0.5), bars, nil)
	assert.Equal(t, CountTrue(mask), len(out))
	assert.True(t, mask[0])
	for i, ok := range mask {
		if ok {
			assert.Equal(t, bars[i].OpenTime, out[Positions(mask)[i]].OpenTime)
		}
	}

	out, mask = Apply(NewEvent(&OrderFlow{Volume: 50}), bars, nil)
	require.NotEmpty(t, out)
	total := 0.0
	for _, b := range bars {
		total += b.Volume
	}
	for _, b := range out {
		assert.GreaterOrEqual(t, b.Volume, 50.0)
	}
	assert.Equal(t, len(out), CountTrue(mask))
	assert.LessOrEqual(t, float64(len(out))*50, total)
}

func TestSessionLayoutEvent(t *testing.T) {
	bars := rampBars(12)
	ev := NewEvent(&SessionLayout{Layout: fiveMin()})
	out, mask := Apply(ev, bars, nil)
	require.Len(t, out, 2)
	assert.True(t, mask[4])
	assert.True(t, mask[9])
	assert.Equal(t, bars[0].Open, out[0].Open)
	assert.Equal(t, bars[4].Close, out[0].Close)
	assert.Equal(t, bars[4].CloseTime, out[0].CloseTime)
	vol := 0.0
	for _, b := range bars[5:10] {
		vol += b.Volume
	}
	assert.Equal(t, vol, out[1].Volume)
	assert.Equal(t, 15, out[1].Info.TicksInBar)
}

func TestApplyPrefixStable(t *testing.T) {
	info := core.MustGetTicker("rb")
	exprs := []AggExpr{
		NewHeikenAshi(3),
		NewVolumeFilter(6, 0.3),
		NewEvent(&OrderFlow{Volume: 40}),
		Chain(NewHeikenAshi(2), &FlatTick{}, NewVolumeFilter(4, 0.5)),
	}
	bars := rampBars(60)
	for _, expr := range exprs {
		full, fullMask := Apply(expr, bars, info)
		part, partMask := Apply(expr, bars[:35], info)
		assert.Equal(t, fullMask[:35], partMask, expr.Key())
		assert.Equal(t, full[:len(part)], part, expr.Key())
	}
}

func TestPipeMaskAndVertBack(t *testing.T) {
	bars := rampBars(50)
	pre := NewEvent(&OrderFlow{Volume: 30})
	post := NewVolumeFilter(3, 0.5)
	pipe := NewPipe(pre, post)
	mid, preMask := Apply(pre, bars, nil)
	_, postMask := Apply(post, mid, nil)
	out, mask := Apply(pipe, bars, nil)
	assert.Equal(t, ComposeMask(preMask, postMask), mask)

	vals := make([]float64, len(out))
	for i := range out {
		vals[i] = out[i].Close
	}
	direct := VertBack(mask, vals)
	twoStep := VertBackPipe(preMask, postMask, vals)
	require.Len(t, direct, len(bars))
	for i := range direct {
		if mask[i] {
			assert.Equal(t, vals[Positions(mask)[i]], direct[i])
			assert.Equal(t, direct[i], twoStep[i])
		} else {
			assert.True(t, math.IsNaN(direct[i]))
			assert.True(t, math.IsNaN(twoStep[i]))
		}
	}
}

func TestLogNotExtensible(t *testing.T) {
	bars := rampBars(10)
	expr := Chain(NewHeikenAshi(2), &Log{})
	assert.False(t, expr.Extensible())
	out, mask := Apply(expr, bars, nil)
	require.Len(t, out, 10)
	assert.Equal(t, 10, CountTrue(mask))
	minLow := math.Inf(1)
	for _, b := range out {
		minLow = min(minLow, b.Low)
	}
	assert.InDelta(t, 0, minLow, 1e-12)
}

func TestFlatTick(t *testing.T) {
	info := &core.TickerInfo{TickSize: 1}
	bars := []core.Bar{
		{Open: 100, High: 100, Low: 100, Close: 100},
		{Open: 100, High: 101, Low: 99, Close: 101},
		{Open: 101, High: 103, Low: 100, Close: 103},
	}
	out, _ := Apply(&FlatTick{}, bars, info)
	assert.Equal(t, 100.0, out[1].Close)
	assert.Equal(t, 100.0, out[1].High)
	assert.Equal(t, 103.0, out[2].Close)
}

func TestInvalidComposition(t *testing.T) {
	assert.Panics(t, func() { NewHeikenAshi(0) })
	assert.Panics(t, func() { NewTimeFrame("x", btime.Layout{}) })
	assert.Panics(t, func() {
		NewTimeFrame("x", btime.Layout{btime.Time(btime.Clock(10, 0, 0), btime.Clock(9, 0, 0))})
	})
	assert.Panics(t, func() { NewPipe(nil, &Log{}) })
	assert.Panics(t, func() { NewEvent(nil) })
	assert.NotNil(t, (&VolumeFilter{Window: 3, Percentile: 2}).Validate())
	assert.NotNil(t, (&Event{Primary: &OrderFlow{}}).Validate())

	_, err := MakeUpdater(NewHeikenAshi(2), "rb", nil)
	require.NotNil(t, err)
	assert.Equal(t, core.ErrInvalidAgg, err.Code)
	u, err := MakeUpdater(NewPipe(NewTimeFrame("5m", fiveMin()), NewHeikenAshi(2)), "rb", nil)
	require.Nil(t, err)
	assert.NotNil(t, u)
}

func TestKeys(t *testing.T) {
	expr := Chain(NewTimeFrame("1m", fiveMin()), NewHeikenAshi(2), NewVolumeFilter(20, 0.8))
	assert.Equal(t, "tf:1m>ha(2)>vf(20,0.8)", expr.Key())
	assert.Equal(t, "event(of(500))", NewEvent(&OrderFlow{Volume: 500}).Key())
	assert.True(t, IsIdentity(NewPipe(NewTimeFrame("1m", fiveMin()), NewTimeFrame("1m", fiveMin()))))
	assert.Equal(t, "1m", RootTimeFrame(expr).Name)
}
