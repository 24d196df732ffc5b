package ta

import (
	"math"
	"testing"

	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/kline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = btime.DayKeyToMS(20240304)

func closesBars(closes ...float64) []core.Bar {
	res := make([]core.Bar, len(closes))
	for i, c := range closes {
		res[i] = core.Bar{
			OpenTime: day0 + btime.Clock(9, 0, 0) + int64(i)*btime.MSMin,
			Open:     c, High: c + 1, Low: c - 1, Close: c, Volume: 1,
		}
	}
	return res
}

// bars over three days, 100 per day
func waveBars() []core.Bar {
	var res []core.Bar
	for d := 0; d < 3; d++ {
		for i := 0; i < 100; i++ {
			c := 3500 + 20*math.Sin(float64(d*100+i)/7) + float64(i%5)
			res = append(res, core.Bar{
				OpenTime:  day0 + int64(d)*btime.MSDay + btime.Clock(9, 0, 0) + int64(i)*btime.MSMin,
				CloseTime: day0 + int64(d)*btime.MSDay + btime.Clock(9, 0, 59) + int64(i)*btime.MSMin,
				Open:      c - 1, High: c + 2 + float64(i%3), Low: c - 2 - float64(i%4), Close: c,
				Volume: float64(5 + (i*13)%17),
				Info:   core.KlineInfo{ContractID: 1},
			})
		}
	}
	return res
}

func allNaN(t *testing.T, vals []float64) {
	for i, v := range vals {
		assert.True(t, math.IsNaN(v), "index %d: %v", i, v)
	}
}

func TestRsiConstant(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100
	}
	res := Compute(NewRsi(14), closesBars(closes...), nil)
	require.Len(t, res[0], 50)
	allNaN(t, res[0])
}

func TestRsiValues(t *testing.T) {
	res := Compute(NewRsi(14), closesBars(10, 11, 10), nil)[0]
	assert.True(t, math.IsNaN(res[0]))
	assert.InDelta(t, 100, res[1], 1e-9)
	assert.InDelta(t, 100*(1-2.0/15), res[2], 1e-9)
}

func TestBandsAndChannel(t *testing.T) {
	bars := closesBars(1, 2, 3, 4)
	boll := Compute(NewBoll(3, 2), bars, nil)
	require.Len(t, boll, 3)
	assert.True(t, math.IsNaN(boll[1][1]))
	assert.InDelta(t, 0, boll[0][2], 1e-9)
	assert.InDelta(t, 2, boll[1][2], 1e-9)
	assert.InDelta(t, 4, boll[2][2], 1e-9)

	ch := Compute(NewChannel(2), bars, nil)
	assert.True(t, math.IsNaN(ch[0][1]))
	assert.Equal(t, 0.0, ch[0][2])
	assert.Equal(t, 3.0, ch[1][2])
	assert.Equal(t, 1.0, ch[0][3])
	assert.Equal(t, 4.0, ch[1][3])
}

func TestSmallIndicators(t *testing.T) {
	eff := Compute(NewEffRatio(2, 2), closesBars(10, 11, 10, 12), nil)[0]
	assert.True(t, math.IsNaN(eff[1]))
	assert.InDelta(t, 0, eff[2], 1e-9)
	assert.InDelta(t, 100.0/3, eff[3], 1e-9)

	rank := Compute(NewRankma(2, 2), closesBars(1, 2, 3, 4), nil)[0]
	assert.True(t, math.IsNaN(rank[2]))
	assert.Equal(t, 2.0, rank[3])

	flat := closesBars(5, 5, 5, 5)
	for i := range flat {
		flat[i].High, flat[i].Low = 5, 5
	}
	assert.Equal(t, []float64{50, 50, 50, 50}, Compute(Jta(3, 3, 3), flat, nil)[0])
	macd := Compute(NewMacd(3, 6, 2), flat, nil)
	assert.Equal(t, []float64{0, 0, 0, 0}, macd[0])
	assert.Equal(t, []float64{0, 0, 0, 0}, macd[1])

	atr := Compute(NewAtr(3), closesBars(10, 12), nil)[0]
	assert.Equal(t, 2.0, atr[0])
	// tr = max(|13-12|, |12-9|, |13-11|) = 3
	assert.InDelta(t, 2+0.5*(3-2), atr[1], 1e-9)

	spread := Compute(NewSpread(2), closesBars(10, 30), nil)[0]
	assert.InDelta(t, 0.5, spread[1], 1e-9)

	mom := Compute(Roll(Kline(Close), FnMomentum, 3), closesBars(1, 4, 9), nil)[0]
	assert.Equal(t, 8.0, mom[2])
	std := Compute(Roll(Kline(Close), FnStd, 3), closesBars(1, 2, 3), nil)[0]
	assert.InDelta(t, 1, std[2], 1e-12)
}

func TestShiftDaysAndDayKline(t *testing.T) {
	bars := waveBars()
	prevHigh := Compute(NewShiftDays(1, High, RMax), bars, nil)[0]
	dayHigh := Compute(NewDayKline(High), bars, nil)[0]
	dayOpen := Compute(NewDayKline(Open), bars, nil)[0]
	allNaN(t, prevHigh[:100])
	maxDay0 := math.Inf(-1)
	for _, b := range bars[:100] {
		maxDay0 = max(maxDay0, b.High)
	}
	assert.Equal(t, maxDay0, dayHigh[99])
	for i := 100; i < 200; i++ {
		assert.Equal(t, maxDay0, prevHigh[i])
		assert.Equal(t, bars[100].Open, dayOpen[i])
	}
	cur := Compute(NewShiftDays(0, Close, Last), bars, nil)[0]
	assert.Equal(t, bars[150].Close, cur[150])
}

func TestShiftInter(t *testing.T) {
	bars := closesBars(1, 2, 3, 4, 5)
	agg := kline.NewEvent(&kline.OrderFlow{Volume: 2})
	res := Compute(NewShiftInter(agg, 1, Close, Last), bars, nil)[0]
	assert.True(t, math.IsNaN(res[0]))
	assert.True(t, math.IsNaN(res[1]))
	assert.Equal(t, []float64{2, 2, 4}, res[2:])
}

func prefixCatalogue() []Expr {
	ha := kline.NewHeikenAshi(3)
	return []Expr{
		Kline(Close), Ma(Kline(Close), 5), Max(High, 10), Min(Low, 10),
		Roll(Kline(Volume), FnSum, 4), Roll(Kline(Close), FnVar, 6), Roll(Kline(Close), FnSkewness, 8),
		Ema(Kline(Close), 8), NewRsi(14), NewAtr(14), NewMacd(12, 26, 9),
		Kta(9, 3, 3), Dta(9, 3, 3), Jta(9, 3, 3), NewEffRatio(10, 10), NewSpread(20),
		NewRankma(5, 10), NewShiftDays(1, High, RMax), NewShiftDays(0, Low, RMin),
		NewShiftInter(kline.NewEvent(&kline.OrderFlow{Volume: 60}), 2, Close, First),
		NewDayKline(Low), NewBoll(20, 2), NewChannel(20), NewDiff(5, 20),
		NewPipe(ha, NewRsi(6)),
		NewPipe(kline.NewVolumeFilter(10, 0.5), NewBoll(5, 1)),
		NewPipe(kline.NewEvent(&kline.OrderFlow{Volume: 40}), NewAtr(5)),
	}
}

func TestPrefixStable(t *testing.T) {
	bars := waveBars()
	for _, expr := range prefixCatalogue() {
		full := Compute(expr, bars, nil)
		for _, n := range []int{1, 57, 150} {
			part := Compute(expr, bars[:n], nil)
			for c := range full {
				assert.Equal(t, nanSafe(full[c][:n]), nanSafe(part[c]), "%s n=%d col %d", expr.Key(), n, c)
			}
		}
	}
}

// NaN never equals itself, map it to a sentinel for comparisons
func nanSafe(vals []float64) []float64 {
	res := make([]float64, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			res[i] = -1e308
		} else {
			res[i] = v
		}
	}
	return res
}

func TestLatticeExtends(t *testing.T) {
	bars := waveBars()
	buf := kline.NewBuffer("rb", bars[:120])
	lat := NewLattice(buf, nil, 0)
	expr := NewRsi(14)
	s := lat.Get(expr)
	assert.Same(t, s, lat.Get(NewRsi(14)))
	before := s.Values(0)
	require.Len(t, before, 120)
	for _, b := range bars[120:] {
		require.Nil(t, buf.Append(b))
	}
	v := s.At(0, 250)
	full := Compute(expr, bars, nil)[0]
	assert.Equal(t, full[250], v)
	after := s.Values(0)
	require.Len(t, after, len(bars))
	assert.Equal(t, nanSafe(before), nanSafe(after[:120]))
	assert.Equal(t, nanSafe(full), nanSafe(after))
	assert.True(t, math.IsNaN(s.At(0, len(bars)+5)))
}

func TestLatticePipeProjection(t *testing.T) {
	bars := closesBars(1, 2, 3, 4, 5)
	lat := NewLattice(kline.NewBuffer("rb", bars), nil, 0)
	s := lat.Get(NewPipe(kline.NewEvent(&kline.OrderFlow{Volume: 2}), Kline(Close)))
	assert.True(t, math.IsNaN(s.At(0, 0)))
	assert.True(t, math.IsNaN(s.Raw(0, 0)))
	assert.Equal(t, 2.0, s.Raw(0, 1))
	assert.True(t, math.IsNaN(s.Raw(0, 2)))
	assert.Equal(t, 2.0, s.At(0, 2))
	assert.Equal(t, 4.0, s.At(0, 4))
	raw := s.RawValues(0)
	require.Len(t, raw, 5)
	assert.Equal(t, 4.0, raw[3])

	derived, mask := lat.Derived(kline.NewEvent(&kline.OrderFlow{Volume: 2}))
	assert.Len(t, derived, 2)
	assert.Equal(t, []bool{false, true, false, true, false}, mask)

	// identity aggregations run on the primary buffer
	tf := lat.Get(NewPipe(kline.NewTimeFrame("1m", btime.MustParseLayout("09:00-15:00")), Kline(Close)))
	assert.Equal(t, 3.0, tf.Raw(0, 2))
}

func TestLatticeNonExtensible(t *testing.T) {
	bars := closesBars(1, 2, 3)
	buf := kline.NewBuffer("rb", bars)
	lat := NewLattice(buf, nil, 0)
	s := lat.Get(NewNorm(Kline(Close)))
	first := s.Values(0)
	assert.InDelta(t, 0, first[1], 1e-12)
	next := bars[2]
	next.OpenTime += btime.MSMin
	next.Close = 30
	require.Nil(t, buf.Append(next))
	second := s.Values(0)
	require.Len(t, second, 4)
	assert.NotEqual(t, first[1], second[1])

	logLat := NewLattice(kline.NewBuffer("rb", closesBars(2, 3, 4)), nil, 0)
	logged := logLat.Get(NewPipe(&kline.Log{}, Kline(Close)))
	assert.InDelta(t, math.Log(4.0), logged.At(0, 2), 1e-12)
}

func TestLatticeRetention(t *testing.T) {
	lat := NewLattice(kline.NewBuffer("rb", closesBars(1, 2, 3)), nil, 2)
	a := lat.Pin(NewRsi(3))
	b := lat.Get(NewAtr(3))
	lat.Get(NewSpread(2))
	assert.Equal(t, []string{"rsi(3)", "spread(2)"}, lat.Keys())
	assert.Same(t, a, lat.Get(NewRsi(3)))
	assert.NotSame(t, b, lat.Get(NewAtr(3)))
	lat.Reset()
	assert.Empty(t, lat.Keys())
}

func TestCheckNested(t *testing.T) {
	assert.NotNil(t, Check(Ma(NewPipe(kline.NewHeikenAshi(2), Kline(Close)), 3)))
	assert.NotNil(t, Check(Ema(NewNorm(Kline(Close)), 3)))
	assert.Nil(t, Check(Ema(Kline(Close), 3)))
	assert.Panics(t, func() { NewRsi(0) })
	p := NewPipe(kline.NewHeikenAshi(2), NewPipe(kline.NewHeikenAshi(3), NewRsi(5)))
	assert.Equal(t, "ha(2)>ha(3)|rsi(5)", p.Key())
}
