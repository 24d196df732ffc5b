package ta

import (
	"math"

	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/kline"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var nan = math.NaN()

// window keeps the last n values
type window struct {
	size int
	vals []float64
}

func (w *window) push(v float64) {
	w.vals = append(w.vals, v)
	if len(w.vals) > w.size {
		w.vals = w.vals[len(w.vals)-w.size:]
	}
}

func (w *window) full() bool {
	return len(w.vals) == w.size
}

func hasNaN(vals []float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

type one struct{ out [1]float64 }

func (o *one) ret(v float64) []float64 {
	o.out[0] = v
	return o.out[:]
}

type fieldCalc struct {
	one
	f Field
}

func (c *fieldCalc) Next(bars []core.Bar, i int) []float64 {
	return c.ret(c.f.Of(&bars[i]))
}

func (e *KlineField) NewCalc(_ *core.TickerInfo) Calc { return &fieldCalc{f: e.Field} }

type rollCalc struct {
	one
	input Calc
	fn    RollFn
	win   window
}

func (c *rollCalc) Next(bars []core.Bar, i int) []float64 {
	c.win.push(c.input.Next(bars, i)[0])
	if !c.win.full() || hasNaN(c.win.vals) {
		return c.ret(nan)
	}
	x := c.win.vals
	var v float64
	switch c.fn {
	case FnSum:
		v = floats.Sum(x)
	case FnMean:
		v = stat.Mean(x, nil)
	case FnMax:
		v = floats.Max(x)
	case FnMin:
		v = floats.Min(x)
	case FnVar:
		v = stat.Variance(x, nil)
	case FnStd:
		v = stat.StdDev(x, nil)
	case FnMomentum:
		v = x[len(x)-1] - x[0]
	case FnSkewness:
		v = stat.Skew(x, nil)
	}
	return c.ret(v)
}

func (e *Rolling) NewCalc(info *core.TickerInfo) Calc {
	return &rollCalc{input: e.Input.NewCalc(info), fn: e.Fn, win: window{size: e.Window}}
}

type emaCalc struct {
	one
	input Calc
	ema   *core.Ema
}

func (c *emaCalc) Next(bars []core.Bar, i int) []float64 {
	v := c.input.Next(bars, i)[0]
	if math.IsNaN(v) {
		if c.ema.Age == 0 {
			return c.ret(nan)
		}
		return c.ret(c.ema.Val)
	}
	return c.ret(c.ema.Update(v))
}

func (e *EmaOf) NewCalc(info *core.TickerInfo) Calc {
	return &emaCalc{input: e.Input.NewCalc(info), ema: core.NewEMAPeriod(e.Period)}
}

type rsiCalc struct {
	one
	up, abs *core.Ema
}

func (c *rsiCalc) Next(bars []core.Bar, i int) []float64 {
	if i == 0 {
		return c.ret(nan)
	}
	diff := bars[i].Close - bars[i-1].Close
	up := c.up.Update(max(diff, 0))
	abs := c.abs.Update(math.Abs(diff))
	if abs == 0 {
		return c.ret(nan)
	}
	return c.ret(100 * up / abs)
}

func (e *Rsi) NewCalc(_ *core.TickerInfo) Calc {
	return &rsiCalc{up: core.NewEMAPeriod(e.Period), abs: core.NewEMAPeriod(e.Period)}
}

type atrCalc struct {
	one
	ema *core.Ema
}

func (c *atrCalc) Next(bars []core.Bar, i int) []float64 {
	b := &bars[i]
	tr := b.High - b.Low
	if i > 0 {
		tr = max(math.Abs(b.High-b.Close), math.Abs(b.Close-bars[i-1].Low), tr)
	}
	return c.ret(c.ema.Update(tr))
}

func (e *Atr) NewCalc(_ *core.TickerInfo) Calc {
	return &atrCalc{ema: core.NewEMAPeriod(e.Period)}
}

type macdCalc struct {
	fast, slow, mid *core.Ema
	out             [2]float64
}

func (c *macdCalc) Next(bars []core.Bar, i int) []float64 {
	diff := c.fast.Update(bars[i].Close) - c.slow.Update(bars[i].Close)
	c.out[0] = c.mid.Update(diff)
	c.out[1] = diff
	return c.out[:]
}

func (e *Macd) NewCalc(_ *core.TickerInfo) Calc {
	return &macdCalc{fast: core.NewEMAPeriod(e.Fast), slow: core.NewEMAPeriod(e.Slow),
		mid: core.NewEMAPeriod(e.Mid)}
}

type kdjCalc struct {
	one
	n2, n3      float64
	col         int
	highs, lows window
	k, d        float64
}

func (c *kdjCalc) Next(bars []core.Bar, i int) []float64 {
	c.highs.push(bars[i].High)
	c.lows.push(bars[i].Low)
	hh, ll := floats.Max(c.highs.vals), floats.Min(c.lows.vals)
	rsv := 50.0
	if hh > ll {
		rsv = (bars[i].Close - ll) / (hh - ll) * 100
	}
	c.k = (c.k*(c.n2-1) + rsv) / c.n2
	c.d = (c.d*(c.n3-1) + c.k) / c.n3
	switch c.col {
	case 0:
		return c.ret(c.k)
	case 1:
		return c.ret(c.d)
	}
	return c.ret(3*c.k - 2*c.d)
}

func (e *Kdj) NewCalc(_ *core.TickerInfo) Calc {
	return &kdjCalc{n2: float64(e.N2), n3: float64(e.N3), col: e.Col, k: 50, d: 50,
		highs: window{size: e.N1}, lows: window{size: e.N1}}
}

type effCalc struct {
	one
	moves  window
	closes window
}

func (c *effCalc) Next(bars []core.Bar, i int) []float64 {
	c.closes.push(bars[i].Close)
	if i > 0 {
		c.moves.push(math.Abs(bars[i].Close - bars[i-1].Close))
	}
	if !c.closes.full() || !c.moves.full() {
		return c.ret(nan)
	}
	total := floats.Sum(c.moves.vals)
	if total == 0 {
		return c.ret(nan)
	}
	lagged := c.closes.vals[0]
	return c.ret(100 * (bars[i].Close - lagged) / total)
}

func (e *EffRatio) NewCalc(_ *core.TickerInfo) Calc {
	return &effCalc{moves: window{size: e.Window}, closes: window{size: e.Lag + 1}}
}

type spreadCalc struct {
	one
	ma Calc
}

func (c *spreadCalc) Next(bars []core.Bar, i int) []float64 {
	ma := c.ma.Next(bars, i)[0]
	return c.ret(bars[i].Close/ma - 1)
}

func (e *Spread) NewCalc(info *core.TickerInfo) Calc {
	return &spreadCalc{ma: Ma(Kline(Close), e.Period).NewCalc(info)}
}

type rankmaCalc struct {
	one
	ma     Calc
	prev   float64
	slopes window
}

func (c *rankmaCalc) Next(bars []core.Bar, i int) []float64 {
	ma := c.ma.Next(bars, i)[0]
	up := nan
	if !math.IsNaN(ma) && !math.IsNaN(c.prev) {
		up = 0
		if ma > c.prev {
			up = 1
		}
	}
	c.prev = ma
	c.slopes.push(up)
	if !c.slopes.full() || hasNaN(c.slopes.vals) {
		return c.ret(nan)
	}
	return c.ret(floats.Sum(c.slopes.vals))
}

func (e *Rankma) NewCalc(info *core.TickerInfo) Calc {
	return &rankmaCalc{ma: Ma(Kline(Close), e.Period).NewCalc(info), prev: nan,
		slopes: window{size: e.Window}}
}

// reduction of one group of bars
type reduce struct {
	r   Reducer
	val float64
	n   int
}

func (a *reduce) add(v float64) {
	if a.n == 0 {
		a.val = v
	} else {
		switch a.r {
		case Last:
			a.val = v
		case RMax:
			a.val = max(a.val, v)
		case RMin:
			a.val = min(a.val, v)
		}
	}
	a.n++
}

/*
groupShift reduces field per group. Shift 0 gives the running value of the current
group, shift k the final value of the k-th finished group before it.
*/
type groupShift struct {
	one
	shift int
	field Field
	cur   reduce
	done  []float64
}

func (c *groupShift) closeGroup() {
	if c.cur.n == 0 {
		return
	}
	c.done = append(c.done, c.cur.val)
	if len(c.done) > c.shift {
		c.done = c.done[len(c.done)-c.shift:]
	}
	c.cur = reduce{r: c.cur.r}
}

func (c *groupShift) value() []float64 {
	if c.shift == 0 {
		return c.ret(c.cur.val)
	}
	if len(c.done) < c.shift {
		return c.ret(nan)
	}
	return c.ret(c.done[len(c.done)-c.shift])
}

type shiftDaysCalc struct {
	groupShift
	day int
}

func (c *shiftDaysCalc) Next(bars []core.Bar, i int) []float64 {
	day := btime.DayKey(bars[i].OpenTime)
	if day != c.day {
		c.closeGroup()
		c.day = day
	}
	c.cur.add(c.field.Of(&bars[i]))
	return c.value()
}

func (e *ShiftDays) NewCalc(_ *core.TickerInfo) Calc {
	return &shiftDaysCalc{groupShift: groupShift{shift: e.Days, field: e.Field, cur: reduce{r: e.Reducer}}}
}

type shiftInterCalc struct {
	groupShift
	state kline.State
}

func (c *shiftInterCalc) Next(bars []core.Bar, i int) []float64 {
	c.cur.add(c.field.Of(&bars[i]))
	res := c.value()
	if _, ok := c.state.Push(bars[i]); ok {
		// the group ends with this bar, later bars see it as finished
		c.closeGroup()
	}
	return res
}

func (e *ShiftInter) NewCalc(info *core.TickerInfo) Calc {
	return &shiftInterCalc{
		groupShift: groupShift{shift: e.Shift, field: e.Field, cur: reduce{r: e.Reducer}},
		state:      e.Agg.NewState(info),
	}
}

type dayKlineCalc struct {
	one
	field Field
	day   int
	acc   float64
}

func (c *dayKlineCalc) Next(bars []core.Bar, i int) []float64 {
	b := &bars[i]
	day := btime.DayKey(b.OpenTime)
	first := day != c.day
	c.day = day
	v := c.field.Of(b)
	switch {
	case first:
		c.acc = v
	case c.field == High:
		c.acc = max(c.acc, v)
	case c.field == Low:
		c.acc = min(c.acc, v)
	case c.field == Volume:
		c.acc += v
	case c.field == Close:
		c.acc = v
	}
	return c.ret(c.acc)
}

func (e *DayKline) NewCalc(_ *core.TickerInfo) Calc { return &dayKlineCalc{field: e.Field} }

type bollCalc struct {
	width float64
	win   window
	out   [3]float64
}

func (c *bollCalc) Next(bars []core.Bar, i int) []float64 {
	c.win.push(bars[i].Close)
	if !c.win.full() {
		c.out = [3]float64{nan, nan, nan}
		return c.out[:]
	}
	mean, std := stat.MeanStdDev(c.win.vals, nil)
	c.out = [3]float64{mean - c.width*std, mean, mean + c.width*std}
	return c.out[:]
}

func (e *Boll) NewCalc(_ *core.TickerInfo) Calc {
	return &bollCalc{width: e.Width, win: window{size: e.Period}}
}

type channelCalc struct {
	highs, lows window
	out         [2]float64
}

func (c *channelCalc) Next(bars []core.Bar, i int) []float64 {
	if c.highs.full() {
		c.out = [2]float64{floats.Min(c.lows.vals), floats.Max(c.highs.vals)}
	} else {
		c.out = [2]float64{nan, nan}
	}
	c.highs.push(bars[i].High)
	c.lows.push(bars[i].Low)
	return c.out[:]
}

func (e *Channel) NewCalc(_ *core.TickerInfo) Calc {
	return &channelCalc{highs: window{size: e.Period}, lows: window{size: e.Period}}
}

type diffCalc struct {
	one
	fast, slow *core.Ema
}

func (c *diffCalc) Next(bars []core.Bar, i int) []float64 {
	return c.ret(c.fast.Update(bars[i].Close) - c.slow.Update(bars[i].Close))
}

func (e *Diff) NewCalc(_ *core.TickerInfo) Calc {
	return &diffCalc{fast: core.NewEMAPeriod(e.Fast), slow: core.NewEMAPeriod(e.Slow)}
}

/*
Batcher computes the whole series at once, implemented by expressions that are not
extensible
*/
type Batcher interface {
	Batch(bars []core.Bar, info *core.TickerInfo) [][]float64
}

func (e *Norm) NewCalc(_ *core.TickerInfo) Calc {
	panic("norm has no incremental form, use Batch")
}

func (e *Norm) Batch(bars []core.Bar, info *core.TickerInfo) [][]float64 {
	calc := e.Input.NewCalc(info)
	res := make([]float64, len(bars))
	valid := make([]float64, 0, len(bars))
	for i := range bars {
		res[i] = calc.Next(bars, i)[0]
		if !math.IsNaN(res[i]) {
			valid = append(valid, res[i])
		}
	}
	if len(valid) < 2 {
		for i := range res {
			res[i] = nan
		}
		return [][]float64{res}
	}
	mean, std := stat.MeanStdDev(valid, nil)
	for i, v := range res {
		if std == 0 {
			res[i] = nan
		} else {
			res[i] = (v - mean) / std
		}
	}
	return [][]float64{res}
}

type pipeCalc struct {
	state   kline.State
	ind     Calc
	derived []core.Bar
	last    []float64
}

func (c *pipeCalc) Next(bars []core.Bar, i int) []float64 {
	if d, ok := c.state.Push(bars[i]); ok {
		c.derived = append(c.derived, d)
		vals := c.ind.Next(c.derived, len(c.derived)-1)
		c.last = append(c.last[:0], vals...)
	}
	return c.last
}

/*
NewCalc forward-fills values of the derived bars onto every primary bar, only for
extensible aggregations.
*/
func (e *Pipe) NewCalc(info *core.TickerInfo) Calc {
	if !e.Agg.Extensible() {
		panic("pipe calc needs an extensible aggregation: " + e.Agg.Key())
	}
	last := make([]float64, e.Ind.Cols())
	for i := range last {
		last[i] = nan
	}
	return &pipeCalc{state: e.Agg.NewState(info), ind: e.Ind.NewCalc(info), last: last}
}
