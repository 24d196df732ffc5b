package ta

import (
	"fmt"
	"strconv"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/kline"
)

/*
Expr an indicator over a bar buffer. Key must be canonical: two expressions with the
same key always compute the same values.
*/
type Expr interface {
	Key() string
	Cols() int
	// Extensible false means values of earlier bars change when the buffer grows
	Extensible() bool
	NewCalc(info *core.TickerInfo) Calc
}

/*
Calc computes one bar at a time. Next is called with i = 0, 1, 2... in order, bars
holds at least i+1 elements. The returned slice is only valid until the next call.
*/
type Calc interface {
	Next(bars []core.Bar, i int) []float64
}

type Field int

const (
	Open Field = iota
	High
	Low
	Close
	Volume
)

var fieldNames = []string{"open", "high", "low", "close", "volume"}

func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return "field" + strconv.Itoa(int(f))
	}
	return fieldNames[f]
}

func (f Field) Of(bar *core.Bar) float64 {
	switch f {
	case Open:
		return bar.Open
	case High:
		return bar.High
	case Low:
		return bar.Low
	case Volume:
		return bar.Volume
	default:
		return bar.Close
	}
}

func ParseField(text string) (Field, bool) {
	for i, n := range fieldNames {
		if n == text {
			return Field(i), true
		}
	}
	return Close, false
}

type RollFn int

const (
	FnSum RollFn = iota
	FnMean
	FnMax
	FnMin
	FnVar
	FnStd
	FnMomentum
	FnSkewness
)

var rollNames = []string{"sum", "mean", "max", "min", "var", "std", "mom", "skew"}

func (f RollFn) String() string {
	return rollNames[f]
}

type Reducer int

const (
	First Reducer = iota
	Last
	RMax
	RMin
)

var reducerNames = []string{"first", "last", "max", "min"}

func (r Reducer) String() string {
	return reducerNames[r]
}

type KlineField struct{ Field Field }

type Rolling struct {
	Input  Expr
	Fn     RollFn
	Window int
}

type EmaOf struct {
	Input  Expr
	Period int
}

type Rsi struct{ Period int }

type Atr struct{ Period int }

type Macd struct{ Fast, Slow, Mid int }

// Kdj stochastic oscillator, Col selects K (0), D (1) or J (2)
type Kdj struct {
	N1, N2, N3 int
	Col        int
}

type EffRatio struct{ Lag, Window int }

type Spread struct{ Period int }

type Rankma struct{ Period, Window int }

type ShiftDays struct {
	Days    int
	Field   Field
	Reducer Reducer
}

type ShiftInter struct {
	Agg     kline.AggExpr
	Shift   int
	Field   Field
	Reducer Reducer
}

type DayKline struct{ Field Field }

// Boll columns: lower, middle, upper
type Boll struct {
	Period int
	Width  float64
}

// Channel columns: lowest low, highest high of the previous Period bars
type Channel struct{ Period int }

type Diff struct{ Fast, Slow int }

// Norm z-score against the whole buffer
type Norm struct{ Input Expr }

/*
Pipe computes Ind over the bars derived by Agg. Values live on the derived buffer and
are projected back onto the primary one by the lattice.
*/
type Pipe struct {
	Agg kline.AggExpr
	Ind Expr
}

func mustPositive(name string, vals ...int) {
	for _, v := range vals {
		if v < 1 {
			panic(fmt.Sprintf("%s: period must be positive, got %v", name, vals))
		}
	}
}

func Kline(f Field) *KlineField { return &KlineField{Field: f} }

func Roll(input Expr, fn RollFn, window int) *Rolling {
	mustPositive("rolling", window)
	if fn == FnVar || fn == FnStd || fn == FnSkewness {
		mustPositive("rolling", window-1)
	}
	return &Rolling{Input: input, Fn: fn, Window: window}
}

func Ma(input Expr, period int) *Rolling { return Roll(input, FnMean, period) }

func Max(f Field, n int) *Rolling { return Roll(Kline(f), FnMax, n) }

func Min(f Field, n int) *Rolling { return Roll(Kline(f), FnMin, n) }

func Ema(input Expr, period int) *EmaOf {
	mustPositive("ema", period)
	return &EmaOf{Input: input, Period: period}
}

func NewRsi(n int) *Rsi {
	mustPositive("rsi", n)
	return &Rsi{Period: n}
}

func NewAtr(n int) *Atr {
	mustPositive("atr", n)
	return &Atr{Period: n}
}

func NewMacd(fast, slow, mid int) *Macd {
	mustPositive("macd", fast, slow, mid)
	return &Macd{Fast: fast, Slow: slow, Mid: mid}
}

func Kta(n1, n2, n3 int) *Kdj {
	mustPositive("kdj", n1, n2, n3)
	return &Kdj{N1: n1, N2: n2, N3: n3, Col: 0}
}

func Dta(n1, n2, n3 int) *Kdj {
	res := Kta(n1, n2, n3)
	res.Col = 1
	return res
}

func Jta(n1, n2, n3 int) *Kdj {
	res := Kta(n1, n2, n3)
	res.Col = 2
	return res
}

func NewEffRatio(lag, window int) *EffRatio {
	mustPositive("effratio", lag, window)
	return &EffRatio{Lag: lag, Window: window}
}

func NewSpread(n int) *Spread {
	mustPositive("spread", n)
	return &Spread{Period: n}
}

func NewRankma(n1, n2 int) *Rankma {
	mustPositive("rankma", n1, n2)
	return &Rankma{Period: n1, Window: n2}
}

func NewShiftDays(days int, f Field, r Reducer) *ShiftDays {
	if days < 0 {
		panic("shift days must not be negative")
	}
	return &ShiftDays{Days: days, Field: f, Reducer: r}
}

func NewShiftInter(agg kline.AggExpr, shift int, f Field, r Reducer) *ShiftInter {
	if shift < 0 {
		panic("shift must not be negative")
	}
	if err := agg.Validate(); err != nil {
		panic(err.Short())
	}
	if !agg.Extensible() {
		panic("shift inter needs an extensible aggregation: " + agg.Key())
	}
	return &ShiftInter{Agg: agg, Shift: shift, Field: f, Reducer: r}
}

func NewDayKline(f Field) *DayKline { return &DayKline{Field: f} }

func NewBoll(n int, width float64) *Boll {
	mustPositive("boll", n, n-1)
	return &Boll{Period: n, Width: width}
}

func NewChannel(n int) *Channel {
	mustPositive("channel", n)
	return &Channel{Period: n}
}

func NewDiff(fast, slow int) *Diff {
	mustPositive("diff", fast, slow)
	return &Diff{Fast: fast, Slow: slow}
}

func NewNorm(input Expr) *Norm { return &Norm{Input: input} }

/*
NewPipe computes ind on the bars derived by agg. Nested pipes are flattened into a
single chained aggregation.
*/
func NewPipe(agg kline.AggExpr, ind Expr) *Pipe {
	if err := agg.Validate(); err != nil {
		panic(err.Short())
	}
	if inner, ok := ind.(*Pipe); ok {
		return NewPipe(kline.NewPipe(agg, inner.Agg), inner.Ind)
	}
	if err := Check(ind); err != nil {
		panic(err.Short())
	}
	return &Pipe{Agg: agg, Ind: ind}
}

/*
Check rejects pipes nested inside another indicator and non-extensible inputs, both
are only allowed at the top
*/
func Check(expr Expr) *errs.Error {
	switch e := expr.(type) {
	case *Pipe:
		return errs.NewMsg(core.ErrInvalidExpr, "pipe can not be nested: %s", e.Key())
	case *Rolling:
		return checkInput(e.Input)
	case *EmaOf:
		return checkInput(e.Input)
	case *Norm:
		return checkInput(e.Input)
	case nil:
		return errs.NewMsg(core.ErrInvalidExpr, "nil indicator")
	}
	return nil
}

func checkInput(input Expr) *errs.Error {
	if input == nil {
		return errs.NewMsg(core.ErrInvalidExpr, "nil indicator input")
	}
	if !input.Extensible() {
		return errs.NewMsg(core.ErrInvalidExpr, "input must be extensible: %s", input.Key())
	}
	return Check(input)
}

func (e *KlineField) Key() string { return "kline(" + e.Field.String() + ")" }
func (e *Rolling) Key() string {
	return fmt.Sprintf("roll(%s,%s,%d)", e.Fn, e.Input.Key(), e.Window)
}
func (e *EmaOf) Key() string     { return fmt.Sprintf("ema(%s,%d)", e.Input.Key(), e.Period) }
func (e *Rsi) Key() string       { return fmt.Sprintf("rsi(%d)", e.Period) }
func (e *Atr) Key() string       { return fmt.Sprintf("atr(%d)", e.Period) }
func (e *Macd) Key() string      { return fmt.Sprintf("macd(%d,%d,%d)", e.Fast, e.Slow, e.Mid) }
func (e *Kdj) Key() string       { return fmt.Sprintf("%sta(%d,%d,%d)", []string{"k", "d", "j"}[e.Col], e.N1, e.N2, e.N3) }
func (e *EffRatio) Key() string  { return fmt.Sprintf("effr(%d,%d)", e.Lag, e.Window) }
func (e *Spread) Key() string    { return fmt.Sprintf("spread(%d)", e.Period) }
func (e *Rankma) Key() string    { return fmt.Sprintf("rankma(%d,%d)", e.Period, e.Window) }
func (e *ShiftDays) Key() string { return fmt.Sprintf("shiftd(%d,%s,%s)", e.Days, e.Field, e.Reducer) }
func (e *ShiftInter) Key() string {
	return fmt.Sprintf("shifti(%s,%d,%s,%s)", e.Agg.Key(), e.Shift, e.Field, e.Reducer)
}
func (e *DayKline) Key() string { return "dayk(" + e.Field.String() + ")" }
func (e *Boll) Key() string {
	return fmt.Sprintf("boll(%d,%s)", e.Period, strconv.FormatFloat(e.Width, 'f', -1, 64))
}
func (e *Channel) Key() string { return fmt.Sprintf("chan(%d)", e.Period) }
func (e *Diff) Key() string    { return fmt.Sprintf("diff(%d,%d)", e.Fast, e.Slow) }
func (e *Norm) Key() string    { return "norm(" + e.Input.Key() + ")" }
func (e *Pipe) Key() string    { return e.Agg.Key() + "|" + e.Ind.Key() }

func (e *Macd) Cols() int { return 2 }
func (e *Boll) Cols() int { return 3 }
func (e *Channel) Cols() int { return 2 }
func (e *Pipe) Cols() int { return e.Ind.Cols() }

func (e *KlineField) Cols() int { return 1 }
func (e *Rolling) Cols() int    { return 1 }
func (e *EmaOf) Cols() int      { return 1 }
func (e *Rsi) Cols() int        { return 1 }
func (e *Atr) Cols() int        { return 1 }
func (e *Kdj) Cols() int        { return 1 }
func (e *EffRatio) Cols() int   { return 1 }
func (e *Spread) Cols() int     { return 1 }
func (e *Rankma) Cols() int     { return 1 }
func (e *ShiftDays) Cols() int  { return 1 }
func (e *ShiftInter) Cols() int { return 1 }
func (e *DayKline) Cols() int   { return 1 }
func (e *Diff) Cols() int       { return 1 }
func (e *Norm) Cols() int       { return 1 }

func (e *KlineField) Extensible() bool { return true }
func (e *Rolling) Extensible() bool    { return e.Input.Extensible() }
func (e *EmaOf) Extensible() bool      { return e.Input.Extensible() }
func (e *Rsi) Extensible() bool        { return true }
func (e *Atr) Extensible() bool        { return true }
func (e *Macd) Extensible() bool       { return true }
func (e *Kdj) Extensible() bool        { return true }
func (e *EffRatio) Extensible() bool   { return true }
func (e *Spread) Extensible() bool     { return true }
func (e *Rankma) Extensible() bool     { return true }
func (e *ShiftDays) Extensible() bool  { return true }
func (e *ShiftInter) Extensible() bool { return true }
func (e *DayKline) Extensible() bool   { return true }
func (e *Boll) Extensible() bool       { return true }
func (e *Channel) Extensible() bool    { return true }
func (e *Diff) Extensible() bool       { return true }
func (e *Norm) Extensible() bool       { return false }
func (e *Pipe) Extensible() bool       { return e.Agg.Extensible() && e.Ind.Extensible() }
