package cond

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/kline"
	"github.com/banbox/banfut/ta"
)

/*
Env binds compiled conditions to one instrument. Refresh takes a new snapshot of the
bar buffer, compiled predicates always read the latest snapshot.
*/
type Env struct {
	Code   core.Ticker
	Info   *core.TickerInfo
	Lat    *ta.Lattice
	bars   []core.Bar
	pinned []*ta.Series
}

func NewEnv(lat *ta.Lattice) *Env {
	res := &Env{Code: lat.Code, Info: lat.Info, Lat: lat}
	res.Refresh()
	return res
}

func (e *Env) Refresh() {
	e.bars = e.Lat.Buffer().Snapshot()
}

func (e *Env) Bars() []core.Bar {
	return e.bars
}

func (e *Env) Len() int {
	return len(e.bars)
}

func (e *Env) Close(i int) float64 {
	if i < 0 || i >= len(e.bars) {
		return math.NaN()
	}
	return e.bars[i].Close
}

// Series resolves expr in the lattice and keeps it alive while the env is in use
func (e *Env) Series(expr ta.Expr) *ta.Series {
	s := e.Lat.Pin(expr)
	e.pinned = append(e.pinned, s)
	return s
}

// Release unpins every series resolved by compiled predicates
func (e *Env) Release() {
	for _, s := range e.pinned {
		e.Lat.Unpin(s)
	}
	e.pinned = nil
}

/*
Pred evaluated at bar i, o is the bar the position was opened on (i when flat)
*/
type Pred func(i, o int) bool

type Cond interface {
	Key() string
	Compile(env *Env) Pred
}

type Dir int

const (
	Long  Dir = core.DirtLong
	Short Dir = core.DirtShort
)

func (d Dir) String() string {
	if d == Short {
		return "short"
	}
	return "long"
}

func (d Dir) Opposite() Dir {
	return -d
}

type BandState int

const (
	Action BandState = iota // price breaks through the band on this bar
	Lieing                  // price stays outside the band
)

func (s BandState) String() string {
	if s == Lieing {
		return "lie"
	}
	return "act"
}

/*
BandCross Pms yields ordered bands, the first column is the lower band and the last
column the upper one. Long watches the upper band, short the lower band.
*/
type BandCross struct {
	Dir   Dir
	State BandState
	Pms   ta.Expr
}

type InRange struct {
	Pms ta.Expr
	Col int
	Lo  float64
	Hi  float64
}

// Cross Fast crosses Slow upwards (Long) or downwards (Short)
type Cross struct {
	Dir  Dir
	Fast ta.Expr
	Slow ta.Expr
}

type Const struct{ Val bool }

type And struct{ A, B Cond }

type Or struct{ A, B Cond }

type Not struct{ A Cond }

func (c *BandCross) Key() string {
	return fmt.Sprintf("bandx(%s,%s,%s)", c.Dir, c.State, c.Pms.Key())
}

func (c *BandCross) Compile(env *Env) Pred {
	s := env.Series(c.Pms)
	col := 0
	if c.Dir == Long {
		col = s.Cols() - 1
	}
	outside := func(i int) bool {
		band := s.At(col, i)
		price := env.Close(i)
		if math.IsNaN(band) || math.IsNaN(price) {
			return false
		}
		if c.Dir == Long {
			return price > band
		}
		return price < band
	}
	if c.State == Lieing {
		return func(i, _ int) bool { return outside(i) }
	}
	return func(i, _ int) bool {
		if i < 1 || !outside(i) {
			return false
		}
		band := s.At(col, i-1)
		if math.IsNaN(band) {
			return false
		}
		return !outside(i - 1)
	}
}

func (c *InRange) Key() string {
	return fmt.Sprintf("inrange(%s,%d,%s,%s)", c.Pms.Key(), c.Col, fmtNum(c.Lo), fmtNum(c.Hi))
}

func (c *InRange) Compile(env *Env) Pred {
	s := env.Series(c.Pms)
	return func(i, _ int) bool {
		v := s.At(c.Col, i)
		return !math.IsNaN(v) && v >= c.Lo && v <= c.Hi
	}
}

func (c *Cross) Key() string {
	return fmt.Sprintf("cross(%s,%s,%s)", c.Dir, c.Fast.Key(), c.Slow.Key())
}

func (c *Cross) Compile(env *Env) Pred {
	fast, slow := env.Series(c.Fast), env.Series(c.Slow)
	sign := float64(c.Dir)
	return func(i, _ int) bool {
		if i < 1 {
			return false
		}
		cur := (fast.At(0, i) - slow.At(0, i)) * sign
		prev := (fast.At(0, i-1) - slow.At(0, i-1)) * sign
		return cur > 0 && prev <= 0
	}
}

func (c *Const) Key() string { return "const(" + strconv.FormatBool(c.Val) + ")" }

func (c *Const) Compile(_ *Env) Pred {
	v := c.Val
	return func(_, _ int) bool { return v }
}

func (c *And) Key() string { return "and(" + c.A.Key() + "," + c.B.Key() + ")" }

func (c *And) Compile(env *Env) Pred {
	a, b := c.A.Compile(env), c.B.Compile(env)
	return func(i, o int) bool { return a(i, o) && b(i, o) }
}

func (c *Or) Key() string { return "or(" + c.A.Key() + "," + c.B.Key() + ")" }

func (c *Or) Compile(env *Env) Pred {
	a, b := c.A.Compile(env), c.B.Compile(env)
	return func(i, o int) bool { return a(i, o) || b(i, o) }
}

func (c *Not) Key() string { return "not(" + c.A.Key() + ")" }

func (c *Not) Compile(env *Env) Pred {
	a := c.A.Compile(env)
	return func(i, o int) bool { return !a(i, o) }
}

// All folds items with And, an empty list is always true
func All(items ...Cond) Cond {
	if len(items) == 0 {
		return &Const{Val: true}
	}
	res := items[0]
	for _, it := range items[1:] {
		res = &And{A: res, B: it}
	}
	return res
}

// Any folds items with Or, an empty list is always false
func Any(items ...Cond) Cond {
	if len(items) == 0 {
		return &Const{Val: false}
	}
	res := items[0]
	for _, it := range items[1:] {
		res = &Or{A: res, B: it}
	}
	return res
}

type WeightItem struct {
	Cond Cond
	W    float64
}

// CondWeight weighted sum of the conditions holding at a bar
type CondWeight struct {
	Items []WeightItem
}

type WeightFn func(i, o int) float64

func (c *CondWeight) Key() string {
	parts := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		parts = append(parts, it.Cond.Key()+"*"+fmtNum(it.W))
	}
	return "weight(" + strings.Join(parts, ",") + ")"
}

func (c *CondWeight) Compile(env *Env) WeightFn {
	preds := make([]Pred, len(c.Items))
	for k, it := range c.Items {
		preds[k] = it.Cond.Compile(env)
	}
	return func(i, o int) float64 {
		total := 0.0
		for k, p := range preds {
			if p(i, o) {
				total += c.Items[k].W
			}
		}
		return total
	}
}

/*
BollBreak helper: price breaks the Bollinger band computed on agg
*/
func BollBreak(dir Dir, agg kline.AggExpr, n int, width float64) *BandCross {
	return &BandCross{Dir: dir, State: Action, Pms: ta.NewPipe(agg, ta.NewBoll(n, width))}
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
