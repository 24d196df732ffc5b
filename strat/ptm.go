package strat

import (
	"math"

	"github.com/banbox/banfut/cond"
)

/*
Stp one signal leg: open and exit conditions plus an optional weight applied to the
held magnitude on every bar
*/
type Stp struct {
	Dir    cond.Dir
	Open   cond.Cond
	Exit   cond.Cond
	Weight *cond.CondWeight
}

func (s *Stp) Key() string {
	return s.keyAs(s.Dir)
}

// keyAs key of the leg when it runs in direction dir
func (s *Stp) keyAs(dir cond.Dir) string {
	res := dir.String() + ":" + s.Open.Key() + "/" + s.Exit.Key()
	if s.Weight != nil {
		res += "*" + s.Weight.Key()
	}
	return res
}

/*
Stepper produces the holding of bar i. Step is called for i = 0, 1, 2... without gaps.
*/
type Stepper interface {
	Step(i int) NormHold
}

// Ptm position directive, compiled against one instrument
type Ptm interface {
	Key() string
	Compile(env *cond.Env) Stepper
}

type Single struct {
	Sizing Sizing
	Stp    *Stp
}

/*
Pair long leg driven by Long, short leg by Short, holdings summed. The directions of the
Stp values are ignored, so swapping the legs negates the result.
*/
type Pair struct {
	Sizing Sizing
	Long   *Stp
	Short  *Stp
}

type Direct struct {
	Sizing Sizing
	Dir    cond.Dir
	Open   cond.Cond
	Exit   cond.Cond
}

type Combine struct {
	A, B Ptm
}

// Wrap transforms the holding of Inner on every bar
type Wrap struct {
	Name  string
	Inner Ptm
	Fn    func(i int, h NormHold) NormHold
}

// Custom hand-written stepper, Name must identify its logic
type Custom struct {
	Name string
	New  func(env *cond.Env) Stepper
}

func (p *Single) Key() string { return "single(" + p.Sizing.Key() + "," + p.Stp.Key() + ")" }

func (p *Single) Compile(env *cond.Env) Stepper {
	return newLeg(env, p.Sizing, p.Stp, p.Stp.Dir)
}

func (p *Pair) Key() string {
	return "pair(" + p.Sizing.Key() + "," + p.Long.keyAs(cond.Long) + "," + p.Short.keyAs(cond.Short) + ")"
}

func (p *Pair) Compile(env *cond.Env) Stepper {
	return &combineStep{
		a: newLeg(env, p.Sizing, p.Long, cond.Long),
		b: newLeg(env, p.Sizing, p.Short, cond.Short),
	}
}

// Swap exchanges the legs
func (p *Pair) Swap() *Pair {
	return &Pair{Sizing: p.Sizing, Long: p.Short, Short: p.Long}
}

func (p *Direct) Key() string {
	return "direct(" + p.Sizing.Key() + "," + p.Dir.String() + "," + p.Open.Key() + "," + p.Exit.Key() + ")"
}

func (p *Direct) Compile(env *cond.Env) Stepper {
	return newLeg(env, p.Sizing, &Stp{Dir: p.Dir, Open: p.Open, Exit: p.Exit}, p.Dir)
}

func (p *Combine) Key() string { return "combine(" + p.A.Key() + "," + p.B.Key() + ")" }

func (p *Combine) Compile(env *cond.Env) Stepper {
	return &combineStep{a: p.A.Compile(env), b: p.B.Compile(env)}
}

func (p *Wrap) Key() string { return p.Name + "(" + p.Inner.Key() + ")" }

func (p *Wrap) Compile(env *cond.Env) Stepper {
	return &wrapStep{inner: p.Inner.Compile(env), fn: p.Fn}
}

func (p *Custom) Key() string { return "custom(" + p.Name + ")" }

func (p *Custom) Compile(env *cond.Env) Stepper { return p.New(env) }

// Invert flips the direction of every holding
func Invert(p Ptm) *Wrap {
	return &Wrap{Name: "invert", Inner: p, Fn: func(_ int, h NormHold) NormHold { return h.Neg() }}
}

// Scaled multiplies every holding by k
func Scaled(p Ptm, k float64) *Wrap {
	return &Wrap{Name: "scale" + fmtNum(k), Inner: p, Fn: func(_ int, h NormHold) NormHold { return h.Scale(k) }}
}

type combineStep struct {
	a, b Stepper
}

func (s *combineStep) Step(i int) NormHold {
	return s.a.Step(i).Add(s.b.Step(i))
}

type wrapStep struct {
	inner Stepper
	fn    func(i int, h NormHold) NormHold
}

func (s *wrapStep) Step(i int) NormHold {
	return s.fn(i, s.inner.Step(i))
}

/*
leg is the Flat / HoldingSince(o) machine of one signal leg
*/
type leg struct {
	dir     cond.Dir
	open    cond.Pred
	exit    cond.Pred
	weight  cond.WeightFn
	size    SizeFn
	holding bool
	since   int
	base    float64
}

func newLeg(env *cond.Env, sizing Sizing, stp *Stp, dir cond.Dir) *leg {
	res := &leg{
		dir:  dir,
		open: stp.Open.Compile(env),
		exit: stp.Exit.Compile(env),
		size: sizing.Compile(env),
	}
	if stp.Weight != nil {
		res.weight = stp.Weight.Compile(env)
	}
	return res
}

func (l *leg) Step(i int) NormHold {
	if !l.holding {
		if l.open(i, i) && !l.exit(i, i) {
			k := l.size(i)
			if !math.IsNaN(k) && k > 0 {
				l.holding, l.since, l.base = true, i, k
			}
		}
	} else if l.exit(i, l.since) {
		l.holding = false
	}
	if !l.holding {
		return None
	}
	w := l.base
	if l.weight != nil {
		w *= l.weight(i, l.since)
	}
	return FromNum(float64(l.dir) * w)
}
