package strat

import (
	"strconv"

	"github.com/banbox/banfut/cond"
)

/*
Runner steps a compiled directive over a growing bar buffer. Every index is stepped
exactly once and in order, so the same buffer prefix always gives the same holdings.
*/
type Runner struct {
	Env   *cond.Env
	Ptm   Ptm
	st    Stepper
	holds []NormHold
}

func NewRunner(env *cond.Env, ptm Ptm) *Runner {
	return &Runner{Env: env, Ptm: ptm, st: ptm.Compile(env)}
}

/*
Step holding at bar i, stepping any index not seen yet. Indexes past the buffer return
the latest known holding.
*/
func (r *Runner) Step(i int) NormHold {
	if i < 0 {
		return None
	}
	if i < len(r.holds) {
		return r.holds[i]
	}
	if i >= r.Env.Len() {
		r.Env.Refresh()
	}
	for k := len(r.holds); k <= i && k < r.Env.Len(); k++ {
		r.holds = append(r.holds, r.st.Step(k))
	}
	n := len(r.holds)
	if i < n {
		return r.holds[i]
	} else if n > 0 {
		return r.holds[n-1]
	}
	return None
}

func (r *Runner) Len() int {
	return len(r.holds)
}

// Triple hold, open and exit of bar i
func (r *Runner) Triple(i int) (NormHold, NormHold, NormHold) {
	cur := r.Step(i)
	prev := None
	if i > 0 {
		prev = r.Step(i - 1)
	}
	open, exit := Delta(prev, cur)
	return cur, open, exit
}

// Holds every holding stepped so far
func (r *Runner) Holds() []NormHold {
	return r.holds[:len(r.holds):len(r.holds)]
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
