package strat

import (
	"fmt"
	"math"

	"github.com/banbox/banfut/cond"
)

/*
NormHold normalised position: Dir is 0 (none), 1 (long) or -1 (short), W the magnitude
*/
type NormHold struct {
	Dir int
	W   float64
}

var None = NormHold{}

func LongW(w float64) NormHold {
	return FromNum(math.Abs(w))
}

func ShortW(w float64) NormHold {
	return FromNum(-math.Abs(w))
}

// FromNum signed magnitude to NormHold
func FromNum(x float64) NormHold {
	switch {
	case x > 0:
		return NormHold{Dir: int(cond.Long), W: x}
	case x < 0:
		return NormHold{Dir: int(cond.Short), W: -x}
	}
	return None
}

// Num signed magnitude, long positive
func (h NormHold) Num() float64 {
	return float64(h.Dir) * h.W
}

func (h NormHold) IsNone() bool {
	return h.Dir == 0 || h.W == 0
}

/*
Add nets two holdings: Long(a) + Short(b) becomes Long(a-b), Short(b-a) or None
*/
func (h NormHold) Add(o NormHold) NormHold {
	return FromNum(h.Num() + o.Num())
}

func (h NormHold) Neg() NormHold {
	return FromNum(-h.Num())
}

func (h NormHold) Scale(k float64) NormHold {
	return FromNum(h.Num() * k)
}

// legs long and short magnitudes
func (h NormHold) legs() (float64, float64) {
	if h.Dir > 0 {
		return h.W, 0
	} else if h.Dir < 0 {
		return 0, h.W
	}
	return 0, 0
}

func (h NormHold) String() string {
	switch {
	case h.IsNone():
		return "None"
	case h.Dir > 0:
		return fmt.Sprintf("Long(%v)", h.W)
	}
	return fmt.Sprintf("Short(%v)", h.W)
}

/*
Delta open and exit between two consecutive holdings, both carry the direction of the
leg they change, so cur.Num() == prev.Num() + open.Num() - exit.Num()
*/
func Delta(prev, cur NormHold) (NormHold, NormHold) {
	pl, ps := prev.legs()
	cl, cs := cur.legs()
	open := LongW(max(cl-pl, 0)).Add(ShortW(max(cs-ps, 0)))
	exit := LongW(max(pl-cl, 0)).Add(ShortW(max(ps-cs, 0)))
	return open, exit
}
