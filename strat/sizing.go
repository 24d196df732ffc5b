package strat

import (
	"fmt"
	"math"

	"github.com/banbox/banfut/cond"
	"github.com/banbox/banfut/ta"
)

/*
SizeFn position multiplier at the entry bar i, NaN means no position
*/
type SizeFn func(i int) float64

type Sizing interface {
	Key() string
	Compile(env *cond.Env) SizeFn
}

// Fixed k contracts
type Fixed struct{ K float64 }

// Unit one contract
type Unit struct{}

// NotionalByPrice contracts worth Money at the entry price
type NotionalByPrice struct{ Money float64 }

// NotionalByVolatility like NotionalByPrice, divided by the volatility measure Vol
type NotionalByVolatility struct {
	Money float64
	Vol   ta.Expr
}

func (s *Fixed) Key() string { return fmt.Sprintf("fixed(%v)", s.K) }

func (s *Fixed) Compile(_ *cond.Env) SizeFn {
	k := s.K
	return func(int) float64 { return k }
}

func (s *Unit) Key() string { return "unit" }

func (s *Unit) Compile(_ *cond.Env) SizeFn {
	return func(int) float64 { return 1 }
}

func pointValue(env *cond.Env) float64 {
	if env.Info == nil || env.Info.PointValue <= 0 {
		return 1
	}
	return env.Info.PointValue
}

func (s *NotionalByPrice) Key() string { return fmt.Sprintf("money(%v)", s.Money) }

func (s *NotionalByPrice) Compile(env *cond.Env) SizeFn {
	pv := pointValue(env)
	return func(i int) float64 {
		price := env.Close(i)
		if !(price > 0) {
			return math.NaN()
		}
		return s.Money / price / pv
	}
}

func (s *NotionalByVolatility) Key() string {
	return fmt.Sprintf("moneyvol(%v,%s)", s.Money, s.Vol.Key())
}

func (s *NotionalByVolatility) Compile(env *cond.Env) SizeFn {
	pv := pointValue(env)
	vol := env.Series(s.Vol)
	return func(i int) float64 {
		price, v := env.Close(i), vol.At(0, i)
		if !(price > 0) || math.IsNaN(v) || v <= 0 {
			return math.NaN()
		}
		return s.Money / price / pv / v
	}
}
