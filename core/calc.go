package core

import (
	"math"
)

type Ema struct {
	Alpha float64
	Val   float64
	Age   int
}

func NewEMA(alpha float64) *Ema {
	return &Ema{Alpha: alpha}
}

/*
NewEMAPeriod ema with alpha 2/(period+1)
*/
func NewEMAPeriod(period int) *Ema {
	return &Ema{Alpha: 2 / float64(period+1)}
}

func (e *Ema) Update(val float64) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return math.NaN()
	}
	if e.Age == 0 {
		e.Val = val
	} else {
		e.Val = e.Val*(1-e.Alpha) + val*e.Alpha
	}
	e.Age += 1
	return e.Val
}

/*
Seed set the initial value without consuming a sample
*/
func (e *Ema) Seed(val float64) {
	e.Val = val
	e.Age = 1
}

func (e *Ema) Reset() {
	e.Val = 0
	e.Age = 0
}
