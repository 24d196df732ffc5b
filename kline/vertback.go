package kline

import (
	"math"
)

/*
ComposeMask mask of post applied on the output of pre, aligned with the input of pre.
len(post) must equal the count of true in pre.
*/
func ComposeMask(pre, post []bool) []bool {
	res := make([]bool, len(pre))
	k := 0
	for i, ok := range pre {
		if !ok {
			continue
		}
		if k >= len(post) {
			break
		}
		res[i] = post[k]
		k++
	}
	return res
}

/*
VertBack projects vals computed on derived bars back onto the primary bars. Positions
where no derived bar finished get NaN, the others take the next value.
*/
func VertBack(mask []bool, vals []float64) []float64 {
	res := make([]float64, len(mask))
	k := 0
	for i, ok := range mask {
		if ok && k < len(vals) {
			res[i] = vals[k]
			k++
		} else {
			res[i] = math.NaN()
		}
	}
	return res
}

/*
VertBackPipe projects in two steps, first onto the intermediate buffer of a pipe, then
onto the primary buffer
*/
func VertBackPipe(preMask, postMask []bool, vals []float64) []float64 {
	return VertBack(preMask, VertBack(postMask, vals))
}

/*
Positions maps each primary index to the index of the latest derived bar finished at or
before it, -1 before the first one
*/
func Positions(mask []bool) []int {
	res := make([]int, len(mask))
	k := -1
	for i, ok := range mask {
		if ok {
			k++
		}
		res[i] = k
	}
	return res
}

func CountTrue(mask []bool) int {
	n := 0
	for _, ok := range mask {
		if ok {
			n++
		}
	}
	return n
}
