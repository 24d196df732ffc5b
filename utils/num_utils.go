package utils

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

func EqualNearly(a, b float64) bool {
	return EqualIn(a, b, 1e-8)
}

func EqualIn(a, b, thres float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= thres*max(1, math.Abs(a), math.Abs(b))
}

/*
MaxDrawDown largest drop of the cumulative sum of pnls from its running peak
*/
func MaxDrawDown(pnls []float64) float64 {
	var cum, peak, res float64
	for _, v := range pnls {
		cum += v
		peak = max(peak, cum)
		res = max(res, peak-cum)
	}
	return res
}

/*
SharpeRatio mean over sample std of returns, annualised by sqrt(periods), 0 when
undefined
*/
func SharpeRatio(returns []float64, periods float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(periods)
}
