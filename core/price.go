package core

import (
	"github.com/shopspring/decimal"
)

func SetQuote(t *Tick) {
	lockPrices.Lock()
	q, ok := lastPrices[t.Code]
	if !ok {
		q = &Quote{}
		lastPrices[t.Code] = q
	}
	q.Price = t.Price
	q.Bid = t.BidPrice
	q.Ask = t.AskPrice
	q.Time = t.Time
	lockPrices.Unlock()
}

/*
GetQuote latest quote of ticker, nil if no tick received yet
*/
func GetQuote(code Ticker) *Quote {
	lockPrices.RLock()
	q, ok := lastPrices[code]
	lockPrices.RUnlock()
	if !ok {
		return nil
	}
	res := *q
	return &res
}

/*
RoundTick round price to a multiple of tickSize
*/
func RoundTick(price, tickSize float64) float64 {
	if tickSize <= 0 {
		return price
	}
	step := decimal.NewFromFloat(tickSize)
	res := decimal.NewFromFloat(price).Div(step).Round(0).Mul(step)
	return res.InexactFloat64()
}
