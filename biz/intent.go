package biz

import (
	"math"

	"github.com/banbox/banfut/core"
	"github.com/shopspring/decimal"
)

/*
IntentFor the next order moving hold towards target (signed contracts, long positive).
An opposite leg is always closed before the other side is opened. The limit price
crosses the quote by the ticker's slippage ticks and is rounded to the tick size.
*/
func IntentFor(target float64, hold Holding, q *core.Quote, info *core.TickerInfo) Intent {
	diff := math.Round(target) - hold.Net()
	if diff == 0 || q == nil {
		return NoIntent
	}
	var res Intent
	if diff > 0 {
		if hold.Short > 0 {
			res = Intent{Kind: CloseShort, Qty: math.Min(diff, hold.Short)}
		} else {
			res = Intent{Kind: OpenLong, Qty: diff}
		}
	} else {
		if hold.Long > 0 {
			res = Intent{Kind: CloseLong, Qty: math.Min(-diff, hold.Long)}
		} else {
			res = Intent{Kind: OpenShort, Qty: -diff}
		}
	}
	res.Price = limitPrice(res.Kind, q, info)
	return res
}

func limitPrice(kind IntentKind, q *core.Quote, info *core.TickerInfo) float64 {
	buy := kind == OpenLong || kind == CloseShort
	base := q.Price
	if buy && q.Ask > 0 {
		base = q.Ask
	} else if !buy && q.Bid > 0 {
		base = q.Bid
	}
	slip := decimal.NewFromFloat(info.SlipTicks).Mul(decimal.NewFromFloat(info.TickSize))
	px := decimal.NewFromFloat(base)
	if buy {
		px = px.Add(slip)
	} else {
		px = px.Sub(slip)
	}
	return core.RoundTick(px.InexactFloat64(), info.TickSize)
}
