package opt

import (
	"math"

	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/strat"
)

/*
PnlRow money flow of one bar (or one day after Day). All amounts are in account currency.
*/
type PnlRow struct {
	Time       int64 // open time of the bar, day start after Day
	Pnl        float64
	Profit     float64
	MoneyHold  float64 // signed notional held at close
	MoneyTrade float64 // notional opened plus exited
	Cost       float64 // Commission + Slippage
	Commission float64
	Slippage   float64
	Hold       float64 // holding cost: |MoneyHold| weighted by seconds held, per 2 minutes
}

/*
passSeconds seconds covered by a bar, both ends included
*/
func passSeconds(b *core.Bar) float64 {
	if b.CloseTime < b.OpenTime {
		return 0
	}
	return float64((b.CloseTime-b.OpenTime)/1000 + 1)
}

/*
CalcPnl money flow of every bar from aligned hold/open/exit series
*/
func CalcPnl(bars []core.Bar, info *core.TickerInfo, holds, opens, exits []strat.NormHold) []PnlRow {
	n := min(len(bars), len(holds), len(opens), len(exits))
	res := make([]PnlRow, n)
	pv := info.PointValue
	prevHold := 0.0
	for i := 0; i < n; i++ {
		b := &bars[i]
		c := b.Close
		mh := holds[i].Num() * c * pv
		mo := opens[i].Num() * c * pv
		me := exits[i].Num() * c * pv
		row := &res[i]
		row.Time = b.OpenTime
		row.MoneyHold = mh
		row.MoneyTrade = math.Abs(mo) + math.Abs(me)
		if i > 0 && bars[i-1].Info.ContractID == b.Info.ContractID && bars[i-1].Close != 0 {
			row.Profit = (c/bars[i-1].Close - 1) * prevHold
		}
		if c > 0 {
			row.Commission = row.MoneyTrade * info.Commission.Rate(c, pv)
			row.Slippage = row.MoneyTrade * info.SlipTicks * info.TickSize / c
		}
		row.Cost = row.Commission + row.Slippage
		row.Pnl = row.Profit - row.Cost
		row.Hold = math.Abs(mh) * passSeconds(b) / 120
		prevHold = mh
	}
	return res
}

/*
Day groups rows by calendar day. MoneyHold keeps the largest absolute value, MoneyTrade
sums absolute values, every other field is summed.
*/
func Day(rows []PnlRow) []PnlRow {
	var res []PnlRow
	lastKey := 0
	for _, r := range rows {
		key := btime.DayKey(r.Time)
		if len(res) == 0 || key != lastKey {
			res = append(res, PnlRow{Time: btime.DayStart(r.Time)})
			lastKey = key
		}
		d := &res[len(res)-1]
		d.Pnl += r.Pnl
		d.Profit += r.Profit
		d.MoneyHold = max(d.MoneyHold, math.Abs(r.MoneyHold))
		d.MoneyTrade += math.Abs(r.MoneyTrade)
		d.Cost += r.Cost
		d.Commission += r.Commission
		d.Slippage += r.Slippage
		d.Hold += r.Hold
	}
	return res
}
