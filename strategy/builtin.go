package strategy

import (
	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/cond"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/kline"
	"github.com/banbox/banfut/strat"
	"github.com/banbox/banfut/ta"
)

func init() {
	Register(&Strategy{Name: "boll_break", BarMins: 1, Build: BollBreak})
	Register(&Strategy{Name: "ha_rsi", BarMins: 5, TickReactive: true, Build: HaRsi})
}

// flatBeforeClose leaves every position one minute ahead of a session end
var flatBeforeClose = &cond.ExitByLastTime{Before: btime.MSMin}

/*
BollBreak long on an upper Bollinger break, short on a lower one. Each leg exits on a
1% trailing stop or before the session closes.
*/
func BollBreak(_ *core.TickerInfo, primary kline.AggExpr) strat.Ptm {
	leg := func(dir cond.Dir) *strat.Stp {
		return &strat.Stp{
			Dir:  dir,
			Open: cond.BollBreak(dir, primary, 20, 2),
			Exit: cond.Any(&cond.TrailStop{Dir: dir, Kind: cond.Percent, Val: 0.01}, flatBeforeClose),
		}
	}
	return &strat.Pair{Sizing: &strat.Unit{}, Long: leg(cond.Long), Short: leg(cond.Short)}
}

/*
HaRsi trend following on Heiken-Ashi bars: a fast EMA crossing the slow one opens while
RSI is not stretched. Positions grow when price also sits beyond the channel.
*/
func HaRsi(_ *core.TickerInfo, primary kline.AggExpr) strat.Ptm {
	ha := kline.NewPipe(primary, kline.NewHeikenAshi(2))
	fast := ta.NewPipe(ha, ta.Ema(ta.Kline(ta.Close), 5))
	slow := ta.NewPipe(ha, ta.Ema(ta.Kline(ta.Close), 20))
	rsi := ta.NewPipe(ha, ta.NewRsi(14))
	channel := ta.NewPipe(primary, ta.NewChannel(20))
	leg := func(dir cond.Dir) *strat.Stp {
		calm := &cond.InRange{Pms: rsi, Lo: 30, Hi: 70}
		stretched := &cond.InRange{Pms: rsi, Lo: 80, Hi: 100}
		if dir == cond.Short {
			stretched = &cond.InRange{Pms: rsi, Lo: 0, Hi: 20}
		}
		return &strat.Stp{
			Dir:  dir,
			Open: cond.All(&cond.Cross{Dir: dir, Fast: fast, Slow: slow}, calm),
			Exit: cond.Any(
				&cond.Cross{Dir: dir.Opposite(), Fast: fast, Slow: slow},
				stretched,
				&cond.ExitByTickSize{Dir: dir, Ticks: 20},
				flatBeforeClose,
			),
			Weight: &cond.CondWeight{Items: []cond.WeightItem{
				{Cond: &cond.Const{Val: true}, W: 1},
				{Cond: &cond.BandCross{Dir: dir, State: cond.Lieing, Pms: channel}, W: 1},
			}},
		}
	}
	return &strat.Pair{Sizing: &strat.NotionalByPrice{Money: 100000}, Long: leg(cond.Long), Short: leg(cond.Short)}
}
