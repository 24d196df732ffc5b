package opt

import (
	"github.com/banbox/banexg/errs"
	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/cond"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/kline"
	"github.com/banbox/banfut/strat"
	"github.com/banbox/banfut/ta"
	"go.uber.org/zap"
)

/*
Result aligned outputs of one backtest: one entry per input bar
*/
type Result struct {
	Code   core.Ticker
	PtmKey string
	Bars   []core.Bar
	Holds  []strat.NormHold
	Opens  []strat.NormHold
	Exits  []strat.NormHold
	Pnl    []PnlRow
}

/*
Run steps ptm over a finite bar buffer. The directive is driven through the same Runner
used by live trading, so decisions only see the bars finished so far.
*/
func Run(bars []core.Bar, info *core.TickerInfo, ptm strat.Ptm, maxKeys int) (*Result, *errs.Error) {
	for i := 1; i < len(bars); i++ {
		if bars[i].OpenTime <= bars[i-1].OpenTime {
			return nil, errs.NewMsg(core.ErrInvalidBars, "%s: bar %d not after %d", info.Code, i, i-1)
		}
	}
	buf := kline.NewBuffer(info.Code, bars)
	env := cond.NewEnv(ta.NewLattice(buf, info, maxKeys))
	defer env.Release()
	runner := strat.NewRunner(env, ptm)
	n := len(bars)
	res := &Result{
		Code:   info.Code,
		PtmKey: ptm.Key(),
		Bars:   buf.Snapshot(),
		Holds:  make([]strat.NormHold, n),
		Opens:  make([]strat.NormHold, n),
		Exits:  make([]strat.NormHold, n),
	}
	for i := 0; i < n; i++ {
		res.Holds[i], res.Opens[i], res.Exits[i] = runner.Triple(i)
	}
	res.Pnl = CalcPnl(res.Bars, info, res.Holds, res.Opens, res.Exits)
	log.Debug("backtest done", zap.String("ticker", string(info.Code)), zap.String("ptm", res.PtmKey),
		zap.Int("bars", n))
	return res, nil
}

// Daily pnl rows reduced by calendar day
func (r *Result) Daily() []PnlRow {
	return Day(r.Pnl)
}

// Trades count of bars with a non-empty open or exit
func (r *Result) Trades() int {
	num := 0
	for i := range r.Opens {
		if !r.Opens[i].IsNone() || !r.Exits[i].IsNone() {
			num += 1
		}
	}
	return num
}
