package strategy

import (
	"slices"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/kline"
	"github.com/banbox/banfut/strat"
	"github.com/sasha-s/go-deadlock"
)

/*
Strategy an assembled signal definition. The same Ptm drives backtests over archived
bars and the live worker over the growing buffer.
*/
type Strategy struct {
	Name string
	// TickReactive strategies are asked for a decision on every tick, bar-only ones when a bar finishes
	TickReactive bool
	BarMins      int // minutes of the primary bars
	Build        func(info *core.TickerInfo, primary kline.AggExpr) strat.Ptm
}

var (
	stratMap  = make(map[string]*Strategy)
	lockStrat deadlock.RWMutex
)

func Register(s *Strategy) {
	lockStrat.Lock()
	stratMap[s.Name] = s
	lockStrat.Unlock()
}

func Get(name string) (*Strategy, *errs.Error) {
	lockStrat.RLock()
	s, ok := stratMap[name]
	lockStrat.RUnlock()
	if !ok {
		return nil, errs.NewMsg(core.ErrBadConfig, "strategy not registered: %s", name)
	}
	return s, nil
}

func Names() []string {
	lockStrat.RLock()
	res := make([]string, 0, len(stratMap))
	for name := range stratMap {
		res = append(res, name)
	}
	lockStrat.RUnlock()
	slices.Sort(res)
	return res
}

// Primary aggregation of the bar buffer fed by ticks
func (s *Strategy) Primary(info *core.TickerInfo) *kline.TimeFrame {
	return kline.TF(info, max(s.BarMins, 1))
}

func (s *Strategy) Ptm(info *core.TickerInfo) strat.Ptm {
	return s.Build(info, s.Primary(info))
}
