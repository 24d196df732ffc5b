package opt

import (
	"fmt"
	"sync"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/strat"
	"github.com/banbox/banfut/utils"
	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

/*
Cache memoises backtest results. A key covers the ticker, the directive and the exact bar
range, so a hit is always the result Run would return.
*/
type Cache struct {
	c *ristretto.Cache
}

func NewCache(maxItems int64) (*Cache, *errs.Error) {
	if maxItems <= 0 {
		maxItems = 1000
	}
	c, err_ := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err_ != nil {
		return nil, errs.New(core.ErrRunTime, err_)
	}
	return &Cache{c: c}, nil
}

func cacheKey(bars []core.Bar, info *core.TickerInfo, ptm strat.Ptm) string {
	first, last := int64(0), int64(0)
	if len(bars) > 0 {
		first, last = bars[0].OpenTime, bars[len(bars)-1].OpenTime
	}
	return fmt.Sprintf("%s|%s|%d|%d|%d", info.Code, ptm.Key(), len(bars), first, last)
}

// Run same as the package Run, reusing a cached result when present
func (c *Cache) Run(bars []core.Bar, info *core.TickerInfo, ptm strat.Ptm, maxKeys int) (*Result, *errs.Error) {
	key := cacheKey(bars, info, ptm)
	if val, ok := c.c.Get(key); ok {
		if res, ok := val.(*Result); ok {
			return res, nil
		}
	}
	res, err := Run(bars, info, ptm, maxKeys)
	if err != nil {
		return nil, err
	}
	c.c.Set(key, res, 1)
	return res, nil
}

// Wait blocks until pending writes are visible to Get
func (c *Cache) Wait() {
	c.c.Wait()
}

func (c *Cache) Close() {
	c.c.Close()
}

type Job struct {
	Info *core.TickerInfo
	Bars []core.Bar
	Ptm  strat.Ptm
}

/*
RunBatch backtests jobs on up to `parallel` goroutines. Results keep the order of jobs; a
failed job leaves nil and is logged. cache may be nil.
*/
func RunBatch(jobs []*Job, cache *Cache, parallel, maxKeys int) []*Result {
	if parallel <= 0 {
		parallel = 1
	}
	res := make([]*Result, len(jobs))
	pBar := utils.NewPrgBar(len(jobs), "backtest")
	defer pBar.Close()
	guard := make(chan struct{}, parallel)
	var wg sync.WaitGroup
	for i, job := range jobs {
		guard <- struct{}{}
		wg.Add(1)
		go func(i int, job *Job) {
			defer func() {
				<-guard
				wg.Done()
				pBar.Add(1)
			}()
			var r *Result
			var err *errs.Error
			if cache != nil {
				r, err = cache.Run(job.Bars, job.Info, job.Ptm, maxKeys)
			} else {
				r, err = Run(job.Bars, job.Info, job.Ptm, maxKeys)
			}
			if err != nil {
				log.Error("backtest fail", zap.String("ticker", string(job.Info.Code)), zap.Error(err))
				return
			}
			res[i] = r
		}(i, job)
	}
	wg.Wait()
	return res
}
