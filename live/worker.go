package live

import (
	"context"
	"fmt"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/biz"
	"github.com/banbox/banfut/cond"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/kline"
	"github.com/banbox/banfut/rpc"
	"github.com/banbox/banfut/strat"
	"github.com/banbox/banfut/strategy"
	"github.com/banbox/banfut/ta"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

/*
worker owns everything of one instrument that is written per tick: the updater, the bar
buffer and the runner. It is the single writer of the buffer; the pool has its own lock.
*/
type worker struct {
	code   core.Ticker
	info   *core.TickerInfo
	stg    *strategy.Strategy
	buf    *kline.Buffer
	upd    *kline.Updater
	env    *cond.Env
	runner *strat.Runner
	pool   *biz.Pool
	ticks  chan *core.Tick

	lock      deadlock.Mutex
	hold      strat.NormHold
	intent    biz.Intent
	decisions int
}

func newWorker(job *Job, opts *Options, sender biz.Sender, recorder biz.Recorder) (*worker, *errs.Error) {
	info, err := core.GetTicker(job.Code)
	if err != nil {
		return nil, errs.NewMsg(core.ErrDiNotFound, "no bar buffer for %s: %s", job.Code, err.Short())
	}
	primary := job.Strategy.Primary(info)
	buf := kline.NewBuffer(job.Code, job.Warmup)
	upd, err := kline.MakeUpdater(primary, job.Code, buf)
	if err != nil {
		return nil, err
	}
	pool, err := biz.NewPool(job.Code, opts.Prefix, sender, recorder)
	if err != nil {
		return nil, err
	}
	pool.OnChange = func(code core.Ticker, hold biz.Holding) {
		rpc.SendMsg(rpc.MsgTypeHolding, fmt.Sprintf("%s holding %s", code, hold))
	}
	env := cond.NewEnv(ta.NewLattice(buf, info, opts.MaxKeys))
	w := &worker{
		code:   job.Code,
		info:   info,
		stg:    job.Strategy,
		buf:    buf,
		upd:    upd,
		env:    env,
		runner: strat.NewRunner(env, job.Strategy.Build(info, primary)),
		pool:   pool,
		ticks:  make(chan *core.Tick, opts.QueueSize),
	}
	if n := buf.Len(); n > 0 {
		w.hold = w.runner.Step(n - 1)
		log.Info("worker warmed", zap.String("ticker", string(w.code)), zap.Int("bars", n),
			zap.String("hold", w.hold.String()))
	}
	return w, nil
}

func (w *worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-w.ticks:
			w.safeTick(t)
		}
	}
}

func (w *worker) safeTick(t *core.Tick) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("worker panic", zap.String("ticker", string(w.code)), zap.Any("err", r),
				zap.Stack("stack"))
		}
	}()
	w.onTick(t)
}

/*
onTick feeds the updater and, when a decision is due, steps the directive at the last
finished bar and hands the resulting intent to the pool. Bar-only strategies decide on
Finished, tick-reactive ones on every tick once a bar exists.
*/
func (w *worker) onTick(t *core.Tick) {
	state := w.upd.Update(t)
	if state != core.BarFinished && !w.stg.TickReactive {
		return
	}
	n := w.buf.Len()
	if n == 0 {
		return
	}
	hold := w.runner.Step(n - 1)
	intent := biz.IntentFor(hold.Num(), w.pool.Holding(), core.GetQuote(w.code), w.info)
	act := w.pool.SetTarget(intent)
	w.lock.Lock()
	w.hold = hold
	w.intent = intent
	w.decisions += 1
	w.lock.Unlock()
	if act == biz.ActCreate || act == biz.ActCancel {
		log.Debug("decision", zap.String("ticker", string(w.code)), zap.Int("bar", n-1),
			zap.String("hold", hold.String()), zap.String("intent", intent.String()),
			zap.String("act", act.String()))
	}
}

// Snapshot state of one instrument, safe to call from any goroutine
type Snapshot struct {
	Code      core.Ticker
	Bars      int
	Hold      strat.NormHold
	Intent    biz.Intent
	Holding   biz.Holding
	Alive     int
	Decisions int
}

func (w *worker) snapshot() Snapshot {
	w.lock.Lock()
	res := Snapshot{Code: w.code, Hold: w.hold, Intent: w.intent, Decisions: w.decisions}
	w.lock.Unlock()
	res.Bars = w.buf.Len()
	res.Holding = w.pool.Holding()
	res.Alive = len(w.pool.Orders())
	return res
}
