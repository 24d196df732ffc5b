package live

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anyongjin/cron"
	"github.com/banbox/banexg/errs"
	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/biz"
	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/exg"
	"github.com/banbox/banfut/rpc"
	"github.com/banbox/banfut/strategy"
	"go.uber.org/zap"
)

const keyLogin = "login"

// Job one instrument traded by one strategy. Warmup bars are loaded into the buffer before the first tick.
type Job struct {
	Code     core.Ticker
	Strategy *strategy.Strategy
	Warmup   []core.Bar
}

type Options struct {
	Prefix       string        // order id prefix of every pool of this trader
	PollWait     time.Duration // pool reconciliation interval
	ReloginWait  time.Duration
	Escalate     int // failed logins in a row before an error is logged
	QueueSize    int // capacity of each per-instrument tick queue
	MaxKeys      int
	SnapshotCron string // empty disables the holdings snapshot
	CancelWait   time.Duration
}

// Journal persists acks and returns them for replay at startup
type Journal interface {
	biz.Recorder
	LoadHistory(prefix string, code core.Ticker) ([]*biz.OrderRecv, *errs.Error)
}

/*
Trader runs the live core: a dispatcher routing broker ticks to one worker per
instrument, an ack consumer feeding the pools, one reconciliation loop per pool and the
login loop that resubscribes and rebuilds holdings after every disconnect.
*/
type Trader struct {
	opts    Options
	broker  exg.Broker
	journal Journal
	workers map[core.Ticker]*worker
	codes   []core.Ticker
	backoff *btime.Backoff
	cron    *cron.Cron
	wg      sync.WaitGroup
	logins  atomic.Int32
}

func NewTrader(broker exg.Broker, journal Journal, jobs []*Job, opts Options) (*Trader, *errs.Error) {
	if len(jobs) == 0 {
		return nil, errs.NewMsg(core.ErrBadConfig, "no jobs to trade")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.PollWait <= 0 {
		opts.PollWait = biz.DefPollWait
	}
	if opts.CancelWait <= 0 {
		opts.CancelWait = time.Second
	}
	t := &Trader{
		opts:    opts,
		broker:  broker,
		journal: journal,
		workers: make(map[core.Ticker]*worker),
		backoff: btime.NewBackoff(opts.ReloginWait, opts.Escalate),
		cron:    cron.New(cron.WithSeconds()),
	}
	var recorder biz.Recorder
	if journal != nil {
		recorder = journal
	}
	for _, job := range jobs {
		if job.Strategy == nil {
			return nil, errs.NewMsg(core.ErrBadConfig, "%s has no strategy", job.Code)
		}
		if _, ok := t.workers[job.Code]; ok {
			return nil, errs.NewMsg(core.ErrBadConfig, "%s traded twice", job.Code)
		}
		w, err := newWorker(job, &t.opts, broker, recorder)
		if err != nil {
			return nil, err
		}
		t.workers[job.Code] = w
		t.codes = append(t.codes, job.Code)
	}
	slices.Sort(t.codes)
	if opts.SnapshotCron != "" {
		if _, err_ := t.cron.AddFunc(opts.SnapshotCron, t.logSnapshots); err_ != nil {
			return nil, errs.NewFull(core.ErrBadConfig, err_, "bad snapshot_cron: %s", opts.SnapshotCron)
		}
	}
	return t, nil
}

/*
Run blocks until ctx is done. Holdings are first rebuilt from the journal; on exit every
alive order is cancelled and acks are consumed until the pools are empty or CancelWait
passes.
*/
func (t *Trader) Run(ctx context.Context) {
	t.restore(false)
	ackCtx, stopAcks := context.WithCancel(context.Background())
	t.goRun(func() { t.consumeAcks(ackCtx) })
	t.goRun(func() { t.dispatch(ctx) })
	for _, code := range t.codes {
		w := t.workers[code]
		t.goRun(func() { w.run(ctx) })
		t.goRun(func() { w.pool.Run(ctx, t.opts.PollWait) })
	}
	t.goRun(func() { t.keepAlive(ctx) })
	t.cron.Start()
	log.Info("trader started", zap.Int("tickers", len(t.codes)), zap.String("prefix", t.opts.Prefix))
	<-ctx.Done()
	t.cron.Stop()
	t.cancelAll()
	stopAcks()
	t.wg.Wait()
	t.broker.Close()
	log.Info("trader stopped")
	rpc.SendMsg(rpc.MsgTypeStatus, "trader stopped")
}

func (t *Trader) goRun(fn func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn()
	}()
}

func (t *Trader) dispatch(ctx context.Context) {
	ticks := t.broker.Ticks()
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			if tick.IsPreOpen() {
				continue
			}
			w, ok := t.workers[tick.Code]
			if !ok {
				continue
			}
			core.SetQuote(tick)
			select {
			case w.ticks <- tick:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (t *Trader) consumeAcks(ctx context.Context) {
	acks := t.broker.Acks()
	for {
		select {
		case <-ctx.Done():
			return
		case recv, ok := <-acks:
			if !ok {
				return
			}
			t.applyAck(recv)
		}
	}
}

func (t *Trader) applyAck(recv *biz.OrderRecv) {
	w, ok := t.workers[recv.Code]
	if !ok {
		log.Warn("ack for untraded ticker", zap.String("ticker", string(recv.Code)),
			zap.String("id", recv.LocalID))
		return
	}
	if err := w.pool.OnRecv(recv); err != nil {
		log.Warn("drop ack", zap.String("ticker", string(recv.Code)), zap.String("id", recv.LocalID),
			zap.String("code", core.ErrName(err.Code)), zap.Error(err))
	}
}

/*
keepAlive logs in, subscribes, and waits for the session to drop. Every reconnect after
the first rebuilds holdings before ticks are used again.
*/
func (t *Trader) keepAlive(ctx context.Context) {
	for {
		if !t.connect(ctx) {
			return
		}
		if t.logins.Add(1) > 1 {
			t.restore(true)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.broker.Disconnected():
			log.Warn("broker disconnected, reconnecting")
			rpc.SendMsg(rpc.MsgTypeStatus, "broker disconnected, reconnecting")
		}
	}
}

func (t *Trader) connect(ctx context.Context) bool {
	for {
		err := t.broker.Login(ctx)
		if err == nil {
			err = t.broker.Subscribe(t.codes)
		}
		if err == nil {
			t.backoff.Reset(keyLogin)
			log.Info("broker connected", zap.Int("tickers", len(t.codes)))
			rpc.SendMsg(rpc.MsgTypeStatus, fmt.Sprintf("broker connected, %d tickers", len(t.codes)))
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		wait, escalate := t.backoff.Fail(keyLogin)
		fails := t.backoff.Fails(keyLogin)
		if escalate {
			log.Error("broker login keeps failing", zap.Int("fails", fails), zap.Error(err))
		} else {
			log.Warn("broker login fail, retry", zap.Int("fails", fails), zap.Duration("wait", wait),
				zap.Error(err))
		}
		if !core.SleepCtx(ctx, wait) {
			return false
		}
	}
}

/*
restore rebuilds every pool from the journal, plus the broker history when withBroker.
Replay keeps the largest executed quantity per order, so acks present in both sources
are counted once.
*/
func (t *Trader) restore(withBroker bool) {
	var brokerHis []*biz.OrderRecv
	if withBroker {
		his, err := t.broker.History()
		if err != nil {
			log.Error("load broker history fail", zap.Error(err))
		}
		brokerHis = his
	}
	for _, code := range t.codes {
		var his []*biz.OrderRecv
		if t.journal != nil {
			items, err := t.journal.LoadHistory(t.opts.Prefix, code)
			if !core.LogErr("load journal fail", code, err) {
				continue
			}
			his = items
		}
		his = append(his, brokerHis...)
		if len(his) == 0 && !withBroker {
			continue
		}
		t.workers[code].pool.UpdateOrderHis(his)
	}
}

func (t *Trader) cancelAll() {
	for _, code := range t.codes {
		t.workers[code].pool.CancelAll()
	}
	deadline := time.Now().Add(t.opts.CancelWait)
	for time.Now().Before(deadline) {
		alive := 0
		for _, code := range t.codes {
			alive += len(t.workers[code].pool.Orders())
		}
		if alive == 0 {
			return
		}
		time.Sleep(t.opts.PollWait)
	}
	log.Warn("orders still alive at exit")
}

// Logins successful logins so far, the first one included
func (t *Trader) Logins() int {
	return int(t.logins.Load())
}

// Snapshots state of every instrument in ticker order
func (t *Trader) Snapshots() []Snapshot {
	res := make([]Snapshot, 0, len(t.codes))
	for _, code := range t.codes {
		res = append(res, t.workers[code].snapshot())
	}
	return res
}

func (t *Trader) logSnapshots() {
	for _, s := range t.Snapshots() {
		log.Info("holding snapshot", zap.String("ticker", string(s.Code)), zap.Int("bars", s.Bars),
			zap.String("hold", s.Hold.String()), zap.String("holding", s.Holding.String()),
			zap.Int("alive", s.Alive), zap.Int("decisions", s.Decisions))
	}
}
