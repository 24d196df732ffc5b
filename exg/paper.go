package exg

import (
	"context"
	"strconv"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/biz"
	"github.com/banbox/banfut/core"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

/*
Paper in-process broker. Ticks pushed through Feed are forwarded to subscribers and match
resting orders: a buy fills at its limit once ask <= limit, a sell once bid >= limit.
*/
type Paper struct {
	lock       deadlock.Mutex
	ticks      chan *core.Tick
	acks       chan *biz.OrderRecv
	subs       map[core.Ticker]bool
	last       map[core.Ticker]*core.Tick
	resting    []*biz.OrderSend
	his        []*biz.OrderRecv
	down       chan struct{}
	online     bool
	seq        int
	FailLogins int // number of upcoming Login calls to reject
}

func NewPaper(queueSize int) *Paper {
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &Paper{
		ticks: make(chan *core.Tick, queueSize),
		acks:  make(chan *biz.OrderRecv, queueSize),
		subs:  make(map[core.Ticker]bool),
		last:  make(map[core.Ticker]*core.Tick),
		down:  make(chan struct{}),
	}
}

func (p *Paper) Login(ctx context.Context) *errs.Error {
	if err := ctx.Err(); err != nil {
		return errs.New(core.ErrTimeout, err)
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.FailLogins > 0 {
		p.FailLogins -= 1
		return errs.NewMsg(core.ErrLogin, "paper login refused")
	}
	if !p.online {
		p.online = true
		p.down = make(chan struct{})
	}
	return nil
}

// RefuseLogins makes the next n Login calls fail
func (p *Paper) RefuseLogins(n int) {
	p.lock.Lock()
	p.FailLogins = n
	p.lock.Unlock()
}

func (p *Paper) Subscribe(codes []core.Ticker) *errs.Error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.online {
		return errs.NewMsg(core.ErrLogin, "paper broker offline")
	}
	for _, c := range codes {
		p.subs[c] = true
	}
	return nil
}

func (p *Paper) Ticks() <-chan *core.Tick {
	return p.ticks
}

func (p *Paper) Acks() <-chan *biz.OrderRecv {
	return p.acks
}

func (p *Paper) Disconnected() <-chan struct{} {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.down
}

// Drop simulates a lost connection, resting orders survive
func (p *Paper) Drop() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.online {
		p.online = false
		close(p.down)
	}
}

func (p *Paper) History() ([]*biz.OrderRecv, *errs.Error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	res := make([]*biz.OrderRecv, len(p.his))
	for i, r := range p.his {
		item := *r
		res[i] = &item
	}
	return res, nil
}

func (p *Paper) Send(req *biz.OrderSend) *errs.Error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.online {
		return errs.NewMsg(core.ErrLogin, "paper broker offline")
	}
	if req.IsToCancel {
		for i, od := range p.resting {
			if od.LocalID == req.LocalID {
				p.resting = append(p.resting[:i], p.resting[i+1:]...)
				p.emit(od, biz.OrderStatus{Kind: biz.Canceled, Qty: od.Intent.Qty})
				return nil
			}
		}
		return nil
	}
	if req.Intent.IsNone() {
		return errs.NewMsg(core.ErrLogic, "empty intent: %s", req.LocalID)
	}
	if _, err := core.GetTicker(req.Code); err != nil {
		p.emit(req, biz.OrderStatus{Kind: biz.InsertError})
		return nil
	}
	p.emit(req, biz.OrderStatus{Kind: biz.Inserted})
	if t, ok := p.last[req.Code]; ok && marketable(req, t) {
		p.emit(req, biz.OrderStatus{Kind: biz.FullFill, Qty: req.Intent.Qty})
		return nil
	}
	p.resting = append(p.resting, req)
	return nil
}

/*
Feed delivers a tick: resting orders are matched first, then the tick is queued for
subscribers. It blocks while the tick queue is full.
*/
func (p *Paper) Feed(ctx context.Context, t *core.Tick) bool {
	p.lock.Lock()
	p.last[t.Code] = t
	keep := p.resting[:0]
	for _, od := range p.resting {
		if od.Code == t.Code && marketable(od, t) {
			p.emit(od, biz.OrderStatus{Kind: biz.FullFill, Qty: od.Intent.Qty})
		} else {
			keep = append(keep, od)
		}
	}
	p.resting = keep
	sub := p.online && p.subs[t.Code]
	p.lock.Unlock()
	if !sub {
		return true
	}
	select {
	case p.ticks <- t:
		return true
	case <-ctx.Done():
		return false
	}
}

func marketable(od *biz.OrderSend, t *core.Tick) bool {
	if t.IsPreOpen() {
		return false
	}
	switch od.Intent.Kind {
	case biz.OpenLong, biz.CloseShort:
		return t.AskPrice <= od.Intent.Price
	case biz.OpenShort, biz.CloseLong:
		return t.BidPrice >= od.Intent.Price
	}
	return false
}

func (p *Paper) emit(od *biz.OrderSend, status biz.OrderStatus) {
	p.seq += 1
	var tm int64
	if t, ok := p.last[od.Code]; ok {
		tm = t.Time
	}
	recv := &biz.OrderRecv{
		LocalID:     od.LocalID,
		Code:        od.Code,
		Intent:      od.Intent,
		Status:      status,
		Time:        tm,
		ExchangeIDs: []string{"paper" + strconv.Itoa(p.seq)},
	}
	p.his = append(p.his, recv)
	item := *recv
	select {
	case p.acks <- &item:
	default:
		log.Warn("paper ack queue full, dropped", zap.String("id", od.LocalID), zap.String("status", status.String()))
	}
}

func (p *Paper) Close() {
	p.Drop()
}
