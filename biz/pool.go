package biz

import (
	"context"
	"strings"
	"time"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/core"
	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

const (
	PrefixLen   = 4
	idTailLen   = 12
	DefPollWait = 10 * time.Millisecond
)

// Sender delivers orders and cancels to the broker, acks come back through Pool.OnRecv
type Sender interface {
	Send(req *OrderSend) *errs.Error
}

// Recorder persists every accepted ack so the holding can be rebuilt after restart
type Recorder interface {
	Append(recv *OrderRecv) *errs.Error
}

type Action int

const (
	ActNone Action = iota
	ActCreate
	ActCancel
	ActWait
)

func (a Action) String() string {
	switch a {
	case ActCreate:
		return "create"
	case ActCancel:
		return "cancel"
	case ActWait:
		return "wait"
	default:
		return "none"
	}
}

/*
Pool order state machine of one instrument. At most one order is alive at any time: a
different intent cancels the alive order first and is placed after the cancel is acked.
*/
type Pool struct {
	Code     core.Ticker
	Prefix   string
	sender   Sender
	recorder Recorder
	lock     deadlock.Mutex
	want     *Intent // latest intent not yet placed
	orders   []*Order
	holding  Holding
	closing  bool // set by CancelAll, orders are cancelled as soon as the broker accepts them
	OnChange func(code core.Ticker, h Holding) // called after the holding changed, lock released
}

func NewPool(code core.Ticker, prefix string, sender Sender, recorder Recorder) (*Pool, *errs.Error) {
	if len(prefix) != PrefixLen {
		return nil, errs.NewMsg(core.ErrBadConfig, "pool prefix must have %d chars: %q", PrefixLen, prefix)
	}
	return &Pool{Code: code, Prefix: prefix, sender: sender, recorder: recorder}, nil
}

func (p *Pool) newID() string {
	tail := strings.ReplaceAll(uuid.New().String(), "-", "")
	return p.Prefix + tail[:idTailLen]
}

// Owns whether the order id was created by this pool
func (p *Pool) Owns(localID string) bool {
	return strings.HasPrefix(localID, p.Prefix)
}

func (p *Pool) Holding() Holding {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.holding
}

// Orders copies of alive orders
func (p *Pool) Orders() []Order {
	p.lock.Lock()
	defer p.lock.Unlock()
	res := make([]Order, len(p.orders))
	for i, od := range p.orders {
		res[i] = *od
	}
	return res
}

/*
SetTarget hands a new intent to the pool and reconciles immediately. The intent replaces
any earlier one still waiting to be placed.
*/
func (p *Pool) SetTarget(intent Intent) Action {
	p.lock.Lock()
	p.want = &intent
	act := p.reconcile()
	p.lock.Unlock()
	return act
}

// Reconcile moves the pool one step towards the latest intent
func (p *Pool) Reconcile() Action {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.reconcile()
}

func (p *Pool) reconcile() Action {
	if p.want == nil {
		return ActNone
	}
	want := *p.want
	if len(p.orders) == 0 {
		p.want = nil
		if want.IsNone() {
			return ActNone
		}
		return p.create(want)
	}
	od := p.orders[0]
	switch od.Status.Kind {
	case Submitting, NotTouched, Unknown:
		return ActWait
	}
	if !want.IsNone() && od.Rest().Same(want) {
		p.want = nil
		return ActNone
	}
	if od.CancelRequested {
		return ActWait
	}
	return p.cancel(od)
}

func (p *Pool) create(intent Intent) Action {
	now := btime.TimeMS()
	od := &Order{
		LocalID: p.newID(),
		Code:    p.Code,
		Intent:  intent,
		Status:  OrderStatus{Kind: Submitting},
		Created: now,
		Updated: now,
	}
	err := p.sender.Send(&OrderSend{LocalID: od.LocalID, Code: p.Code, Intent: intent})
	if err != nil {
		log.Error("submit order fail", zap.String("ticker", string(p.Code)), zap.String("id", od.LocalID),
			zap.String("intent", intent.String()), zap.Error(err))
		return ActNone
	}
	p.orders = append(p.orders, od)
	log.Info("order submitted", zap.String("ticker", string(p.Code)), zap.String("id", od.LocalID),
		zap.String("intent", intent.String()))
	return ActCreate
}

func (p *Pool) cancel(od *Order) Action {
	err := p.sender.Send(&OrderSend{LocalID: od.LocalID, Code: p.Code, Intent: od.Intent, IsToCancel: true})
	if err != nil {
		log.Error("cancel order fail", zap.String("ticker", string(p.Code)), zap.String("id", od.LocalID),
			zap.Error(err))
		return ActWait
	}
	od.CancelRequested = true
	od.Updated = btime.TimeMS()
	return ActCancel
}

/*
OnRecv applies one broker ack. Acks of other pools are ignored, acks of unknown orders
return ErrOrderNotFound.
*/
func (p *Pool) OnRecv(recv *OrderRecv) *errs.Error {
	if !p.Owns(recv.LocalID) {
		return nil
	}
	p.lock.Lock()
	idx := -1
	for i, od := range p.orders {
		if od.LocalID == recv.LocalID {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.lock.Unlock()
		return errs.NewMsg(core.ErrOrderNotFound, "order not found: %s", recv.LocalID)
	}
	od := p.orders[idx]
	if recv.Intent.IsNone() {
		recv.Intent = od.Intent
	}
	od.Status = recv.Status
	od.Updated = max(od.Updated, recv.Time)
	if len(recv.ExchangeIDs) > 0 {
		od.ExchangeIDs = recv.ExchangeIDs
	}
	changed := false
	if done := recv.Status.executed(od.Intent); done > od.Filled {
		dl, ds := od.Intent.delta(done - od.Filled)
		p.holding.Long += dl
		p.holding.Short += ds
		p.holding.netOff()
		od.Filled = done
		changed = true
	}
	if recv.Status.Kind == InsertError {
		log.Warn("order rejected", zap.String("ticker", string(p.Code)), zap.String("id", od.LocalID),
			zap.String("err", core.ErrName(core.ErrInsert)))
	}
	if recv.Status.Terminal() {
		p.orders = append(p.orders[:idx], p.orders[idx+1:]...)
		p.reconcile()
	} else if p.closing && !od.CancelRequested && od.Status.Kind != Submitting {
		p.cancel(od)
	}
	hold := p.holding
	p.lock.Unlock()
	if p.recorder != nil {
		if err := p.recorder.Append(recv); err != nil {
			log.Error("journal ack fail", zap.String("ticker", string(p.Code)), zap.Error(err))
		}
	}
	if changed && p.OnChange != nil {
		p.OnChange(p.Code, hold)
	}
	return nil
}

/*
UpdateOrderHis rebuilds the holding from the ack history after a reconnect. Legs start
from zero, the largest executed quantity of each order is replayed in order and netted
once at the end. Orders whose last ack is not terminal become alive again.
*/
func (p *Pool) UpdateOrderHis(his []*OrderRecv) {
	type track struct {
		last *OrderRecv
		done float64
	}
	tracks := make(map[string]*track)
	var ids []string
	for _, r := range his {
		if !p.Owns(r.LocalID) || (r.Code != "" && r.Code != p.Code) {
			continue
		}
		t, ok := tracks[r.LocalID]
		if !ok {
			t = &track{}
			tracks[r.LocalID] = t
			ids = append(ids, r.LocalID)
		}
		if t.last != nil && r.Intent.IsNone() {
			r.Intent = t.last.Intent
		}
		t.last = r
		t.done = max(t.done, r.Status.executed(r.Intent))
	}
	var hold Holding
	var alive []*Order
	for _, id := range ids {
		t := tracks[id]
		dl, ds := t.last.Intent.delta(t.done)
		hold.Long += dl
		hold.Short += ds
		if !t.last.Status.Terminal() {
			alive = append(alive, &Order{LocalID: id, Code: p.Code, Intent: t.last.Intent, Status: t.last.Status,
				Updated: t.last.Time, Filled: t.done, ExchangeIDs: t.last.ExchangeIDs})
		}
	}
	hold.netOff()
	p.lock.Lock()
	p.holding = hold
	p.orders = alive
	p.lock.Unlock()
	log.Info("holding rebuilt", zap.String("ticker", string(p.Code)), zap.Int("acks", len(his)),
		zap.String("holding", hold.String()), zap.Int("alive", len(alive)))
	if p.OnChange != nil {
		p.OnChange(p.Code, hold)
	}
}

/*
CancelAll drops the waiting intent and asks the broker to cancel every alive order.
Orders not acked yet are cancelled by OnRecv once their first ack arrives.
*/
func (p *Pool) CancelAll() {
	p.lock.Lock()
	defer p.lock.Unlock()
	none := NoIntent
	p.want = &none
	p.closing = true
	for _, od := range p.orders {
		if !od.CancelRequested && od.Status.Kind != Submitting {
			p.cancel(od)
		}
	}
}

/*
Run reconciles every poll interval until ctx is done
*/
func (p *Pool) Run(ctx context.Context, poll time.Duration) {
	if poll <= 0 {
		poll = DefPollWait
	}
	for core.SleepCtx(ctx, poll) {
		p.Reconcile()
	}
}
