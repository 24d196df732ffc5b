package biz

import (
	"context"
	"testing"
	"time"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banfut/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []*OrderSend
	fail bool
}

func (s *fakeSender) Send(req *OrderSend) *errs.Error {
	if s.fail {
		return errs.NewMsg(core.ErrRunTime, "offline")
	}
	s.sent = append(s.sent, req)
	return nil
}

func (s *fakeSender) last() *OrderSend {
	return s.sent[len(s.sent)-1]
}

type memRecorder struct {
	items []*OrderRecv
}

func (r *memRecorder) Append(recv *OrderRecv) *errs.Error {
	r.items = append(r.items, recv)
	return nil
}

func newTestPool(t *testing.T) (*Pool, *fakeSender) {
	s := &fakeSender{}
	p, err := NewPool("rb", "ab01", s, nil)
	require.Nil(t, err)
	return p, s
}

func fill(p *Pool, s *fakeSender, intent Intent) {
	p.SetTarget(intent)
	od := s.last()
	_ = p.OnRecv(&OrderRecv{LocalID: od.LocalID, Status: OrderStatus{Kind: FullFill, Qty: intent.Qty}})
}

func TestPoolNetting(t *testing.T) {
	p, s := newTestPool(t)
	fill(p, s, Intent{Kind: OpenLong, Qty: 3, Price: 100})
	assert.Equal(t, Holding{Long: 3}, p.Holding())
	fill(p, s, Intent{Kind: OpenShort, Qty: 2, Price: 100})
	assert.Equal(t, Holding{Long: 1}, p.Holding())
	fill(p, s, Intent{Kind: OpenShort, Qty: 4, Price: 100})
	assert.Equal(t, Holding{Short: 3}, p.Holding())
	assert.Empty(t, p.Orders())
}

func TestPoolReplacementCancel(t *testing.T) {
	p, s := newTestPool(t)
	assert.Equal(t, ActCreate, p.SetTarget(Intent{Kind: OpenLong, Qty: 1, Price: 100}))
	first := s.last().LocalID
	require.Nil(t, p.OnRecv(&OrderRecv{LocalID: first, Status: OrderStatus{Kind: PartialFill}}))

	assert.Equal(t, ActCancel, p.SetTarget(Intent{Kind: OpenShort, Qty: 1, Price: 99}))
	require.Len(t, s.sent, 2)
	assert.True(t, s.last().IsToCancel)
	assert.Equal(t, first, s.last().LocalID)
	assert.Equal(t, ActWait, p.Reconcile())
	assert.Len(t, s.sent, 2)
	require.Len(t, p.Orders(), 1)

	require.Nil(t, p.OnRecv(&OrderRecv{LocalID: first, Status: OrderStatus{Kind: Canceled, Qty: 1}}))
	require.Len(t, s.sent, 3)
	placed := s.last()
	assert.False(t, placed.IsToCancel)
	assert.Equal(t, OpenShort, placed.Intent.Kind)
	assert.NotEqual(t, first, placed.LocalID)
	assert.Equal(t, Holding{}, p.Holding())
}

func TestPoolTable(t *testing.T) {
	p, s := newTestPool(t)
	assert.Equal(t, ActNone, p.SetTarget(NoIntent))
	assert.Empty(t, s.sent)

	intent := Intent{Kind: OpenLong, Qty: 2, Price: 100}
	assert.Equal(t, ActCreate, p.SetTarget(intent))
	// not acked yet
	assert.Equal(t, ActWait, p.SetTarget(Intent{Kind: OpenShort, Qty: 1, Price: 99}))
	assert.Equal(t, ActWait, p.SetTarget(NoIntent))
	id := s.last().LocalID
	require.Nil(t, p.OnRecv(&OrderRecv{LocalID: id, Status: OrderStatus{Kind: Inserted}}))
	assert.Equal(t, ActNone, p.SetTarget(intent))

	require.Nil(t, p.OnRecv(&OrderRecv{LocalID: id, Status: OrderStatus{Kind: PartialFill, Qty: 1}}))
	assert.Equal(t, Holding{Long: 1}, p.Holding())
	require.Nil(t, p.OnRecv(&OrderRecv{LocalID: id, Status: OrderStatus{Kind: PartialFill, Qty: 1}}))
	assert.Equal(t, Holding{Long: 1}, p.Holding())

	assert.Equal(t, ActCancel, p.SetTarget(NoIntent))
	assert.True(t, s.last().IsToCancel)
	require.Nil(t, p.OnRecv(&OrderRecv{LocalID: id, Status: OrderStatus{Kind: Canceled, Qty: 0.5}}))
	assert.InDelta(t, 1.5, p.Holding().Long, 1e-12)
	assert.Empty(t, p.Orders())
	assert.Len(t, s.sent, 2)
}

func TestPoolAcks(t *testing.T) {
	s := &fakeSender{}
	rec := &memRecorder{}
	p, err := NewPool("rb", "ab01", s, rec)
	require.Nil(t, err)
	var changes []Holding
	p.OnChange = func(_ core.Ticker, h Holding) { changes = append(changes, h) }

	assert.Nil(t, p.OnRecv(&OrderRecv{LocalID: "zz99000000000000", Status: OrderStatus{Kind: FullFill, Qty: 1}}))
	err = p.OnRecv(&OrderRecv{LocalID: "ab01missing", Status: OrderStatus{Kind: FullFill, Qty: 1}})
	require.NotNil(t, err)
	assert.Equal(t, core.ErrOrderNotFound, err.Code)

	p.SetTarget(Intent{Kind: OpenShort, Qty: 1, Price: 99})
	id := s.last().LocalID
	assert.Len(t, id, PrefixLen+idTailLen)
	assert.True(t, p.Owns(id))
	require.Nil(t, p.OnRecv(&OrderRecv{LocalID: id, Status: OrderStatus{Kind: InsertError}}))
	assert.Equal(t, Holding{}, p.Holding())
	assert.Empty(t, p.Orders())
	assert.Empty(t, changes)
	require.Len(t, rec.items, 1)
	assert.Equal(t, OpenShort, rec.items[0].Intent.Kind)

	_, err = NewPool("rb", "abc", s, nil)
	assert.NotNil(t, err)
}

func TestPoolSendFail(t *testing.T) {
	p, s := newTestPool(t)
	s.fail = true
	assert.Equal(t, ActNone, p.SetTarget(Intent{Kind: OpenLong, Qty: 1, Price: 100}))
	assert.Empty(t, p.Orders())
	s.fail = false
	p.SetTarget(Intent{Kind: OpenLong, Qty: 1, Price: 100})
	assert.Len(t, p.Orders(), 1)
}

func TestUpdateOrderHis(t *testing.T) {
	a := Intent{Kind: OpenLong, Qty: 3, Price: 100}
	b := Intent{Kind: OpenShort, Qty: 5, Price: 101}
	c := Intent{Kind: CloseShort, Qty: 1, Price: 99}
	his := []*OrderRecv{
		{LocalID: "ab01a", Intent: a, Status: OrderStatus{Kind: PartialFill, Qty: 1}},
		{LocalID: "ab01b", Intent: b, Status: OrderStatus{Kind: PartialFill, Qty: 4}},
		{LocalID: "ab01a", Intent: a, Status: OrderStatus{Kind: FullFill, Qty: 3}},
		{LocalID: "ab01b", Intent: b, Status: OrderStatus{Kind: Canceled, Qty: 1}},
		{LocalID: "xx01q", Intent: a, Status: OrderStatus{Kind: FullFill, Qty: 9}},
		{LocalID: "ab01c", Intent: c, Status: OrderStatus{Kind: Inserted}},
	}
	p, _ := newTestPool(t)
	p.UpdateOrderHis(his)
	assert.Equal(t, Holding{Short: 1}, p.Holding())
	require.Len(t, p.Orders(), 1)
	assert.Equal(t, "ab01c", p.Orders()[0].LocalID)

	// acks of different orders in another interleaving give the same holding
	swapped := []*OrderRecv{his[1], his[3], his[5], his[0], his[4], his[2]}
	q, _ := newTestPool(t)
	q.UpdateOrderHis(swapped)
	assert.Equal(t, p.Holding(), q.Holding())

	require.Nil(t, p.OnRecv(&OrderRecv{LocalID: "ab01c", Status: OrderStatus{Kind: FullFill, Qty: 1}}))
	assert.Equal(t, Holding{}, p.Holding())
}

func TestCancelAllAndRun(t *testing.T) {
	p, s := newTestPool(t)
	p.SetTarget(Intent{Kind: OpenLong, Qty: 1, Price: 100})
	id := s.last().LocalID
	require.Nil(t, p.OnRecv(&OrderRecv{LocalID: id, Status: OrderStatus{Kind: Inserted}}))
	p.CancelAll()
	assert.True(t, s.last().IsToCancel)
	assert.True(t, p.Orders()[0].CancelRequested)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		p.Run(ctx, time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool loop did not stop")
	}
	assert.Len(t, s.sent, 2)
}

func TestPoolKeepsWorkingOrder(t *testing.T) {
	p, s := newTestPool(t)
	assert.Equal(t, ActCreate, p.SetTarget(Intent{Kind: OpenLong, Qty: 2, Price: 100}))
	id := s.last().LocalID
	require.Nil(t, p.OnRecv(&OrderRecv{LocalID: id, Status: OrderStatus{Kind: Inserted}}))
	// quote moved, same side and size
	assert.Equal(t, ActNone, p.SetTarget(Intent{Kind: OpenLong, Qty: 2, Price: 101}))
	require.Nil(t, p.OnRecv(&OrderRecv{LocalID: id, Status: OrderStatus{Kind: PartialFill, Qty: 1}}))
	assert.Equal(t, ActNone, p.SetTarget(Intent{Kind: OpenLong, Qty: 1, Price: 102}))
	assert.Len(t, s.sent, 1)
	assert.Equal(t, ActCancel, p.SetTarget(Intent{Kind: OpenLong, Qty: 2, Price: 102}))
	assert.True(t, s.last().IsToCancel)
}

func TestCancelAllBeforeAck(t *testing.T) {
	p, s := newTestPool(t)
	p.SetTarget(Intent{Kind: OpenShort, Qty: 1, Price: 99})
	id := s.last().LocalID
	p.CancelAll()
	assert.Len(t, s.sent, 1)
	// first ack after shutdown started
	require.Nil(t, p.OnRecv(&OrderRecv{LocalID: id, Status: OrderStatus{Kind: Inserted}}))
	require.Len(t, s.sent, 2)
	assert.True(t, s.last().IsToCancel)
	assert.Equal(t, id, s.last().LocalID)
	require.Nil(t, p.OnRecv(&OrderRecv{LocalID: id, Status: OrderStatus{Kind: PartialFill}}))
	assert.Len(t, s.sent, 2)
	require.Nil(t, p.OnRecv(&OrderRecv{LocalID: id, Status: OrderStatus{Kind: Canceled, Qty: 1}}))
	assert.Empty(t, p.Orders())
	assert.Len(t, s.sent, 2)
}

func TestIntentFor(t *testing.T) {
	info := &core.TickerInfo{Code: "rb", TickSize: 1, SlipTicks: 1}
	q := &core.Quote{Price: 3500, Bid: 3499, Ask: 3501}
	assert.Equal(t, NoIntent, IntentFor(2, Holding{Long: 2}, q, info))
	assert.Equal(t, Intent{Kind: OpenLong, Qty: 2, Price: 3502}, IntentFor(2, Holding{}, q, info))
	assert.Equal(t, Intent{Kind: CloseShort, Qty: 1, Price: 3502}, IntentFor(2, Holding{Short: 1}, q, info))
	assert.Equal(t, Intent{Kind: CloseLong, Qty: 3, Price: 3498}, IntentFor(-1, Holding{Long: 3}, q, info))
	assert.Equal(t, Intent{Kind: OpenShort, Qty: 1, Price: 3498}, IntentFor(-1, Holding{}, q, info))
	assert.Equal(t, NoIntent, IntentFor(1, Holding{}, nil, info))
	assert.True(t, Intent{Kind: OpenLong}.IsNone())
}
