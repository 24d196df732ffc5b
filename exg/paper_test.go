package exg

import (
	"context"
	"testing"

	"github.com/banbox/banfut/biz"
	"github.com/banbox/banfut/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainAcks(p *Paper) []*biz.OrderRecv {
	var res []*biz.OrderRecv
	for {
		select {
		case r := <-p.Acks():
			res = append(res, r)
		default:
			return res
		}
	}
}

func tick(price, bid, ask float64) *core.Tick {
	return &core.Tick{Code: "rb", Time: 1, Price: price, BidPrice: bid, AskPrice: ask}
}

func TestPaperLogin(t *testing.T) {
	b, err := Create("paper", &BrokerArgs{QueueSize: 10})
	require.Nil(t, err)
	p := b.(*Paper)
	p.FailLogins = 2
	ctx := context.Background()
	assert.Equal(t, core.ErrLogin, p.Login(ctx).Code)
	assert.NotNil(t, p.Login(ctx))
	require.Nil(t, p.Login(ctx))
	require.Nil(t, p.Subscribe([]core.Ticker{"rb"}))

	down := p.Disconnected()
	p.Drop()
	<-down
	assert.NotNil(t, p.Send(&biz.OrderSend{LocalID: "ab01x", Code: "rb", Intent: biz.Intent{Kind: biz.OpenLong, Qty: 1}}))
	require.Nil(t, p.Login(ctx))
	select {
	case <-p.Disconnected():
		t.Fatal("new session reported as closed")
	default:
	}
	_, err = Create("ctp", nil)
	assert.NotNil(t, err)
}

func TestPaperMatching(t *testing.T) {
	p := NewPaper(10)
	ctx := context.Background()
	require.Nil(t, p.Login(ctx))
	require.Nil(t, p.Subscribe([]core.Ticker{"rb"}))
	require.True(t, p.Feed(ctx, tick(3500, 3499, 3501)))
	assert.Equal(t, 3500.0, (<-p.Ticks()).Price)

	// marketable on arrival
	require.Nil(t, p.Send(&biz.OrderSend{LocalID: "ab01a", Code: "rb", Intent: biz.Intent{Kind: biz.OpenLong, Qty: 2, Price: 3502}}))
	acks := drainAcks(p)
	require.Len(t, acks, 2)
	assert.Equal(t, biz.Inserted, acks[0].Status.Kind)
	assert.Equal(t, biz.OrderStatus{Kind: biz.FullFill, Qty: 2}, acks[1].Status)

	// resting until the bid reaches the limit
	require.Nil(t, p.Send(&biz.OrderSend{LocalID: "ab01b", Code: "rb", Intent: biz.Intent{Kind: biz.CloseLong, Qty: 2, Price: 3510}}))
	assert.Len(t, drainAcks(p), 1)
	p.Feed(ctx, tick(3505, 3504, 3506))
	assert.Empty(t, drainAcks(p))
	p.Feed(ctx, tick(3511, 3510, 3512))
	acks = drainAcks(p)
	require.Len(t, acks, 1)
	assert.Equal(t, biz.FullFill, acks[0].Status.Kind)

	// cancel and reject
	require.Nil(t, p.Send(&biz.OrderSend{LocalID: "ab01c", Code: "rb", Intent: biz.Intent{Kind: biz.OpenShort, Qty: 1, Price: 3600}}))
	require.Nil(t, p.Send(&biz.OrderSend{LocalID: "ab01c", Code: "rb", IsToCancel: true}))
	require.Nil(t, p.Send(&biz.OrderSend{LocalID: "ab01d", Code: "zz", Intent: biz.Intent{Kind: biz.OpenShort, Qty: 1, Price: 1}}))
	acks = drainAcks(p)
	require.Len(t, acks, 3)
	assert.Equal(t, biz.OrderStatus{Kind: biz.Canceled, Qty: 1}, acks[1].Status)
	assert.Equal(t, biz.InsertError, acks[2].Status.Kind)
	assert.NotNil(t, p.Send(&biz.OrderSend{LocalID: "ab01e", Code: "rb"}))

	his, err := p.History()
	require.Nil(t, err)
	assert.Len(t, his, 7)
	pool, err := biz.NewPool("rb", "ab01", p, nil)
	require.Nil(t, err)
	pool.UpdateOrderHis(his)
	assert.Equal(t, biz.Holding{}, pool.Holding())
}
