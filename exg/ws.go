package exg

import (
	"context"
	"time"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/biz"
	"github.com/banbox/banfut/core"
	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

const (
	OpLogin     = "login"
	OpSubscribe = "subscribe"
	OpOrder     = "order"
	OpHistory   = "history"
	OpTick      = "tick"
	OpAck       = "ack"
)

// WsMsg one json frame of the bridge protocol, in both directions
type WsMsg struct {
	Op    string           `json:"op"`
	OK    bool             `json:"ok,omitempty"`
	Err   string           `json:"err,omitempty"`
	Codes []core.Ticker    `json:"codes,omitempty"`
	Tick  *core.Tick       `json:"tick,omitempty"`
	Order *biz.OrderSend   `json:"order,omitempty"`
	Ack   *biz.OrderRecv   `json:"ack,omitempty"`
	Acks  []*biz.OrderRecv `json:"acks,omitempty"`
}

/*
WsBroker bridges the core to an out-of-process gateway over one websocket. login and
history are request/reply; ticks and acks are pushed by the gateway. A read error ends
the session and closes Disconnected.
*/
type WsBroker struct {
	URL     string
	Timeout time.Duration // handshake and reply timeout
	lock    deadlock.Mutex
	conn    *websocket.Conn
	down    chan struct{}
	quit    chan struct{} // closed by Close, unblocks a readLoop waiting on a full queue
	ticks   chan *core.Tick
	acks    chan *biz.OrderRecv
	replies chan *WsMsg
}

func NewWsBroker(url string, queueSize int) *WsBroker {
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &WsBroker{
		URL:     url,
		Timeout: 10 * time.Second,
		down:    make(chan struct{}),
		ticks:   make(chan *core.Tick, queueSize),
		acks:    make(chan *biz.OrderRecv, queueSize),
		replies: make(chan *WsMsg, 4),
	}
}

func (b *WsBroker) Login(ctx context.Context) *errs.Error {
	if b.URL == "" {
		return errs.NewMsg(core.ErrBadConfig, "ws broker needs broker_url")
	}
	dialer := websocket.Dialer{HandshakeTimeout: b.Timeout}
	conn, _, err_ := dialer.DialContext(ctx, b.URL, nil)
	if err_ != nil {
		return errs.New(core.ErrLogin, err_)
	}
	b.lock.Lock()
	if b.conn != nil {
		_ = b.conn.Close()
	}
	if b.quit != nil {
		close(b.quit)
	}
	b.conn = conn
	down, quit := make(chan struct{}), make(chan struct{})
	b.down, b.quit = down, quit
	b.lock.Unlock()
	go b.readLoop(conn, down, quit)
	rsp, err := b.request(ctx, &WsMsg{Op: OpLogin}, OpLogin)
	if err != nil {
		b.drop(conn)
		return err
	}
	if !rsp.OK {
		b.drop(conn)
		return errs.NewMsg(core.ErrLogin, "gateway refused login: %s", rsp.Err)
	}
	return nil
}

func (b *WsBroker) readLoop(conn *websocket.Conn, down, quit chan struct{}) {
	defer func() {
		b.lock.Lock()
		if b.conn == conn {
			b.conn = nil
		}
		b.lock.Unlock()
		close(down)
	}()
	for {
		var msg WsMsg
		if err := conn.ReadJSON(&msg); err != nil {
			log.Warn("ws broker read fail", zap.String("url", b.URL), zap.Error(err))
			return
		}
		switch msg.Op {
		case OpTick:
			if msg.Tick != nil {
				select {
				case b.ticks <- msg.Tick:
				case <-quit:
					return
				}
			}
		case OpAck:
			if msg.Ack != nil {
				select {
				case b.acks <- msg.Ack:
				case <-quit:
					return
				}
			}
		case OpLogin, OpHistory:
			select {
			case b.replies <- &msg:
			default:
				log.Warn("ws broker reply dropped", zap.String("op", msg.Op))
			}
		default:
			log.Warn("ws broker unknown op", zap.String("op", msg.Op))
		}
	}
}

func (b *WsBroker) drop(conn *websocket.Conn) {
	_ = conn.Close()
}

func (b *WsBroker) write(msg *WsMsg) *errs.Error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.conn == nil {
		return errs.NewMsg(core.ErrLogin, "ws broker offline")
	}
	_ = b.conn.SetWriteDeadline(time.Now().Add(b.Timeout))
	if err := b.conn.WriteJSON(msg); err != nil {
		return errs.New(core.ErrIOWriteFail, err)
	}
	return nil
}

func (b *WsBroker) request(ctx context.Context, msg *WsMsg, op string) (*WsMsg, *errs.Error) {
	if err := b.write(msg); err != nil {
		return nil, err
	}
	timer := time.NewTimer(b.Timeout)
	defer timer.Stop()
	for {
		select {
		case rsp := <-b.replies:
			if rsp.Op == op {
				return rsp, nil
			}
		case <-timer.C:
			return nil, errs.NewMsg(core.ErrTimeout, "ws broker %s timeout", op)
		case <-ctx.Done():
			return nil, errs.New(core.ErrTimeout, ctx.Err())
		}
	}
}

func (b *WsBroker) Subscribe(codes []core.Ticker) *errs.Error {
	return b.write(&WsMsg{Op: OpSubscribe, Codes: codes})
}

func (b *WsBroker) Send(req *biz.OrderSend) *errs.Error {
	return b.write(&WsMsg{Op: OpOrder, Order: req})
}

func (b *WsBroker) History() ([]*biz.OrderRecv, *errs.Error) {
	rsp, err := b.request(context.Background(), &WsMsg{Op: OpHistory}, OpHistory)
	if err != nil {
		return nil, err
	}
	return rsp.Acks, nil
}

func (b *WsBroker) Ticks() <-chan *core.Tick {
	return b.ticks
}

func (b *WsBroker) Acks() <-chan *biz.OrderRecv {
	return b.acks
}

func (b *WsBroker) Disconnected() <-chan struct{} {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.down
}

func (b *WsBroker) Close() {
	b.lock.Lock()
	conn := b.conn
	if b.quit != nil {
		close(b.quit)
		b.quit = nil
	}
	b.lock.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}
