package exg

import (
	"context"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banfut/biz"
	"github.com/banbox/banfut/core"
)

/*
Broker the exchange gateway consumed by the live core. Cancels are sent through Send with
IsToCancel and surface as Canceled acks. After a disconnect the caller logs in again and
rebuilds holdings from History.
*/
type Broker interface {
	biz.Sender
	Login(ctx context.Context) *errs.Error
	Subscribe(codes []core.Ticker) *errs.Error
	Ticks() <-chan *core.Tick
	Acks() <-chan *biz.OrderRecv
	History() ([]*biz.OrderRecv, *errs.Error)
	// Disconnected is closed when the current session drops
	Disconnected() <-chan struct{}
	Close()
}

// BrokerArgs options shared by every adapter; each one reads what it needs
type BrokerArgs struct {
	QueueSize int
	URL       string
}

type FnNewBroker = func(args *BrokerArgs) Broker

var brokers = map[string]FnNewBroker{
	"paper": func(args *BrokerArgs) Broker {
		return NewPaper(args.QueueSize)
	},
	"ws": func(args *BrokerArgs) Broker {
		return NewWsBroker(args.URL, args.QueueSize)
	},
}

// RegBroker registers an adapter under name, replacing an existing one
func RegBroker(name string, fn FnNewBroker) {
	brokers[name] = fn
}

func Create(name string, args *BrokerArgs) (Broker, *errs.Error) {
	fn, ok := brokers[name]
	if !ok {
		return nil, errs.NewMsg(core.ErrBadConfig, "unknown broker: %s", name)
	}
	if args == nil {
		args = &BrokerArgs{}
	}
	return fn(args), nil
}
