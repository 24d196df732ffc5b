package biz

import (
	"fmt"
	"math"

	"github.com/banbox/banfut/core"
)

type IntentKind int

const (
	IntentNone IntentKind = iota
	OpenLong
	CloseLong
	OpenShort
	CloseShort
)

func (k IntentKind) String() string {
	switch k {
	case OpenLong:
		return "OpenLong"
	case CloseLong:
		return "CloseLong"
	case OpenShort:
		return "OpenShort"
	case CloseShort:
		return "CloseShort"
	default:
		return "None"
	}
}

// Intent one order the strategy wants on an instrument
type Intent struct {
	Kind  IntentKind
	Qty   float64
	Price float64 // limit price
}

var NoIntent = Intent{}

func (i Intent) IsNone() bool {
	return i.Kind == IntentNone || i.Qty <= 0
}

// Same side and quantity, the limit price is not compared
func (i Intent) Same(o Intent) bool {
	if i.IsNone() || o.IsNone() {
		return i.IsNone() == o.IsNone()
	}
	return i.Kind == o.Kind && i.Qty == o.Qty
}

/*
delta change of (long, short) legs after qty of this intent executed
*/
func (i Intent) delta(qty float64) (float64, float64) {
	switch i.Kind {
	case OpenLong:
		return qty, 0
	case CloseLong:
		return -qty, 0
	case OpenShort:
		return 0, qty
	case CloseShort:
		return 0, -qty
	}
	return 0, 0
}

func (i Intent) String() string {
	if i.IsNone() {
		return "None"
	}
	return fmt.Sprintf("%s(%v,@%v)", i.Kind, i.Qty, i.Price)
}

type StatusKind int

const (
	Submitting StatusKind = iota
	Inserted
	PartialFill
	FullFill
	Canceled
	NotTouched
	Unknown
	InsertError
)

var statusNames = map[StatusKind]string{
	Submitting:  "Submitting",
	Inserted:    "Inserted",
	PartialFill: "PartialFill",
	FullFill:    "FullFill",
	Canceled:    "Canceled",
	NotTouched:  "NotTouched",
	Unknown:     "Unknown",
	InsertError: "InsertError",
}

func (k StatusKind) String() string {
	if name, ok := statusNames[k]; ok {
		return name
	}
	return "Invalid"
}

/*
OrderStatus Qty is the cumulative filled quantity for PartialFill/FullFill and the
remaining quantity for Canceled
*/
type OrderStatus struct {
	Kind StatusKind
	Qty  float64
}

func (s OrderStatus) Terminal() bool {
	return s.Kind == FullFill || s.Kind == Canceled || s.Kind == InsertError
}

func (s OrderStatus) String() string {
	switch s.Kind {
	case PartialFill, FullFill, Canceled:
		return fmt.Sprintf("%s(%v)", s.Kind, s.Qty)
	}
	return s.Kind.String()
}

/*
executed quantity of an order with the given intent, by this status
*/
func (s OrderStatus) executed(intent Intent) float64 {
	switch s.Kind {
	case PartialFill, FullFill:
		return s.Qty
	case Canceled:
		return math.Max(0, intent.Qty-s.Qty)
	}
	return 0
}

type Order struct {
	LocalID         string
	Code            core.Ticker
	Intent          Intent
	Status          OrderStatus
	Created         int64
	Updated         int64
	CancelRequested bool
	Filled          float64 // quantity already applied to the holding
	ExchangeIDs     []string
}

// Rest the part of the order not filled yet
func (o *Order) Rest() Intent {
	res := o.Intent
	res.Qty -= o.Filled
	return res
}

// OrderSend outbound request, a cancel when IsToCancel
type OrderSend struct {
	LocalID    string
	Code       core.Ticker
	Intent     Intent
	IsToCancel bool
}

// OrderRecv inbound acknowledgement from the broker
type OrderRecv struct {
	LocalID     string
	Code        core.Ticker
	Intent      Intent
	Status      OrderStatus
	Time        int64
	ExchangeIDs []string
}

// Holding realised position of one instrument, at most one leg is positive
type Holding struct {
	Long  float64
	Short float64
}

func (h Holding) Net() float64 {
	return h.Long - h.Short
}

func (h *Holding) netOff() {
	net := h.Net()
	h.Long = math.Max(net, 0)
	h.Short = math.Max(-net, 0)
}

func (h Holding) String() string {
	return fmt.Sprintf("long:%v short:%v", h.Long, h.Short)
}
