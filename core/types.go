package core

import (
	"fmt"
	"github.com/banbox/banfut/btime"
)

// Ticker is an instrument symbol registered in the static metadata table.
type Ticker string

type Tick struct {
	Code       Ticker
	Time       int64 // 13-digit milliseconds, exchange local time
	Price      float64
	CumVolume  float64 // cumulative daily volume
	BidPrice   float64
	AskPrice   float64
	BidSize    float64
	AskSize    float64
	ContractID int64
}

/*
IsPreOpen ticks without both sides of book are sentinels sent before the market opens
*/
func (t *Tick) IsPreOpen() bool {
	return t.BidPrice == 0 || t.AskPrice == 0
}

type KlineInfo struct {
	OpenTime     int64
	SkippedTicks int // ticks ignored right before this bar began
	TicksInBar   int
	ContractID   int64
}

type Bar struct {
	OpenTime  int64
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Info      KlineInfo
}

func (b *Bar) String() string {
	return fmt.Sprintf("%s o:%v h:%v l:%v c:%v v:%v", btime.ToDateStr(b.OpenTime, ""),
		b.Open, b.High, b.Low, b.Close, b.Volume)
}

type BarState int

const (
	BarIgnore BarState = iota
	BarBegin
	BarMerging
	BarFinished
)

func (s BarState) String() string {
	switch s {
	case BarIgnore:
		return "Ignore"
	case BarBegin:
		return "Begin"
	case BarMerging:
		return "Merging"
	case BarFinished:
		return "Finished"
	default:
		return "Invalid"
	}
}

const (
	CommFixed = iota // fixed money per contract
	CommRate         // rate of traded notional
)

type Commission struct {
	Kind int
	Val  float64
}

/*
Rate commission rate of notional at the given price
*/
func (c Commission) Rate(price, pointValue float64) float64 {
	if c.Kind == CommFixed {
		if price <= 0 || pointValue <= 0 {
			return 0
		}
		return c.Val / (price * pointValue)
	}
	return c.Val
}

type TickerInfo struct {
	Code       Ticker
	TickSize   float64
	PointValue float64
	SlipTicks  float64
	Commission Commission
	Sessions   btime.Layout // trading sessions of one day, used by session-end exits and bar layouts
}

type Quote struct {
	Price float64
	Bid   float64
	Ask   float64
	Time  int64
}
