package core

import (
	"context"
	"github.com/sasha-s/go-deadlock"
)

var (
	BotName      string // name of current bot
	RunMode      string // live/backtest/other
	LiveMode     bool
	BackTestMode bool
	Ctx          context.Context // cancelled when the whole process should stop
	StopAll      context.CancelFunc
	ExitCalls    []func() // called before exit
)

var (
	tickerInfos = make(map[Ticker]*TickerInfo) // static instrument metadata, process lifetime
	lockTickers deadlock.RWMutex

	lastPrices = make(map[Ticker]*Quote) // latest quote from ticks, live only
	lockPrices deadlock.RWMutex
)

const (
	SecsMin  = 60
	SecsHour = SecsMin * 60
	SecsDay  = SecsHour * 24

	MSMin  = int64(SecsMin * 1000)
	MSHour = int64(SecsHour * 1000)
	MSDay  = int64(SecsDay * 1000)
)

const (
	DefaultDateFmt = "2006-01-02 15:04:05"
	DayFmt         = "20060102"
)

const (
	RunModeLive     = "live"
	RunModeBackTest = "backtest"
	RunModeOther    = "other"
)

const (
	DirtLong  = 1
	DirtShort = -1
)

func init() {
	Ctx, StopAll = context.WithCancel(context.Background())
}
