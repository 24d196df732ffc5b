package core

import (
	"github.com/banbox/banfut/btime"
)

var (
	dayFull   = "09:00-10:15,10:30-11:30,13:30-15:00"
	nightLate = ",21:00-23:00"
)

// built in instrument table, config can override fields or add tickers
var defaultTickers = []struct {
	code     Ticker
	tickSize float64
	pv       float64
	comm     Commission
	sessions string
}{
	{"rb", 1, 10, Commission{CommRate, 0.0001}, dayFull + nightLate},
	{"hc", 1, 10, Commission{CommRate, 0.0001}, dayFull + nightLate},
	{"i", 0.5, 100, Commission{CommRate, 0.0001}, dayFull + nightLate},
	{"m", 1, 10, Commission{CommFixed, 1.5}, dayFull + nightLate},
	{"ag", 1, 15, Commission{CommRate, 0.00005}, dayFull + ",21:00-02:30"},
	{"au", 0.02, 1000, Commission{CommFixed, 2}, dayFull + ",21:00-02:30"},
	{"cu", 10, 5, Commission{CommRate, 0.00005}, dayFull + ",21:00-01:00"},
	{"IF", 0.2, 300, Commission{CommRate, 0.000023}, "09:30-11:30,13:00-15:00"},
	{"IC", 0.2, 200, Commission{CommRate, 0.000023}, "09:30-11:30,13:00-15:00"},
	{"T", 0.005, 10000, Commission{CommFixed, 3}, "09:30-11:30,13:00-15:15"},
}

func init() {
	for _, it := range defaultTickers {
		RegTicker(&TickerInfo{
			Code:       it.code,
			TickSize:   it.tickSize,
			PointValue: it.pv,
			SlipTicks:  1,
			Commission: it.comm,
			Sessions:   btime.MustParseLayout(it.sessions),
		})
	}
}
