package core

import (
	"math"
	"testing"

	"github.com/banbox/banfut/btime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommissionRate(t *testing.T) {
	rate := Commission{Kind: CommRate, Val: 0.0001}
	assert.Equal(t, 0.0001, rate.Rate(3500, 10))
	fixed := Commission{Kind: CommFixed, Val: 2}
	assert.InDelta(t, 2.0/(400*1000), fixed.Rate(400, 1000), 1e-15)
	assert.Equal(t, 0.0, fixed.Rate(0, 1000))
}

func TestRoundTick(t *testing.T) {
	assert.Equal(t, 3501.0, RoundTick(3500.6, 1))
	assert.Equal(t, 4012.4, RoundTick(4012.33, 0.2))
	assert.Equal(t, 101.005, RoundTick(101.0061, 0.005))
	assert.Equal(t, 1.23, RoundTick(1.23, 0))
}

func TestEma(t *testing.T) {
	e := NewEMAPeriod(3)
	assert.Equal(t, 0.5, e.Alpha)
	assert.Equal(t, 10.0, e.Update(10))
	assert.Equal(t, 11.0, e.Update(12))
	assert.True(t, math.IsNaN(e.Update(math.NaN())))
	assert.Equal(t, 2, e.Age)
	e.Reset()
	assert.Equal(t, 0, e.Age)
}

func TestTickerTable(t *testing.T) {
	info, err := GetTicker("rb")
	require.Nil(t, err)
	assert.Equal(t, 10.0, info.PointValue)
	assert.Len(t, info.Sessions, 4)

	_, err = GetTicker("nope")
	require.NotNil(t, err)
	assert.Equal(t, ErrDiNotFound, err.Code)

	RegTicker(&TickerInfo{Code: "zz", TickSize: 1, PointValue: 1,
		Sessions: btime.Layout{btime.Time(0, btime.Clock(1, 0, 0))}})
	assert.Contains(t, AllTickers(), Ticker("zz"))
}

func TestQuote(t *testing.T) {
	assert.Nil(t, GetQuote("qq"))
	SetQuote(&Tick{Code: "qq", Price: 10, BidPrice: 9, AskPrice: 11, Time: 5})
	q := GetQuote("qq")
	require.NotNil(t, q)
	assert.Equal(t, 10.0, q.Price)
	q.Price = 20
	assert.Equal(t, 10.0, GetQuote("qq").Price)
}
