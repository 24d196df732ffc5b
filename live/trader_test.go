package live

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/cond"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/exg"
	"github.com/banbox/banfut/kline"
	"github.com/banbox/banfut/orm"
	"github.com/banbox/banfut/strat"
	"github.com/banbox/banfut/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDay = 20240304

var alwaysLong = &strategy.Strategy{
	Name:    "always_long",
	BarMins: 1,
	Build: func(info *core.TickerInfo, primary kline.AggExpr) strat.Ptm {
		return &strat.Direct{Sizing: &strat.Fixed{K: 2}, Dir: cond.Long, Open: &cond.Const{Val: true},
			Exit: &cond.Const{Val: false}}
	},
}

func at(h, m, s int) int64 {
	return btime.DayKeyToMS(testDay) + btime.Clock(h, m, s)
}

func rbTick(tm int64, price float64) *core.Tick {
	return &core.Tick{Code: "rb", Time: tm, Price: price, CumVolume: 10, BidPrice: price - 1,
		AskPrice: price + 1, BidSize: 5, AskSize: 5, ContractID: 2405}
}

func testOpts() Options {
	return Options{Prefix: "lt01", PollWait: time.Millisecond, ReloginWait: time.Millisecond, Escalate: 2,
		QueueSize: 10, CancelWait: 50 * time.Millisecond}
}

func startTrader(t *testing.T, tr *Trader) (context.CancelFunc, chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return tr.Logins() >= 1 }, time.Second, time.Millisecond)
	return cancel, done
}

func TestNewTraderErrors(t *testing.T) {
	paper := exg.NewPaper(10)
	_, err := NewTrader(paper, nil, nil, testOpts())
	assert.Equal(t, core.ErrBadConfig, err.Code)
	_, err = NewTrader(paper, nil, []*Job{{Code: "zz", Strategy: alwaysLong}}, testOpts())
	assert.Equal(t, core.ErrDiNotFound, err.Code)
	_, err = NewTrader(paper, nil, []*Job{{Code: "rb", Strategy: alwaysLong}, {Code: "rb", Strategy: alwaysLong}}, testOpts())
	assert.Equal(t, core.ErrBadConfig, err.Code)
	_, err = NewTrader(paper, nil, []*Job{{Code: "rb"}}, testOpts())
	assert.NotNil(t, err)
	opts := testOpts()
	opts.SnapshotCron = "every day"
	_, err = NewTrader(paper, nil, []*Job{{Code: "rb", Strategy: alwaysLong}}, opts)
	assert.Equal(t, core.ErrBadConfig, err.Code)
	opts.Prefix = "toolong"
	opts.SnapshotCron = ""
	_, err = NewTrader(paper, nil, []*Job{{Code: "rb", Strategy: alwaysLong}}, opts)
	assert.NotNil(t, err)
}

func TestTraderLive(t *testing.T) {
	journal, err := orm.OpenJournal(filepath.Join(t.TempDir(), "acks.db"), 1000)
	require.Nil(t, err)
	defer journal.Close()

	paper := exg.NewPaper(100)
	paper.RefuseLogins(3)
	opts := testOpts()
	opts.SnapshotCron = "0 5 15 * * *"
	tr, err := NewTrader(paper, journal, []*Job{{Code: "rb", Strategy: alwaysLong}}, opts)
	require.Nil(t, err)
	cancel, done := startTrader(t, tr)

	ctx := context.Background()
	pre := rbTick(at(8, 59, 0), 3500)
	pre.BidPrice = 0
	for _, tk := range []*core.Tick{pre, rbTick(at(9, 0, 0), 3500), rbTick(at(9, 0, 30), 3502)} {
		require.True(t, paper.Feed(ctx, tk))
	}
	// no finished bar yet, so no decision from a bar-only strategy
	time.Sleep(20 * time.Millisecond)
	snap := tr.Snapshots()[0]
	assert.Equal(t, 0, snap.Bars)
	assert.Equal(t, 0, snap.Decisions)

	require.True(t, paper.Feed(ctx, rbTick(at(9, 1, 0), 3504)))
	require.Eventually(t, func() bool {
		s := tr.Snapshots()[0]
		return s.Holding.Long == 2 && s.Decisions == 1
	}, time.Second, time.Millisecond)
	snap = tr.Snapshots()[0]
	assert.Equal(t, 1, snap.Bars)
	assert.Equal(t, 1, snap.Decisions)
	assert.Equal(t, 2.0, snap.Hold.Num())
	assert.Equal(t, 0, snap.Alive)

	// reconnect rebuilds the same holding
	paper.RefuseLogins(1)
	paper.Drop()
	require.Eventually(t, func() bool { return tr.Logins() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 2.0, tr.Snapshots()[0].Holding.Net())

	cancel()
	<-done
	his, err := journal.LoadHistory("lt01", "rb")
	require.Nil(t, err)
	require.Len(t, his, 2)

	// a restarted trader starts from the journalled holding
	paper2 := exg.NewPaper(100)
	tr2, err := NewTrader(paper2, journal, []*Job{{Code: "rb", Strategy: alwaysLong}}, testOpts())
	require.Nil(t, err)
	cancel2, done2 := startTrader(t, tr2)
	assert.Equal(t, 2.0, tr2.Snapshots()[0].Holding.Long)
	cancel2()
	<-done2
}

func TestTraderWarmup(t *testing.T) {
	var bars []core.Bar
	for i := 0; i < 3; i++ {
		tm := at(9, i, 0)
		bars = append(bars, core.Bar{OpenTime: tm, CloseTime: tm + 59000, Open: 3500, High: 3501, Low: 3499,
			Close: 3500, Volume: 1})
	}
	tr, err := NewTrader(exg.NewPaper(10), nil, []*Job{{Code: "rb", Strategy: alwaysLong, Warmup: bars}}, testOpts())
	require.Nil(t, err)
	snap := tr.Snapshots()[0]
	assert.Equal(t, 3, snap.Bars)
	assert.Equal(t, 2.0, snap.Hold.Num())
	assert.Equal(t, 0, snap.Decisions)
	assert.Equal(t, 0.0, snap.Holding.Net())
}
