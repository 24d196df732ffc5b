package strategy

import (
	"math"
	"math/rand"
	"testing"

	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/cond"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/kline"
	"github.com/banbox/banfut/opt"
	"github.com/banbox/banfut/strat"
	"github.com/banbox/banfut/ta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomTicks a seeded random walk from 09:00 to 23:00 on each day, 3-15s apart
func randomTicks(code core.Ticker, days []int, seed int64) []*core.Tick {
	rng := rand.New(rand.NewSource(seed))
	price, cum := 3500.0, 0.0
	var res []*core.Tick
	k := 0
	for _, day := range days {
		start := btime.DayKeyToMS(day)
		cum = 0
		for ms := btime.Clock(9, 0, 0); ms < btime.Clock(23, 0, 0); ms += int64(3+rng.Intn(13)) * btime.MSSec {
			k += 1
			price += float64(rng.Intn(5)-2) + math.Round(3*math.Sin(float64(k)/400))
			cum += float64(1 + rng.Intn(9))
			res = append(res, &core.Tick{Code: code, Time: start + ms, Price: price, CumVolume: cum,
				BidPrice: price - 1, AskPrice: price + 1, ContractID: 2405})
		}
	}
	return res
}

/*
replayLive drives s the way a live worker does: every tick goes through the updater and
a decision is taken on each finished bar, or on every tick once a bar exists when s is
tick-reactive. Returns the bars and the holding decided at each bar index.
*/
func replayLive(t *testing.T, s *Strategy, info *core.TickerInfo, ticks []*core.Tick) ([]core.Bar, map[int]strat.NormHold) {
	buf := kline.NewBuffer(info.Code, nil)
	upd, err := kline.MakeUpdater(s.Primary(info), info.Code, buf)
	require.Nil(t, err)
	env := cond.NewEnv(ta.NewLattice(buf, info, 0))
	defer env.Release()
	runner := strat.NewRunner(env, s.Ptm(info))
	finished := 0
	holds := make(map[int]strat.NormHold)
	for _, tk := range ticks {
		state := upd.Update(tk)
		if state == core.BarFinished {
			finished += 1
		} else if !s.TickReactive {
			continue
		}
		n := buf.Len()
		if n == 0 {
			continue
		}
		h := runner.Step(n - 1)
		if prev, ok := holds[n-1]; ok {
			require.Equal(t, prev.Num(), h.Num(), "%s bar %d decided twice", s.Name, n-1)
		}
		holds[n-1] = h
	}
	require.Equal(t, finished, buf.Len(), s.Name)
	return buf.Snapshot(), holds
}

func TestLiveMatchesBacktest(t *testing.T) {
	info := core.MustGetTicker("rb")
	ticks := randomTicks(info.Code, []int{20240304, 20240305, 20240306}, 11)
	cases := []struct {
		name     string
		reactive bool
	}{
		{"boll_break", false},
		{"ha_rsi", true},
	}
	for _, c := range cases {
		s, err := Get(c.name)
		require.Nil(t, err)
		require.Equal(t, c.reactive, s.TickReactive, c.name)
		bars, live := replayLive(t, s, info, ticks)
		require.Greater(t, len(bars), 100, c.name)
		res, err := opt.Run(bars, info, s.Ptm(info), 0)
		require.Nil(t, err, c.name)
		require.Len(t, live, len(bars), c.name)
		for i := range bars {
			assert.Equal(t, res.Holds[i].Num(), live[i].Num(), "%s bar %d", c.name, i)
		}
		assert.Greater(t, res.Trades(), 0, c.name)
	}
}
