package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYml(t *testing.T, dir, name, text string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeYml(t, dir, "config.yml", `
name: demo
strategies: [boll_break, ha_rsi]
time_start: "20240101"
tickers:
  rb:
    slip_ticks: 2
  zn:
    tick_size: 5
    point_value: 5
    comm_rate: 0.0001
    sessions: "09:00-10:15,21:00-01:00"
`)
	extra := writeYml(t, dir, "extra.yml", `
strategies: [ha_rsi]
pool_prefix: zz09
tickers:
  rb:
    point_value: 20
`)
	args := &CmdArgs{DataDir: dir, Configs: ArrString{extra}, LogLevel: "debug", TimeRange: "20240101-20240301"}
	cfg, err := LoadConfig(args)
	require.Nil(t, err)
	assert.True(t, Loaded)
	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, []string{"ha_rsi"}, cfg.Strategies)
	assert.Equal(t, "zz09", cfg.PoolPrefix)
	assert.Equal(t, 10, cfg.OrderPollMS)
	assert.Equal(t, 300, cfg.CacheMaxKeys)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, btime.DayKeyToMS(20240101), cfg.TimeRange.StartMS)
	assert.Equal(t, btime.DayKeyToMS(20240301), cfg.TimeRange.EndMS)
	assert.Equal(t, filepath.Join(dir, "journal.db"), cfg.JournalPath())

	rb := core.MustGetTicker("rb")
	assert.Equal(t, 20.0, rb.PointValue)
	assert.Equal(t, 2.0, rb.SlipTicks)
	zn := core.MustGetTicker("zn")
	assert.Equal(t, core.Commission{Kind: core.CommRate, Val: 0.0001}, zn.Commission)
	assert.Len(t, zn.Sessions, 2)
	data, err := cfg.DumpYaml()
	require.Nil(t, err)
	assert.Contains(t, string(data), "pool_prefix: zz09")
}

func TestValidate(t *testing.T) {
	cfg, err := ParseYmlConfig([]byte("name: x\nstrategies: [a]\npool_prefix: abc\n"), "mem")
	require.Nil(t, err)
	err = cfg.Validate()
	require.NotNil(t, err)
	assert.Equal(t, core.ErrBadConfig, err.Code)
	assert.Contains(t, err.Error(), "PoolPrefix")

	cfg, err = ParseYmlConfig([]byte("name: x\nstrategies: []\n"), "mem")
	require.Nil(t, err)
	assert.NotNil(t, cfg.Validate())

	cfg, err = ParseYmlConfig([]byte("name: x\nstrategies: [a]\ntickers:\n  qq:\n    tick_size: 1\n"), "mem")
	require.Nil(t, err)
	assert.Nil(t, cfg.Validate())
	assert.NotNil(t, cfg.ApplyTickers())

	_, _, err_ := ParseTimeRange("2024")
	assert.Error(t, err_)
	assert.Error(t, cfg.Apply(&CmdArgs{TimeStart: "20240301", TimeEnd: "20240101"}))
}

func TestArgs(t *testing.T) {
	args := &CmdArgs{RawStrategies: " a, ,b", RawTickers: "rb,hc"}
	args.Init()
	assert.Equal(t, []string{"a", "b"}, args.Strategies)
	assert.Equal(t, []core.Ticker{"rb", "hc"}, args.Tickers)
	var arr ArrString
	require.NoError(t, arr.Set("x.yml"))
	require.NoError(t, arr.Set("y.yml"))
	assert.Equal(t, "x.yml,y.yml", arr.String())
}
