package config

import (
	"strings"

	"github.com/banbox/banfut/core"
)

type ArrString []string

func (i *ArrString) String() string {
	return strings.Join(*i, ",")
}

func (i *ArrString) Set(value string) error {
	*i = append(*i, value)
	return nil
}

type CmdArgs struct {
	Configs       ArrString
	Logfile       string
	DataDir       string
	NoDefault     bool
	LogLevel      string
	TimeRange     string
	TimeStart     string
	TimeEnd       string
	RawStrategies string
	Strategies    []string
	RawTickers    string
	Tickers       []core.Ticker
	Agg           string // aggregation of build_bars, in minutes
	OutPath       string
	Parallel      int
	Broker        string
}

func splitSolid(text string) []string {
	var res []string
	for _, s := range strings.Split(text, ",") {
		if s = strings.TrimSpace(s); s != "" {
			res = append(res, s)
		}
	}
	return res
}

func (a *CmdArgs) Init() {
	a.Strategies = splitSolid(a.RawStrategies)
	a.Tickers = nil
	for _, s := range splitSolid(a.RawTickers) {
		a.Tickers = append(a.Tickers, core.Ticker(s))
	}
}
