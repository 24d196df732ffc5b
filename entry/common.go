package entry

import (
	"fmt"
	"slices"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banfut/config"
)

type FuncEntry = func(args *config.CmdArgs) *errs.Error

type CmdJob struct {
	Name    string
	Run     FuncEntry
	Options []string
	Help    string
}

var cmdJobs = make(map[string]*CmdJob)

func AddCmdJob(job *CmdJob) {
	if _, ok := cmdJobs[job.Name]; ok {
		panic(fmt.Sprint("duplicate cmd job: ", job.Name))
	}
	cmdJobs[job.Name] = job
}

func GetCmdJob(name string) *CmdJob {
	return cmdJobs[name]
}

func cmdNames() []string {
	res := make([]string, 0, len(cmdJobs))
	for name := range cmdJobs {
		res = append(res, name)
	}
	slices.Sort(res)
	return res
}

func init() {
	AddCmdJob(&CmdJob{
		Name:    "backtest",
		Run:     RunBackTest,
		Options: []string{"timerange", "timestart", "timeend", "strategy", "tickers", "out", "parallel"},
		Help:    "backtest strategies over archived bars",
	})
	AddCmdJob(&CmdJob{
		Name:    "trade",
		Run:     RunTrade,
		Options: []string{"timerange", "strategy", "tickers", "broker"},
		Help:    "live trade, the paper broker is fed by archived ticks",
	})
	AddCmdJob(&CmdJob{
		Name:    "build_bars",
		Run:     RunBuildBars,
		Options: []string{"timerange", "strategy", "tickers", "agg"},
		Help:    "build per-day bar archives from archived ticks",
	})
}
