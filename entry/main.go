package entry

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/config"
	"github.com/banbox/banfut/core"
	"go.uber.org/zap"
)

const VERSION = "0.1.0"

func RunCmd() {
	if len(os.Args) < 2 {
		printAndExit()
	}
	name, subArgs := os.Args[1], os.Args[2:]
	job := GetCmdJob(name)
	if job == nil {
		printAndExit()
	}
	var args config.CmdArgs
	var sub = flag.NewFlagSet(name, flag.ExitOnError)
	bindSubFlags(&args, sub, job.Options...)
	err_ := sub.Parse(subArgs)
	if err_ != nil {
		log.Error("fail", zap.Error(err_))
		printAndExit()
	}
	args.Init()
	err := job.Run(&args)
	core.RunExitCalls()
	if err != nil {
		log.Error("run fail", zap.String("cmd", name), zap.String("code", core.ErrName(err.Code)),
			zap.Error(err))
		os.Exit(1)
	}
	os.Exit(0)
}

func printAndExit() {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("\nbanfut %v\nplease run with a subcommand:\n", VERSION))
	for _, name := range cmdNames() {
		b.WriteString(fmt.Sprintf("\t%-12s%s\n", name+":", cmdJobs[name].Help))
	}
	log.Warn(b.String())
	os.Exit(1)
}

func bindSubFlags(args *config.CmdArgs, cmd *flag.FlagSet, opts ...string) {
	cmd.Var(&args.Configs, "config", "config path to use, Multiple -config options may be used")
	cmd.StringVar(&args.Logfile, "logfile", "", "Log to the file specified")
	cmd.StringVar(&args.DataDir, "datadir", "", "Path to data dir.")
	cmd.StringVar(&args.LogLevel, "level", "", "set logging level: debug/info/warn/error")
	cmd.BoolVar(&args.NoDefault, "no-default", false, "ignore default: config.yml, config.local.yml")

	for _, key := range opts {
		switch key {
		case "timerange":
			cmd.StringVar(&args.TimeRange, "timerange", "", "Specify what timerange of data to use")
		case "timestart":
			cmd.StringVar(&args.TimeStart, "timestart", "", "start time, override `time_start` in config")
		case "timeend":
			cmd.StringVar(&args.TimeEnd, "timeend", "", "end time, override `time_end` in config")
		case "strategy":
			cmd.StringVar(&args.RawStrategies, "strategy", "", "comma-separated strategy names")
		case "tickers":
			cmd.StringVar(&args.RawTickers, "tickers", "", "comma-separated tickers")
		case "out":
			cmd.StringVar(&args.OutPath, "out", "", "output directory")
		case "parallel":
			cmd.IntVar(&args.Parallel, "parallel", 0, "max backtests running at the same time")
		case "broker":
			cmd.StringVar(&args.Broker, "broker", "", "broker adapter, override `broker` in config")
		case "agg":
			cmd.StringVar(&args.Agg, "agg", "", "bar minutes to build, the strategy primary when empty")
		default:
			log.Warn(fmt.Sprintf("undefined argument: %s", key))
			os.Exit(1)
		}
	}
}
