package entry

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/config"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/data"
	"github.com/banbox/banfut/exg"
	"github.com/banbox/banfut/kline"
	"github.com/banbox/banfut/live"
	"github.com/banbox/banfut/opt"
	"github.com/banbox/banfut/orm"
	"github.com/banbox/banfut/rpc"
	"github.com/banbox/banfut/strategy"
	"go.uber.org/zap"
)

func setup(args *config.CmdArgs) (*config.Config, *errs.Error) {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if level == "" {
		level = "info"
	}
	core.BotName = cfg.Name
	if core.LiveMode && len(cfg.RPCChannels) > 0 {
		log.Setup(level, cfg.LogFile, rpc.NewExcNotify())
		if err = rpc.InitRPC(cfg.RPCChannels); err != nil {
			return nil, err
		}
		core.ExitCalls = append(core.ExitCalls, rpc.CleanUp)
	} else {
		log.Setup(level, cfg.LogFile)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = config.GetDataDir()
	}
	return cfg, nil
}

func openArchive(cfg *config.Config) (*data.Archive, *errs.Error) {
	codec, err := data.GetCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	return data.NewArchive(cfg.DataDir, codec), nil
}

func codesOf(cfg *config.Config) ([]core.Ticker, *errs.Error) {
	if len(cfg.Codes) == 0 {
		return nil, errs.NewMsg(core.ErrBadConfig, "no tickers, set `codes` in config or -tickers")
	}
	res := make([]core.Ticker, 0, len(cfg.Codes))
	for _, c := range cfg.Codes {
		code := core.Ticker(c)
		if _, err := core.GetTicker(code); err != nil {
			return nil, errs.NewMsg(core.ErrDiNotFound, "unknown ticker: %s", c)
		}
		res = append(res, code)
	}
	return res, nil
}

// dayRange of the configured time range, 0 for an open side
func dayRange(cfg *config.Config) (int, int) {
	var startDay, endDay int
	if tr := cfg.TimeRange; tr != nil {
		if tr.StartMS > 0 {
			startDay = btime.DayKey(tr.StartMS)
		}
		if tr.EndMS > 0 {
			endDay = btime.DayKey(tr.EndMS)
		}
	}
	return startDay, endDay
}

func RunBackTest(args *config.CmdArgs) *errs.Error {
	core.SetRunMode(core.RunModeBackTest)
	cfg, err := setup(args)
	if err != nil {
		return err
	}
	arch, err := openArchive(cfg)
	if err != nil {
		return err
	}
	codes, err := codesOf(cfg)
	if err != nil {
		return err
	}
	var startMS, endMS int64
	if cfg.TimeRange != nil {
		startMS, endMS = cfg.TimeRange.StartMS, cfg.TimeRange.EndMS
	}
	var jobs []*opt.Job
	for _, name := range cfg.Strategies {
		stg, err := strategy.Get(name)
		if err != nil {
			return err
		}
		for _, code := range codes {
			info := core.MustGetTicker(code)
			bars, err := arch.LoadBars(stg.Primary(info).Key(), code, startMS, endMS)
			if err != nil {
				return err
			}
			if len(bars) == 0 {
				log.Warn("no bars, run build_bars first", zap.String("ticker", string(code)),
					zap.String("strategy", name))
				continue
			}
			jobs = append(jobs, &opt.Job{Info: info, Bars: bars, Ptm: stg.Ptm(info)})
		}
	}
	if len(jobs) == 0 {
		return errs.NewMsg(core.ErrBadConfig, "nothing to backtest")
	}
	cache, err := opt.NewCache(int64(len(jobs) * 2))
	if err != nil {
		return err
	}
	defer cache.Close()
	results := opt.RunBatch(jobs, cache, cfg.Parallel, cfg.CacheMaxKeys)
	reports := make([]*opt.Report, 0, len(results))
	for _, res := range results {
		if res == nil {
			continue
		}
		reports = append(reports, opt.Summarize(res))
		if args.OutPath != "" {
			if err = opt.DumpPnl(res, args.OutPath); err != nil {
				return err
			}
		}
	}
	fmt.Println(opt.TextReports(reports))
	return nil
}

func RunBuildBars(args *config.CmdArgs) *errs.Error {
	core.SetRunMode(core.RunModeOther)
	cfg, err := setup(args)
	if err != nil {
		return err
	}
	arch, err := openArchive(cfg)
	if err != nil {
		return err
	}
	codes, err := codesOf(cfg)
	if err != nil {
		return err
	}
	mins := 0
	if args.Agg != "" {
		var err_ error
		mins, err_ = strconv.Atoi(args.Agg)
		if err_ != nil || mins <= 0 {
			return errs.NewMsg(core.ErrBadConfig, "-agg must be positive minutes: %s", args.Agg)
		}
	}
	startDay, endDay := dayRange(cfg)
	for _, code := range codes {
		info := core.MustGetTicker(code)
		var exprs []kline.AggExpr
		if mins > 0 {
			exprs = append(exprs, kline.TF(info, mins))
		} else {
			for _, name := range cfg.Strategies {
				stg, err := strategy.Get(name)
				if err != nil {
					return err
				}
				exprs = append(exprs, stg.Primary(info))
			}
		}
		for _, expr := range exprs {
			num, err := arch.BuildArchive(expr, code, startDay, endDay)
			if err != nil {
				return err
			}
			log.Info("bars built", zap.String("ticker", string(code)), zap.String("agg", expr.Key()),
				zap.Int("num", num))
		}
	}
	return nil
}

func RunTrade(args *config.CmdArgs) *errs.Error {
	core.SetRunMode(core.RunModeLive)
	cfg, err := setup(args)
	if err != nil {
		return err
	}
	arch, err := openArchive(cfg)
	if err != nil {
		return err
	}
	codes, err := codesOf(cfg)
	if err != nil {
		return err
	}
	broker, err := exg.Create(cfg.Broker, &exg.BrokerArgs{QueueSize: cfg.QueueSize, URL: cfg.BrokerURL})
	if err != nil {
		return err
	}
	journal, err := orm.Open(core.Ctx, cfg.JournalPath())
	if err != nil {
		return err
	}
	core.ExitCalls = append(core.ExitCalls, func() {
		if err := journal.Close(); err != nil {
			log.Error("close journal fail", zap.Error(err))
		}
	})
	var startMS int64
	if cfg.TimeRange != nil {
		startMS = cfg.TimeRange.StartMS
	}
	jobs := make([]*live.Job, 0, len(codes))
	// ticks covered by warmup bars are not replayed again
	warmEnd := make(map[core.Ticker]int64)
	for _, code := range codes {
		stg, err := strategy.Get(cfg.StrategyOf(string(code)))
		if err != nil {
			return err
		}
		job := &live.Job{Code: code, Strategy: stg}
		if startMS > 0 {
			primary := stg.Primary(core.MustGetTicker(code))
			job.Warmup, err = arch.LoadBars(primary.Key(), code, 0, startMS)
			if err != nil {
				return err
			}
			if n := len(job.Warmup); n > 0 {
				warmEnd[code] = job.Warmup[n-1].CloseTime
			}
		}
		jobs = append(jobs, job)
	}
	tr, err := live.NewTrader(broker, journal, jobs, live.Options{
		Prefix:       cfg.PoolPrefix,
		PollWait:     time.Duration(cfg.OrderPollMS) * time.Millisecond,
		ReloginWait:  time.Duration(cfg.ReloginMS) * time.Millisecond,
		Escalate:     cfg.LoginEscalate,
		QueueSize:    cfg.QueueSize,
		MaxKeys:      cfg.CacheMaxKeys,
		SnapshotCron: cfg.SnapshotCron,
	})
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(core.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if paper, ok := broker.(*exg.Paper); ok {
		_, endDay := dayRange(cfg)
		go func() {
			defer stop()
			for tr.Logins() == 0 {
				if !core.SleepCtx(ctx, 10*time.Millisecond) {
					return
				}
			}
			num, err := arch.ReplayTicksFrom(ctx, codes, startMS, endDay, func(t *core.Tick) bool {
				if t.Time <= warmEnd[t.Code] {
					return true
				}
				return paper.Feed(ctx, t)
			})
			if err != nil {
				log.Error("replay ticks fail", zap.Error(err))
			}
			log.Info("replay done", zap.Int("ticks", num))
			// let the last decisions reach the broker
			core.SleepCtx(ctx, time.Second)
		}()
	}
	tr.Run(ctx)
	for _, s := range tr.Snapshots() {
		log.Info("final holding", zap.String("ticker", string(s.Code)), zap.Int("bars", s.Bars),
			zap.String("holding", s.Holding.String()), zap.Int("decisions", s.Decisions))
	}
	return nil
}
