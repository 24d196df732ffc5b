package data

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/kline"
	"github.com/banbox/banfut/utils"
	"go.uber.org/zap"
)

const TickDir = "Rtick"

/*
Archive per-ticker day files under Root:

	<Root>/Rtick/<TICKER>/<YYYYMMDD>        ticks
	<Root>/<AGG>/<TICKER>/<YYYYMMDD>        bars of one aggregation
*/
type Archive struct {
	Root  string
	Codec Codec
}

func NewArchive(root string, codec Codec) *Archive {
	if codec == nil {
		codec = &BinCodec{Compress: true}
	}
	return &Archive{Root: root, Codec: codec}
}

// AggDir directory name of an aggregation key
func AggDir(aggKey string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '-' {
			return r
		}
		return '_'
	}, aggKey)
}

func (a *Archive) tickPath(code core.Ticker, day int) string {
	return filepath.Join(a.Root, TickDir, string(code), strconv.Itoa(day))
}

func (a *Archive) barPath(aggKey string, code core.Ticker, day int) string {
	return filepath.Join(a.Root, AggDir(aggKey), string(code), strconv.Itoa(day))
}

func (a *Archive) readFile(path string) ([]byte, *errs.Error) {
	data, err_ := os.ReadFile(path)
	if err_ != nil {
		if os.IsNotExist(err_) {
			return nil, nil
		}
		return nil, errs.New(core.ErrIOReadFail, err_)
	}
	return data, nil
}

func (a *Archive) WriteTicks(code core.Ticker, day int, ticks []*core.Tick) *errs.Error {
	data, err := a.Codec.EncodeTicks(ticks)
	if err != nil {
		return err
	}
	return utils.WriteFile(a.tickPath(code, day), data)
}

// ReadTicks ticks of one day with Code set, nil when the day is missing
func (a *Archive) ReadTicks(code core.Ticker, day int) ([]*core.Tick, *errs.Error) {
	data, err := a.readFile(a.tickPath(code, day))
	if err != nil || data == nil {
		return nil, err
	}
	ticks, err := a.Codec.DecodeTicks(data)
	if err != nil {
		return nil, err
	}
	for _, t := range ticks {
		t.Code = code
	}
	return ticks, nil
}

func (a *Archive) WriteBars(aggKey string, code core.Ticker, day int, bars []core.Bar) *errs.Error {
	data, err := a.Codec.EncodeBars(bars)
	if err != nil {
		return err
	}
	return utils.WriteFile(a.barPath(aggKey, code, day), data)
}

func (a *Archive) ReadBars(aggKey string, code core.Ticker, day int) ([]core.Bar, *errs.Error) {
	data, err := a.readFile(a.barPath(aggKey, code, day))
	if err != nil || data == nil {
		return nil, err
	}
	return a.Codec.DecodeBars(data)
}

func listDays(dir string) ([]int, *errs.Error) {
	names, err := utils.ListNames(dir, false)
	if err != nil {
		return nil, err
	}
	res := make([]int, 0, len(names))
	for _, n := range names {
		if len(n) != 8 {
			continue
		}
		day, err_ := strconv.Atoi(n)
		if err_ != nil {
			continue
		}
		res = append(res, day)
	}
	slices.Sort(res)
	return res, nil
}

func (a *Archive) TickDays(code core.Ticker) ([]int, *errs.Error) {
	return listDays(filepath.Join(a.Root, TickDir, string(code)))
}

func (a *Archive) BarDays(aggKey string, code core.Ticker) ([]int, *errs.Error) {
	return listDays(filepath.Join(a.Root, AggDir(aggKey), string(code)))
}

// TickTickers tickers with a tick directory
func (a *Archive) TickTickers() ([]core.Ticker, *errs.Error) {
	names, err := utils.ListNames(filepath.Join(a.Root, TickDir), true)
	if err != nil {
		return nil, err
	}
	res := make([]core.Ticker, len(names))
	for i, n := range names {
		res[i] = core.Ticker(n)
	}
	return res, nil
}

func inDays(day, startDay, endDay int) bool {
	return (startDay == 0 || day >= startDay) && (endDay == 0 || day <= endDay)
}

/*
LoadBars bars with open time in [startMS, endMS), zero means unbounded
*/
func (a *Archive) LoadBars(aggKey string, code core.Ticker, startMS, endMS int64) ([]core.Bar, *errs.Error) {
	days, err := a.BarDays(aggKey, code)
	if err != nil {
		return nil, err
	}
	startDay, endDay := 0, 0
	if startMS > 0 {
		startDay = btime.DayKey(startMS)
	}
	if endMS > 0 {
		endDay = btime.DayKey(endMS)
	}
	var res []core.Bar
	for _, day := range days {
		if !inDays(day, startDay, endDay) {
			continue
		}
		bars, err := a.ReadBars(aggKey, code, day)
		if err != nil {
			return nil, err
		}
		for _, b := range bars {
			if (startMS == 0 || b.OpenTime >= startMS) && (endMS == 0 || b.OpenTime < endMS) {
				res = append(res, b)
			}
		}
	}
	return res, nil
}

/*
BuildArchive aggregates the tick days of code in [startDay, endDay] into bars of expr
and writes them grouped by the day of their open time. Ticks flow through one updater
across days, so sessions crossing midnight are kept whole. Returns the number of bars.
*/
func (a *Archive) BuildArchive(expr kline.AggExpr, code core.Ticker, startDay, endDay int) (int, *errs.Error) {
	info, err := core.GetTicker(code)
	if err != nil {
		return 0, err
	}
	if err = expr.Validate(); err != nil {
		return 0, err
	}
	days, err := a.TickDays(code)
	if err != nil {
		return 0, err
	}
	days = slices.DeleteFunc(days, func(d int) bool { return !inDays(d, startDay, endDay) })
	buf := kline.NewBuffer(code, nil)
	up, err := kline.MakeUpdater(expr, code, buf)
	if err != nil {
		return 0, err
	}
	pBar := utils.NewPrgBar(len(days), "build "+string(code))
	defer pBar.Close()
	skipped := 0
	for _, day := range days {
		ticks, err := a.ReadTicks(code, day)
		if err != nil {
			return 0, err
		}
		for _, t := range ticks {
			if t.IsPreOpen() {
				skipped += 1
				continue
			}
			up.Update(t)
		}
		pBar.Add(1)
	}
	bars := buf.Snapshot()
	if !kline.IsIdentity(expr) {
		bars, _ = kline.Apply(expr, bars, info)
	}
	groups := make(map[int][]core.Bar)
	var keys []int
	for _, b := range bars {
		day := btime.DayKey(b.OpenTime)
		if _, ok := groups[day]; !ok {
			keys = append(keys, day)
		}
		groups[day] = append(groups[day], b)
	}
	for _, day := range keys {
		if err = a.WriteBars(expr.Key(), code, day, groups[day]); err != nil {
			return 0, err
		}
	}
	log.Info("bars built", zap.String("ticker", string(code)), zap.String("agg", expr.Key()),
		zap.Int("days", len(days)), zap.Int("bars", len(bars)), zap.Int("preopen", skipped))
	return len(bars), nil
}

/*
ReplayTicks feeds archived ticks of codes in [startDay, endDay] to sink, day by day,
merged by time across tickers. Stops when ctx is done or sink returns false.
*/
func (a *Archive) ReplayTicks(ctx context.Context, codes []core.Ticker, startDay, endDay int,
	sink func(t *core.Tick) bool) (int, *errs.Error) {
	daySet := make(map[int]bool)
	for _, code := range codes {
		days, err := a.TickDays(code)
		if err != nil {
			return 0, err
		}
		for _, d := range days {
			if inDays(d, startDay, endDay) {
				daySet[d] = true
			}
		}
	}
	days := make([]int, 0, len(daySet))
	for d := range daySet {
		days = append(days, d)
	}
	slices.Sort(days)
	num := 0
	for _, day := range days {
		var all []*core.Tick
		for _, code := range codes {
			ticks, err := a.ReadTicks(code, day)
			if err != nil {
				return num, err
			}
			all = append(all, ticks...)
		}
		slices.SortStableFunc(all, func(x, y *core.Tick) int {
			if x.Time < y.Time {
				return -1
			} else if x.Time > y.Time {
				return 1
			}
			return 0
		})
		for _, t := range all {
			if ctx.Err() != nil || !sink(t) {
				return num, nil
			}
			num += 1
		}
	}
	return num, nil
}

/*
ReplayTicksFrom same as ReplayTicks, starting at the tick day of startMS and skipping
ticks before startMS. Returns the number of ticks handed to sink.
*/
func (a *Archive) ReplayTicksFrom(ctx context.Context, codes []core.Ticker, startMS int64, endDay int,
	sink func(t *core.Tick) bool) (int, *errs.Error) {
	startDay, num := 0, 0
	if startMS > 0 {
		startDay = btime.DayKey(startMS)
	}
	_, err := a.ReplayTicks(ctx, codes, startDay, endDay, func(t *core.Tick) bool {
		if t.Time < startMS {
			return true
		}
		num += 1
		return sink(t)
	})
	return num, err
}
