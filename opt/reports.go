package opt

import (
	"bytes"
	"path/filepath"
	"strconv"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/utils"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Report struct {
	Code          core.Ticker
	PtmKey        string
	StartMS       int64
	EndMS         int64
	BarNum        int
	Trades        int
	Days          int
	WinDays       int
	TotPnl        float64
	TotProfit     float64
	TotCommission float64
	TotSlippage   float64
	TotHold       float64
	MaxMoneyHold  float64
	MaxDrawDown   float64
	Sharpe        float64 // daily pnl, annualised over 252 days
}

/*
Summarize totals of a backtest. Sums go through decimal so long runs add up the same
regardless of order.
*/
func Summarize(res *Result) *Report {
	r := &Report{Code: res.Code, PtmKey: res.PtmKey, BarNum: len(res.Bars), Trades: res.Trades()}
	if len(res.Bars) > 0 {
		r.StartMS = res.Bars[0].OpenTime
		r.EndMS = res.Bars[len(res.Bars)-1].CloseTime
	}
	var pnl, profit, comm, slip, hold decimal.Decimal
	for _, row := range res.Pnl {
		pnl = pnl.Add(decimal.NewFromFloat(row.Pnl))
		profit = profit.Add(decimal.NewFromFloat(row.Profit))
		comm = comm.Add(decimal.NewFromFloat(row.Commission))
		slip = slip.Add(decimal.NewFromFloat(row.Slippage))
		hold = hold.Add(decimal.NewFromFloat(row.Hold))
	}
	r.TotPnl = pnl.InexactFloat64()
	r.TotProfit = profit.InexactFloat64()
	r.TotCommission = comm.InexactFloat64()
	r.TotSlippage = slip.InexactFloat64()
	r.TotHold = hold.InexactFloat64()
	days := res.Daily()
	r.Days = len(days)
	dayPnls := make([]float64, len(days))
	for i, d := range days {
		dayPnls[i] = d.Pnl
		if d.Pnl > 0 {
			r.WinDays += 1
		}
		r.MaxMoneyHold = max(r.MaxMoneyHold, d.MoneyHold)
	}
	r.MaxDrawDown = utils.MaxDrawDown(dayPnls)
	r.Sharpe = utils.SharpeRatio(dayPnls, 252)
	return r
}

func fmtFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

/*
TextReports summary table, one row per report
*/
func TextReports(reports []*Report) string {
	var b bytes.Buffer
	table := tablewriter.NewWriter(&b)
	table.Header("Ticker", "Directive", "From", "To", "Bars", "Trades", "Win Days", "Pnl",
		"Commission", "Slippage", "Max DrawDown", "Sharpe")
	for _, r := range reports {
		err_ := table.Append([]string{
			string(r.Code),
			r.PtmKey,
			btime.ToDateStr(r.StartMS, core.DayFmt),
			btime.ToDateStr(r.EndMS, core.DayFmt),
			strconv.Itoa(r.BarNum),
			strconv.Itoa(r.Trades),
			strconv.Itoa(r.WinDays) + "/" + strconv.Itoa(r.Days),
			fmtFloat(r.TotPnl, 0),
			fmtFloat(r.TotCommission, 0),
			fmtFloat(r.TotSlippage, 0),
			fmtFloat(r.MaxDrawDown, 0),
			fmtFloat(r.Sharpe, 2),
		})
		if err_ != nil {
			log.Warn("append report row fail", zap.String("ticker", string(r.Code)), zap.Error(err_))
		}
	}
	if err_ := table.Render(); err_ != nil {
		log.Warn("render report fail", zap.Error(err_))
	}
	return b.String()
}

/*
DumpPnl writes per-bar and daily pnl rows of res as csv files under outDir
*/
func DumpPnl(res *Result, outDir string) *errs.Error {
	heads := []string{"time", "pnl", "profit", "money_hold", "money_trade", "cost", "commission",
		"slippage", "hold"}
	toRows := func(items []PnlRow) [][]string {
		rows := make([][]string, 0, len(items)+1)
		rows = append(rows, heads)
		for _, p := range items {
			rows = append(rows, []string{btime.ToDateStr(p.Time, ""), fmtFloat(p.Pnl, 2),
				fmtFloat(p.Profit, 2), fmtFloat(p.MoneyHold, 2), fmtFloat(p.MoneyTrade, 2),
				fmtFloat(p.Cost, 2), fmtFloat(p.Commission, 2), fmtFloat(p.Slippage, 2),
				fmtFloat(p.Hold, 2)})
		}
		return rows
	}
	name := string(res.Code)
	err := utils.WriteCsvFile(filepath.Join(outDir, name+"_pnl.csv"), toRows(res.Pnl), false)
	if err != nil {
		return err
	}
	return utils.WriteCsvFile(filepath.Join(outDir, name+"_daily.csv"), toRows(res.Daily()), false)
}
