package core

import (
	"bytes"
	"github.com/banbox/banexg/errs"
	"github.com/banbox/banexg/log"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"slices"
)

/*
RegTicker add or replace static metadata of a ticker
*/
func RegTicker(info *TickerInfo) {
	lockTickers.Lock()
	tickerInfos[info.Code] = info
	lockTickers.Unlock()
}

/*
GetTicker returns metadata of a registered ticker
*/
func GetTicker(code Ticker) (*TickerInfo, *errs.Error) {
	lockTickers.RLock()
	info, ok := tickerInfos[code]
	lockTickers.RUnlock()
	if !ok {
		return nil, errs.NewMsg(ErrDiNotFound, "ticker not registered: %s", code)
	}
	return info, nil
}

func MustGetTicker(code Ticker) *TickerInfo {
	info, err := GetTicker(code)
	if err != nil {
		panic(err)
	}
	return info
}

func AllTickers() []Ticker {
	lockTickers.RLock()
	res := make([]Ticker, 0, len(tickerInfos))
	for code := range tickerInfos {
		res = append(res, code)
	}
	lockTickers.RUnlock()
	slices.Sort(res)
	return res
}

func MarshalYaml(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	err := enc.Encode(v)
	_ = enc.Close()
	return buf.Bytes(), err
}

/*
LogErr log a non-nil error with the ticker tag, returns whether err is nil
*/
func LogErr(msg string, code Ticker, err *errs.Error) bool {
	if err == nil {
		return true
	}
	log.Error(msg, zap.String("ticker", string(code)), zap.String("code", ErrName(err.Code)),
		zap.Error(err))
	return false
}
