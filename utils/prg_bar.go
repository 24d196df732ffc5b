package utils

import (
	"github.com/banbox/banexg/log"
	"github.com/sasha-s/go-deadlock"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

type PrgCB = func(done int, total int)

/*
PrgBar console progress of a long job, safe for concurrent Add
*/
type PrgBar struct {
	bar      *progressbar.ProgressBar
	m        deadlock.Mutex
	title    string
	DoneNum  int
	TotalNum int
	PrgCbs   []PrgCB
}

func NewPrgBar(totalNum int, title string) *PrgBar {
	var pBar *progressbar.ProgressBar
	if totalNum > 0 {
		pBar = progressbar.Default(int64(totalNum), title)
	}
	return &PrgBar{
		bar:      pBar,
		TotalNum: totalNum,
		title:    title,
	}
}

func (p *PrgBar) Add(num int) {
	p.m.Lock()
	defer p.m.Unlock()
	if p.bar == nil {
		return
	}
	p.DoneNum += num
	if p.DoneNum > p.TotalNum {
		log.Warn("pBar progress exceed", zap.String("title", p.title), zap.Int("max", p.TotalNum),
			zap.Int("cur", p.DoneNum))
		return
	}
	for _, cb := range p.PrgCbs {
		cb(p.DoneNum, p.TotalNum)
	}
	if err_ := p.bar.Add(num); err_ != nil {
		log.Error("add pBar fail", zap.String("title", p.title), zap.Error(err_))
	}
}

func (p *PrgBar) Close() {
	p.m.Lock()
	defer p.m.Unlock()
	if p.bar == nil || p.TotalNum == 0 {
		return
	}
	for _, cb := range p.PrgCbs {
		cb(p.TotalNum, p.TotalNum)
	}
	if p.DoneNum < p.TotalNum {
		_ = p.bar.Add(p.TotalNum - p.DoneNum)
		p.DoneNum = p.TotalNum
	}
	if err := p.bar.Close(); err != nil {
		log.Error("close progressBar error", zap.Error(err))
	}
	p.bar = nil
}
