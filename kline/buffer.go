package kline

import (
	"github.com/banbox/banexg/errs"
	"github.com/banbox/banfut/core"
	"github.com/sasha-s/go-deadlock"
)

/*
Buffer append-only bars of one instrument.
one goroutine appends, any number read. Bars are never rewritten, so a snapshot taken
under the read lock stays valid after later appends.
*/
type Buffer struct {
	Code core.Ticker
	bars []core.Bar
	lock deadlock.RWMutex
}

func NewBuffer(code core.Ticker, bars []core.Bar) *Buffer {
	res := &Buffer{Code: code}
	if len(bars) > 0 {
		res.bars = make([]core.Bar, len(bars), len(bars)+64)
		copy(res.bars, bars)
	}
	return res
}

func (b *Buffer) Append(bar core.Bar) *errs.Error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if n := len(b.bars); n > 0 && b.bars[n-1].OpenTime >= bar.OpenTime {
		return errs.NewMsg(core.ErrInvalidBars, "%s bar %v not after %v", b.Code, bar.OpenTime,
			b.bars[n-1].OpenTime)
	}
	b.bars = append(b.bars, bar)
	return nil
}

func (b *Buffer) Len() int {
	b.lock.RLock()
	n := len(b.bars)
	b.lock.RUnlock()
	return n
}

/*
Snapshot bars appended so far. The result must not be modified.
*/
func (b *Buffer) Snapshot() []core.Bar {
	b.lock.RLock()
	n := len(b.bars)
	res := b.bars[:n:n]
	b.lock.RUnlock()
	return res
}

func (b *Buffer) Last() (core.Bar, bool) {
	b.lock.RLock()
	defer b.lock.RUnlock()
	if len(b.bars) == 0 {
		return core.Bar{}, false
	}
	return b.bars[len(b.bars)-1], true
}
