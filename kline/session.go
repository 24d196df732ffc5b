package kline

import (
	"github.com/banbox/banfut/btime"
)

type phase int

const (
	phaseMerge     phase = iota
	phaseFinishIn        // sample reaches the closing second, merge then finish
	phaseFinishOut       // sample is past the session, finish without it
)

/*
sessionClock tracks the session a bar is being built in.
shared by tick updaters and the session layout re-aggregation.
*/
type sessionClock struct {
	layout     btime.Layout
	idx        int
	anchor     int64
	openAt     int64
	endAt      int64
	lastIdx    int
	lastAnchor int64
}

func newSessionClock(layout btime.Layout) *sessionClock {
	return &sessionClock{layout: layout, idx: -1, lastIdx: -1}
}

/*
enter opens the first session containing ms, a session that was just closed is not
opened again
*/
func (c *sessionClock) enter(ms int64) bool {
	idx, anchor, ok := c.layout.Locate(ms, func(i int, a int64) bool {
		return i == c.lastIdx && a == c.lastAnchor
	})
	if !ok {
		return false
	}
	c.idx, c.anchor = idx, anchor
	c.openAt, c.endAt = c.layout[idx].Span(anchor)
	return true
}

func (c *sessionClock) check(openMs, closeMs int64) phase {
	if openMs >= c.endAt+btime.MSSec {
		return phaseFinishOut
	}
	if closeMs >= c.endAt {
		return phaseFinishIn
	}
	return phaseMerge
}

func (c *sessionClock) close() {
	c.lastIdx, c.lastAnchor = c.idx, c.anchor
	c.idx = -1
}
