package btime

import (
	"fmt"
	"strings"

	"github.com/banbox/banexg/errs"
)

type IntervalKind int

const (
	KindTime    IntervalKind = iota // intraday window on a single calendar date
	KindDayJump                     // overnight window closing NDays after it opened
)

/*
Interval one trading window of a day. Start and End are ms since 00:00, End is the
opening of the last second that still belongs to the window (09:04:59 for a 5 minute
bar started at 09:00).
*/
type Interval struct {
	Kind  IntervalKind
	Start int64
	End   int64
	NDays int
}

// Layout ordered intervals of one trading day
type Layout []Interval

func Time(start, end int64) Interval {
	return Interval{Kind: KindTime, Start: start, End: end}
}

func DayJump(start int64, nDays int, end int64) Interval {
	return Interval{Kind: KindDayJump, Start: start, End: end, NDays: nDays}
}

func (iv Interval) String() string {
	if iv.Kind == KindDayJump {
		return fmt.Sprintf("%s+%dd%s", ClockStr(iv.Start), iv.NDays, ClockStr(iv.End))
	}
	return fmt.Sprintf("%s-%s", ClockStr(iv.Start), ClockStr(iv.End))
}

func (iv Interval) Validate() *errs.Error {
	if iv.Start < 0 || iv.Start >= MSDay || iv.End < 0 || iv.End >= MSDay {
		return errs.NewMsg(errs.CodeParamInvalid, "interval %s out of day range", iv)
	}
	switch iv.Kind {
	case KindTime:
		if iv.End < iv.Start {
			return errs.NewMsg(errs.CodeParamInvalid, "interval %s ends before start", iv)
		}
	case KindDayJump:
		if iv.NDays < 1 {
			return errs.NewMsg(errs.CodeParamInvalid, "day jump %s must span at least one day", iv)
		}
	default:
		return errs.NewMsg(errs.CodeParamInvalid, "unknown interval kind %d", iv.Kind)
	}
	return nil
}

/*
Span absolute open and close ms of the session opened on the day starting at anchor
*/
func (iv Interval) Span(anchor int64) (int64, int64) {
	end := anchor + iv.End
	if iv.Kind == KindDayJump {
		end += int64(iv.NDays) * MSDay
	}
	return anchor + iv.Start, end
}

// Length total ms from open to the start of the closing second
func (iv Interval) Length() int64 {
	open, end := iv.Span(0)
	return end - open
}

/*
Locate returns the anchor day of the session containing ms.
*/
func (iv Interval) Locate(ms int64) (int64, bool) {
	day := DayStart(ms)
	back := 0
	if iv.Kind == KindDayJump {
		back = iv.NDays
	}
	for k := 0; k <= back; k++ {
		anchor := day - int64(k)*MSDay
		open, end := iv.Span(anchor)
		if ms >= open && ms < end+MSSec {
			return anchor, true
		}
	}
	return 0, false
}

func (l Layout) Validate() *errs.Error {
	if len(l) == 0 {
		return errs.NewMsg(errs.CodeParamInvalid, "empty session layout")
	}
	for _, iv := range l {
		if err := iv.Validate(); err != nil {
			return err
		}
	}
	return nil
}

/*
Locate first interval containing ms. skip is called for each candidate and can reject
a session that was already consumed.
*/
func (l Layout) Locate(ms int64, skip func(idx int, anchor int64) bool) (int, int64, bool) {
	for i, iv := range l {
		anchor, ok := iv.Locate(ms)
		if !ok || (skip != nil && skip(i, anchor)) {
			continue
		}
		return i, anchor, true
	}
	return -1, 0, false
}

func (l Layout) String() string {
	parts := make([]string, 0, len(l))
	for _, iv := range l {
		parts = append(parts, iv.String())
	}
	return strings.Join(parts, ",")
}

/*
SplitSessions cut every interval into consecutive windows of step ms.
the last window of an interval is truncated at the interval end.
windows that cross midnight become DayJump intervals.
*/
func SplitSessions(sessions Layout, step int64) Layout {
	if step < MSSec {
		panic(fmt.Sprintf("split step too small: %d", step))
	}
	var res Layout
	for _, iv := range sessions {
		open, end := iv.Span(0)
		for s := open; s <= end; s += step {
			e := min(s+step-MSSec, end)
			startDay, endDay := DayStart(s), DayStart(e)
			if startDay == endDay {
				res = append(res, Time(s-startDay, e-endDay))
			} else {
				res = append(res, DayJump(s-startDay, int((endDay-startDay)/MSDay), e-endDay))
			}
		}
	}
	return res
}

/*
ParseLayout parse text like "09:00-10:15,10:30-11:30,21:00-02:30".
windows whose end clock is before the start close on the next day.
the end clock is exclusive, "09:00-10:15" closes with the 10:14:59 second.
*/
func ParseLayout(text string) (Layout, *errs.Error) {
	var res Layout
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		arr := strings.Split(part, "-")
		if len(arr) != 2 {
			return nil, errs.NewMsg(errs.CodeParamInvalid, "invalid session: %s", part)
		}
		start, err := ParseClock(arr[0])
		if err != nil {
			return nil, errs.New(errs.CodeParamInvalid, err)
		}
		stop, err := ParseClock(arr[1])
		if err != nil {
			return nil, errs.New(errs.CodeParamInvalid, err)
		}
		end := stop - MSSec
		var iv Interval
		if end < 0 {
			end += MSDay
		}
		if stop > start {
			iv = Time(start, end%MSDay)
		} else if stop == 0 {
			iv = Time(start, end)
		} else {
			iv = DayJump(start, 1, end)
		}
		if err2 := iv.Validate(); err2 != nil {
			return nil, err2
		}
		res = append(res, iv)
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

func MustParseLayout(text string) Layout {
	res, err := ParseLayout(text)
	if err != nil {
		panic(err.Short())
	}
	return res
}
