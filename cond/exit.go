package cond

import (
	"fmt"

	"github.com/banbox/banfut/btime"
)

// PriceStandby price moved Percent against Dir since the open bar
type PriceStandby struct {
	Dir     Dir
	Percent float64
}

func (c *PriceStandby) Key() string {
	return fmt.Sprintf("standby(%s,%s)", c.Dir, fmtNum(c.Percent))
}

func (c *PriceStandby) Compile(env *Env) Pred {
	return func(i, o int) bool {
		entry, price := env.Close(o), env.Close(i)
		if c.Dir == Long {
			return price <= entry*(1-c.Percent)
		}
		return price >= entry*(1+c.Percent)
	}
}

type ThreType int

const (
	Percent ThreType = iota
	Absolute
)

// StopCond stop-loss: exit once price moved Val against the open bar close, as a fraction (Percent) or price distance (Absolute)
type StopCond struct {
	Dir  Dir
	Kind ThreType
	Val  float64
}

func stopKey(name string, dir Dir, kind ThreType, val float64) string {
	text := "pct"
	if kind == Absolute {
		text = "abs"
	}
	return fmt.Sprintf("%s(%s,%s,%s)", name, dir, text, fmtNum(val))
}

// hitStop price at or beyond the stop measured from ref
func hitStop(dir Dir, kind ThreType, val, ref, price float64) bool {
	var stop float64
	if kind == Percent {
		stop = ref * (1 - float64(dir)*val)
	} else {
		stop = ref - float64(dir)*val
	}
	if dir == Long {
		return price <= stop
	}
	return price >= stop
}

func (c *StopCond) Key() string {
	return stopKey("stop", c.Dir, c.Kind, c.Val)
}

func (c *StopCond) Compile(env *Env) Pred {
	return func(i, o int) bool {
		return hitStop(c.Dir, c.Kind, c.Val, env.Close(o), env.Close(i))
	}
}

/*
TrailStop trailing stop: exit once price retraces Val from the best close since the open
bar
*/
type TrailStop struct {
	Dir  Dir
	Kind ThreType
	Val  float64
}

func (c *TrailStop) Key() string {
	return stopKey("trail", c.Dir, c.Kind, c.Val)
}

func (c *TrailStop) Compile(env *Env) Pred {
	// best close since the open bar, extended while the same position is evaluated forward
	lastO, lastI := -1, -1
	best := 0.0
	better := func(a, b float64) bool {
		if c.Dir == Long {
			return a > b
		}
		return a < b
	}
	return func(i, o int) bool {
		if o != lastO || i < lastI || lastI < o {
			lastO, lastI = o, o
			best = env.Close(o)
		}
		for k := lastI + 1; k <= i; k++ {
			if v := env.Close(k); better(v, best) {
				best = v
			}
		}
		lastI = max(lastI, i)
		return hitStop(c.Dir, c.Kind, c.Val, best, env.Close(i))
	}
}

// ExitByTickSize price retraced Ticks ticks against the open bar close
type ExitByTickSize struct {
	Dir   Dir
	Ticks float64
}

func (c *ExitByTickSize) Key() string {
	return fmt.Sprintf("ticks(%s,%s)", c.Dir, fmtNum(c.Ticks))
}

func (c *ExitByTickSize) Compile(env *Env) Pred {
	dist := c.Ticks
	if env.Info != nil {
		dist *= env.Info.TickSize
	}
	return func(i, o int) bool {
		entry, price := env.Close(o), env.Close(i)
		if c.Dir == Long {
			return price <= entry-dist
		}
		return price >= entry+dist
	}
}

/*
ExitByLastTime true when the bar closes within Before ms ahead of a session end, or up
to After ms past it
*/
type ExitByLastTime struct {
	Before int64
	After  int64
}

func (c *ExitByLastTime) Key() string {
	return fmt.Sprintf("lasttime(%d,%d)", c.Before, c.After)
}

func (c *ExitByLastTime) Compile(env *Env) Pred {
	var ends []int64
	if env.Info != nil {
		for _, iv := range env.Info.Sessions {
			ends = append(ends, (iv.End+btime.MSSec)%btime.MSDay)
		}
	}
	return func(i, _ int) bool {
		bars := env.Bars()
		if i < 0 || i >= len(bars) {
			return false
		}
		tod := btime.TimeOfDay(bars[i].CloseTime)
		for _, end := range ends {
			diff := tod - end
			// wrap around midnight
			if diff > btime.MSDay/2 {
				diff -= btime.MSDay
			} else if diff < -btime.MSDay/2 {
				diff += btime.MSDay
			}
			if diff >= -c.Before && diff <= c.After {
				return true
			}
		}
		return false
	}
}
