package btime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	MSSec = int64(1000)
	MSMin = 60 * MSSec
	MSDay = 24 * 60 * MSMin
)

var (
	CurTimeMS    = int64(0) // clock used in backtest, 0 means wall clock
	UTCLocale, _ = time.LoadLocation("UTC")
)

func init() {
	// exchange local time is stored as if it was UTC
	time.Local = UTCLocale
}

/*
UTCStamp
13-digit millisecond timestamp
*/
func UTCStamp() int64 {
	return time.Now().UnixMilli()
}

/*
TimeMS
current 13-digit timestamp, honours CurTimeMS when set
*/
func TimeMS() int64 {
	if CurTimeMS > 0 {
		return CurTimeMS
	}
	return UTCStamp()
}

func MSToTime(timeMSecs int64) time.Time {
	return time.UnixMilli(timeMSecs).UTC()
}

/*
DayStart ms timestamp of 00:00 of the day containing ms
*/
func DayStart(ms int64) int64 {
	day := ms / MSDay * MSDay
	if ms < 0 && ms%MSDay != 0 {
		day -= MSDay
	}
	return day
}

/*
TimeOfDay milliseconds elapsed since 00:00 of the day containing ms
*/
func TimeOfDay(ms int64) int64 {
	return ms - DayStart(ms)
}

/*
DayKey calendar date as YYYYMMDD int
*/
func DayKey(ms int64) int {
	t := MSToTime(ms)
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

/*
DayKeyToMS start of the day for a YYYYMMDD key
*/
func DayKeyToMS(key int) int64 {
	t := time.Date(key/10000, time.Month(key/100%100), key%100, 0, 0, 0, 0, time.UTC)
	return t.UnixMilli()
}

/*
Clock builds a time of day in ms
*/
func Clock(hour, minute, sec int) int64 {
	return int64(hour)*60*MSMin + int64(minute)*MSMin + int64(sec)*MSSec
}

/*
ParseClock parse "15:04" or "15:04:05" into ms of day
*/
func ParseClock(text string) (int64, error) {
	parts := strings.Split(strings.TrimSpace(text), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock: %s", text)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid clock: %s", text)
		}
		nums[i] = v
	}
	if nums[0] > 24 || nums[1] >= 60 || nums[2] >= 60 {
		return 0, fmt.Errorf("invalid clock: %s", text)
	}
	return Clock(nums[0], nums[1], nums[2]), nil
}

func ClockStr(ms int64) string {
	secs := ms / MSSec
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}

/*
ParseTimeMS
convert a date string into 13-digit ms timestamp.
separators "-", "/", ".", " ", ":" are ignored, supported digit forms:
2006
200601
20060102
202601021504
20060102150405
10-digit seconds
13-digit milliseconds
*/
func ParseTimeMS(timeStr string) (int64, error) {
	text := strings.TrimSpace(timeStr)
	if text == "" {
		return 0, fmt.Errorf("empty date string")
	}
	var b strings.Builder
	for _, c := range text {
		if unicode.IsDigit(c) {
			b.WriteRune(c)
		} else if !strings.ContainsRune("-/. :", c) {
			return 0, fmt.Errorf("unSupport date fmt: %s", timeStr)
		}
	}
	digits := b.String()
	onlyDigits := len(digits) == len(text)
	switch len(digits) {
	case 4:
		return ParseTimeMSBy("2006", digits)
	case 6:
		return ParseTimeMSBy("200601", digits)
	case 8:
		return ParseTimeMSBy("20060102", digits)
	case 10:
		if !onlyDigits {
			return 0, fmt.Errorf("unSupport date fmt: %s", timeStr)
		}
		secs, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return 0, err
		}
		return secs * 1000, nil
	case 12:
		return ParseTimeMSBy("200601021504", digits)
	case 13:
		if !onlyDigits {
			return 0, fmt.Errorf("unSupport date fmt: %s", timeStr)
		}
		return strconv.ParseInt(digits, 10, 64)
	case 14:
		return ParseTimeMSBy("20060102150405", digits)
	}
	return 0, fmt.Errorf("unSupport date fmt: %s", timeStr)
}

func ParseTimeMSBy(layout, timeStr string) (int64, error) {
	t, err := time.ParseInLocation(layout, timeStr, UTCLocale)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

/*
ToDateStr
format a 13-digit timestamp
*/
func ToDateStr(timestamp int64, format string) string {
	if format == "" {
		format = "2006-01-02 15:04:05"
	}
	return MSToTime(timestamp).Format(format)
}
