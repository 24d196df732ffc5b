package core

import (
	"context"
	"time"
)

func SetRunMode(mode string) {
	RunMode = mode
	LiveMode = RunMode == RunModeLive
	BackTestMode = RunMode == RunModeBackTest
}

/*
Sleep waits for d, returns false if the process is stopping
*/
func Sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-Ctx.Done():
		return false
	}
}

/*
SleepCtx same as Sleep, but bound to the given context
*/
func SleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func RunExitCalls() {
	for _, method := range ExitCalls {
		method()
	}
	ExitCalls = nil
}
