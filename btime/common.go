package btime

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

/*
Backoff tracks consecutive failures per key.
every failure waits a fixed interval; once a key fails Escalate times in a row the
caller is told to escalate (log at error level, notify, etc.)
*/
type Backoff struct {
	Wait     time.Duration
	Escalate int
	fails    map[string]int
	lock     deadlock.Mutex
}

func NewBackoff(wait time.Duration, escalate int) *Backoff {
	if wait <= 0 {
		wait = time.Second
	}
	if escalate <= 0 {
		escalate = 5
	}
	return &Backoff{
		Wait:     wait,
		Escalate: escalate,
		fails:    make(map[string]int),
	}
}

// Fail records a failure, returns the wait before the next attempt and whether the streak reached Escalate
func (b *Backoff) Fail(key string) (time.Duration, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	num := b.fails[key] + 1
	b.fails[key] = num
	return b.Wait, num%b.Escalate == 0
}

func (b *Backoff) Fails(key string) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.fails[key]
}

func (b *Backoff) Reset(key string) {
	b.lock.Lock()
	delete(b.fails, key)
	b.lock.Unlock()
}
