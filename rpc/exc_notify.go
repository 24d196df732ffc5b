package rpc

import (
	"fmt"
	"time"

	"github.com/banbox/banfut/btime"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	excIntv  = int64(60000) // min interval between two sends of the same key, ms
	excDelay = int64(1000)  // first send of a key waits this long to batch repeats, ms
	excItems = make(map[string]*excItem)
	lockExc  deadlock.Mutex
)

type excItem struct {
	num     int
	text    string
	pending bool
	lastMS  int64
}

/*
ExcNotify is a zap core forwarding error logs as exception messages. Repeats from the
same caller are merged and sent at most once per minute with their count.
*/
type ExcNotify struct {
	zapcore.LevelEnabler
	enc zapcore.Encoder
}

func NewExcNotify() *ExcNotify {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04")
	cfg.CallerKey = ""
	cfg.StacktraceKey = ""
	return &ExcNotify{
		LevelEnabler: zapcore.ErrorLevel,
		enc:          zapcore.NewConsoleEncoder(cfg),
	}
}

func (h *ExcNotify) With(fields []zapcore.Field) zapcore.Core {
	enc := h.enc.Clone()
	for _, f := range fields {
		f.AddTo(enc)
	}
	return &ExcNotify{LevelEnabler: h.LevelEnabler, enc: enc}
}

func (h *ExcNotify) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if h.Enabled(ent.Level) {
		return ce.AddCore(ent, h)
	}
	return ce
}

func (h *ExcNotify) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := h.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	TrySendExc(ent.Caller.TrimmedPath(), buf.String())
	buf.Free()
	return nil
}

func (h *ExcNotify) Sync() error {
	return nil
}

// TrySendExc queues content under key; the first one waits excDelay, later ones the rest of excIntv
func TrySendExc(key string, content string) {
	lockExc.Lock()
	defer lockExc.Unlock()
	it, ok := excItems[key]
	if !ok {
		it = &excItem{}
		excItems[key] = it
	}
	it.num += 1
	it.text = content
	if it.pending {
		return
	}
	it.pending = true
	wait := excDelay
	if next := it.lastMS + excIntv - btime.UTCStamp(); next > wait {
		wait = next
	}
	time.AfterFunc(time.Duration(wait)*time.Millisecond, func() {
		flushExc(key)
	})
}

func flushExc(key string) {
	lockExc.Lock()
	it := excItems[key]
	num, text := it.num, it.text
	it.num = 0
	it.pending = false
	it.lastMS = btime.UTCStamp()
	lockExc.Unlock()
	if num == 0 {
		return
	}
	SendMsg(MsgTypeException, fmt.Sprintf("num:%d, %s\n%s", num, key, text))
}
