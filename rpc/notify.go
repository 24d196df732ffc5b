package rpc

import (
	"slices"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/config"
	"github.com/banbox/banfut/core"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

var (
	channels  = make([]IWebHook, 0, 2)
	lockChans deadlock.RWMutex
)

// InitRPC starts one consumer per enabled channel, in name order
func InitRPC(items map[string]*config.RPCChannel) *errs.Error {
	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	slices.Sort(names)
	var res []IWebHook
	for _, name := range names {
		item := items[name]
		if item == nil || item.Disable {
			continue
		}
		var channel IWebHook
		switch item.Type {
		case "", "webhook":
			if item.URL == "" {
				return errs.NewMsg(core.ErrBadConfig, "rpc channel %s: `url` is required", name)
			}
			channel = NewJsonHook(name, item)
		case "telegram":
			tg, err := NewTelegram(name, item)
			if err != nil {
				return err
			}
			channel = tg
		default:
			return errs.NewMsg(core.ErrBadConfig, "RPCChannel not support: %v", item.Type)
		}
		go channel.ConsumeForever()
		res = append(res, channel)
	}
	lockChans.Lock()
	channels = append(channels, res...)
	lockChans.Unlock()
	if len(res) == 0 {
		log.Info("no channels, skip send rpc msg")
	}
	return nil
}

// SendMsg forwards content to every channel accepting msgType, no-op without channels
func SendMsg(msgType, content string) {
	lockChans.RLock()
	defer lockChans.RUnlock()
	if len(channels) == 0 {
		return
	}
	msg := &Msg{Type: msgType, Bot: core.BotName, Content: content, Time: btime.TimeMS()}
	for _, chl := range channels {
		if !chl.SendMsg(msg) {
			log.Debug("rpc msg skipped", zap.String("name", chl.GetName()), zap.String("type", msgType))
		}
	}
}

// CleanUp flushes and closes every channel
func CleanUp() {
	lockChans.Lock()
	items := channels
	channels = make([]IWebHook, 0, 2)
	lockChans.Unlock()
	for _, chl := range items {
		chl.CleanUp()
	}
}
