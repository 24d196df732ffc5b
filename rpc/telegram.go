package rpc

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/config"
	"github.com/banbox/banfut/core"
	"github.com/go-telegram/bot"
	"go.uber.org/zap"
)

const telegramMaxLen = 4096

// Telegram sends the messages of one batch as a single chat message
type Telegram struct {
	*WebHook
	chatId int64
	bot    *bot.Bot
	ctx    context.Context
	cancel context.CancelFunc
}

func NewTelegram(name string, item *config.RPCChannel) (*Telegram, *errs.Error) {
	if item.Token == "" || item.ChatID == 0 {
		return nil, errs.NewMsg(core.ErrBadConfig, "%s: `token` and `chat_id` are required", name)
	}
	client := &http.Client{Timeout: 30 * time.Second}
	botInstance, err_ := bot.New(item.Token, bot.WithHTTPClient(30*time.Second, client))
	if err_ != nil {
		return nil, errs.NewFull(core.ErrBadConfig, err_, "%s: create bot fail", name)
	}
	ctx, cancel := context.WithCancel(context.Background())
	res := &Telegram{
		WebHook: NewWebHook(name, item),
		chatId:  item.ChatID,
		bot:     botInstance,
		ctx:     ctx,
		cancel:  cancel,
	}
	res.doSendMsgs = res.send
	return res, nil
}

func (t *Telegram) send(msgs []*Msg) int {
	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[" + msg.Type + "] " + msg.Bot + "\n" + msg.Content)
	}
	text := b.String()
	if len(text) > telegramMaxLen {
		text = text[:telegramMaxLen-3] + "..."
	}
	_, err := t.bot.SendMessage(t.ctx, &bot.SendMessageParams{
		ChatID: t.chatId,
		Text:   text,
	})
	if err != nil {
		log.Warn("telegram send msg fail", zap.Int64("chat_id", t.chatId), zap.Error(err))
		return 0
	}
	return len(msgs)
}

func (t *Telegram) CleanUp() {
	t.WebHook.CleanUp()
	t.cancel()
}
