package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/config"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

const (
	MsgTypeStatus    = "status"
	MsgTypeException = "exception"
	MsgTypeHolding   = "holding"
)

type Msg struct {
	Type    string `json:"type"`
	Bot     string `json:"bot"`
	Content string `json:"content"`
	Time    int64  `json:"time"`
}

type IWebHook interface {
	GetName() string
	SendMsg(msg *Msg) bool
	ConsumeForever()
	CleanUp()
}

/*
WebHook queues messages and sends them in batches from ConsumeForever. Concrete channels
set doSendMsgs, which returns how many leading messages were delivered.
*/
type WebHook struct {
	name       string
	chlType    string
	retryNum   int
	retryDelay time.Duration
	disable    bool
	lock       deadlock.RWMutex // guards disable and closing Queue
	MsgTypes   map[string]bool // empty accepts every type
	Keywords   []string
	Queue      chan *Msg
	wg         sync.WaitGroup
	doSendMsgs func(msgs []*Msg) int
}

func NewWebHook(name string, item *config.RPCChannel) *WebHook {
	res := &WebHook{
		name:       name,
		chlType:    item.Type,
		retryNum:   item.RetryNum,
		retryDelay: time.Duration(item.RetryDelay) * time.Millisecond,
		MsgTypes:   make(map[string]bool),
		Keywords:   item.Keywords,
		Queue:      make(chan *Msg, 64),
		disable:    item.Disable,
	}
	for _, val := range item.MsgTypes {
		res.MsgTypes[val] = true
	}
	return res
}

func (h *WebHook) GetName() string {
	return fmt.Sprintf("%s:%s", h.chlType, h.name)
}

func (h *WebHook) SendMsg(msg *Msg) bool {
	h.lock.RLock()
	defer h.lock.RUnlock()
	if h.disable {
		return false
	}
	if len(h.MsgTypes) > 0 && !h.MsgTypes[msg.Type] {
		return false
	}
	if len(h.Keywords) > 0 {
		match := false
		for _, word := range h.Keywords {
			if strings.Contains(msg.Content, word) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	h.wg.Add(1)
	h.Queue <- msg
	return true
}

// CleanUp stops accepting messages and waits until the queued ones are handled
func (h *WebHook) CleanUp() {
	h.lock.Lock()
	if h.disable {
		h.lock.Unlock()
		return
	}
	h.disable = true
	close(h.Queue)
	h.lock.Unlock()
	h.wg.Wait()
}

func (h *WebHook) ConsumeForever() {
	log.Debug("start consume rpc for", zap.String("name", h.GetName()))
	for first := range h.Queue {
		var cache = []*Msg{first}
	readCache:
		for {
			select {
			case item, ok := <-h.Queue:
				if !ok {
					break readCache
				}
				cache = append(cache, item)
			default:
				break readCache
			}
		}
		h.doSendRetry(cache)
	}
}

func (h *WebHook) doSendRetry(msgList []*Msg) {
	totalNum := len(msgList)
	for attempts := 0; len(msgList) > 0 && attempts <= h.retryNum; attempts++ {
		if attempts > 0 {
			time.Sleep(h.retryDelay)
		}
		sent := h.doSendMsgs(msgList)
		msgList = msgList[sent:]
	}
	if len(msgList) > 0 {
		log.Warn("rpc msgs dropped", zap.String("name", h.GetName()), zap.Int("num", len(msgList)))
	}
	h.wg.Add(-totalNum)
}

/*
JsonHook posts every message as a json object to URL
*/
type JsonHook struct {
	*WebHook
	url    string
	client *http.Client
}

func NewJsonHook(name string, item *config.RPCChannel) *JsonHook {
	res := &JsonHook{
		WebHook: NewWebHook(name, item),
		url:     item.URL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	res.doSendMsgs = res.post
	return res
}

func (h *JsonHook) post(msgs []*Msg) int {
	for i, msg := range msgs {
		body, err := json.Marshal(msg)
		if err != nil {
			log.Warn("marshal rpc msg fail", zap.Error(err))
			continue
		}
		rsp, err := h.client.Post(h.url, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Warn("post rpc msg fail", zap.String("name", h.GetName()), zap.Error(err))
			return i
		}
		_ = rsp.Body.Close()
		if rsp.StatusCode >= 300 {
			log.Warn("post rpc msg fail", zap.String("name", h.GetName()), zap.Int("status", rsp.StatusCode))
			return i
		}
	}
	return len(msgs)
}
