package asap

import (
	"fmt"
	"sync"

	deliveryif "github.com/dep2p/go-asap/pkg/interfaces/delivery"
)

// Dispatcher 入站分发器
//
// 持有一个可替换的处理器；处理器的错误和 panic 都被转换为返回值。
type Dispatcher struct {
	mu      sync.RWMutex
	handler deliveryif.Handler
}

// NewDispatcher 创建分发器，handler 为 nil 时使用默认处理器
func NewDispatcher(handler deliveryif.Handler) *Dispatcher {
	d := &Dispatcher{}
	d.Set(handler)
	return d
}

// Set 替换处理器
func (d *Dispatcher) Set(handler deliveryif.Handler) {
	if handler == nil {
		handler = deliveryif.HandlerFunc(unhandled)
	}
	d.mu.Lock()
	d.handler = handler
	d.mu.Unlock()
}

// Dispatch 调用当前处理器
func (d *Dispatcher) Dispatch(messageKey string, payload any) (err error) {
	d.mu.RLock()
	h := d.handler
	d.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h.HandleMessage(messageKey, payload)
}

// unhandled 默认处理器：只记录日志
func unhandled(messageKey string, payload any) error {
	log.Info("未处理的消息", "key", messageKey, "payload", payload)
	return nil
}
