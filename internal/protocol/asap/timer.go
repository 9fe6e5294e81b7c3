package asap

import (
	"time"

	"github.com/benbjohnson/clock"
)

// retryTimer 唯一的重试定时器句柄
//
// 每次 cancel 都会推进代数；已触发但在取消之后才拿到锁的回调
// 通过代数比对识别为过期回调并直接返回。只能在 Service.mu 下访问。
type retryTimer struct {
	timer *clock.Timer
	gen   uint64
}

// cancel 取消当前定时器（如有）
func (t *retryTimer) cancel() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

// schedule 先取消旧定时器，再在 d 之后以当前代数调用 fn
func (t *retryTimer) schedule(clk clock.Clock, d time.Duration, fn func(gen uint64)) {
	t.cancel()
	gen := t.gen
	t.timer = clk.AfterFunc(d, func() { fn(gen) })
}

// fire 回调进入时调用：代数匹配则消费定时器并返回 true
func (t *retryTimer) fire(gen uint64) bool {
	if t.timer == nil || t.gen != gen {
		return false
	}
	t.timer = nil
	return true
}

// pending 是否有未触发的定时器
func (t *retryTimer) pending() bool {
	return t.timer != nil
}
