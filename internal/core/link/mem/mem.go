// Package mem 实现进程内链路对
//
// NewPair 返回两端初始均为关闭状态的链路，测试通过 Open / Drop 控制就绪状态，
// 通过 FailSends 注入发送失败。
package mem

import (
	"context"
	"sync"

	linkif "github.com/dep2p/go-asap/pkg/interfaces/link"
)

// DefaultEventBuffer 默认事件缓冲大小
const DefaultEventBuffer = 128

// Link 进程内链路的一端
type Link struct {
	mu      sync.Mutex
	peer    *Link
	open    bool
	shut    bool
	sendErr error

	events chan linkif.Event
	done   chan struct{}
}

// 确保 Link 实现了 linkif.Link 接口
var _ linkif.Link = (*Link)(nil)

// NewPair 创建一对互联的链路
func NewPair() (*Link, *Link) {
	a := newLink()
	b := newLink()
	a.peer, b.peer = b, a
	return a, b
}

func newLink() *Link {
	return &Link{
		events: make(chan linkif.Event, DefaultEventBuffer),
		done:   make(chan struct{}),
	}
}

// Open 打开两端，并在两端各发出 EventOpened
func (l *Link) Open() {
	for _, end := range []*Link{l, l.peer} {
		if end.setOpen(true) {
			end.emit(linkif.Event{Type: linkif.EventOpened})
		}
	}
}

// Drop 断开两端，并在两端各发出 EventClosed
func (l *Link) Drop(err error) {
	for _, end := range []*Link{l, l.peer} {
		if end.setOpen(false) {
			end.emit(linkif.Event{Type: linkif.EventClosed, Err: err})
		}
	}
}

// FailSends 使本端后续 Send 返回 err，nil 恢复正常
func (l *Link) FailSends(err error) {
	l.mu.Lock()
	l.sendErr = err
	l.mu.Unlock()
}

// IsOpen 实现 linkif.Link
func (l *Link) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open && !l.shut
}

// Send 实现 linkif.Link，帧被投递到对端的事件流
func (l *Link) Send(ctx context.Context, frame []byte) error {
	l.mu.Lock()
	switch {
	case l.shut:
		l.mu.Unlock()
		return linkif.ErrLinkShutdown
	case !l.open:
		l.mu.Unlock()
		return linkif.ErrLinkClosed
	case l.sendErr != nil:
		err := l.sendErr
		l.mu.Unlock()
		return err
	}
	peer := l.peer
	l.mu.Unlock()

	data := make([]byte, len(frame))
	copy(data, frame)

	select {
	case peer.events <- linkif.Event{Type: linkif.EventInbound, Data: data}:
		return nil
	case <-peer.done:
		return linkif.ErrLinkShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events 实现 linkif.Link
func (l *Link) Events() <-chan linkif.Event {
	return l.events
}

// Close 关闭本端，对端随之断开
func (l *Link) Close() error {
	l.mu.Lock()
	if l.shut {
		l.mu.Unlock()
		return nil
	}
	l.shut = true
	l.open = false
	close(l.done)
	l.mu.Unlock()

	if l.peer.setOpen(false) {
		l.peer.emit(linkif.Event{Type: linkif.EventClosed, Err: linkif.ErrLinkShutdown})
	}
	return nil
}

// setOpen 设置就绪状态，返回状态是否发生变化
func (l *Link) setOpen(open bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.shut || l.open == open {
		return false
	}
	l.open = open
	return true
}

func (l *Link) emit(ev linkif.Event) {
	select {
	case l.events <- ev:
	case <-l.done:
	}
}
