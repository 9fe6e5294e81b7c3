package asap

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-asap/internal/core/codec"
	linkif "github.com/dep2p/go-asap/pkg/interfaces/link"
	"github.com/dep2p/go-asap/pkg/types"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeLink 记录所有成功发送的帧，状态由测试直接控制
type fakeLink struct {
	mu      sync.Mutex
	open    bool
	sendErr error
	sent    [][]byte
	events  chan linkif.Event
}

func newFakeLink(open bool) *fakeLink {
	return &fakeLink{
		open:   open,
		events: make(chan linkif.Event, 64),
	}
}

func (f *fakeLink) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakeLink) Send(_ context.Context, frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return linkif.ErrLinkClosed
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, append([]byte(nil), frame...))
	return nil
}

func (f *fakeLink) Events() <-chan linkif.Event { return f.events }

func (f *fakeLink) Close() error { return nil }

// setOpen 只改变状态，不产生事件
func (f *fakeLink) setOpen(open bool) {
	f.mu.Lock()
	f.open = open
	f.mu.Unlock()
}

// openWithEvent 打开链路并发出 EventOpened
func (f *fakeLink) openWithEvent() {
	f.setOpen(true)
	f.events <- linkif.Event{Type: linkif.EventOpened}
}

func (f *fakeLink) failSends(err error) {
	f.mu.Lock()
	f.sendErr = err
	f.mu.Unlock()
}

func (f *fakeLink) deliver(data []byte) {
	f.events <- linkif.Event{Type: linkif.EventInbound, Data: data}
}

func (f *fakeLink) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// frames 用 JSON 编解码器解出已发送的帧
func (f *fakeLink) frames(t *testing.T) []*types.Frame {
	t.Helper()
	f.mu.Lock()
	raw := append([][]byte(nil), f.sent...)
	f.mu.Unlock()

	out := make([]*types.Frame, 0, len(raw))
	for _, data := range raw {
		fr, err := codec.JSON().Decode(data)
		require.NoError(t, err)
		out = append(out, fr)
	}
	return out
}

func (f *fakeLink) lastFrame(t *testing.T) *types.Frame {
	t.Helper()
	frames := f.frames(t)
	require.NotEmpty(t, frames)
	return frames[len(frames)-1]
}

// seqIDs 生成可预测的消息 ID：key_1、key_2 ...
func seqIDs() func(string) string {
	var n atomic.Int64
	return func(key string) string {
		return fmt.Sprintf("%s_%d", key, n.Add(1))
	}
}

// newTestService 创建并启动使用模拟时钟的服务
func newTestService(t *testing.T, l linkif.Link, opts ...Option) (*Service, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	all := append([]Option{
		WithClock(clk),
		WithIDGenerator(seqIDs()),
		WithRegisterer(prometheus.NewRegistry()),
	}, opts...)

	svc, err := New(l, all...)
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })
	return svc, clk
}

func encodeFrame(t *testing.T, f *types.Frame) []byte {
	t.Helper()
	data, err := codec.JSON().Encode(f)
	require.NoError(t, err)
	return data
}

func receiptFor(t *testing.T, id string) []byte {
	return encodeFrame(t, types.NewReceiptFrame(id))
}

func messageFrame(t *testing.T, id, key string, payload any) []byte {
	return encodeFrame(t, &types.Frame{
		Type:       types.FrameMessage,
		ID:         id,
		Deadline:   time.Now().Add(time.Hour),
		MessageKey: key,
		Payload:    payload,
	})
}

// counterEquals 等待计数器达到期望值
func counterEquals(t *testing.T, c prometheus.Collector, want float64) {
	t.Helper()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(c) == want
	}, waitFor, tick, "counter never reached %v (last %v)", want, testutil.ToFloat64(c))
}

func newMockClock() *clock.Mock { return clock.NewMock() }

func linkOpenedEvent() linkif.Event { return linkif.Event{Type: linkif.EventOpened} }

func linkClosedEvent() linkif.Event {
	return linkif.Event{Type: linkif.EventClosed, Err: linkif.ErrLinkClosed}
}
