package asap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-asap/internal/core/codec"
	deliveryif "github.com/dep2p/go-asap/pkg/interfaces/delivery"
	"github.com/dep2p/go-asap/pkg/types"
)

// ============================================================================
//                              构造与参数校验
// ============================================================================

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilLink)

	_, err = New(newFakeLink(false), WithRetryInterval(0))
	assert.ErrorIs(t, err, ErrInvalidTimeout)

	_, err = New(newFakeLink(false), WithCodec("xml"))
	assert.ErrorIs(t, err, codec.ErrUnknownCodec)
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(newFakeLink(false), WithRegisterer(reg))
	require.NoError(t, err)

	_, err = New(newFakeLink(false), WithRegisterer(reg))
	assert.Error(t, err)
}

func TestSend_InvalidArguments(t *testing.T) {
	svc, _ := newTestService(t, newFakeLink(false))

	assert.ErrorIs(t, svc.Send("", 1), ErrEmptyMessageKey)
	assert.ErrorIs(t, svc.SendWithTimeout("k", 1, 0), ErrInvalidTimeout)
	assert.ErrorIs(t, svc.SendWithTimeout("k", 1, -time.Second), ErrInvalidTimeout)
	assert.ErrorIs(t, svc.Send("k", func() {}), ErrInvalidPayload)
	assert.Empty(t, svc.Pending())
}

func TestSend_DefaultTimeout(t *testing.T) {
	svc, clk := newTestService(t, newFakeLink(false), WithDefaultTimeout(time.Minute))

	require.NoError(t, svc.Send("k", 1))
	pending := svc.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, clk.Now().Add(time.Minute), pending[0].Deadline)
	assert.Equal(t, "k_1", pending[0].ID)
}

// ============================================================================
//                              入队与替换
// ============================================================================

func TestSend_Supersession(t *testing.T) {
	l := newFakeLink(false)
	svc, _ := newTestService(t, l)

	require.NoError(t, svc.SendWithTimeout("alarm", map[string]any{"t": 1}, 5*time.Second))
	require.NoError(t, svc.SendWithTimeout("alarm", map[string]any{"t": 2}, 5*time.Second))

	pending := svc.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, map[string]any{"t": 2}, pending[0].Payload)
	assert.Equal(t, "alarm_2", pending[0].ID)
	assert.Zero(t, l.sentCount())
	assert.Equal(t, float64(1), testutil.ToFloat64(svc.Metrics().Superseded))
	assert.Equal(t, float64(1), testutil.ToFloat64(svc.Metrics().QueueLength))
}

func TestSend_SupersessionKeepsOtherKeys(t *testing.T) {
	svc, _ := newTestService(t, newFakeLink(false))

	require.NoError(t, svc.Send("a", 1))
	require.NoError(t, svc.Send("b", 1))
	require.NoError(t, svc.Send("a", 2))

	pending := svc.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].MessageKey)
	assert.Equal(t, "a", pending[1].MessageKey)
	assert.Equal(t, 2, pending[1].Payload)
}

// ============================================================================
//                              发送循环
// ============================================================================

func TestProcess_FIFOAcrossKeys(t *testing.T) {
	l := newFakeLink(true)
	svc, _ := newTestService(t, l)

	require.NoError(t, svc.Send("k1", "first"))
	require.NoError(t, svc.Send("k2", "second"))

	// 只有队首在途
	frames := l.frames(t)
	require.Len(t, frames, 1)
	assert.Equal(t, "k1", frames[0].MessageKey)
	assert.Equal(t, "first", frames[0].Payload)

	l.deliver(receiptFor(t, frames[0].ID))
	require.Eventually(t, func() bool { return l.sentCount() == 2 }, waitFor, tick)
	assert.Equal(t, "k2", l.lastFrame(t).MessageKey)

	l.deliver(receiptFor(t, l.lastFrame(t).ID))
	require.Eventually(t, func() bool { return len(svc.Pending()) == 0 }, waitFor, tick)
	counterEquals(t, svc.Metrics().Acked, 2)
	assert.Equal(t, 2, l.sentCount())
}

func TestProcess_AtMostOneInFlight(t *testing.T) {
	l := newFakeLink(true)
	svc, _ := newTestService(t, l)

	for _, key := range []string{"a", "b", "c"} {
		require.NoError(t, svc.Send(key, key))
	}
	assert.Equal(t, 1, l.sentCount())

	// 链路重新打开只会重发同一个队首
	l.openWithEvent()
	require.Eventually(t, func() bool { return l.sentCount() == 2 }, waitFor, tick)
	frames := l.frames(t)
	assert.Equal(t, frames[0].ID, frames[1].ID)
	assert.Len(t, svc.Pending(), 3)
}

func TestProcess_SupersedeInFlightHead(t *testing.T) {
	l := newFakeLink(true)
	svc, _ := newTestService(t, l)

	require.NoError(t, svc.Send("a", 1))
	require.NoError(t, svc.Send("b", 1))
	require.NoError(t, svc.Send("a", 2))

	// 在途的 a_1 被替换，新的队首 b 立即发送
	frames := l.frames(t)
	require.Len(t, frames, 2)
	assert.Equal(t, "a_1", frames[0].ID)
	assert.Equal(t, "b_2", frames[1].ID)

	// a_1 的迟到回执没有任何效果
	l.deliver(receiptFor(t, "a_1"))
	counterEquals(t, svc.Metrics().StaleReceipts, 1)
	assert.Equal(t, 2, l.sentCount())

	l.deliver(receiptFor(t, "b_2"))
	require.Eventually(t, func() bool { return l.sentCount() == 3 }, waitFor, tick)
	assert.Equal(t, "a_3", l.lastFrame(t).ID)
	assert.Equal(t, float64(2), l.lastFrame(t).Payload)
}

func TestProcess_DeadlineEviction(t *testing.T) {
	l := newFakeLink(false)
	svc, clk := newTestService(t, l)

	require.NoError(t, svc.SendWithTimeout("ping", map[string]any{}, 100*time.Millisecond))
	counterEquals(t, svc.Metrics().LinkUnavailable, 1)

	clk.Add(200 * time.Millisecond)
	assert.Len(t, svc.Pending(), 1, "expiry is only observed by process")

	// 下一次重试发现队首已过期
	clk.Add(DefaultConfig().RetryInterval)
	counterEquals(t, svc.Metrics().Expired, 1)
	assert.Empty(t, svc.Pending())

	// 队列为空时不再保留重试定时器
	svc.mu.Lock()
	assert.False(t, svc.retry.pending())
	svc.mu.Unlock()

	l.openWithEvent()
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, l.sentCount())
	assert.Equal(t, float64(0), testutil.ToFloat64(svc.Metrics().Sent))
}

func TestProcess_ExpiredHeadsDrainBeforeSend(t *testing.T) {
	l := newFakeLink(false)
	svc, clk := newTestService(t, l)

	require.NoError(t, svc.SendWithTimeout("a", 1, 100*time.Millisecond))
	require.NoError(t, svc.SendWithTimeout("b", 1, 100*time.Millisecond))
	require.NoError(t, svc.SendWithTimeout("c", 1, time.Hour))

	clk.Add(200 * time.Millisecond)
	l.openWithEvent()

	require.Eventually(t, func() bool { return l.sentCount() == 1 }, waitFor, tick)
	assert.Equal(t, "c", l.lastFrame(t).MessageKey)
	counterEquals(t, svc.Metrics().Expired, 2)
	assert.Len(t, svc.Pending(), 1)
}

func TestProcess_ReceiptEmptiesQueue(t *testing.T) {
	l := newFakeLink(true)
	svc, _ := newTestService(t, l)

	require.NoError(t, svc.Send("ping", map[string]any{}))
	id := l.lastFrame(t).ID

	l.deliver(receiptFor(t, id))
	require.Eventually(t, func() bool { return len(svc.Pending()) == 0 }, waitFor, tick)

	svc.mu.Lock()
	assert.False(t, svc.retry.pending())
	svc.mu.Unlock()
	assert.Equal(t, 1, l.sentCount())
}

func TestProcess_AckIdempotence(t *testing.T) {
	l := newFakeLink(true)
	svc, _ := newTestService(t, l)

	require.NoError(t, svc.Send("k", 1))
	id := l.lastFrame(t).ID

	l.deliver(receiptFor(t, id))
	counterEquals(t, svc.Metrics().Acked, 1)

	l.deliver(receiptFor(t, id))
	l.deliver(receiptFor(t, "never_sent"))
	counterEquals(t, svc.Metrics().StaleReceipts, 2)

	assert.Equal(t, float64(1), testutil.ToFloat64(svc.Metrics().Acked))
	assert.Equal(t, 1, l.sentCount())
	assert.Empty(t, svc.Pending())
}

func TestProcess_RetryConvergence(t *testing.T) {
	l := newFakeLink(false)
	svc, clk := newTestService(t, l, WithRetryInterval(time.Second))

	require.NoError(t, svc.Send("k", 1))
	counterEquals(t, svc.Metrics().LinkUnavailable, 1)

	for i := 2; i <= 4; i++ {
		clk.Add(time.Second)
		counterEquals(t, svc.Metrics().LinkUnavailable, float64(i))
	}
	assert.Zero(t, l.sentCount())

	// 链路静默恢复，不产生事件，仅靠重试定时器发出
	l.setOpen(true)
	clk.Add(time.Second)
	require.Eventually(t, func() bool { return l.sentCount() == 1 }, waitFor, tick)
	assert.Equal(t, "k", l.lastFrame(t).MessageKey)

	svc.mu.Lock()
	assert.False(t, svc.retry.pending(), "no retry while awaiting a receipt")
	svc.mu.Unlock()
}

func TestProcess_SendFailureRetries(t *testing.T) {
	l := newFakeLink(true)
	l.failSends(errors.New("boom"))
	svc, clk := newTestService(t, l)

	require.NoError(t, svc.Send("k", 1))
	assert.Equal(t, float64(1), testutil.ToFloat64(svc.Metrics().SendFailures))
	assert.Zero(t, l.sentCount())

	l.failSends(nil)
	clk.Add(DefaultConfig().RetryInterval)
	require.Eventually(t, func() bool { return l.sentCount() == 1 }, waitFor, tick)
	counterEquals(t, svc.Metrics().Sent, 1)
	assert.Len(t, svc.Pending(), 1)
}

func TestProcess_SingleRetryTimer(t *testing.T) {
	l := newFakeLink(false)
	svc, clk := newTestService(t, l)

	require.NoError(t, svc.Send("a", 1))
	require.NoError(t, svc.Send("b", 1))
	counterEquals(t, svc.Metrics().LinkUnavailable, 1)

	// 链路在事件到达时仍未就绪：每次触发都重置同一个定时器
	for i := 0; i < 3; i++ {
		l.events <- linkOpenedEvent()
	}
	counterEquals(t, svc.Metrics().LinkUnavailable, 4)

	clk.Add(DefaultConfig().RetryInterval)
	counterEquals(t, svc.Metrics().LinkUnavailable, 5)
	assert.Never(t, func() bool {
		return testutil.ToFloat64(svc.Metrics().LinkUnavailable) > 5
	}, 50*time.Millisecond, tick)

	svc.mu.Lock()
	assert.True(t, svc.retry.pending())
	svc.mu.Unlock()
}

// ============================================================================
//                              入站处理
// ============================================================================

func TestInbound_DispatchAndReceipt(t *testing.T) {
	l := newFakeLink(true)

	var mu sync.Mutex
	var got []any
	svc, _ := newTestService(t, l, WithHandler(deliveryif.HandlerFunc(func(key string, payload any) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, key, payload)
		return nil
	})))

	l.deliver(messageFrame(t, "temp_1", "temp", map[string]any{"c": 21.5}))
	require.Eventually(t, func() bool { return l.sentCount() == 1 }, waitFor, tick)

	receipt := l.lastFrame(t)
	assert.Equal(t, types.FrameReceipt, receipt.Type)
	assert.Equal(t, "temp_1", receipt.ID)

	mu.Lock()
	assert.Equal(t, []any{"temp", map[string]any{"c": 21.5}}, got)
	mu.Unlock()
	assert.Equal(t, float64(1), testutil.ToFloat64(svc.Metrics().Received))
}

func TestInbound_HandlerFailureStillAcks(t *testing.T) {
	tests := []struct {
		name    string
		handler deliveryif.HandlerFunc
	}{
		{"error", func(string, any) error { return errors.New("rejected") }},
		{"panic", func(string, any) error { panic("handler exploded") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newFakeLink(true)
			svc, _ := newTestService(t, l, WithHandler(tt.handler))

			l.deliver(messageFrame(t, "x_1", "x", 1))
			require.Eventually(t, func() bool { return l.sentCount() == 1 }, waitFor, tick)
			assert.Equal(t, "x_1", l.lastFrame(t).ID)
			counterEquals(t, svc.Metrics().HandlerFailures, 1)
		})
	}
}

func TestInbound_ReceiptFailureNotRetried(t *testing.T) {
	l := newFakeLink(true)
	l.failSends(errors.New("boom"))
	svc, clk := newTestService(t, l)

	l.deliver(messageFrame(t, "x_1", "x", 1))
	counterEquals(t, svc.Metrics().ReceiptFailures, 1)

	l.failSends(nil)
	clk.Add(time.Minute)
	assert.Never(t, func() bool { return l.sentCount() > 0 }, 50*time.Millisecond, tick)
}

func TestInbound_Dedup(t *testing.T) {
	l := newFakeLink(true)
	var calls atomic.Int32
	svc, _ := newTestService(t, l,
		WithDedupCacheSize(16),
		WithHandler(deliveryif.HandlerFunc(func(string, any) error {
			calls.Add(1)
			return nil
		})),
	)

	frame := messageFrame(t, "x_1", "x", 1)
	l.deliver(frame)
	l.deliver(frame)

	// 重复帧仍然回执
	require.Eventually(t, func() bool { return l.sentCount() == 2 }, waitFor, tick)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(svc.Metrics().Duplicates))
}

func TestInbound_NoDedupByDefault(t *testing.T) {
	l := newFakeLink(true)
	var calls atomic.Int32
	_, _ = newTestService(t, l, WithHandler(deliveryif.HandlerFunc(func(string, any) error {
		calls.Add(1)
		return nil
	})))

	frame := messageFrame(t, "x_1", "x", 1)
	l.deliver(frame)
	l.deliver(frame)

	require.Eventually(t, func() bool { return l.sentCount() == 2 }, waitFor, tick)
	assert.Equal(t, int32(2), calls.Load())
}

func TestInbound_DecodeFailure(t *testing.T) {
	l := newFakeLink(true)
	svc, _ := newTestService(t, l)

	l.deliver([]byte("not a frame"))
	l.deliver([]byte(`{"frameType":"bogus","id":"x"}`))
	counterEquals(t, svc.Metrics().DecodeFailures, 2)
	assert.Zero(t, l.sentCount())
}

func TestInbound_SetHandler(t *testing.T) {
	l := newFakeLink(true)
	svc, _ := newTestService(t, l)

	got := make(chan string, 1)
	svc.SetHandler(deliveryif.HandlerFunc(func(key string, _ any) error {
		got <- key
		return nil
	}))

	l.deliver(messageFrame(t, "late_1", "late", nil))
	select {
	case key := <-got:
		assert.Equal(t, "late", key)
	case <-time.After(waitFor):
		t.Fatal("handler not called")
	}
}

func TestInbound_HandlerMaySend(t *testing.T) {
	l := newFakeLink(true)
	var svc *Service
	svc, _ = newTestService(t, l, WithHandler(deliveryif.HandlerFunc(func(key string, payload any) error {
		return svc.Send("echo", payload)
	})))

	l.deliver(messageFrame(t, "x_1", "x", "hi"))
	require.Eventually(t, func() bool { return l.sentCount() == 2 }, waitFor, tick)

	var keys []string
	for _, f := range l.frames(t) {
		keys = append(keys, f.Type.String())
	}
	assert.ElementsMatch(t, []string{"message", "receipt"}, keys)
}

// ============================================================================
//                              生命周期
// ============================================================================

func TestService_StartTwice(t *testing.T) {
	svc, _ := newTestService(t, newFakeLink(false))
	assert.ErrorIs(t, svc.Start(context.Background()), ErrAlreadyStarted)
}

func TestService_SendBeforeStart(t *testing.T) {
	l := newFakeLink(false)
	svc, err := New(l, WithClock(newMockClock()), WithIDGenerator(seqIDs()))
	require.NoError(t, err)

	require.NoError(t, svc.Send("early", 1))
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop(context.Background())

	l.openWithEvent()
	require.Eventually(t, func() bool { return l.sentCount() == 1 }, waitFor, tick)
	assert.Equal(t, "early", l.lastFrame(t).MessageKey)
}

func TestService_Stop(t *testing.T) {
	l := newFakeLink(false)
	svc, _ := newTestService(t, l)

	require.NoError(t, svc.Send("a", 1))
	require.NoError(t, svc.Send("b", 1))

	require.NoError(t, svc.Stop(context.Background()))
	assert.Empty(t, svc.Pending())
	assert.Equal(t, float64(0), testutil.ToFloat64(svc.Metrics().QueueLength))

	svc.mu.Lock()
	assert.False(t, svc.retry.pending())
	svc.mu.Unlock()

	assert.ErrorIs(t, svc.Send("c", 1), ErrServiceClosed)
	assert.ErrorIs(t, svc.Stop(context.Background()), ErrNotStarted)
	assert.ErrorIs(t, svc.Start(context.Background()), ErrServiceClosed)
}

func TestService_LinkClosedKeepsQueue(t *testing.T) {
	l := newFakeLink(true)
	svc, _ := newTestService(t, l)

	require.NoError(t, svc.Send("k", 1))
	l.setOpen(false)
	l.events <- linkClosedEvent()

	l.openWithEvent()
	require.Eventually(t, func() bool { return l.sentCount() == 2 }, waitFor, tick)
	frames := l.frames(t)
	assert.Equal(t, frames[0].ID, frames[1].ID)
	assert.Len(t, svc.Pending(), 1)
}

func TestMetrics_Registered(t *testing.T) {
	reg := prometheus.NewRegistry()
	l := newFakeLink(true)
	svc, _ := newTestService(t, l, WithRegisterer(reg))

	require.NoError(t, svc.Send("k", 1))

	n, err := testutil.GatherAndCount(reg, "asap_enqueued_total", "asap_sent_total", "asap_queue_length")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, float64(1), testutil.ToFloat64(svc.Metrics().Sent))
}
