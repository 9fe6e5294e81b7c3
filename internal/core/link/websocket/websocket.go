// Package websocket 基于 gorilla/websocket 实现 linkif.Link
//
// 两种角色：
//   - Dial:        拨号端，连接断开后按 RedialInterval 自动重拨
//   - NewAcceptor: 监听端，作为 http.Handler 挂载，同一时刻只保留一个对端，
//     新连接会替换旧连接
//
// 每一帧对应一条二进制 WebSocket 消息。
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/multierr"

	"github.com/dep2p/go-asap/internal/util/logger"
	linkif "github.com/dep2p/go-asap/pkg/interfaces/link"
)

var log = logger.Logger("link/websocket")

// closeGracePeriod 发送关闭控制帧的等待时间
const closeGracePeriod = time.Second

// ErrInvalidURL 拨号地址无效
var ErrInvalidURL = errors.New("websocket: invalid url")

// Link WebSocket 链路
type Link struct {
	opts options

	mu   sync.Mutex
	conn *websocket.Conn
	shut bool

	// writeMu 串行化数据帧写入，gorilla 连接只允许一个并发写者
	writeMu sync.Mutex

	events chan linkif.Event
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	upgrader websocket.Upgrader
}

// 确保 Link 实现了 linkif.Link 接口
var _ linkif.Link = (*Link)(nil)

// 确保 Link 可作为 http.Handler 挂载
var _ http.Handler = (*Link)(nil)

func newLink(opts ...Option) *Link {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Link{
		opts:   o,
		events: make(chan linkif.Event, o.eventBuffer),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// ============================================================================
//                              拨号端
// ============================================================================

// Dial 创建拨号端链路并在后台开始拨号
//
// 返回时链路尚未打开，连接建立后产生 EventOpened。
func Dial(rawURL string, opts ...Option) (*Link, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	l := newLink(opts...)
	l.wg.Add(1)
	go l.dialLoop(u.String())
	return l, nil
}

func (l *Link) dialLoop(target string) {
	defer l.wg.Done()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: l.opts.handshakeTimeout,
	}

	for {
		conn, _, err := dialer.DialContext(l.ctx, target, nil)
		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			log.Debug("拨号失败", "url", target, "err", err)
			l.emit(linkif.Event{Type: linkif.EventError, Err: err})
		} else if l.attach(conn) {
			log.Debug("拨号成功", "url", target)
			err = l.readLoop(conn)
			l.detach(conn, err)
		}

		select {
		case <-l.done:
			return
		case <-time.After(l.opts.redialInterval):
		}
	}
}

// ============================================================================
//                              监听端
// ============================================================================

// NewAcceptor 创建监听端链路
//
// 返回的 Link 实现 http.Handler，挂载到任意路径即可接受对端。
func NewAcceptor(opts ...Option) *Link {
	l := newLink(opts...)
	l.upgrader = websocket.Upgrader{
		HandshakeTimeout: l.opts.handshakeTimeout,
		CheckOrigin:      func(*http.Request) bool { return true },
	}
	return l
}

// ServeHTTP 升级请求并接管连接，直到连接断开
func (l *Link) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	if l.shut {
		l.mu.Unlock()
		http.Error(w, "link shut down", http.StatusServiceUnavailable)
		return
	}
	l.wg.Add(1)
	l.mu.Unlock()
	defer l.wg.Done()

	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写回了错误响应
		log.Debug("升级失败", "remote", r.RemoteAddr, "err", err)
		return
	}
	if !l.attach(conn) {
		return
	}
	log.Debug("接受对端", "remote", r.RemoteAddr)
	err = l.readLoop(conn)
	l.detach(conn, err)
}

// ============================================================================
//                              连接管理
// ============================================================================

// attach 将连接设为当前连接并发出 EventOpened
//
// 链路已关闭时丢弃连接并返回 false；已有连接时旧连接被替换。
func (l *Link) attach(conn *websocket.Conn) bool {
	conn.SetReadLimit(l.opts.maxMessageSize)

	l.mu.Lock()
	if l.shut {
		l.mu.Unlock()
		_ = conn.Close()
		return false
	}
	old := l.conn
	l.conn = conn
	l.mu.Unlock()

	if old != nil {
		log.Debug("新连接替换旧连接")
		_ = old.Close()
	}
	// 替换连接同样发出 EventOpened，旧连接上的在途帧可能已丢失
	l.emit(linkif.Event{Type: linkif.EventOpened})
	return true
}

// detach 连接读循环结束后调用，仅当 conn 仍是当前连接时发出 EventClosed
func (l *Link) detach(conn *websocket.Conn, cause error) {
	l.mu.Lock()
	current := l.conn == conn
	if current {
		l.conn = nil
	}
	l.mu.Unlock()

	_ = conn.Close()
	if current {
		log.Debug("连接断开", "err", cause)
		l.emit(linkif.Event{Type: linkif.EventClosed, Err: cause})
	}
}

func (l *Link) readLoop(conn *websocket.Conn) error {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if mt != websocket.BinaryMessage && mt != websocket.TextMessage {
			continue
		}
		if !l.emit(linkif.Event{Type: linkif.EventInbound, Data: data}) {
			return linkif.ErrLinkShutdown
		}
	}
}

// emit 投递事件，链路关闭后丢弃并返回 false
func (l *Link) emit(ev linkif.Event) bool {
	select {
	case l.events <- ev:
		return true
	case <-l.done:
		return false
	}
}

// ============================================================================
//                              linkif.Link 实现
// ============================================================================

// IsOpen 实现 linkif.Link
func (l *Link) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil && !l.shut
}

// Send 实现 linkif.Link
func (l *Link) Send(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	conn, shut := l.conn, l.shut
	l.mu.Unlock()
	if shut {
		return linkif.ErrLinkShutdown
	}
	if conn == nil {
		return linkif.ErrLinkClosed
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	deadline := time.Now().Add(l.opts.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("websocket: set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("websocket: write: %w", err)
	}
	return nil
}

// Events 实现 linkif.Link
func (l *Link) Events() <-chan linkif.Event {
	return l.events
}

// Close 关闭链路，发送关闭控制帧并等待后台协程退出
func (l *Link) Close() error {
	l.mu.Lock()
	if l.shut {
		l.mu.Unlock()
		return nil
	}
	l.shut = true
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	l.cancel()
	close(l.done)

	var err error
	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		err = multierr.Append(
			ignoreClosed(conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))),
			ignoreClosed(conn.Close()),
		)
	}
	l.wg.Wait()
	return err
}

// ignoreClosed 忽略对端先行关闭导致的错误
func ignoreClosed(err error) error {
	if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
