package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fpsframework/firearm/pkg/streaming"
	ws "github.com/gorilla/websocket"
)

const (
	outboxSize   = 4096
	ackBuffer    = 16
	redialTries  = 5
	redialCap    = 10 * time.Second
	writeTimeout = 5 * time.Second
	ackTimeout   = 5 * time.Second
)

// link is a self-healing socket to the viewer. Each dialed connection gets
// a reader and a writer goroutine sharing one failure latch, so a broken
// connection is redialed exactly once.
type link struct {
	target string
	logger *slog.Logger

	outbox chan []byte
	acks   chan streaming.AckMessage

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	conn   *ws.Conn
	replay []byte // sent first on every redial while a session is open

	dropped atomic.Int64
}

func newLink(logger *slog.Logger) *link {
	ctx, cancel := context.WithCancel(context.Background())
	return &link{
		logger: logger,
		outbox: make(chan []byte, outboxSize),
		acks:   make(chan streaming.AckMessage, ackBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// open resolves the target URL, dials once and starts the pumps.
func (l *link) open(rawURL, secret string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}
	if secret != "" {
		q := u.Query()
		q.Set("secret", secret)
		u.RawQuery = q.Encode()
	}
	l.target = u.String()

	conn, err := l.dial()
	if err != nil {
		return err
	}
	l.attach(conn)
	l.logger.Info("Connected to live viewer", "url", rawURL)
	return nil
}

func (l *link) dial() (*ws.Conn, error) {
	conn, _, err := ws.DefaultDialer.DialContext(l.ctx, l.target, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// attach makes conn current and starts its pumps.
func (l *link) attach(conn *ws.Conn) {
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()

	dead := make(chan struct{})
	var latch sync.Once
	fail := func(err error) {
		latch.Do(func() {
			close(dead)
			if l.ctx.Err() != nil {
				return
			}
			l.logger.Warn("Live viewer connection lost", "error", err)
			go l.redial(conn)
		})
	}
	go l.write(conn, dead, fail)
	go l.read(conn, fail)
}

func (l *link) write(conn *ws.Conn, dead <-chan struct{}, fail func(error)) {
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-dead:
			return
		case data := <-l.outbox:
			if err := send(conn, data); err != nil {
				// the message is lost with the connection
				l.dropped.Add(1)
				fail(err)
				return
			}
		}
	}
}

func (l *link) read(conn *ws.Conn, fail func(error)) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			fail(err)
			return
		}
		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			l.logger.Debug("Ignoring viewer message", "raw", string(message))
			continue
		}
		select {
		case l.acks <- ack:
		default:
			l.logger.Debug("Ack buffer full, dropping", "for", ack.For)
		}
	}
}

func send(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// redial replaces a lost connection with exponential backoff. Events
// queued meanwhile stay in the outbox.
func (l *link) redial(lost *ws.Conn) {
	_ = lost.Close()

	backoff := time.Second
	for attempt := 1; attempt <= redialTries; attempt++ {
		select {
		case <-l.ctx.Done():
			return
		case <-time.After(backoff):
		}

		conn, err := l.dial()
		if err == nil {
			l.mu.Lock()
			replay := l.replay
			l.mu.Unlock()
			if replay != nil {
				err = send(conn, replay)
			}
			if err == nil {
				l.logger.Info("Live viewer reconnected", "attempt", attempt)
				l.attach(conn)
				return
			}
			_ = conn.Close()
		}
		l.logger.Warn("Redial failed", "attempt", attempt, "error", err)
		backoff = min(backoff*2, redialCap)
	}

	l.mu.Lock()
	l.conn = nil
	l.mu.Unlock()
	l.logger.Error("Live viewer unreachable, events are dropped", "attempts", redialTries)
}

func (l *link) setReplay(data []byte) {
	l.mu.Lock()
	l.replay = data
	l.mu.Unlock()
}

// enqueue never blocks; a full outbox drops the event.
func (l *link) enqueue(data []byte) {
	select {
	case l.outbox <- data:
	default:
		if l.dropped.Add(1) == 1 {
			l.logger.Warn("Live viewer outbox full, dropping events")
		}
	}
}

// request enqueues data and waits for the viewer to ack ackFor.
func (l *link) request(data []byte, ackFor string, timeout time.Duration) error {
	l.enqueue(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-l.acks:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-l.ctx.Done():
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// shutdown says goodbye to the viewer and stops the pumps. It is idempotent.
func (l *link) shutdown() error {
	if l.ctx.Err() != nil {
		return nil
	}
	l.cancel()

	l.mu.Lock()
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if n := l.dropped.Load(); n > 0 {
		l.logger.Warn("Live viewer missed events", "dropped", n)
	}
	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
	return conn.Close()
}
