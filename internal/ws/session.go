package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"perepiska/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// wsConn is the transport surface the session needs. Production connections
// are gorilla websockets; tests inject a mock.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer establishes one transport connection. The session calls it on every
// (re)connect attempt.
type Dialer func(ctx context.Context) (wsConn, error)

// Envelope is one frame on the event channel.
type Envelope struct {
	Event   string             `msgpack:"event"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

type handler struct {
	id string
	fn func(payload msgpack.RawMessage)
}

// Session owns the realtime event channel for one signed-in identity. There
// must be exactly one live session per identity: callers tear down the prior
// one before dialing a new one. On every successful (re)connect the session
// announces the identity before anything else, so server-side presence stays
// accurate across reconnects.
type Session struct {
	identity models.Identity
	dial     Dialer
	delay    time.Duration

	// handlersMu is held for reading across handler invocation, so once an
	// off func returns the released handler can no longer fire.
	handlersMu sync.RWMutex
	handlers   map[string][]handler

	connMu sync.Mutex
	conn   wsConn

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects the event channel for identity and starts the session loop.
// The loop reconnects with a fixed delay until Close is called, re-running
// identity registration after each successful connect.
func Dial(ctx context.Context, url string, identity models.Identity, delay time.Duration) *Session {
	dialer := func(ctx context.Context) (wsConn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{})
		return conn, err
	}
	return newSession(ctx, dialer, identity, delay)
}

func newSession(ctx context.Context, dial Dialer, identity models.Identity, delay time.Duration) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		identity: identity,
		dial:     dial,
		delay:    delay,
		handlers: make(map[string][]handler),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go s.run(ctx)
	return s
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.dial(ctx)
		if err != nil {
			slog.Error("channel connect failed", "user_id", s.identity.ID, "error", err)
			if !s.sleep(ctx) {
				return
			}
			continue
		}

		s.setConn(conn)

		// Identity announcement is not a one-time event: it re-runs on
		// every successful connect so the server's online registry is
		// rebuilt after a drop.
		if err := s.Emit(models.EventRegister, models.RegisterPayload{UserID: s.identity.ID}); err != nil {
			slog.Error("identity registration failed", "user_id", s.identity.ID, "error", err)
		}

		err = s.readPump(conn)
		s.setConn(nil)
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		slog.Warn("channel disconnected", "user_id", s.identity.ID, "error", err)
		if !s.sleep(ctx) {
			return
		}
	}
}

func (s *Session) sleep(ctx context.Context) bool {
	select {
	case <-time.After(s.delay):
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Session) readPump(conn wsConn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env Envelope
		if err := msgpack.Unmarshal(data, &env); err != nil {
			slog.Error("dropping malformed frame", "user_id", s.identity.ID, "error", err)
			continue
		}

		s.dispatch(env)
	}
}

// dispatch invokes handlers sequentially on the read pump goroutine, so
// inbound events are strictly serialized.
func (s *Session) dispatch(env Envelope) {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()

	for _, h := range s.handlers[env.Event] {
		h.fn(env.Payload)
	}
}

// On registers a handler for an inbound event and returns its release func.
// The release func is idempotent and must not be called from inside a
// handler; once it returns, the handler cannot fire again.
func (s *Session) On(event string, fn func(payload msgpack.RawMessage)) func() {
	h := handler{id: uuid.NewString(), fn: fn}

	s.handlersMu.Lock()
	s.handlers[event] = append(s.handlers[event], h)
	s.handlersMu.Unlock()

	return func() {
		s.handlersMu.Lock()
		defer s.handlersMu.Unlock()

		hs := s.handlers[event]
		for i := range hs {
			if hs[i].id == h.id {
				s.handlers[event] = append(hs[:i:i], hs[i+1:]...)
				break
			}
		}
	}
}

// Emit sends one fire-and-forget event to the server. While the channel is
// down it returns models.ErrDisconnected: there is no outbound queue, lost
// notifications are accepted.
func (s *Session) Emit(event string, payload any) error {
	raw, err := msgpack.Marshal(payload)
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(Envelope{Event: event, Payload: raw})
	if err != nil {
		return err
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.conn == nil {
		return models.ErrDisconnected
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (s *Session) setConn(conn wsConn) {
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
}

// Close tears the session down: it stops the reconnect loop, closes the
// transport and waits for the read pump to exit. Idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.connMu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.connMu.Unlock()
		<-s.done
	})
	return nil
}
