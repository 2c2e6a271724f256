package stream

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Mesteriis/crypto-inspector-sub001/internal/model"
)

const (
	wsHandshakeTimeout = 30 * time.Second
	wsReadDeadline     = 90 * time.Second
	wsStopDeadline     = 5 * time.Second
)

// candleParser extracts a candle from one websocket frame. ok is false for
// frames that are not candle events (acks, heartbeats, subscriptions).
type candleParser func(frame []byte) (c model.Candle, closed bool, ok bool, err error)

// wsStream is one websocket connection for one symbol. The manager owns
// exactly one at a time per symbol; demotion stops the old stream before
// the next one is built.
type wsStream struct {
	name      string
	url       string
	subscribe []byte
	parse     candleParser
	handler   StreamHandler

	mu      sync.Mutex
	conn    *websocket.Conn
	stopped bool
	done    chan struct{}
}

func newWSStream(name, url string, subscribe []byte, parse candleParser, handler StreamHandler) *wsStream {
	return &wsStream{
		name:      name,
		url:       url,
		subscribe: subscribe,
		parse:     parse,
		handler:   handler,
		done:      make(chan struct{}),
	}
}

// Start dials, sends the subscription if the venue needs one, and begins
// the read loop.
func (s *wsStream) Start() error {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.Dial(s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.name, err)
	}

	if len(s.subscribe) > 0 {
		if err := conn.WriteMessage(websocket.TextMessage, s.subscribe); err != nil {
			conn.Close()
			return fmt.Errorf("subscribe %s: %w", s.name, err)
		}
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.readLoop(conn)
	return nil
}

func (s *wsStream) readLoop(conn *websocket.Conn) {
	defer close(s.done)
	for {
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if !s.isStopped() {
				s.handler.OnDisconnect(err)
			}
			return
		}
		candle, closed, ok, err := s.parse(frame)
		if err != nil {
			log.Warn().Err(err).Str("stream", s.name).Msg("dropping unparseable frame")
			continue
		}
		if ok {
			s.handler.OnCandle(candle, closed)
		}
	}
}

// Stop closes the connection and waits for the read loop to drain, bounded
// by wsStopDeadline. Safe to call more than once.
func (s *wsStream) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
		select {
		case <-s.done:
		case <-time.After(wsStopDeadline):
			log.Warn().Str("stream", s.name).Msg("read loop did not drain before deadline")
		}
	}
}

func (s *wsStream) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
