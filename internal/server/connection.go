package server

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Maximum message size allowed from peer. Subscribers never send
	// application frames; this only bounds stray input.
	maxMessageSize = 512
)

// subscriber is one WebSocket connection watching a single game topic.
type subscriber struct {
	hub       *Hub
	gameID    string
	conn      *websocket.Conn
	send      chan *Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newSubscriber(h *Hub, conn *websocket.Conn, gameID string) *subscriber {
	ctx, cancel := context.WithCancel(context.Background())

	return &subscriber{
		hub:    h,
		gameID: gameID,
		conn:   conn,
		send:   make(chan *Message, h.sendBuffer),
		logger: h.logger.WithPrefix("conn").With("game", gameID),
		ctx:    ctx,
		cancel: cancel,
	}
}

// start begins the read and write pumps.
func (s *subscriber) start() {
	go s.writePump()
	go s.readPump()
}

// close tears the subscriber down and detaches it from the hub.
func (s *subscriber) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		close(s.send)
		_ = s.conn.Close()
		s.hub.remove(s)
	})
}

// trySend queues a message without blocking. A false return means the
// subscriber's buffer is full and it should be dropped.
func (s *subscriber) trySend(msg *Message) bool {
	defer func() {
		// The send channel closes during teardown; a racing publish is not
		// an error.
		_ = recover()
	}()

	select {
	case s.send <- msg:
		return true
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

// readPump consumes inbound frames. The broadcast feed is one-way, so frames
// are discarded; the pump exists to process control messages and to notice
// the peer going away.
func (s *subscriber) readPump() {
	defer s.close()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Debug("read error", "error", err)
			}
			return
		}
	}
}

// writePump drains the send queue and keeps the connection alive with
// periodic pings. The ticker comes from the hub's clock so tests can drive
// it deterministically.
func (s *subscriber) writePump() {
	ticker := s.hub.clock.NewTicker(s.hub.pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Debug("write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.ctx.Done():
			return
		}
	}
}
