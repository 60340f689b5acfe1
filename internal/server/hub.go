package server

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"

	"github.com/lox/marbleguess/internal/game"
)

// Hub fans authoritative snapshots out to WebSocket subscribers. There is
// one logical topic per game id; a subscriber watches exactly one game.
//
// Hub implements game.Notifier: Publish is fire-and-forget and never reports
// failure back to the engine. A subscriber that cannot keep up is dropped
// rather than allowed to stall the feed.
type Hub struct {
	logger  *log.Logger
	clock   quartz.Clock
	metrics *Metrics

	sendBuffer int
	pingPeriod time.Duration

	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
}

// NewHub creates a hub using the broadcast settings from cfg. The clock is
// injectable so keepalive behavior is testable; pass quartz.NewReal() in
// production.
func NewHub(cfg *Config, logger *log.Logger, clock quartz.Clock, metrics *Metrics) *Hub {
	return &Hub{
		logger:     logger.WithPrefix("hub"),
		clock:      clock,
		metrics:    metrics,
		sendBuffer: cfg.Broadcast.SendBuffer,
		pingPeriod: cfg.PingPeriod(),
		subs:       make(map[string]map[*subscriber]struct{}),
	}
}

// Publish sends the snapshot to every current subscriber of the game's
// topic. Implements game.Notifier.
func (h *Hub) Publish(gameID string, g game.Game) {
	msg, err := NewMessage(MessageTypeGameState, g)
	if err != nil {
		h.logger.Error("failed to encode snapshot", "game", gameID, "error", err)
		return
	}

	h.mu.RLock()
	var stalled []*subscriber
	count := 0
	for s := range h.subs[gameID] {
		if s.trySend(msg) {
			count++
		} else {
			stalled = append(stalled, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range stalled {
		h.logger.Warn("dropping slow subscriber", "game", gameID)
		h.metrics.BroadcastsDropped.Inc()
		s.close()
	}

	h.logger.Debug("broadcast", "game", gameID, "recipients", count)
}

// Subscribe registers conn on the game's topic and starts its pumps. The
// subscription is acknowledged with the current snapshot when the game still
// exists; subscribing to an unknown id is allowed, since the game may be
// created later or may already have been quit.
func (h *Hub) Subscribe(conn *websocket.Conn, gameID string, current *game.Game) {
	s := newSubscriber(h, conn, gameID)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	if h.subs[gameID] == nil {
		h.subs[gameID] = make(map[*subscriber]struct{})
	}
	h.subs[gameID][s] = struct{}{}
	h.mu.Unlock()

	h.metrics.Subscribers.Inc()
	h.logger.Info("subscriber connected", "game", gameID)

	s.start()

	if ack, err := NewMessage(MessageTypeSubscribed, SubscribedData{GameID: gameID, Game: current}); err == nil {
		s.trySend(ack)
	}
}

// remove detaches a subscriber from its topic. Called from subscriber.close.
func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	set, ok := h.subs[s.gameID]
	if ok {
		if _, member := set[s]; member {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, s.gameID)
			}
			h.mu.Unlock()
			h.metrics.Subscribers.Dec()
			h.logger.Info("subscriber disconnected", "game", s.gameID)
			return
		}
	}
	h.mu.Unlock()
}

// SubscriberCount returns the number of live subscribers on a topic.
func (h *Hub) SubscriberCount(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[gameID])
}

// Close drops every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*subscriber
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.mu.Unlock()

	for _, s := range all {
		s.close()
	}
}
