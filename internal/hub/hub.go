// Package hub fans live whale events out to downstream subscribers.
package hub

import (
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stacks-whale-intel/internal/domain"
	"stacks-whale-intel/internal/observability"
)

// HistorySize is how many recent events are replayed to a new subscriber.
const HistorySize = 50

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind than this starts losing events; publication to the
// others is never blocked.
const subscriberBuffer = 64

// Hub distributes TrackedTransactionEvents to subscribers. Publish is
// fire-and-forget per subscriber and safe for concurrent use. The rolling
// history is a cache, not a durability guarantee: it is lost on restart.
type Hub struct {
	logger *log.Logger

	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	history []domain.TrackedTransactionEvent // oldest first, capped

	upgrader websocket.Upgrader
}

// Subscription is one attached consumer.
type Subscription struct {
	hub *Hub
	ch  chan domain.TrackedTransactionEvent
}

// Events returns the subscriber's event channel. Closed on Unsubscribe.
func (s *Subscription) Events() <-chan domain.TrackedTransactionEvent { return s.ch }

// Unsubscribe detaches the consumer and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.hub.mu.Lock()
	_, ok := s.hub.subs[s]
	if ok {
		delete(s.hub.subs, s)
	}
	s.hub.mu.Unlock()
	if ok {
		close(s.ch)
		observability.DefaultMetrics.SubscribersOnline.Dec()
	}
}

// New creates a hub.
func New(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Hub{
		logger: logger,
		subs:   make(map[*Subscription]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe attaches a consumer and backfills the rolling history into its
// channel (oldest first) before any new event arrives.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{hub: h, ch: make(chan domain.TrackedTransactionEvent, subscriberBuffer+HistorySize)}

	h.mu.Lock()
	for _, ev := range h.history {
		select {
		case sub.ch <- ev:
		default:
		}
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	observability.DefaultMetrics.SubscribersOnline.Inc()

	return sub
}

// Publish fans the event out to every subscriber. A full subscriber drops
// this event; slow consumers cannot stall the pipeline.
func (h *Hub) Publish(event domain.TrackedTransactionEvent) {
	h.mu.Lock()
	h.history = append(h.history, event)
	if len(h.history) > HistorySize {
		h.history = h.history[len(h.history)-HistorySize:]
	}
	for sub := range h.subs {
		select {
		case sub.ch <- event:
		default:
			h.logger.Printf("subscriber lagging, dropped event %s", event.TxID)
			observability.DefaultMetrics.SubscriberDrops.Inc()
		}
	}
	h.mu.Unlock()
}

// SubscriberCount returns the number of attached consumers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// History returns a copy of the rolling history, oldest first.
func (h *Hub) History() []domain.TrackedTransactionEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.TrackedTransactionEvent(nil), h.history...)
}

// Websocket bridge. Keepalive timings follow the usual gorilla pattern.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// HandleWebSocket upgrades an HTTP request and relays hub events to the
// client until it disconnects. Each classified event goes out as one JSON
// frame; history is replayed on connect via Subscribe.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	sub := h.Subscribe()
	defer sub.Unsubscribe()
	defer conn.Close()

	h.logger.Printf("subscriber connected (%d total)", h.SubscriberCount())

	// Reader: we process no inbound messages, but the read loop is needed
	// to detect disconnects and service pongs.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			h.logger.Printf("subscriber disconnected (%d total)", h.SubscriberCount()-1)
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
