// Package wsfeed broadcasts market-data and economy-insight snapshots
// to connected websocket clients. It generalizes the teacher's
// in-process channel fan-out into a network-facing feed: a mutex guards
// the subscriber set, publishing runs on the caller's goroutine, each
// subscriber has its own writer goroutine, every write is non-blocking
// per client (a slow reader is dropped rather than stalling the tick
// loop), and upgrades go through gorilla/websocket.
package wsfeed

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/exiort/mas-market-laboratory/internal/views"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// subscriberQueueDepth bounds the per-client backlog before a slow
// reader is disconnected.
const subscriberQueueDepth = 16

// Feed fans market-data and economy-insight snapshots out to every
// connected subscriber.
type Feed struct {
	logger *zap.Logger

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	id   string
	send chan []byte
	conn *websocket.Conn
}

// envelope is the wire shape pushed to every subscriber: exactly one of
// MarketData/EconomyInsight is populated per message.
type envelope struct {
	Type          string                    `json:"type"`
	MarketData    *views.MarketDataView     `json:"market_data,omitempty"`
	EconomyInsight *views.EconomyInsightView `json:"economy_insight,omitempty"`
}

// New constructs an empty feed.
func New(logger *zap.Logger) *Feed {
	return &Feed{
		logger:      logger,
		subscribers: make(map[*subscriber]struct{}),
	}
}

// ServeHTTP upgrades the connection and registers it as a subscriber
// until the client disconnects.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if f.logger != nil {
			f.logger.Warn("wsfeed: upgrade failed", zap.Error(err))
		}
		return
	}

	sub := &subscriber{id: uuid.New().String(), send: make(chan []byte, subscriberQueueDepth), conn: conn}
	f.mu.Lock()
	f.subscribers[sub] = struct{}{}
	f.mu.Unlock()

	if f.logger != nil {
		f.logger.Info("wsfeed: subscriber connected", zap.String("session_id", sub.id))
	}

	go f.writeLoop(sub)
	go f.readLoop(sub)
}

func (f *Feed) writeLoop(sub *subscriber) {
	defer f.drop(sub)
	for msg := range sub.send {
		if err := sub.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readLoop exists solely to detect client-initiated close; this feed is
// publish-only and never acts on inbound frames.
func (f *Feed) readLoop(sub *subscriber) {
	defer f.drop(sub)
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *Feed) drop(sub *subscriber) {
	f.mu.Lock()
	_, ok := f.subscribers[sub]
	if ok {
		delete(f.subscribers, sub)
		close(sub.send)
	}
	f.mu.Unlock()
	sub.conn.Close()

	if ok && f.logger != nil {
		f.logger.Info("wsfeed: subscriber disconnected", zap.String("session_id", sub.id))
	}
}

// PublishMarketData broadcasts a market-data snapshot to every
// subscriber. Non-blocking: a subscriber whose queue is full is
// disconnected rather than allowed to stall the publisher.
func (f *Feed) PublishMarketData(md views.MarketDataView) {
	f.publish(envelope{Type: "market_data", MarketData: &md})
}

// PublishEconomyInsight broadcasts an economy-insight snapshot.
func (f *Feed) PublishEconomyInsight(insight views.EconomyInsightView) {
	f.publish(envelope{Type: "economy_insight", EconomyInsight: &insight})
}

func (f *Feed) publish(env envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		if f.logger != nil {
			f.logger.Error("wsfeed: marshal envelope", zap.Error(err))
		}
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subscribers {
		select {
		case sub.send <- payload:
		default:
			delete(f.subscribers, sub)
			close(sub.send)
			sub.conn.Close()
		}
	}
}

// SubscriberCount reports the number of currently connected subscribers.
func (f *Feed) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}
