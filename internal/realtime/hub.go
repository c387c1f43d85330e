// Package realtime streams question events to connected parties over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"paidqa/internal/logger"
	"paidqa/internal/service"
)

const (
	wsWriteTimeout   = 10 * time.Second
	subscriberBuffer = 32
)

type subscriber struct {
	userID int64
	events chan service.Event
}

// Hub fans events out to every open stream of the question's asker and answerer.
type Hub struct {
	mu             sync.RWMutex
	subs           map[int64]map[*subscriber]struct{}
	originPatterns []string
}

// NewHub creates an empty hub. Cross-origin upgrades are accepted only from
// hosts matching originPatterns; same-origin requests are always accepted.
func NewHub(originPatterns ...string) *Hub {
	return &Hub{
		subs:           make(map[int64]map[*subscriber]struct{}),
		originPatterns: originPatterns,
	}
}

// OriginHosts returns the host of every absolute URL in urls, for use as
// origin patterns. Empty and host-less entries are skipped.
func OriginHosts(urls ...string) []string {
	var hosts []string
	for _, raw := range urls {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Host == "" {
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}

func (h *Hub) Name() string { return "websocket" }

// Subscribe registers a stream for userID. The returned cancel func must be
// called to release it.
func (h *Hub) Subscribe(userID int64) (<-chan service.Event, func()) {
	sub := &subscriber{userID: userID, events: make(chan service.Event, subscriberBuffer)}

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.events, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], sub)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
		})
	}
}

// Subscribers returns the number of open streams for userID.
func (h *Hub) Subscribers(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Deliver implements service.Sink. Slow streams miss events rather than
// holding up the emitter.
func (h *Hub) Deliver(_ context.Context, evt service.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for _, userID := range []int64{evt.AskerID, evt.AnswererID} {
		for sub := range h.subs[userID] {
			select {
			case sub.events <- evt:
			default:
				dropped++
			}
		}
	}
	if dropped > 0 {
		return fmt.Errorf("dropped %s for %d slow subscribers", evt.Type, dropped)
	}
	return nil
}

// ServeUser upgrades the request and streams userID's events until the
// client goes away.
func (h *Hub) ServeUser(w http.ResponseWriter, r *http.Request, userID int64) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		logger.Debug(userID, "ws_accept_failed", err.Error())
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	// Clients only listen; CloseRead handles control frames and cancels on close.
	ctx := conn.CloseRead(r.Context())

	events, cancel := h.Subscribe(userID)
	defer cancel()
	logger.Debug(userID, "ws_connected", "")

	if err := stream(ctx, conn, events); err != nil && websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
		logger.Debug(userID, "ws_stream_error", err.Error())
		_ = conn.Close(websocket.StatusInternalError, "stream error")
	}
	logger.Debug(userID, "ws_disconnected", "")
}

func stream(ctx context.Context, conn *websocket.Conn, events <-chan service.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-events:
			if err := writeEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt service.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
