package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wasabipesto/nice/internal/model"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// notableChannel names the Redis pub/sub channel a base's newly
// canonical notable numbers are published to. Keyed per base so a
// client can subscribe to just the bases it cares about, or "*" for
// all of them.
func notableChannel(base uint32) string {
	return "nice:" + strconv.FormatUint(uint64(base), 10) + ":notable"
}

const notableChannelPattern = "nice:*:notable"

// notableEvent is the payload published whenever reconcileConsensus
// confirms a canon with notable numbers worth broadcasting live.
type notableEvent struct {
	FieldID int64              `json:"field_id"`
	Base    uint32             `json:"base"`
	Numbers []model.NiceNumber `json:"numbers"`
}

// publishNotableEvent fans a newly-canonical result out to any
// connected /ws/stats clients subscribed to this base. A nil redis
// client (disabled in config) or an empty number list is a silent
// no-op rather than an error.
func (s *Server) publishNotableEvent(ctx context.Context, base uint32, fieldID int64, numbers []model.NiceNumber) {
	if s.redis == nil || len(numbers) == 0 {
		return
	}
	payload, err := json.Marshal(notableEvent{FieldID: fieldID, Base: base, Numbers: numbers})
	if err != nil {
		zap.L().Warn("failed to encode notable event", zap.Error(err))
		return
	}
	if err := s.redis.Publish(ctx, notableChannel(base), payload).Err(); err != nil {
		zap.L().Warn("failed to publish notable event", zap.Error(err))
	}
}

// wsClientMessage is sent by websocket clients to manage their
// subscription to one or more bases.
type wsClientMessage struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	Base   string `json:"base"`   // base as a decimal string, or "*" for all bases
}

// wsServerMessage is sent to websocket clients.
type wsServerMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// wsSubscriptions tracks which bases one connected client wants to
// hear about.
type wsSubscriptions struct {
	mu    sync.RWMutex
	bases map[string]bool
}

func newWSSubscriptions() *wsSubscriptions {
	return &wsSubscriptions{bases: make(map[string]bool)}
}

func (s *wsSubscriptions) subscribe(base string)   { s.mu.Lock(); s.bases[base] = true; s.mu.Unlock() }
func (s *wsSubscriptions) unsubscribe(base string) { s.mu.Lock(); delete(s.bases, base); s.mu.Unlock() }

func (s *wsSubscriptions) isSubscribed(base string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bases["*"] || s.bases[base]
}

// handleWSStats serves GET /ws/stats: upgrades to a websocket and
// relays live notable-number events from Redis pub/sub until the
// client disconnects. Every goroutine recovers from panics so one bad
// message can't take the whole connection handler down uncleanly.
func (s *Server) handleWSStats(w http.ResponseWriter, r *http.Request) {
	if s.redis == nil {
		http.Error(w, "live events not available (redis disabled)", http.StatusServiceUnavailable)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	subs := newWSSubscriptions()
	send := make(chan wsServerMessage, 256)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		defer recoverAndCancel(cancel, "redis subscriber")
		s.relayRedisEvents(ctx, send, subs)
	}()
	go func() {
		defer wg.Done()
		defer recoverAndCancel(cancel, "ping ticker")
		pingLoop(ctx, conn)
	}()
	go func() {
		defer wg.Done()
		defer recoverAndCancel(cancel, "message writer")
		writeWSMessages(conn, send)
	}()

	readWSClientMessages(ctx, conn, cancel, subs, send)

	close(send)
	wg.Wait()
}

func recoverAndCancel(cancel context.CancelFunc, goroutine string) {
	if rec := recover(); rec != nil {
		zap.L().Error("panic in websocket goroutine",
			zap.String("goroutine", goroutine),
			zap.Any("panic", rec),
			zap.String("stack", string(debug.Stack())),
		)
		cancel()
	}
}

// relayRedisEvents subscribes to every base's notable-number channel
// and forwards matching events to subscribed clients. Returns when the
// subscription fails or the connection's context is cancelled; the
// caller does not retry since a dropped Redis connection just means
// the client stops hearing updates until it reconnects.
func (s *Server) relayRedisEvents(ctx context.Context, send chan<- wsServerMessage, subs *wsSubscriptions) {
	pubsub := s.redis.PSubscribe(ctx, notableChannelPattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() == nil {
			zap.L().Warn("failed to confirm redis subscription", zap.Error(err))
		}
		return
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			base := baseFromChannel(msg.Channel)
			if base == "" || !subs.isSubscribed(base) {
				continue
			}
			var payload any
			if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
				zap.L().Warn("failed to decode notable event", zap.Error(err))
				continue
			}
			select {
			case send <- wsServerMessage{Type: "notable", Payload: payload}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// baseFromChannel extracts the base segment from a "nice:<base>:notable"
// channel name.
func baseFromChannel(channel string) string {
	parts := strings.Split(channel, ":")
	if len(parts) != 3 {
		return ""
	}
	return parts[1]
}

// pingLoop sends periodic websocket ping frames to keep the connection
// alive and detect dead clients.
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}

func writeWSMessages(conn *websocket.Conn, send <-chan wsServerMessage) {
	for msg := range send {
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// readWSClientMessages reads subscribe/unsubscribe requests from the
// client. Blocks until the connection closes, which is how the caller
// detects disconnection.
func readWSClientMessages(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc, subs *wsSubscriptions, send chan<- wsServerMessage) {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg wsClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				cancel()
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			switch msg.Action {
			case "subscribe":
				if msg.Base == "" {
					send <- wsServerMessage{Type: "error", Payload: map[string]string{"message": "base is required"}}
					continue
				}
				subs.subscribe(msg.Base)
				send <- wsServerMessage{Type: "subscribed", Payload: map[string]string{"base": msg.Base}}
			case "unsubscribe":
				if msg.Base == "" {
					send <- wsServerMessage{Type: "error", Payload: map[string]string{"message": "base is required"}}
					continue
				}
				subs.unsubscribe(msg.Base)
				send <- wsServerMessage{Type: "unsubscribed", Payload: map[string]string{"base": msg.Base}}
			default:
				send <- wsServerMessage{Type: "error", Payload: map[string]string{"message": "unknown action: " + msg.Action}}
			}
		}
	}
}
