package feed

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Hub serves bus subscriptions over WebSocket. Each connection names a
// table and an optional filter in the query string and then receives a
// stream of CBOR-encoded envelopes as binary messages.
type Hub struct {
	bus      *Bus
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHub creates a hub serving the given bus.
func NewHub(bus *Bus, logger *slog.Logger) *Hub {
	return &Hub{
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and streams envelopes until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	table := r.URL.Query().Get("table")
	if table == "" {
		http.Error(w, "missing table parameter", http.StatusBadRequest)
		return
	}
	filter, err := ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		http.Error(w, "invalid filter parameter", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := h.bus.Subscribe(table, filter)
	defer sub.Close()

	h.logger.Info("feed subscription opened",
		"table", table,
		"filter", filter.String(),
		"remote", r.RemoteAddr)

	// Discard inbound frames so close and pong frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Close()
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case e, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := EncodeEnvelope(e)
			if err != nil {
				h.logger.Error("failed to encode envelope", "error", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
