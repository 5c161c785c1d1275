package devserver

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sitepack/internal/telemetry"
	"golang.org/x/net/websocket"
)

// ReloadPath is the websocket endpoint browsers connect to.
const ReloadPath = "/__sitepack/ws"

// ReloadMessage tells connected pages to reload.
const ReloadMessage = "reload"

// ReloadScript is injected into the HTML shell while serving.
const ReloadScript = `(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var connect = function () {
    var ws = new WebSocket(proto + location.host + "` + ReloadPath + `");
    ws.onmessage = function (e) { if (e.data === "` + ReloadMessage + `") { location.reload(); } };
    ws.onclose = function () { setTimeout(connect, 1000); };
  };
  connect();
})();`

// Hub tracks live reload clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	metrics *telemetry.Metrics
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		metrics: telemetry.GetMetrics(),
	}
}

// Handler accepts websocket connections and holds them until the client goes away.
func (h *Hub) Handler() websocket.Handler {
	return func(ws *websocket.Conn) {
		h.add(ws)
		defer h.remove(ws)

		// clients never send anything meaningful, read until they disconnect
		var msg string
		for {
			if err := websocket.Message.Receive(ws, &msg); err != nil {
				return
			}
		}
	}
}

// Broadcast sends msg to every client and drops the ones that fail.
func (h *Hub) Broadcast(ctx context.Context, msg string) int {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	sent := 0
	for _, c := range conns {
		if err := websocket.Message.Send(c, msg); err != nil {
			log.Debug().Err(err).Msg("Dropping live reload client")
			h.remove(c)
			c.Close()
			continue
		}
		sent++
	}

	h.metrics.ReloadsTotal.Add(ctx, 1)
	return sent
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(ws *websocket.Conn) {
	h.mu.Lock()
	h.clients[ws] = struct{}{}
	h.mu.Unlock()

	h.metrics.ActiveClients.Add(context.Background(), 1)
	log.Debug().Str("remote", ws.Request().RemoteAddr).Msg("Live reload client connected")
}

func (h *Hub) remove(ws *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.clients[ws]
	delete(h.clients, ws)
	h.mu.Unlock()

	if ok {
		h.metrics.ActiveClients.Add(context.Background(), -1)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
		h.metrics.ActiveClients.Add(context.Background(), -1)
	}
}
