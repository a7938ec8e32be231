package main

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// StatusHub pushes source status snapshots to websocket clients. It is
// the push counterpart of /check_streams: the health monitor feeds it
// once per tick and only changes reach the wire.
type StatusHub struct {
	mu         sync.Mutex
	clients    map[string]*StatusClient
	idGen      int64
	last       []byte
	broadcasts int
}

// NewStatusHub creates an empty hub.
func NewStatusHub() *StatusHub {
	return &StatusHub{clients: make(map[string]*StatusClient)}
}

// Broadcast sends the snapshot to every connected client. Clients with
// a full send buffer skip the update; they will get the next one.
func (h *StatusHub) Broadcast(statuses []SourceStatus) {
	payload, err := json.Marshal(statuses)
	if err != nil {
		log.Error().Err(err).Msg("marshal status payload")
		return
	}

	h.mu.Lock()
	h.last = payload
	h.broadcasts++
	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
			log.Debug().Str("client", c.id).Msg("status client buffer full, skipping update")
		}
	}
	h.mu.Unlock()
}

// Add registers a websocket connection and starts its pumps. The new
// client immediately receives the most recent snapshot so its UI does
// not wait for the next transition.
func (h *StatusHub) Add(conn *websocket.Conn) *StatusClient {
	h.mu.Lock()
	h.idGen++
	client := &StatusClient{
		id:   fmt.Sprintf("status_%d", h.idGen),
		conn: conn,
		send: make(chan []byte, 4),
		hub:  h,
	}
	h.clients[client.id] = client
	if h.last != nil {
		client.send <- h.last
	}
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()

	log.Info().Str("client", client.id).Msg("status client connected")
	return client
}

// remove drops a client and closes its send channel exactly once.
func (h *StatusHub) remove(c *StatusClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}
	c.closed = true
	c.closeMu.Unlock()

	delete(h.clients, c.id)
	close(c.send)
	log.Info().Str("client", c.id).Msg("status client disconnected")
}
