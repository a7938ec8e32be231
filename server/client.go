package main

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// StatusClient is one websocket subscriber of the status feed.
type StatusClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *StatusHub

	closeMu sync.Mutex
	closed  bool
}

// readPump drains incoming messages. The feed is one-way; reads exist
// only to observe pongs and disconnects.
func (c *StatusClient) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(StatusReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(StatusReadDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(StatusReadDeadline))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Str("client", c.id).Err(err).Msg("status feed read error")
			}
			break
		}
	}
}

// writePump delivers status payloads and keepalive pings to the client.
func (c *StatusClient) writePump() {
	ticker := time.NewTicker(StatusPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(StatusWriteDeadline))
			if !ok {
				// Channel closed, send close message and exit
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debug().Str("client", c.id).Err(err).Msg("status feed write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(StatusWriteDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
