package handlers

import (
	"github.com/gofiber/contrib/websocket"

	hub "github.com/minhvu2810/homestay_booking/websocket"
)

// ServeEvents attaches a client to the live booking event feed. The feed is
// push-only; incoming frames are drained just to detect disconnects.
func ServeEvents(conn *websocket.Conn) {
	hub.Register <- conn
	defer func() {
		hub.Unregister <- conn
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
