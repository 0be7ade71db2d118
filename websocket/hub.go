package websocket

import (
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
)

// Event is a booking lifecycle notification pushed to connected ops clients.
type Event struct {
	Type            string    `json:"type"`
	BookingID       string    `json:"booking_id"`
	BookingStatus   string    `json:"booking_status"`
	TransactionCode string    `json:"transaction_code,omitempty"`
	At              time.Time `json:"at"`
}

var clients = make(map[*websocket.Conn]bool)
var clientsMu sync.RWMutex
var Register = make(chan *websocket.Conn)
var Unregister = make(chan *websocket.Conn)
var broadcast = make(chan Event, 64)

func RunHub() {
	for {
		select {
		case conn := <-Register:
			clientsMu.Lock()
			clients[conn] = true
			clientsMu.Unlock()
			log.Printf("Event feed client connected (%d total)", len(clients))
		case conn := <-Unregister:
			clientsMu.Lock()
			delete(clients, conn)
			clientsMu.Unlock()
		case event := <-broadcast:
			clientsMu.RLock()
			var dead []*websocket.Conn
			for conn := range clients {
				if err := conn.WriteJSON(event); err != nil {
					log.Printf("Error sending event to client: %v", err)
					conn.Close()
					dead = append(dead, conn)
				}
			}
			clientsMu.RUnlock()
			if len(dead) > 0 {
				clientsMu.Lock()
				for _, conn := range dead {
					delete(clients, conn)
				}
				clientsMu.Unlock()
			}
		}
	}
}

// Publish queues an event for broadcast. Never blocks the caller: when the
// feed is saturated the event is dropped, it is a best-effort channel.
func Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	select {
	case broadcast <- event:
	default:
	}
}
