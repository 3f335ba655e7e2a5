package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs handles a host websocket connection.
func ServeWs(hub *Hub, c *websocket.Conn) {
	client := &Client{Hub: hub, Conn: c, Send: make(chan []byte, 256)}
	if !hub.admit(client) {
		c.Close()
		return
	}

	go client.writePump()
	client.readPump() // Run readPump in current goroutine (handler)
}
