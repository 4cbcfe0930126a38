package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches an admin connection to the hub and blocks until it closes.
func ServeWs(hub *Hub, c *websocket.Conn, adminID string) {
	client := &Client{Hub: hub, Conn: c, AdminID: adminID, Send: make(chan []byte, 256)}
	if !hub.join(client) {
		_ = c.Close()
		return
	}

	go client.writePump()
	client.readPump()
}
