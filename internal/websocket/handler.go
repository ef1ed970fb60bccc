package websocket

import (
	"github.com/gofiber/websocket/v2"
)

// ServeWs attaches a websocket connection to the hub for a surface.
func ServeWs(hub *Hub, c *websocket.Conn, surfaceKey string) {
	client := &Client{Hub: hub, Conn: c, SurfaceKey: surfaceKey, Send: make(chan []byte, 256)}
	client.Hub.register <- client

	go client.writePump()
	client.readPump() // run readPump in the handler goroutine
}
