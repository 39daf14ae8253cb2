package controller

import (
	"github.com/gofiber/websocket/v2"

	"zapflow/hub"
)

// HandleBoardWS registers a client on the fan-out channel and blocks
// until it disconnects. Clients send nothing over this channel; the
// read loop only detects the close.
func HandleBoardWS(h *hub.Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		session := h.Register(c)
		defer h.Unregister(session)
		defer c.Close()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}
}
