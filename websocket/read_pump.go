package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

// readPump reads client frames until the connection fails. It answers ping
// messages and ignores everything else.
func (c *Client) readPump() {
	m := c.manager
	defer func() {
		select {
		case m.unregister <- c:
		case <-m.done:
		}
		_ = c.Socket.Close()
	}()

	c.Socket.SetReadLimit(maxMessageSize)
	_ = c.Socket.SetReadDeadline(time.Now().Add(pongWait))
	c.Socket.SetPongHandler(func(string) error {
		return c.Socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Debug("websocket read failed", "client_id", c.ID, "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			m.logger.Debug("invalid client message", "client_id", c.ID, "error", err)
			continue
		}
		if msg.Type == MessagePing {
			c.reply(Message{Type: MessagePong})
		}
	}
}
