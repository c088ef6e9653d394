package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// writePump writes queued messages and periodic pings. Each message goes out
// as its own text frame so clients can parse frames as JSON.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Socket.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
