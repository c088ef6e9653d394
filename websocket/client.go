package websocket

import (
	"encoding/json"

	"github.com/gorilla/websocket"
)

func newClient(m *Manager, conn *websocket.Conn) *Client {
	return &Client{
		ID:      m.nextID.Add(1),
		Socket:  conn,
		Send:    make(chan []byte, sendBuffer),
		manager: m,
	}
}

// reply queues a message for this client only. It gives up when the buffer
// is full; the manager may also have closed Send already.
func (c *Client) reply(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	defer func() { _ = recover() }()
	select {
	case c.Send <- data:
	default:
	}
}
