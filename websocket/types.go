// Package websocket pushes dashboard KPI snapshots to browser clients.
package websocket

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
)

// Message types exchanged with clients.
const (
	MessageSnapshot = "snapshot"
	MessagePing     = "ping"
	MessagePong     = "pong"
)

// ErrManagerStopped is returned when publishing after Run has returned.
var ErrManagerStopped = errors.New("websocket manager stopped")

// Message is the envelope of every frame.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Client is one connected dashboard.
type Client struct {
	ID      uint64
	Socket  *websocket.Conn
	Send    chan []byte
	manager *Manager
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard API is read-only and served with permissive CORS.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}
