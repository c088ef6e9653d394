package websocket

import (
	"time"
)

const (
	// Time allowed to write a message to the client.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the client.
	pongWait = 60 * time.Second

	// Pings are sent with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients only send pings.
	maxMessageSize = 4 * 1024

	// Snapshots queued per client before it counts as too slow.
	sendBuffer = 16

	broadcastBuffer = 8
)
