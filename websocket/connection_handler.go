package websocket

import (
	"net/http"
)

// HandleConnections upgrades the request and registers the client. The last
// published snapshot is sent right away.
func (m *Manager) HandleConnections(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(m, conn)
	select {
	case m.register <- client:
	case <-m.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
