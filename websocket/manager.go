package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jslozanod/etl-workshop-1/ETL/utils"
)

// Manager keeps the set of connected clients and fans snapshots out to them.
// The client set is owned by the Run goroutine.
type Manager struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	logger        *utils.ETLLogger
	onClientCount func(int)

	latestMu sync.RWMutex
	latest   []byte

	nextID  atomic.Uint64
	count   atomic.Int64
	stopped sync.Once
}

// NewManager creates a manager. onClientCount, when not nil, is called with
// the number of clients every time it changes.
func NewManager(logger *utils.ETLLogger, onClientCount func(int)) *Manager {
	return &Manager{
		clients:       make(map[*Client]bool),
		broadcast:     make(chan []byte, broadcastBuffer),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		done:          make(chan struct{}),
		logger:        logger.Named("websocket"),
		onClientCount: onClientCount,
	}
}

// Run serves registrations and broadcasts until ctx is done, then
// disconnects every client.
func (m *Manager) Run(ctx context.Context) {
	defer m.stopped.Do(func() { close(m.done) })

	for {
		select {
		case <-ctx.Done():
			for client := range m.clients {
				m.remove(client)
			}
			m.updateCount()
			m.logger.Debug("websocket manager stopped")
			return

		case client := <-m.register:
			m.clients[client] = true
			if latest := m.Latest(); latest != nil {
				client.Send <- latest
			}
			m.logger.Debug("client connected", "client_id", client.ID)
			m.updateCount()

		case client := <-m.unregister:
			if m.clients[client] {
				m.remove(client)
				m.logger.Debug("client disconnected", "client_id", client.ID)
				m.updateCount()
			}

		case message := <-m.broadcast:
			m.fanOut(message)
		}
	}
}

// fanOut drops clients whose send buffer is full.
func (m *Manager) fanOut(message []byte) {
	dropped := 0
	for client := range m.clients {
		select {
		case client.Send <- message:
		default:
			m.remove(client)
			dropped++
		}
	}
	if dropped > 0 {
		m.logger.Warn("slow clients dropped", "count", dropped)
		m.updateCount()
	}
}

func (m *Manager) remove(client *Client) {
	delete(m.clients, client)
	close(client.Send)
}

func (m *Manager) updateCount() {
	n := len(m.clients)
	m.count.Store(int64(n))
	if m.onClientCount != nil {
		m.onClientCount(n)
	}
}

// Publish sends v to every client as a snapshot message and keeps it for
// clients that connect later.
func (m *Manager) Publish(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	message, err := json.Marshal(Message{Type: MessageSnapshot, Data: data})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	m.latestMu.Lock()
	m.latest = message
	m.latestMu.Unlock()

	select {
	case <-m.done:
		return ErrManagerStopped
	default:
	}
	select {
	case m.broadcast <- message:
		return nil
	case <-m.done:
		return ErrManagerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Latest returns the last published message, or nil.
func (m *Manager) Latest() []byte {
	m.latestMu.RLock()
	defer m.latestMu.RUnlock()
	return m.latest
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	return int(m.count.Load())
}
