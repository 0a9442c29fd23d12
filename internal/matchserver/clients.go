package matchserver

import (
	"errors"
	"sync"

	"github.com/arcanfell/matchserver/internal/protocol"
)

// ErrAlreadyConnected means the player id already has a live session.
var ErrAlreadyConnected = errors.New("player is already connected")

// Registry tracks the authenticated sessions of a match, keyed by player id.
// Entries survive disconnects; only match teardown removes them.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client, 2)}
}

// Register adds a session and starts its write pump. A live session under
// the same player id rejects the registration; a dead one is replaced and
// hands its missed backlog to the newcomer.
func (r *Registry) Register(client *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.clients[client.playerID]; ok {
		if existing.Connected() {
			return ErrAlreadyConnected
		}
		existing.Close()
		client.requeueMissed(existing.drainMissed())
	}

	r.clients[client.playerID] = client
	go client.runSender()
	return nil
}

// Client looks up a session by player id.
func (r *Registry) Client(playerID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[playerID]
	return client, ok
}

// Count returns the number of registered sessions, live or not.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast fans one packet out to every session. Disconnected sessions
// buffer it for their next reconnect.
func (r *Registry) Broadcast(pkt protocol.Packet) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, client := range r.clients {
		client.Deliver(pkt)
	}
}

// CloseAll tears every session down at match end.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, client := range r.clients {
		client.Close()
	}
}
