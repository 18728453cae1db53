// Package realtime routes delivery envelopes to recipient-scoped broadcast
// groups over websockets. Delivery is best-effort to whoever is currently
// subscribed; there is no replay.
package realtime

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Client]bool
	log    zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		groups: make(map[string]map[*Client]bool),
		log:    log.With().Str("component", "realtime").Logger(),
	}
}

func (h *Hub) Join(group string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.groups[group]
	if !ok {
		clients = make(map[*Client]bool)
		h.groups[group] = clients
	}
	clients[c] = true
	h.log.Debug().Str("group", group).Int("group_size", len(clients)).Msg("client joined")
}

func (h *Hub) Leave(group string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.groups[group]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.groups, group)
	}
	h.log.Debug().Str("group", group).Int("group_size", len(clients)).Msg("client left")
}

// GroupSize reports the number of live connections in a group.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Broadcast sends the payload to every connection in the group. Clients that
// cannot keep up are skipped rather than blocking the caller. Sends happen
// under the read lock: Leave closes send channels under the write lock, so a
// channel seen here cannot be closed mid-send.
func (h *Hub) Broadcast(group string, payload any) error {
	const op = "realtime.Broadcast"

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.groups[group] {
		select {
		case c.send <- data:
		default:
			h.log.Warn().Str("group", group).Msg("dropping message for slow client")
		}
	}
	return nil
}
