package ws

import (
	"context"
	"sync"

	"github.com/Wyydra/rtcpeer/internal/core/domain"
	"github.com/Wyydra/rtcpeer/internal/core/port"
	"github.com/rs/zerolog/log"
)

var _ port.RealTimeGateway = (*Hub)(nil)

// Hub tracks connected clients and which client owns each connection id.
type Hub struct {
	mu         sync.RWMutex
	clients    map[port.Client]bool
	bindings   map[domain.ConnectionID]port.Client
	register   chan port.Client
	unregister chan port.Client
	quit       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[port.Client]bool),
		bindings:   make(map[domain.ConnectionID]port.Client),
		register:   make(chan port.Client),
		unregister: make(chan port.Client),
		quit:       make(chan struct{}),
	}
}

// Bind routes outbound signals for id to c. An id owned by another client
// cannot be taken over.
func (h *Hub) Bind(id domain.ConnectionID, c port.Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if owner, ok := h.bindings[id]; ok && owner != c {
		return &domain.ConnectionError{ID: id, Op: "bind", Err: domain.ErrAlreadyExists}
	}
	h.bindings[id] = c
	return nil
}

func (h *Hub) Unbind(id domain.ConnectionID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.bindings, id)
}

func (h *Hub) SendSignal(ctx context.Context, id domain.ConnectionID, signal domain.Signal) error {
	h.mu.RLock()
	client, ok := h.bindings[id]
	h.mu.RUnlock()
	if !ok {
		return &domain.ConnectionError{ID: id, Op: "send_signal", Err: domain.ErrNotFound}
	}
	return client.SendSignal(signal)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.bindings = make(map[domain.ConnectionID]port.Client)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Info().Str("client_id", client.ID()).Msg("Client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				for id, owner := range h.bindings {
					if owner == client {
						delete(h.bindings, id)
					}
				}
				client.Close()
				log.Info().Str("client_id", client.ID()).Msg("Client unregistered")
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Register(c port.Client) {
	select {
	case h.register <- c:
	case <-h.quit:
	}
}

func (h *Hub) Unregister(c port.Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
		c.Close()
	}
}

func (h *Hub) Stop() {
	close(h.quit)
}
