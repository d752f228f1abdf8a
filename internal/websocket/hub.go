// Package websocket broadcasts ingestion progress events to connected
// UI clients. The hub never blocks on a slow client: a client whose
// send buffer fills is disconnected.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"indistocks/pkg/contracts/domain"
)

// Message is the envelope written to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	TypeProgress = "ingest:progress"
	TypeRefresh  = "symbols:refreshed"
)

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	logger     *slog.Logger
}

// NewHub creates a hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
	}
}

// Run processes registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client connected", slog.String("client_id", client.id))
		case client := <-h.unregister:
			h.drop(client)
		case message := <-h.broadcast:
			h.mu.RLock()
			stalled := make([]*Client, 0)
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					stalled = append(stalled, client)
				}
			}
			h.mu.RUnlock()
			for _, client := range stalled {
				h.logger.Warn("dropping stalled client", slog.String("client_id", client.id))
				h.drop(client)
			}
		}
	}
}

// BroadcastProgress publishes one ingestion progress event.
func (h *Hub) BroadcastProgress(ev domain.BatchProgress) {
	h.publish(Message{Type: TypeProgress, Data: ev})
}

// BroadcastRefresh publishes a symbol directory refresh summary.
func (h *Hub) BroadcastRefresh(summary domain.SyncSummary) {
	h.publish(Message{Type: TypeRefresh, Data: summary})
}

func (h *Hub) publish(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast", slog.String("error", err.Error()))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		// Broadcast buffer full; drop the event rather than block.
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}
