// Package eventstream implements the live WebSocket event feed spec.md
// §4.10/§6 describes: a bounded-buffer broadcast hub plus cursor-resumable
// backlog draining and a heartbeat for idle connections. Grounded on
// tommy-ca-opensqt_market_maker's pkg/liveserver/hub.go (buffered
// non-blocking client channels, register/unregister/broadcast loop) and
// yohannesjx-sniperterminal's hub.go (gorilla/websocket ping/pong
// heartbeat constants and pinger goroutine).
package eventstream

import (
	"context"
	"sync"
	"time"
)

// Envelope is one outbound message on the live stream, matching spec.md
// §4.10's wire shape.
type Envelope struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"ts"`
	Cursor    uint64         `json:"cursor"`
	EventType string         `json:"event_type,omitempty"`
	Level     string         `json:"level,omitempty"`
	Symbol    *string        `json:"symbol,omitempty"`
	TradeID   *string        `json:"trade_id,omitempty"`
	PublicSafe bool          `json:"public_safe"`
	Payload   map[string]any `json:"payload,omitempty"`
}

const (
	EnvelopeTypeEvent  = "event"
	EnvelopeTypeStatus = "status"
)

// Client is one connected WebSocket subscriber. send is bounded so one slow
// reader can never block the broadcast loop; a full channel unregisters the
// client instead of blocking.
type Client struct {
	id     string
	send   chan Envelope
	mu     sync.Mutex
	closed bool
}

func NewClient(id string) *Client {
	return &Client{id: id, send: make(chan Envelope, 256)}
}

func (c *Client) Send(env Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

func (c *Client) Recv() <-chan Envelope { return c.send }

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub fans out envelopes to every registered client.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Envelope
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run drives the hub until ctx is cancelled, at which point every client is
// closed.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			h.mu.Unlock()

		case env := <-h.broadcast:
			h.mu.RLock()
			clientList := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clientList = append(clientList, client)
			}
			h.mu.RUnlock()

			for _, client := range clientList {
				if !client.Send(env) {
					h.mu.Lock()
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						client.Close()
					}
					h.mu.Unlock()
				}
			}
		}
	}
}

func (h *Hub) Register(c *Client)   { h.register <- c }
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Broadcast is non-blocking: if the hub's own buffer is full, the envelope
// is dropped rather than stalling the caller (the trading loop).
func (h *Hub) Broadcast(env Envelope) bool {
	select {
	case h.broadcast <- env:
		return true
	default:
		return false
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
