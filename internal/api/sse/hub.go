// Package sse fans group events out to Server-Sent Events subscribers
package sse

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/boardgame-groups/internal/events"
	"github.com/mcoot/boardgame-groups/internal/model"
)

// Hub manages SSE clients for a single group
type Hub struct {
	groupID model.GroupID
	clients map[*Client]bool
	mu      sync.RWMutex
	logger  *slog.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan outgoing
	done       chan struct{}
	closeOnce  sync.Once
}

// outgoing is a queued message. When drop is set, that user's clients are
// disconnected right after the message is queued for them, so they still see
// the event that removed them. A close entry stops the hub once everything
// queued before it has been delivered.
type outgoing struct {
	message []byte
	drop    model.UserID
	close   bool
}

// NewHub creates a new Hub for a group
func NewHub(groupID model.GroupID, logger *slog.Logger) *Hub {
	return &Hub{
		groupID:    groupID,
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("group_id", string(groupID))),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outgoing, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	h.logger.Debug("sse hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("sse client registered",
				slog.String("user_id", string(client.userID)),
				slog.Int("total_clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; !ok {
				h.mu.Unlock()
				continue
			}
			delete(h.clients, client)
			close(client.send)
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("sse client unregistered",
				slog.String("user_id", string(client.userID)),
				slog.Duration("connection_duration", time.Since(client.connectedAt)),
				slog.Int("total_clients", count))

		case out := <-h.broadcast:
			if out.close {
				h.Close()
				h.shutdown()
				return
			}
			h.deliver(out)

		case <-h.done:
			h.shutdown()
			return
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	count := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()
	h.logger.Debug("sse hub stopped", slog.Int("disconnected_clients", count))
}

func (h *Hub) deliver(out outgoing) {
	h.mu.Lock()
	dropped, disconnected := 0, 0
	for client := range h.clients {
		if out.message != nil {
			select {
			case client.send <- out.message:
			default:
				dropped++
			}
		}
		if out.drop != "" && client.userID == out.drop {
			delete(h.clients, client)
			close(client.send)
			disconnected++
		}
	}
	total := len(h.clients)
	h.mu.Unlock()

	if dropped > 0 {
		h.logger.Warn("sse messages dropped, client buffers full",
			slog.Int("sent", total+disconnected-dropped),
			slog.Int("dropped", dropped))
	}
	if disconnected > 0 {
		h.logger.Info("sse clients of removed member disconnected",
			slog.String("user_id", string(out.drop)),
			slog.Int("disconnected", disconnected))
	}
}

// Register adds a client to the hub. Returns false if the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a raw SSE message for every client
func (h *Hub) Broadcast(message []byte) {
	h.enqueue(outgoing{message: message})
}

// DisconnectUser closes every stream userID holds on this hub, after the
// messages queued before it
func (h *Hub) DisconnectUser(userID model.UserID) {
	h.enqueue(outgoing{drop: userID})
}

// CloseAfterQueued stops the hub once the messages already queued have been
// handed to its clients
func (h *Hub) CloseAfterQueued() {
	if !h.enqueue(outgoing{close: true}) {
		h.Close()
	}
}

func (h *Hub) enqueue(out outgoing) bool {
	select {
	case h.broadcast <- out:
		return true
	default:
		h.logger.Warn("sse broadcast dropped, hub buffer full")
		return false
	}
}

// BroadcastEvent sends an SSE event with a name and data
func (h *Hub) BroadcastEvent(eventName, data string) {
	h.Broadcast(formatSSEMessage(eventName, data))
}

// Close shuts down the hub and disconnects its clients
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// formatSSEMessage formats an SSE message. Every data line gets its own
// "data: " prefix.
func formatSSEMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(eventName)
	b.WriteByte('\n')
	for _, line := range splitLines(data) {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// splitLines splits on LF or CRLF, ignoring one trailing newline
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

// HubManager owns one hub per group with subscribers and publishes group
// events to them
type HubManager struct {
	hubs   map[model.GroupID]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// Ensure HubManager implements Publisher
var _ events.Publisher = (*HubManager)(nil)

// NewHubManager creates a new HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[model.GroupID]*Hub),
		logger: logger.With(slog.String("component", "sse")),
	}
}

// GetOrCreateHub returns the hub for a group, starting one if needed
func (m *HubManager) GetOrCreateHub(groupID model.GroupID) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[groupID]; ok {
		return hub
	}

	hub := NewHub(groupID, m.logger)
	m.hubs[groupID] = hub
	go hub.Run()
	return hub
}

// GetHub returns the hub for a group, or nil
func (m *HubManager) GetHub(groupID model.GroupID) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[groupID]
}

// RemoveHub forgets a group's hub and closes it once the events already
// queued on it have been delivered
func (m *HubManager) RemoveHub(groupID model.GroupID) {
	m.mu.Lock()
	hub, ok := m.hubs[groupID]
	delete(m.hubs, groupID)
	m.mu.Unlock()

	if ok {
		hub.CloseAfterQueued()
	}
}

// Publish sends event to the subscribers of its group as a JSON SSE event
// named after the event type. Groups without subscribers are skipped.
// Subscribers only hear about a group while they belong to it: a removed
// member's streams end after the member_removed event, and group_deleted
// closes the group's hub.
func (m *HubManager) Publish(ctx context.Context, event model.Event) {
	hub := m.GetHub(event.GroupID)
	if hub == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("failed to encode event",
			slog.String("type", string(event.Type)),
			slog.Any("error", err))
		return
	}

	out := outgoing{message: formatSSEMessage(string(event.Type), string(data))}
	if event.Type == model.EventMemberRemoved {
		if p, ok := event.Payload.(model.MemberPayload); ok {
			out.drop = p.UserID
		}
	}
	hub.enqueue(out)

	if event.Type == model.EventGroupDeleted {
		m.RemoveHub(event.GroupID)
	}
}

// CleanupEmptyHubs closes hubs that have no clients
func (m *HubManager) CleanupEmptyHubs() {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, hub := range m.hubs {
		if hub.ClientCount() == 0 {
			hub.Close()
			delete(m.hubs, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("sse empty hubs cleaned up", slog.Int("removed", removed))
	}
}

// RunJanitor calls CleanupEmptyHubs every interval until ctx is done
func (m *HubManager) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupEmptyHubs()
		}
	}
}

// Close shuts every hub down
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, hub := range m.hubs {
		hub.Close()
		delete(m.hubs, id)
	}
}
