package hub

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/client"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

// updateQueueSize bounds recomputed reports waiting for fan-out
const updateQueueSize = 64

// Hub fans recomputed reports out to websocket subscribers
type Hub struct {
	clients   map[*client.Client]bool
	clientsMu sync.RWMutex

	updates    chan models.ReportUpdate
	register   chan *client.Client
	unregister chan *client.Client

	// closed once the hub has shut down
	done chan struct{}

	stats   models.HubStats
	statsMu sync.Mutex

	logger zerolog.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client.Client]bool),
		updates:    make(chan models.ReportUpdate, updateQueueSize),
		register:   make(chan *client.Client),
		unregister: make(chan *client.Client),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "hub").Logger(),
	}
}

// Run owns the subscriber set until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info().Msg("hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case c := <-h.register:
			h.addSubscriber(c)

		case c := <-h.unregister:
			h.removeSubscriber(c)

		case update := <-h.updates:
			h.publish(update)
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(c *client.Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(c *client.Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues a report update for every matching client. Updates are
// dropped when the queue is full.
func (h *Hub) Broadcast(update models.ReportUpdate) bool {
	select {
	case h.updates <- update:
		return true
	default:
		h.logger.Warn().Str("report_id", update.ReportID).Msg("update queue full, dropping report")
		return false
	}
}

func (h *Hub) addSubscriber(c *client.Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.clients[c] = true
	metrics.WebSocketClients.Set(float64(len(h.clients)))

	h.logger.Info().Str("client_id", c.ID).Int("total", len(h.clients)).Msg("client connected")
}

func (h *Hub) removeSubscriber(c *client.Client) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.Send)
		metrics.WebSocketClients.Set(float64(len(h.clients)))
		h.logger.Info().Str("client_id", c.ID).Int("total", len(h.clients)).Msg("client disconnected")
	}
}

// publish sends a report to every subscriber whose bookmaker filter
// covers it. Subscribers with a full buffer are disconnected.
func (h *Hub) publish(update models.ReportUpdate) {
	h.clientsMu.RLock()
	clients := make([]*client.Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clientsMu.RUnlock()

	message := models.ServerMessage{
		Type:      models.MessageTypeReportUpdated,
		Payload:   update,
		Timestamp: time.Now(),
	}

	var delivered, slow int64
	for _, c := range clients {
		if !c.MatchesFilter(update) {
			continue
		}
		if c.TrySend(message) {
			delivered++
			continue
		}
		slow++
		go h.Unregister(c)
	}

	h.statsMu.Lock()
	h.stats.UpdatesPublished++
	h.stats.Deliveries += delivered
	h.stats.SlowDisconnects += slow
	h.stats.LastReportID = update.ReportID
	h.statsMu.Unlock()

	if slow > 0 {
		h.logger.Warn().Int64("slow", slow).Str("report_id", update.ReportID).Msg("disconnecting slow clients")
	}
}

// Stats returns report push counters
func (h *Hub) Stats() models.HubStats {
	h.statsMu.Lock()
	stats := h.stats
	h.statsMu.Unlock()

	stats.Subscribers = h.Subscribers()
	stats.Queued = len(h.updates)
	return stats
}

// Subscribers returns the number of connected clients
func (h *Hub) Subscribers() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.logger.Info().Int("clients", len(h.clients)).Msg("shutting down hub")

	for c := range h.clients {
		close(c.Send)
		delete(h.clients, c)
	}
	metrics.WebSocketClients.Set(0)
	close(h.done)
}
