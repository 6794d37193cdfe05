package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second

	// must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// subscribe payloads only carry a bookmaker list
	maxMessageSize = 512

	// reports are large; a subscriber more than a few behind is dropped
	sendBufferSize = 16
)

// Client is one websocket subscriber to recomputed reports
type Client struct {
	ID   string
	Send chan models.ServerMessage

	conn        *websocket.Conn
	hub         Hub
	connectedAt time.Time
	logger      zerolog.Logger

	filter   models.SubscriptionFilter
	filterMu sync.RWMutex
}

// Hub is the part of the hub a client needs to leave it
type Hub interface {
	Unregister(client *Client)
}

// NewClient creates a new client instance. conn may be nil in tests that
// never start the pumps.
func NewClient(id string, conn *websocket.Conn, hub Hub) *Client {
	return &Client{
		ID:          id,
		Send:        make(chan models.ServerMessage, sendBufferSize),
		conn:        conn,
		hub:         hub,
		connectedAt: time.Now().UTC(),
		logger:      log.With().Str("component", "ws-client").Str("client_id", id).Logger(),
	}
}

// ReadPump reads subscription messages until the connection drops
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var msg models.ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("unexpected close")
			}
			return
		}
		c.HandleMessage(msg)
	}
}

// WritePump writes queued reports and keeps the connection alive with pings
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Warn().Err(err).Str("type", message.Type).Msg("write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues a message without blocking and reports whether it fit
func (c *Client) TrySend(msg models.ServerMessage) bool {
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

// SetFilter replaces the client's bookmaker filter
func (c *Client) SetFilter(filter models.SubscriptionFilter) {
	c.filterMu.Lock()
	defer c.filterMu.Unlock()
	c.filter = filter
}

// Subscription returns the client's current filter
func (c *Client) Subscription() models.Subscription {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	return models.Subscription{
		ClientID:    c.ID,
		Bookmakers:  c.filter.Bookmakers,
		ConnectedAt: c.connectedAt,
	}
}

// MatchesFilter checks if a report update is relevant to the client.
// Updates without a bookmaker cover the whole ledger and always match.
func (c *Client) MatchesFilter(update models.ReportUpdate) bool {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()

	if len(c.filter.Bookmakers) == 0 || update.Bookmaker == "" {
		return true
	}
	for _, b := range c.filter.Bookmakers {
		if b == update.Bookmaker {
			return true
		}
	}
	return false
}

// HandleMessage applies a subscription message from the client
func (c *Client) HandleMessage(msg models.ClientMessage) {
	switch msg.Type {
	case models.MessageTypeSubscribe:
		var filter models.SubscriptionFilter
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &filter); err != nil {
				c.sendError("invalid_filter", "failed to parse filter")
				return
			}
		}
		c.SetFilter(filter)
		c.logger.Debug().Strs("bookmakers", filter.Bookmakers).Msg("subscribed")
		c.reply(models.MessageTypeSubscribed, c.Subscription())

	case models.MessageTypeUnsubscribe:
		c.SetFilter(models.SubscriptionFilter{})
		c.logger.Debug().Msg("unsubscribed")
		c.reply(models.MessageTypeSubscribed, c.Subscription())

	case models.MessageTypeHeartbeat:
		c.reply(models.MessageTypeHeartbeat, c.Subscription())

	default:
		c.sendError("unknown_message_type", fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (c *Client) reply(msgType string, payload interface{}) {
	c.TrySend(models.ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

func (c *Client) sendError(code, message string) {
	c.reply(models.MessageTypeError, models.ErrorMessage{Code: code, Message: message})
}
