package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/config"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/reports"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

// Refresher recomputes the default report after the ledger changed
type Refresher interface {
	Refresh(ctx context.Context) (*reports.Result, error)
}

// Broadcaster pushes report updates to websocket subscribers
type Broadcaster interface {
	Broadcast(update models.ReportUpdate) bool
}

// StreamConsumer consumes settlement events from a Redis Stream
type StreamConsumer struct {
	redis        *redis.Client
	refresher    Refresher
	hub          Broadcaster
	streamConfig config.StreamConfig
	logger       zerolog.Logger
}

// NewStreamConsumer creates a new stream consumer
func NewStreamConsumer(redisClient *redis.Client, refresher Refresher, hub Broadcaster, streamConfig config.StreamConfig, logger zerolog.Logger) *StreamConsumer {
	if streamConfig.BatchSize <= 0 {
		streamConfig.BatchSize = 10
	}
	if streamConfig.Block <= 0 {
		streamConfig.Block = time.Second
	}
	return &StreamConsumer{
		redis:        redisClient,
		refresher:    refresher,
		hub:          hub,
		streamConfig: streamConfig,
		logger: logger.With().
			Str("component", "consumer").
			Str("stream", streamConfig.SettledStream).
			Logger(),
	}
}

// Start consumes until ctx is cancelled
func (sc *StreamConsumer) Start(ctx context.Context) error {
	if err := sc.createConsumerGroup(ctx); err != nil {
		return err
	}

	sc.logger.Info().Str("group", sc.streamConfig.ConsumerGroup).Msg("stream consumer started")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := sc.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			sc.logger.Warn().Err(err).Msg("stream read error")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

func (sc *StreamConsumer) createConsumerGroup(ctx context.Context) error {
	err := sc.redis.XGroupCreateMkStream(ctx, sc.streamConfig.SettledStream, sc.streamConfig.ConsumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// Poll reads one batch from the stream and processes it. A batch with
// several settlements triggers a single recompute.
func (sc *StreamConsumer) Poll(ctx context.Context) error {
	streams, err := sc.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    sc.streamConfig.ConsumerGroup,
		Consumer: sc.streamConfig.ConsumerID,
		Streams:  []string{sc.streamConfig.SettledStream, ">"},
		Count:    sc.streamConfig.BatchSize,
		Block:    sc.streamConfig.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}

	var events []models.SettlementEvent
	var ids []string

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			ids = append(ids, msg.ID)
			event, ok := sc.parse(msg)
			if !ok {
				metrics.StreamMessages.WithLabelValues("invalid").Inc()
				continue
			}
			metrics.StreamMessages.WithLabelValues("ok").Inc()
			events = append(events, event)
		}
	}

	if len(events) > 0 {
		sc.refresh(ctx, events)
	}

	if len(ids) > 0 {
		if err := sc.redis.XAck(ctx, sc.streamConfig.SettledStream, sc.streamConfig.ConsumerGroup, ids...).Err(); err != nil {
			sc.logger.Warn().Err(err).Int("count", len(ids)).Msg("failed to ack messages")
		}
	}

	return nil
}

func (sc *StreamConsumer) parse(msg redis.XMessage) (models.SettlementEvent, bool) {
	var event models.SettlementEvent

	data, ok := msg.Values["data"].(string)
	if !ok {
		sc.logger.Warn().Str("id", msg.ID).Msg("message without data field")
		return event, false
	}

	if err := json.Unmarshal([]byte(data), &event); err != nil {
		sc.logger.Warn().Err(err).Str("id", msg.ID).Msg("failed to parse settlement event")
		return event, false
	}
	return event, true
}

// refresh recomputes once and tags the update with the last event of the
// batch. The bookmaker is only set when every event shares it.
func (sc *StreamConsumer) refresh(ctx context.Context, events []models.SettlementEvent) {
	last := events[len(events)-1]

	result, err := sc.refresher.Refresh(ctx)
	if err != nil {
		metrics.StreamMessages.WithLabelValues("refresh_failed").Inc()
		sc.logger.Error().Err(err).Int64("bet_id", last.BetID).Msg("report refresh failed")
		return
	}

	bookmaker := last.Bookmaker
	for _, e := range events {
		if e.Bookmaker != bookmaker {
			bookmaker = ""
			break
		}
	}

	sc.hub.Broadcast(models.ReportUpdate{
		ReportID:  result.ReportID,
		Bookmaker: bookmaker,
		Trigger:   last.BetID,
		Report:    result.Report,
	})

	sc.logger.Info().
		Int("events", len(events)).
		Int64("bet_id", last.BetID).
		Str("report_id", result.ReportID).
		Bool("partial", result.Partial).
		Msg("report refreshed")
}
