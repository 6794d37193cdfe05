package hub_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/client"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/internal/hub"
	"github.com/XavierBriggs/fortuna/services/bet-ledger/pkg/models"
)

func startHub(t *testing.T) (*hub.Hub, context.CancelFunc) {
	t.Helper()
	h := hub.NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, cancel
}

func receive(t *testing.T, c *client.Client) models.ServerMessage {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return models.ServerMessage{}
	}
}

func TestHub_BroadcastRespectsFilters(t *testing.T) {
	h, _ := startHub(t)

	all := client.NewClient("all", nil, h)
	betano := client.NewClient("betano", nil, h)
	betano.SetFilter(models.SubscriptionFilter{Bookmakers: []string{"Betano"}})
	bet365 := client.NewClient("bet365", nil, h)
	bet365.SetFilter(models.SubscriptionFilter{Bookmakers: []string{"Bet365"}})

	h.Register(all)
	h.Register(betano)
	h.Register(bet365)
	require.Eventually(t, func() bool { return h.Subscribers() == 3 }, time.Second, 5*time.Millisecond)

	require.True(t, h.Broadcast(models.ReportUpdate{ReportID: "r1", Bookmaker: "Betano"}))

	msg := receive(t, all)
	assert.Equal(t, models.MessageTypeReportUpdated, msg.Type)
	update, ok := msg.Payload.(models.ReportUpdate)
	require.True(t, ok)
	assert.Equal(t, "r1", update.ReportID)

	receive(t, betano)
	assert.Never(t, func() bool { return len(bet365.Send) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h, _ := startHub(t)

	c := client.NewClient("c1", nil, h)
	h.Register(c)
	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	h.Unregister(c)
	require.Eventually(t, func() bool { return h.Subscribers() == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-c.Send
	assert.False(t, open)

	// unregistering twice is harmless
	h.Unregister(c)
}

func TestHub_ShutdownReleasesCallers(t *testing.T) {
	h, cancel := startHub(t)

	c := client.NewClient("c1", nil, h)
	h.Register(c)
	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool { return h.Subscribers() == 0 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		h.Unregister(c)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Unregister blocked after shutdown")
	}
}

func TestHub_Stats(t *testing.T) {
	h, _ := startHub(t)

	betano := client.NewClient("betano", nil, h)
	betano.SetFilter(models.SubscriptionFilter{Bookmakers: []string{"Betano"}})
	h.Register(betano)
	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	h.Broadcast(models.ReportUpdate{ReportID: "r1"})
	receive(t, betano)
	h.Broadcast(models.ReportUpdate{ReportID: "r2", Bookmaker: "KTO"})

	require.Eventually(t, func() bool { return h.Stats().UpdatesPublished == 2 }, time.Second, 5*time.Millisecond)

	stats := h.Stats()
	assert.Equal(t, 1, stats.Subscribers)
	assert.Equal(t, int64(1), stats.Deliveries)
	assert.Equal(t, int64(0), stats.SlowDisconnects)
	assert.Equal(t, "r2", stats.LastReportID)
	assert.Zero(t, stats.Queued)
}

func TestHub_DisconnectsSlowSubscriber(t *testing.T) {
	h, _ := startHub(t)

	slow := client.NewClient("slow", nil, h)
	h.Register(slow)
	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	for slow.TrySend(models.ServerMessage{Type: models.MessageTypeReportUpdated}) {
	}

	h.Broadcast(models.ReportUpdate{ReportID: "r1"})

	require.Eventually(t, func() bool { return h.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
	stats := h.Stats()
	assert.Equal(t, int64(1), stats.SlowDisconnects)
	assert.Equal(t, int64(0), stats.Deliveries)
}
