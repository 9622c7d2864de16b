package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

type chanBus struct {
	ch chan []byte
}

func (b *chanBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.ch <- payload
	return nil
}

func (b *chanBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.ch, nil
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *chanBus) StreamGroupRead(context.Context, string, string, string, string, int, time.Duration) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *chanBus) StreamAck(context.Context, string, string, ...string) error { return nil }

func publish(t *testing.T, bus *chanBus, orderID int64) {
	t.Helper()
	data, err := json.Marshal(domain.OptimizationEvent{
		Type:    "optimization_success",
		Summary: domain.ResultSummary{OrderID: orderID, Status: domain.StatusSuccess},
	})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), domain.ChannelOptimization, data))
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestHubRelaysEvents(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 8)}
	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	hello := readEvent(t, conn)
	assert.Equal(t, "hello", hello["type"])

	publish(t, bus, 5)
	ev := readEvent(t, conn)
	assert.Equal(t, "optimization_success", ev["type"])

	require.NoError(t, conn.WriteJSON(subscribeMsg{Action: "subscribe", Orders: []int64{9}}))
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		for c := range hub.clients {
			if !c.wants(5) {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	publish(t, bus, 5)
	publish(t, bus, 9)
	ev = readEvent(t, conn)
	summary := ev["summary"].(map[string]any)
	assert.EqualValues(t, 9, summary["order_id"])
}
