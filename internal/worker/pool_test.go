package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

// streamBus replays pending entries for ids other than ">", serves the new
// backlog once, then blocks until ctx ends.
type streamBus struct {
	mu      sync.Mutex
	pending []domain.StreamMessage
	backlog []domain.StreamMessage
	readErr error
	readIDs []string
	acked   []string
}

func (b *streamBus) Publish(context.Context, string, []byte) error { return nil }

func (b *streamBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, nil
}

func (b *streamBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *streamBus) StreamGroupRead(ctx context.Context, _, _, _, id string, count int, block time.Duration) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	b.readIDs = append(b.readIDs, id)
	if b.readErr != nil {
		err := b.readErr
		b.mu.Unlock()
		return nil, err
	}
	if id != ">" {
		var out []domain.StreamMessage
		for _, m := range b.pending {
			if m.ID > id && len(out) < count {
				out = append(out, m)
			}
		}
		b.mu.Unlock()
		return out, nil
	}
	if len(b.backlog) > 0 {
		n := min(count, len(b.backlog))
		out := b.backlog[:n]
		b.backlog = b.backlog[n:]
		b.mu.Unlock()
		return out, nil
	}
	b.mu.Unlock()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(block):
		return nil, nil
	}
}

func (b *streamBus) StreamAck(_ context.Context, _, _ string, ids ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acked = append(b.acked, ids...)
	return nil
}

type countingRunner struct {
	mu       sync.Mutex
	orders   []int64
	inFlight int
	peak     int
	done     chan struct{}
	want     int
}

func (r *countingRunner) Run(ctx context.Context, orderID int64) (*domain.OptimizationResult, error) {
	r.mu.Lock()
	r.inFlight++
	r.peak = max(r.peak, r.inFlight)
	r.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	r.mu.Lock()
	r.inFlight--
	r.orders = append(r.orders, orderID)
	if len(r.orders) == r.want {
		close(r.done)
	}
	r.mu.Unlock()
	if orderID == 3 {
		return nil, domain.ErrLockHeld
	}
	return &domain.OptimizationResult{OrderID: orderID, RunID: "r", Status: domain.StatusSuccess}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func msg(id, payload string) domain.StreamMessage {
	return domain.StreamMessage{ID: id, Payload: []byte(payload)}
}

func TestPoolRunsEveryRequest(t *testing.T) {
	bus := &streamBus{
		pending: []domain.StreamMessage{
			msg("1-0", `{"order_id":1}`),
			msg("2-0", `{"order_id":2}`),
		},
		backlog: []domain.StreamMessage{
			msg("3-0", `not json`),
			msg("4-0", `{"order_id":3}`),
			msg("5-0", `{"order_id":0}`),
			msg("6-0", `{"order_id":4}`),
		},
	}
	runner := &countingRunner{done: make(chan struct{}), want: 4}
	p := NewPool(bus, runner, Config{Concurrency: 2, BatchSize: 1, PollInterval: 10 * time.Millisecond, Consumer: "w1"}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	select {
	case <-runner.done:
	case <-time.After(5 * time.Second):
		t.Fatal("runs did not finish")
	}
	require.Eventually(t, func() bool {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		return len(bus.acked) == 6
	}, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	got := append([]int64(nil), runner.orders...)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	assert.Equal(t, []int64{1, 2, 3, 4}, got)
	assert.LessOrEqual(t, runner.peak, 2)

	bus.mu.Lock()
	defer bus.mu.Unlock()
	assert.Equal(t, []string{"0", "1-0", "2-0", ">"}, bus.readIDs[:4], "pending entries are replayed before new ones")
	acked := append([]string(nil), bus.acked...)
	sort.Strings(acked)
	assert.Equal(t, []string{"1-0", "2-0", "3-0", "4-0", "5-0", "6-0"}, acked, "malformed and lock-held entries are acknowledged too")
}

// blockingRunner holds every run until ctx ends.
type blockingRunner struct {
	started chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context, _ int64) (*domain.OptimizationResult, error) {
	close(r.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPoolLeavesInterruptedRunPending(t *testing.T) {
	bus := &streamBus{backlog: []domain.StreamMessage{msg("1-0", `{"order_id":1}`)}}
	runner := &blockingRunner{started: make(chan struct{})}
	p := NewPool(bus, runner, Config{PollInterval: 10 * time.Millisecond}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not start")
	}
	cancel()
	require.NoError(t, <-errCh)

	bus.mu.Lock()
	defer bus.mu.Unlock()
	assert.Empty(t, bus.acked)
}

func TestNewPoolDefaults(t *testing.T) {
	p := NewPool(&streamBus{}, &countingRunner{}, Config{}, quietLogger())
	assert.Equal(t, DefaultGroup, p.cfg.Group)
	assert.NotEmpty(t, p.cfg.Consumer)
	assert.Equal(t, 1, p.cfg.Concurrency)
	assert.Equal(t, 1, p.cfg.BatchSize)
}

func TestPoolReadError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPool(&streamBus{readErr: boom}, &countingRunner{}, Config{}, quietLogger())
	err := p.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestDecodeRequest(t *testing.T) {
	req, err := decodeRequest(msg("1-0", `{"order_id":12,"requested_at":"2026-01-02T03:04:05Z"}`))
	require.NoError(t, err)
	assert.EqualValues(t, 12, req.OrderID)

	_, err = decodeRequest(msg("1-0", `{"order_id":-1}`))
	assert.Error(t, err)
}
