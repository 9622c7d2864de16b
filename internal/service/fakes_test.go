package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOffers struct {
	items  []domain.RequestedItem
	offers []domain.OfferRow
	excl   domain.Exclusions
	err    error
}

func (f *fakeOffers) ListRequestedItems(context.Context, int64) ([]domain.RequestedItem, error) {
	return f.items, f.err
}

func (f *fakeOffers) ListOffers(context.Context, int64) ([]domain.OfferRow, error) {
	return f.offers, f.err
}

func (f *fakeOffers) ForOrder(context.Context, int64) (domain.Exclusions, error) {
	return f.excl, nil
}

type fakeResults struct {
	mu       sync.Mutex
	replaced []*domain.OptimizationResult
	runs     []domain.RunRecord
	paths    map[string]string
	baskets  map[int64][]domain.Basket
	err      error
}

func (f *fakeResults) Replace(_ context.Context, res *domain.OptimizationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.replaced = append(f.replaced, res)
	if f.baskets == nil {
		f.baskets = make(map[int64][]domain.Basket)
	}
	f.baskets[res.OrderID] = res.Baskets
	f.runs = append(f.runs, domain.RunRecord{
		OrderID: res.OrderID, RunID: res.RunID, Status: res.Status,
		Engine: res.Engine, Combinations: res.Combinations, Warnings: res.Warnings,
	})
	return nil
}

func (f *fakeResults) RecordRun(_ context.Context, rec domain.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.runs = append(f.runs, rec)
	return nil
}

func (f *fakeResults) SetReportPath(_ context.Context, runID, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paths == nil {
		f.paths = make(map[string]string)
	}
	f.paths[runID] = path
	return nil
}

func (f *fakeResults) LatestRun(_ context.Context, orderID int64) (domain.RunRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.runs) - 1; i >= 0; i-- {
		if f.runs[i].OrderID == orderID {
			return f.runs[i], nil
		}
	}
	return domain.RunRecord{}, domain.ErrNotFound
}

func (f *fakeResults) ListBaskets(_ context.Context, orderID int64) ([]domain.Basket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.baskets[orderID], nil
}

type fakeLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func (f *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		f.held = make(map[string]bool)
	}
	if f.held[key] {
		return nil, domain.ErrLockHeld
	}
	f.held[key] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
	}, nil
}

type fakeCache struct {
	mu        sync.Mutex
	summaries map[int64]domain.ResultSummary
}

func (f *fakeCache) Set(_ context.Context, s domain.ResultSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summaries == nil {
		f.summaries = make(map[int64]domain.ResultSummary)
	}
	f.summaries[s.OrderID] = s
	return nil
}

func (f *fakeCache) Get(_ context.Context, orderID int64) (domain.ResultSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.summaries[orderID]
	if !ok {
		return domain.ResultSummary{}, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeCache) Invalidate(_ context.Context, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.summaries, orderID)
	return nil
}

type fakeBus struct {
	mu        sync.Mutex
	published [][]byte
	stream    [][]byte
}

func (f *fakeBus) Publish(_ context.Context, _ string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (f *fakeBus) StreamAppend(_ context.Context, _ string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stream = append(f.stream, payload)
	return nil
}

func (f *fakeBus) StreamGroupRead(context.Context, string, string, string, string, int, time.Duration) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (f *fakeBus) StreamAck(context.Context, string, string, ...string) error { return nil }

type fakeAudit struct {
	events []string
}

func (f *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type fakeExporter struct {
	err error
}

func (f *fakeExporter) Export(_ context.Context, res *domain.OptimizationResult) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "reports/" + res.RunID + ".csv", nil
}

type fakeNotifier struct {
	summaries []domain.ResultSummary
}

func (f *fakeNotifier) NotifyRun(_ context.Context, s domain.ResultSummary) error {
	f.summaries = append(f.summaries, s)
	return nil
}
