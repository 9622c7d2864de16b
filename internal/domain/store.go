package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OfferStore reads the priced offer feed for an order.
type OfferStore interface {
	ListRequestedItems(ctx context.Context, orderID int64) ([]RequestedItem, error)
	ListOffers(ctx context.Context, orderID int64) ([]OfferRow, error)
}

// ExclusionStore reads the exclusion list that applies to an order.
type ExclusionStore interface {
	ForOrder(ctx context.Context, orderID int64) (Exclusions, error)
}

// RunRecord is one persisted optimization run.
type RunRecord struct {
	OrderID      int64
	RunID        string
	Status       Status
	Message      string
	Engine       string
	Combinations int64
	Warnings     []Warning
	ReportPath   string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// ResultStore persists optimization results.
type ResultStore interface {
	// Replace swaps every stored basket of the order for the result's baskets
	// and records the run, atomically.
	Replace(ctx context.Context, res *OptimizationResult) error
	// RecordRun records a run without touching stored baskets.
	RecordRun(ctx context.Context, rec RunRecord) error
	SetReportPath(ctx context.Context, runID, path string) error
	LatestRun(ctx context.Context, orderID int64) (RunRecord, error)
	ListBaskets(ctx context.Context, orderID int64) ([]Basket, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
