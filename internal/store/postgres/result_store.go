package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

// ResultStore implements domain.ResultStore. Baskets are spread over
// basket_analyses (totals), basket_combinations (one row per chosen offer)
// and basket_delivery_costs (one row per vendor); optimization_runs keeps
// one row per run.
type ResultStore struct {
	pool *pgxpool.Pool
}

// NewResultStore creates a new ResultStore backed by the given connection pool.
func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Replace deletes the order's previous baskets and writes res in a single
// transaction.
func (s *ResultStore) Replace(ctx context.Context, res *domain.OptimizationResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin replace results: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, table := range []string{"basket_analyses", "basket_combinations", "basket_delivery_costs"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table+" WHERE order_id = $1", res.OrderID); err != nil {
			return fmt.Errorf("postgres: clear %s for order %d: %w", table, res.OrderID, err)
		}
	}

	batch := &pgx.Batch{}
	const insertAnalysis = `
		INSERT INTO basket_analyses (
			order_id, run_id, basket_rank, combination_index, kind, is_mono_basket,
			total_loss, total_goods_cost, total_delivery_cost, total_topup,
			total_cost, total_loss_and_delivery
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	const insertDelivery = `
		INSERT INTO basket_delivery_costs (
			order_id, run_id, basket_rank, vendor_id, vendor_name,
			subtotal, min_order_amount, topup, delivery_fee
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var combos [][]any
	for _, b := range res.Baskets {
		m := b.Metrics
		batch.Queue(insertAnalysis,
			res.OrderID, res.RunID, b.Rank, b.CombinationIndex, string(b.Kind), b.IsMono,
			m.TotalLoss, m.TotalGoodsCost, m.TotalDeliveryCost, m.TotalTopup,
			m.TotalCost, m.TotalLossAndDelivery,
		)
		for _, v := range b.Vendors {
			batch.Queue(insertDelivery,
				res.OrderID, res.RunID, b.Rank, v.VendorID, v.VendorName,
				v.Subtotal, v.MinOrderAmount, v.Topup, v.DeliveryFee,
			)
		}
		for _, o := range b.Offers {
			combos = append(combos, []any{
				res.OrderID, res.RunID, b.Rank, o.RequestedItemID, o.OfferID, o.VendorID,
				o.VendorName, o.ProductName, o.UnitPrice, o.BaseUnit, o.BaseQuantity,
				o.ItemCost, o.Loss,
			})
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: insert baskets for order %d: %w", res.OrderID, err)
	}

	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"basket_combinations"},
		[]string{
			"order_id", "run_id", "basket_rank", "order_item_id", "offer_id", "vendor_id",
			"vendor_name", "product_name", "unit_price", "base_unit", "base_quantity",
			"item_cost", "loss",
		},
		pgx.CopyFromRows(combos),
	); err != nil {
		return fmt.Errorf("postgres: copy basket combinations for order %d: %w", res.OrderID, err)
	}

	if err := insertRun(ctx, tx, runRecordOf(res)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit results for order %d: %w", res.OrderID, err)
	}
	return nil
}

// RecordRun stores a run row without touching baskets.
func (s *ResultStore) RecordRun(ctx context.Context, rec domain.RunRecord) error {
	return insertRun(ctx, s.pool, rec)
}

// SetReportPath attaches an exported report to a run.
func (s *ResultStore) SetReportPath(ctx context.Context, runID, path string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE optimization_runs SET report_path = $2 WHERE run_id = $1`, runID, path)
	if err != nil {
		return fmt.Errorf("postgres: set report path for run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// LatestRun returns the most recent run of the order.
func (s *ResultStore) LatestRun(ctx context.Context, orderID int64) (domain.RunRecord, error) {
	const query = `
		SELECT run_id::text, order_id, status, message, engine, combinations,
		       warnings, report_path, started_at, finished_at
		FROM optimization_runs
		WHERE order_id = $1
		ORDER BY finished_at DESC
		LIMIT 1`

	var rec domain.RunRecord
	var status string
	var warnings []byte
	err := s.pool.QueryRow(ctx, query, orderID).Scan(
		&rec.RunID, &rec.OrderID, &status, &rec.Message, &rec.Engine, &rec.Combinations,
		&warnings, &rec.ReportPath, &rec.StartedAt, &rec.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RunRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RunRecord{}, fmt.Errorf("postgres: latest run for order %d: %w", orderID, err)
	}
	rec.Status = domain.Status(status)
	if err := json.Unmarshal(warnings, &rec.Warnings); err != nil {
		return domain.RunRecord{}, fmt.Errorf("postgres: unmarshal run warnings: %w", err)
	}
	return rec, nil
}

// ListBaskets reassembles the stored baskets of the order in rank order.
func (s *ResultStore) ListBaskets(ctx context.Context, orderID int64) ([]domain.Basket, error) {
	const analyses = `
		SELECT basket_rank, combination_index, kind, is_mono_basket,
		       total_loss, total_goods_cost, total_delivery_cost, total_topup,
		       total_cost, total_loss_and_delivery
		FROM basket_analyses
		WHERE order_id = $1
		ORDER BY basket_rank`

	rows, err := s.pool.Query(ctx, analyses, orderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list basket analyses %d: %w", orderID, err)
	}
	baskets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Basket, error) {
		var b domain.Basket
		var kind string
		m := &b.Metrics
		err := row.Scan(&b.Rank, &b.CombinationIndex, &kind, &b.IsMono,
			&m.TotalLoss, &m.TotalGoodsCost, &m.TotalDeliveryCost, &m.TotalTopup,
			&m.TotalCost, &m.TotalLossAndDelivery)
		b.Kind = domain.BasketKind(kind)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan basket analyses: %w", err)
	}
	if len(baskets) == 0 {
		return nil, domain.ErrNotFound
	}
	byRank := make(map[int]*domain.Basket, len(baskets))
	for i := range baskets {
		byRank[baskets[i].Rank] = &baskets[i]
	}

	const offers = `
		SELECT basket_rank, order_item_id, offer_id, vendor_id, vendor_name, product_name,
		       unit_price, base_unit, base_quantity, item_cost, loss
		FROM basket_combinations
		WHERE order_id = $1
		ORDER BY basket_rank, order_item_id`
	rows, err = s.pool.Query(ctx, offers, orderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list basket combinations %d: %w", orderID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var rank int
		var o domain.CandidateOffer
		if err := rows.Scan(&rank, &o.RequestedItemID, &o.OfferID, &o.VendorID, &o.VendorName,
			&o.ProductName, &o.UnitPrice, &o.BaseUnit, &o.BaseQuantity, &o.ItemCost, &o.Loss); err != nil {
			return nil, fmt.Errorf("postgres: scan basket combination: %w", err)
		}
		if b, ok := byRank[rank]; ok {
			b.Offers = append(b.Offers, o)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: basket combinations rows: %w", err)
	}

	const delivery = `
		SELECT basket_rank, vendor_id, vendor_name, subtotal, min_order_amount, topup, delivery_fee
		FROM basket_delivery_costs
		WHERE order_id = $1
		ORDER BY basket_rank, vendor_id`
	drows, err := s.pool.Query(ctx, delivery, orderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list basket delivery costs %d: %w", orderID, err)
	}
	defer drows.Close()
	for drows.Next() {
		var rank int
		var v domain.VendorCharge
		if err := drows.Scan(&rank, &v.VendorID, &v.VendorName, &v.Subtotal,
			&v.MinOrderAmount, &v.Topup, &v.DeliveryFee); err != nil {
			return nil, fmt.Errorf("postgres: scan basket delivery cost: %w", err)
		}
		if b, ok := byRank[rank]; ok {
			b.Vendors = append(b.Vendors, v)
		}
	}
	if err := drows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: basket delivery costs rows: %w", err)
	}
	return baskets, nil
}

// execer is satisfied by both pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func runRecordOf(res *domain.OptimizationResult) domain.RunRecord {
	return domain.RunRecord{
		OrderID:      res.OrderID,
		RunID:        res.RunID,
		Status:       res.Status,
		Message:      res.Message,
		Engine:       res.Engine,
		Combinations: res.Combinations,
		Warnings:     res.Warnings,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.StartedAt.Add(res.Elapsed),
	}
}

func insertRun(ctx context.Context, db execer, rec domain.RunRecord) error {
	warnings := rec.Warnings
	if warnings == nil {
		warnings = []domain.Warning{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("postgres: marshal run warnings: %w", err)
	}

	const query = `
		INSERT INTO optimization_runs (
			run_id, order_id, status, message, engine, combinations,
			warnings, report_path, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := db.Exec(ctx, query,
		rec.RunID, rec.OrderID, string(rec.Status), rec.Message, rec.Engine, rec.Combinations,
		warningsJSON, rec.ReportPath, rec.StartedAt, rec.FinishedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert run %s: %w", rec.RunID, err)
	}
	return nil
}

var _ domain.ResultStore = (*ResultStore)(nil)
