package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/basketopt/internal/domain"
)

// OfferStore implements domain.OfferStore and domain.ExclusionStore over the
// offer_feed, order_items and user_exclusions tables.
type OfferStore struct {
	pool *pgxpool.Pool
}

// NewOfferStore creates a new OfferStore backed by the given connection pool.
func NewOfferStore(pool *pgxpool.Pool) *OfferStore {
	return &OfferStore{pool: pool}
}

// ListRequestedItems returns the order's items ordered by id.
func (s *OfferStore) ListRequestedItems(ctx context.Context, orderID int64) ([]domain.RequestedItem, error) {
	const query = `
		SELECT id, requested_quantity, requested_unit
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list order items %d: %w", orderID, err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RequestedItem, error) {
		var it domain.RequestedItem
		err := row.Scan(&it.ID, &it.Quantity, &it.Unit)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan order items %d: %w", orderID, err)
	}
	return items, nil
}

// ListOffers returns every offer row of the order, ordered by item then id.
func (s *OfferStore) ListOffers(ctx context.Context, orderID int64) ([]domain.OfferRow, error) {
	const query = `
		SELECT f.id, f.order_item_id, i.requested_quantity, i.requested_unit,
		       f.vendor_id, f.vendor_name, f.product_name, f.unit_price,
		       f.base_unit, f.base_quantity, f.item_cost, f.loss,
		       f.min_order_amount, f.fixed_delivery_fee, f.delivery_fee_model
		FROM offer_feed f
		JOIN order_items i ON i.id = f.order_item_id
		WHERE f.order_id = $1
		ORDER BY f.order_item_id, f.id`

	rows, err := s.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list offers %d: %w", orderID, err)
	}
	defer rows.Close()

	var offers []domain.OfferRow
	for rows.Next() {
		var r domain.OfferRow
		var model []byte
		if err := rows.Scan(
			&r.OfferID, &r.RequestedItemID, &r.RequestedQuantity, &r.RequestedUnit,
			&r.VendorID, &r.VendorName, &r.ProductName, &r.UnitPrice,
			&r.BaseUnit, &r.BaseQuantity, &r.ItemCost, &r.Loss,
			&r.MinOrderAmount, &r.FixedDeliveryFee, &model,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan offer: %w", err)
		}
		r.FeeModel = model
		offers = append(offers, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list offers rows: %w", err)
	}
	return offers, nil
}

// ForOrder returns the exclusions of the user who placed the order. A user
// without a row has no exclusions.
func (s *OfferStore) ForOrder(ctx context.Context, orderID int64) (domain.Exclusions, error) {
	const query = `
		SELECT e.keywords, e.products
		FROM orders o
		JOIN user_exclusions e ON e.user_id = o.user_id
		WHERE o.id = $1`

	var ex domain.Exclusions
	err := s.pool.QueryRow(ctx, query, orderID).Scan(&ex.Keywords, &ex.Products)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Exclusions{}, nil
	}
	if err != nil {
		return domain.Exclusions{}, fmt.Errorf("postgres: exclusions for order %d: %w", orderID, err)
	}
	return ex, nil
}

var (
	_ domain.OfferStore     = (*OfferStore)(nil)
	_ domain.ExclusionStore = (*OfferStore)(nil)
)
