package shippingdb

import (
	"context"
	"database/sql"
	"errors"

	"storefront/internal/enrich"
	"storefront/internal/shipping"
)

// PostgresStore persists order items keyed by (order_id, product_id).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func NewPostgresStoreWithSchema(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	s := NewPostgresStore(db)
	if err := s.InitSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS order_items (
			order_id BIGINT NOT NULL,
			product_id BIGINT NOT NULL,
			ordered_quantity INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (order_id, product_id)
		)
	`)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, key shipping.ItemKey) (shipping.OrderItem, error) {
	var qty int
	row := s.db.QueryRowContext(ctx,
		`SELECT ordered_quantity FROM order_items WHERE order_id = $1 AND product_id = $2`,
		key.OrderID(), key.ProductID())
	switch err := row.Scan(&qty); {
	case err == nil:
		return shipping.OrderItem{Key: key, OrderedQuantity: qty}, nil
	case errors.Is(err, sql.ErrNoRows):
		return shipping.OrderItem{}, notFound(key)
	default:
		return shipping.OrderItem{}, err
	}
}

// List returns items in insertion order.
func (s *PostgresStore) List(ctx context.Context) ([]shipping.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, product_id, ordered_quantity FROM order_items ORDER BY created_at, order_id, product_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []shipping.OrderItem
	for rows.Next() {
		var orderID, productID int64
		var qty int
		if err := rows.Scan(&orderID, &productID, &qty); err != nil {
			return nil, err
		}
		key, err := shipping.NewItemKey(orderID, productID)
		if err != nil {
			return nil, err
		}
		out = append(out, shipping.OrderItem{Key: key, OrderedQuantity: qty})
	}
	return out, rows.Err()
}

func (s *PostgresStore) Save(ctx context.Context, item shipping.OrderItem) (shipping.OrderItem, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO order_items (order_id, product_id, ordered_quantity) VALUES ($1, $2, $3)
		ON CONFLICT (order_id, product_id) DO UPDATE SET ordered_quantity = EXCLUDED.ordered_quantity`,
		item.Key.OrderID(), item.Key.ProductID(), item.OrderedQuantity)
	if err != nil {
		return shipping.OrderItem{}, err
	}
	return item, nil
}

func (s *PostgresStore) Update(ctx context.Context, item shipping.OrderItem) (shipping.OrderItem, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE order_items SET ordered_quantity = $3 WHERE order_id = $1 AND product_id = $2`,
		item.Key.OrderID(), item.Key.ProductID(), item.OrderedQuantity)
	if err != nil {
		return shipping.OrderItem{}, err
	}
	if err := expectRow(res, item.Key); err != nil {
		return shipping.OrderItem{}, err
	}
	return item, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key shipping.ItemKey) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM order_items WHERE order_id = $1 AND product_id = $2`,
		key.OrderID(), key.ProductID())
	if err != nil {
		return err
	}
	return expectRow(res, key)
}

func expectRow(res sql.Result, key shipping.ItemKey) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound(key)
	}
	return nil
}

func notFound(key shipping.ItemKey) error {
	return enrich.NotFoundf("OrderItem with id: %s not found", key)
}
