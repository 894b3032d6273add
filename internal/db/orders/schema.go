package ordersdb

import (
	"context"
	"database/sql"
)

// InitSchema creates the carts and orders tables if they do not exist.
func InitSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS carts (
			cart_id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			order_id BIGSERIAL PRIMARY KEY,
			order_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			order_desc TEXT NOT NULL DEFAULT '',
			order_fee DOUBLE PRECISION NOT NULL DEFAULT 0,
			cart_id BIGINT REFERENCES carts(cart_id) ON DELETE SET NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return nil
}

// NewStoresWithSchema initializes the schema then returns both stores.
func NewStoresWithSchema(ctx context.Context, db *sql.DB) (*CartStore, *OrderStore, error) {
	if err := InitSchema(ctx, db); err != nil {
		return nil, nil, err
	}
	return NewCartStore(db), NewOrderStore(db), nil
}

func expectRow(res sql.Result, missing func() error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return missing()
	}
	return nil
}
