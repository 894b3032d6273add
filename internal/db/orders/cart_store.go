package ordersdb

import (
	"context"
	"database/sql"
	"errors"

	"storefront/internal/enrich"
	"storefront/internal/orders"
)

// CartStore persists carts in Postgres.
type CartStore struct {
	db *sql.DB
}

func NewCartStore(db *sql.DB) *CartStore {
	return &CartStore{db: db}
}

func (s *CartStore) Get(ctx context.Context, id int64) (orders.Cart, error) {
	c := orders.Cart{CartID: id}
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM carts WHERE cart_id = $1`, id).Scan(&c.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return orders.Cart{}, cartNotFound(id)
	}
	if err != nil {
		return orders.Cart{}, err
	}
	return c, nil
}

func (s *CartStore) List(ctx context.Context) ([]orders.Cart, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT cart_id, user_id FROM carts ORDER BY cart_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Cart
	for rows.Next() {
		var c orders.Cart
		if err := rows.Scan(&c.CartID, &c.UserID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *CartStore) Save(ctx context.Context, c orders.Cart) (orders.Cart, error) {
	if c.CartID != 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO carts (cart_id, user_id) VALUES ($1, $2)
			ON CONFLICT (cart_id) DO UPDATE SET user_id = EXCLUDED.user_id`,
			c.CartID, c.UserID)
		if err != nil {
			return orders.Cart{}, err
		}
		return c, nil
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO carts (user_id) VALUES ($1) RETURNING cart_id`, c.UserID).Scan(&c.CartID)
	if err != nil {
		return orders.Cart{}, err
	}
	return c, nil
}

func (s *CartStore) Update(ctx context.Context, c orders.Cart) (orders.Cart, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE carts SET user_id = $2 WHERE cart_id = $1`, c.CartID, c.UserID)
	if err != nil {
		return orders.Cart{}, err
	}
	if err := expectRow(res, func() error { return cartNotFound(c.CartID) }); err != nil {
		return orders.Cart{}, err
	}
	return c, nil
}

func (s *CartStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM carts WHERE cart_id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(res, func() error { return cartNotFound(id) })
}

func cartNotFound(id int64) error {
	return enrich.NotFoundf("Cart with id: %d not found", id)
}
