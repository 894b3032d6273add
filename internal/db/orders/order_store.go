package ordersdb

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"storefront/internal/enrich"
	"storefront/internal/orders"
	"storefront/internal/records"
)

// OrderStore persists orders in Postgres. A zero cart id is stored as NULL.
type OrderStore struct {
	db *sql.DB
}

func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

const selectOrders = `SELECT order_id, order_date, order_desc, order_fee, cart_id FROM orders`

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (orders.Order, error) {
	var (
		o      orders.Order
		placed time.Time
		cartID sql.NullInt64
	)
	if err := row.Scan(&o.OrderID, &placed, &o.OrderDesc, &o.OrderFee, &cartID); err != nil {
		return orders.Order{}, err
	}
	o.OrderDate = records.NewTimestamp(placed)
	o.CartID = cartID.Int64
	return o, nil
}

func nullableCart(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id > 0}
}

func (s *OrderStore) Get(ctx context.Context, id int64) (orders.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, selectOrders+` WHERE order_id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return orders.Order{}, orderNotFound(id)
	}
	return o, err
}

func (s *OrderStore) List(ctx context.Context) ([]orders.Order, error) {
	rows, err := s.db.QueryContext(ctx, selectOrders+` ORDER BY order_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *OrderStore) Save(ctx context.Context, o orders.Order) (orders.Order, error) {
	if o.OrderID != 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO orders (order_id, order_date, order_desc, order_fee, cart_id) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (order_id) DO UPDATE SET order_date = EXCLUDED.order_date, order_desc = EXCLUDED.order_desc,
				order_fee = EXCLUDED.order_fee, cart_id = EXCLUDED.cart_id`,
			o.OrderID, o.OrderDate.Time, o.OrderDesc, o.OrderFee, nullableCart(o.CartID))
		if err != nil {
			return orders.Order{}, err
		}
		return o, nil
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO orders (order_date, order_desc, order_fee, cart_id) VALUES ($1, $2, $3, $4)
		RETURNING order_id`,
		o.OrderDate.Time, o.OrderDesc, o.OrderFee, nullableCart(o.CartID)).Scan(&o.OrderID)
	if err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

func (s *OrderStore) Update(ctx context.Context, o orders.Order) (orders.Order, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET order_date = $2, order_desc = $3, order_fee = $4, cart_id = $5
		WHERE order_id = $1`,
		o.OrderID, o.OrderDate.Time, o.OrderDesc, o.OrderFee, nullableCart(o.CartID))
	if err != nil {
		return orders.Order{}, err
	}
	if err := expectRow(res, func() error { return orderNotFound(o.OrderID) }); err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

func (s *OrderStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE order_id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(res, func() error { return orderNotFound(id) })
}

func orderNotFound(id int64) error {
	return enrich.NotFoundf("Order with id: %d not found", id)
}
