package paymentsdb

import (
	"context"
	"database/sql"
	"errors"

	"storefront/internal/enrich"
	"storefront/internal/payments"
)

// PostgresStore persists payments in Postgres.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresStoreWithSchema initializes the schema then returns the store.
func NewPostgresStoreWithSchema(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	s := NewPostgresStore(db)
	if err := s.InitSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// InitSchema creates the payments table if it does not exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS payments (
			payment_id BIGSERIAL PRIMARY KEY,
			is_payed BOOLEAN NOT NULL DEFAULT FALSE,
			payment_status TEXT NOT NULL,
			order_id BIGINT NOT NULL
		)
	`)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (payments.Payment, error) {
	var p payments.Payment
	row := s.db.QueryRowContext(ctx,
		`SELECT payment_id, is_payed, payment_status, order_id FROM payments WHERE payment_id = $1`, id)
	switch err := row.Scan(&p.PaymentID, &p.IsPayed, &p.PaymentStatus, &p.OrderID); {
	case err == nil:
		return p, nil
	case errors.Is(err, sql.ErrNoRows):
		return payments.Payment{}, notFound(id)
	default:
		return payments.Payment{}, err
	}
}

func (s *PostgresStore) List(ctx context.Context) ([]payments.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payment_id, is_payed, payment_status, order_id FROM payments ORDER BY payment_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payments.Payment
	for rows.Next() {
		var p payments.Payment
		if err := rows.Scan(&p.PaymentID, &p.IsPayed, &p.PaymentStatus, &p.OrderID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Save inserts the payment. A payment without an id gets one from the
// sequence; one with an id replaces any existing row.
func (s *PostgresStore) Save(ctx context.Context, p payments.Payment) (payments.Payment, error) {
	if p.PaymentID == 0 {
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO payments (is_payed, payment_status, order_id) VALUES ($1, $2, $3) RETURNING payment_id`,
			p.IsPayed, p.PaymentStatus, p.OrderID).Scan(&p.PaymentID)
		if err != nil {
			return payments.Payment{}, err
		}
		return p, nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (payment_id, is_payed, payment_status, order_id) VALUES ($1, $2, $3, $4)
		ON CONFLICT (payment_id) DO UPDATE SET is_payed = EXCLUDED.is_payed,
			payment_status = EXCLUDED.payment_status, order_id = EXCLUDED.order_id`,
		p.PaymentID, p.IsPayed, p.PaymentStatus, p.OrderID)
	if err != nil {
		return payments.Payment{}, err
	}
	return p, nil
}

func (s *PostgresStore) Update(ctx context.Context, p payments.Payment) (payments.Payment, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE payments SET is_payed = $2, payment_status = $3, order_id = $4 WHERE payment_id = $1`,
		p.PaymentID, p.IsPayed, p.PaymentStatus, p.OrderID)
	if err != nil {
		return payments.Payment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return payments.Payment{}, err
	}
	if affected == 0 {
		return payments.Payment{}, notFound(p.PaymentID)
	}
	return p, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM payments WHERE payment_id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound(id)
	}
	return nil
}

func notFound(id int64) error {
	return enrich.NotFoundf("Payment with id: %d not found", id)
}
