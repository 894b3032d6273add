package ordersdb

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"storefront/internal/enrich"
	"storefront/internal/orders"
	"storefront/internal/records"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	}

	return db, mock, cleanup
}

var orderColumns = []string{"order_id", "order_date", "order_desc", "order_fee", "cart_id"}

func TestInitSchema_CreatesCartsBeforeOrders(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS carts").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS orders").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	carts, ords, err := NewStoresWithSchema(context.Background(), db)
	if err != nil || carts == nil || ords == nil {
		t.Fatalf("stores: %v", err)
	}
}

func TestInitSchema_StopsOnError(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS carts").
		WillReturnError(errors.New("boom"))
	mock.ExpectClose()

	if _, _, err := NewStoresWithSchema(context.Background(), db); err == nil {
		t.Fatalf("expected error")
	}
}

func TestCartStore_SaveAndGet(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectQuery("INSERT INTO carts").
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"cart_id"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT user_id FROM carts").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(int64(8)))
	mock.ExpectQuery("SELECT user_id FROM carts").
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectClose()

	s := NewCartStore(db)
	saved, err := s.Save(context.Background(), orders.Cart{UserID: 8})
	if err != nil || saved.CartID != 1 {
		t.Fatalf("unexpected save %+v (%v)", saved, err)
	}
	got, err := s.Get(context.Background(), 1)
	if err != nil || got != saved {
		t.Fatalf("unexpected cart %+v (%v)", got, err)
	}
	if _, err := s.Get(context.Background(), 2); !errors.Is(err, enrich.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderStore_NullCartAndTimestamp(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	placed := time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC)
	mock.ExpectQuery("SELECT order_id, order_date, order_desc, order_fee, cart_id FROM orders").
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow(int64(1), placed, "desk", 30.5, nil).
			AddRow(int64(2), placed, "chair", 12.0, int64(4)))
	mock.ExpectClose()

	list, err := NewOrderStore(db).List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].CartID != 0 || list[1].CartID != 4 {
		t.Fatalf("unexpected orders %+v", list)
	}
	if got := list[0].OrderDate.String(); got != "01-05-2024__10:00:00:123456" {
		t.Fatalf("unexpected order date %s", got)
	}
}

func TestOrderStore_SaveWritesNullCart(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectQuery("INSERT INTO orders").
		WithArgs(sqlmock.AnyArg(), "desk", 30.5, nil).
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}).AddRow(int64(5)))
	mock.ExpectClose()

	o := orders.Order{OrderDate: records.NewTimestamp(time.Now()), OrderDesc: "desk", OrderFee: 30.5}
	saved, err := NewOrderStore(db).Save(context.Background(), o)
	if err != nil || saved.OrderID != 5 {
		t.Fatalf("unexpected save %+v (%v)", saved, err)
	}
}

func TestOrderStore_UpdateMissing(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("UPDATE orders").
		WithArgs(int64(3), sqlmock.AnyArg(), "x", 1.0, int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	_, err := NewOrderStore(db).Update(context.Background(), orders.Order{OrderID: 3, OrderDesc: "x", OrderFee: 1, CartID: 2})
	if !errors.Is(err, enrich.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderStore_DeleteRowsAffectedError(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	t.Cleanup(cleanup)

	mock.ExpectExec("DELETE FROM orders").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("rows affected boom")))
	mock.ExpectClose()

	if err := NewOrderStore(db).Delete(context.Background(), 1); err == nil {
		t.Fatalf("expected rows affected error")
	}
}
