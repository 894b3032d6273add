package payments

import (
	"storefront/internal/enrich"
	"storefront/internal/records"
)

// Status is the progress of a payment.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// Payment is the locally stored payment. The order it settles belongs to the
// order service and is referenced by id only.
type Payment struct {
	PaymentID     int64
	IsPayed       bool
	PaymentStatus Status
	OrderID       int64
}

// View is a payment as returned to callers, with its order resolved.
type View struct {
	PaymentID     int64          `json:"paymentId"`
	IsPayed       bool           `json:"isPayed"`
	PaymentStatus Status         `json:"paymentStatus"`
	Order         *records.Order `json:"order,omitempty"`
}

// Local renders a payment from local data; the order carries only its id.
func Local(p Payment) View {
	order := records.OrderStub(p.OrderID)
	return View{
		PaymentID:     p.PaymentID,
		IsPayed:       p.IsPayed,
		PaymentStatus: p.PaymentStatus,
		Order:         &order,
	}
}

// Entity extracts the storable payment from a request body.
func (v View) Entity() (Payment, error) {
	if v.Order == nil || v.Order.OrderID <= 0 {
		return Payment{}, enrich.Invalidf("payment requires an order id")
	}
	status := v.PaymentStatus
	if status == "" {
		status = StatusNotStarted
	}
	if !status.Valid() {
		return Payment{}, enrich.Invalidf("unknown payment status %q", v.PaymentStatus)
	}
	return Payment{
		PaymentID:     v.PaymentID,
		IsPayed:       v.IsPayed,
		PaymentStatus: status,
		OrderID:       v.Order.OrderID,
	}, nil
}
