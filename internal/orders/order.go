package orders

import (
	"storefront/internal/enrich"
	"storefront/internal/records"
)

// Cart belongs to a user owned by the user service.
type Cart struct {
	CartID int64
	UserID int64
}

type CartView struct {
	CartID int64         `json:"cartId"`
	UserID int64         `json:"userId"`
	User   *records.User `json:"user,omitempty"`
}

func LocalCart(c Cart) CartView {
	return CartView{CartID: c.CartID, UserID: c.UserID}
}

func (v CartView) Entity() (Cart, error) {
	userID := v.UserID
	if userID == 0 && v.User != nil {
		userID = v.User.UserID
	}
	if userID <= 0 {
		return Cart{}, enrich.Invalidf("cart requires a user id")
	}
	return Cart{CartID: v.CartID, UserID: userID}, nil
}

// Order is owned entirely by this service; its cart is a local reference.
type Order struct {
	OrderID   int64
	OrderDate records.Timestamp
	OrderDesc string
	OrderFee  float64
	CartID    int64
}

type CartRef struct {
	CartID int64 `json:"cartId"`
}

type OrderView struct {
	OrderID   int64             `json:"orderId"`
	OrderDate records.Timestamp `json:"orderDate"`
	OrderDesc string            `json:"orderDesc"`
	OrderFee  float64           `json:"orderFee"`
	Cart      *CartRef          `json:"cart,omitempty"`
}

func LocalOrder(o Order) OrderView {
	v := OrderView{
		OrderID:   o.OrderID,
		OrderDate: o.OrderDate,
		OrderDesc: o.OrderDesc,
		OrderFee:  o.OrderFee,
	}
	if o.CartID > 0 {
		v.Cart = &CartRef{CartID: o.CartID}
	}
	return v
}

func (v OrderView) Entity() (Order, error) {
	if v.OrderFee < 0 {
		return Order{}, enrich.Invalidf("orderFee must be >= 0")
	}
	o := Order{
		OrderID:   v.OrderID,
		OrderDate: v.OrderDate,
		OrderDesc: v.OrderDesc,
		OrderFee:  v.OrderFee,
	}
	if v.Cart != nil {
		o.CartID = v.Cart.CartID
	}
	return o, nil
}
