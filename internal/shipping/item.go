package shipping

import (
	"fmt"

	"storefront/internal/enrich"
	"storefront/internal/records"
)

// ItemKey identifies an order item by the order and product it joins. The zero
// value is not a valid key; build keys with NewItemKey.
type ItemKey struct {
	orderID   int64
	productID int64
}

func NewItemKey(orderID, productID int64) (ItemKey, error) {
	if orderID <= 0 || productID <= 0 {
		return ItemKey{}, enrich.Invalidf("order item key needs positive orderId and productId, got %d/%d", orderID, productID)
	}
	return ItemKey{orderID: orderID, productID: productID}, nil
}

func (k ItemKey) OrderID() int64   { return k.orderID }
func (k ItemKey) ProductID() int64 { return k.productID }

func (k ItemKey) String() string {
	return fmt.Sprintf("(orderId=%d, productId=%d)", k.orderID, k.productID)
}

// OrderItem is one product line of an order, as shipped.
type OrderItem struct {
	Key             ItemKey
	OrderedQuantity int
}

// View is an order item with its product and order resolved when available.
type View struct {
	OrderID         int64            `json:"orderId"`
	ProductID       int64            `json:"productId"`
	OrderedQuantity int              `json:"orderedQuantity"`
	Product         *records.Product `json:"product,omitempty"`
	Order           *records.Order   `json:"order,omitempty"`
}

func Local(item OrderItem) View {
	product := records.ProductStub(item.Key.ProductID())
	order := records.OrderStub(item.Key.OrderID())
	return View{
		OrderID:         item.Key.OrderID(),
		ProductID:       item.Key.ProductID(),
		OrderedQuantity: item.OrderedQuantity,
		Product:         &product,
		Order:           &order,
	}
}

// Entity extracts the storable item from a request body. Ids may be given at
// the top level or inside the nested product and order.
func (v View) Entity() (OrderItem, error) {
	orderID, productID := v.OrderID, v.ProductID
	if orderID == 0 && v.Order != nil {
		orderID = v.Order.OrderID
	}
	if productID == 0 && v.Product != nil {
		productID = v.Product.ProductID
	}
	key, err := NewItemKey(orderID, productID)
	if err != nil {
		return OrderItem{}, err
	}
	if v.OrderedQuantity < 0 {
		return OrderItem{}, enrich.Invalidf("orderedQuantity must be >= 0")
	}
	return OrderItem{Key: key, OrderedQuantity: v.OrderedQuantity}, nil
}
