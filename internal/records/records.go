// Package records holds the representations other services return for their
// own entities. They are fetched per request and never persisted here.
package records

type User struct {
	UserID    int64  `json:"userId"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type Product struct {
	ProductID    int64   `json:"productId"`
	ProductTitle string  `json:"productTitle,omitempty"`
	ImageURL     string  `json:"imageUrl,omitempty"`
	SKU          string  `json:"sku,omitempty"`
	PriceUnit    float64 `json:"priceUnit,omitempty"`
	Quantity     int     `json:"quantity,omitempty"`
}

type Order struct {
	OrderID   int64   `json:"orderId"`
	OrderDate string  `json:"orderDate,omitempty"`
	OrderDesc string  `json:"orderDesc,omitempty"`
	OrderFee  float64 `json:"orderFee,omitempty"`
}

func (u User) ID() int64    { return u.UserID }
func (p Product) ID() int64 { return p.ProductID }
func (o Order) ID() int64   { return o.OrderID }

// Stubs carry only the foreign id.

func UserStub(id int64) User       { return User{UserID: id} }
func ProductStub(id int64) Product { return Product{ProductID: id} }
func OrderStub(id int64) Order     { return Order{OrderID: id} }

// Dependency names, shared by resilience configuration and metrics labels.
const (
	DependencyUser    = "user"
	DependencyProduct = "product"
	DependencyOrder   = "order"
)
