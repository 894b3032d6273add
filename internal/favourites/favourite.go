package favourites

import (
	"fmt"
	"time"

	"storefront/internal/enrich"
	"storefront/internal/records"
)

// Key identifies a favourite: one user liking one product at one instant. The
// like date is held at microsecond precision so keys compare by value.
type Key struct {
	userID    int64
	productID int64
	likedAt   int64
}

func NewKey(userID, productID int64, likeDate time.Time) (Key, error) {
	if userID <= 0 || productID <= 0 {
		return Key{}, enrich.Invalidf("favourite key needs positive userId and productId, got %d/%d", userID, productID)
	}
	if likeDate.IsZero() {
		return Key{}, enrich.Invalidf("favourite key needs a like date")
	}
	return Key{userID: userID, productID: productID, likedAt: likeDate.UTC().UnixMicro()}, nil
}

func (k Key) UserID() int64    { return k.userID }
func (k Key) ProductID() int64 { return k.productID }

func (k Key) LikeDate() records.Timestamp {
	return records.NewTimestamp(time.UnixMicro(k.likedAt))
}

func (k Key) String() string {
	return fmt.Sprintf("(userId=%d, productId=%d, likeDate=%s)", k.userID, k.productID, k.LikeDate())
}

// Favourite has no attributes beyond its key.
type Favourite struct {
	Key Key
}

type View struct {
	UserID    int64             `json:"userId"`
	ProductID int64             `json:"productId"`
	LikeDate  records.Timestamp `json:"likeDate"`
	User      *records.User     `json:"user,omitempty"`
	Product   *records.Product  `json:"product,omitempty"`
}

func Local(f Favourite) View {
	user := records.UserStub(f.Key.UserID())
	product := records.ProductStub(f.Key.ProductID())
	return View{
		UserID:    f.Key.UserID(),
		ProductID: f.Key.ProductID(),
		LikeDate:  f.Key.LikeDate(),
		User:      &user,
		Product:   &product,
	}
}

func (v View) Entity() (Favourite, error) {
	userID, productID := v.UserID, v.ProductID
	if userID == 0 && v.User != nil {
		userID = v.User.UserID
	}
	if productID == 0 && v.Product != nil {
		productID = v.Product.ProductID
	}
	key, err := NewKey(userID, productID, v.LikeDate.Time)
	if err != nil {
		return Favourite{}, err
	}
	return Favourite{Key: key}, nil
}
