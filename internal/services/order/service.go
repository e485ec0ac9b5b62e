// Package order creates the storefront orders a payment is collected for.
// Orders are not persisted here; the id travels with the payment record.
package order

import (
	"crypto/rand"
	"math"
	"strings"
	"time"

	"storepay/internal/domain/payment"
	"storepay/internal/provider"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
)

const StatusPendingPayment = "pending_payment"

const (
	MaxQuantity  = 10_000
	MaxUnitPrice = payment.Money(1_000_000_000)
)

type Item struct {
	ProductID string        `json:"productId"`
	Name      string        `json:"name,omitempty"`
	Quantity  int           `json:"quantity"`
	Price     payment.Money `json:"price"`
}

type Order struct {
	ID              string        `json:"orderId"`
	Items           []Item        `json:"items"`
	ShippingAddress string        `json:"shippingAddress"`
	Total           payment.Money `json:"total"`
	Status          string        `json:"status"`
	CreatedAt       time.Time     `json:"createdAt"`
}

type Service struct {
	now func() time.Time
}

func NewService() *Service { return &Service{now: time.Now} }

// Create validates the cart and issues an order awaiting payment.
func (s *Service) Create(items []Item, shippingAddress string) (*Order, error) {
	if len(items) == 0 {
		return nil, &provider.ValidationError{Field: "items", Message: "Order must contain at least one item"}
	}
	shippingAddress = strings.TrimSpace(shippingAddress)
	if shippingAddress == "" {
		return nil, &provider.ValidationError{Field: "shippingAddress", Message: "Shipping address is required"}
	}

	var total payment.Money
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, &provider.ValidationError{Field: "items", Message: "Item quantity must be at least 1"}
		}
		if it.Quantity > MaxQuantity {
			return nil, &provider.ValidationError{Field: "items", Message: "Item quantity is too large"}
		}
		if it.Price < 0 {
			return nil, &provider.ValidationError{Field: "items", Message: "Item price cannot be negative"}
		}
		if it.Price > MaxUnitPrice {
			return nil, &provider.ValidationError{Field: "items", Message: "Item price is too large"}
		}
		line := it.Price * payment.Money(it.Quantity)
		if total > math.MaxInt64-line {
			return nil, &provider.ValidationError{Field: "items", Message: "Order total is too large"}
		}
		total += line
	}

	now := s.now()
	o := &Order{
		ID:              NewID(now),
		Items:           items,
		ShippingAddress: shippingAddress,
		Total:           total,
		Status:          StatusPendingPayment,
		CreatedAt:       now,
	}
	log.Info().Str("order_id", o.ID).Int("items", len(items)).Int64("total", int64(total)).Msg("order created")
	return o, nil
}

// NewID returns a sortable order id such as ORD-01J9Z3J5V8Q2N6T4XK0Y7W1B3C.
func NewID(at time.Time) string {
	return "ORD-" + ulid.MustNew(ulid.Timestamp(at), ulid.Monotonic(rand.Reader, 0)).String()
}
