package repositories

import (
	"context"
	"errors"
	"time"

	"storepay/internal/domain/payment"
)

// ErrNotFound is returned when no payment carries the requested reference.
var ErrNotFound = errors.New("payment not found")

// PaymentRepository defines the contract for payment data access
type PaymentRepository interface {
	// Save inserts the record, or refreshes its amount and order on a
	// repeated reference. Status is never overwritten by Save.
	Save(ctx context.Context, p *payment.Payment) error
	FindByReference(ctx context.Context, reference string) (*payment.Payment, error)
	// UpdateStatus moves a non-terminal record to status. It reports whether
	// a row changed.
	UpdateStatus(ctx context.Context, reference string, status payment.Status, at time.Time) (bool, error)
	List(ctx context.Context, limit, offset int) ([]*payment.Payment, error)
}
