package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storepay/internal/domain/payment"
	"storepay/internal/store/repositories"

	"github.com/jackc/pgx/v5"
)

const paymentColumns = `reference, order_id, amount, msisdn_hash, status, created_at, updated_at`

// paymentRepository implements PaymentRepository on top of Repo
type paymentRepository struct {
	*Repo
}

var _ repositories.PaymentRepository = (*paymentRepository)(nil)

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(r *Repo) repositories.PaymentRepository {
	return &paymentRepository{Repo: r}
}

// Save upserts by reference. A retried cash-in can report the same
// reference twice; the stored status is left alone.
func (r *paymentRepository) Save(ctx context.Context, p *payment.Payment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (reference) DO UPDATE
		  SET amount      = EXCLUDED.amount,
		      order_id    = COALESCE(NULLIF(EXCLUDED.order_id, ''), payments.order_id),
		      msisdn_hash = COALESCE(NULLIF(EXCLUDED.msisdn_hash, ''), payments.msisdn_hash),
		      updated_at  = EXCLUDED.updated_at`,
		p.Reference, p.OrderID, int64(p.Amount), p.MSISDNHash, string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save payment %s: %w", p.Reference, err)
	}
	return nil
}

// FindByReference finds a payment by its provider reference
func (r *paymentRepository) FindByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE reference = $1`, reference)
	p, err := scanPayment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	return p, err
}

// UpdateStatus only touches rows that have not settled yet.
func (r *paymentRepository) UpdateStatus(ctx context.Context, reference string, status payment.Status, at time.Time) (bool, error) {
	if status == payment.StatusUnknown {
		return false, nil
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE payments
		   SET status = $2, updated_at = $3
		 WHERE reference = $1
		   AND status NOT IN ('SUCCESS', 'FAILED')
		   AND status <> $2`,
		reference, string(status), at,
	)
	if err != nil {
		return false, fmt.Errorf("update payment %s: %w", reference, err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns payments newest first
func (r *paymentRepository) List(ctx context.Context, limit, offset int) ([]*payment.Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+paymentColumns+`
		  FROM payments
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(row pgx.Row) (*payment.Payment, error) {
	var (
		p      payment.Payment
		amount int64
		status string
	)
	if err := row.Scan(&p.Reference, &p.OrderID, &amount, &p.MSISDNHash, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Amount = payment.Money(amount)
	p.Status = payment.Status(status)
	return &p, nil
}
