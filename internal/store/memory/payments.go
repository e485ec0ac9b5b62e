// Package memory keeps payment records in process when no database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"storepay/internal/domain/payment"
	"storepay/internal/store/repositories"
)

type PaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]payment.Payment
}

var _ repositories.PaymentRepository = (*PaymentRepository)(nil)

func NewPaymentRepository() *PaymentRepository {
	return &PaymentRepository{payments: make(map[string]payment.Payment)}
}

func (r *PaymentRepository) Save(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := *p
	if prev, ok := r.payments[p.Reference]; ok {
		next.Status = prev.Status
		next.CreatedAt = prev.CreatedAt
		if next.OrderID == "" {
			next.OrderID = prev.OrderID
		}
		if next.MSISDNHash == "" {
			next.MSISDNHash = prev.MSISDNHash
		}
	}
	r.payments[p.Reference] = next
	return nil
}

func (r *PaymentRepository) FindByReference(_ context.Context, reference string) (*payment.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[reference]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &p, nil
}

func (r *PaymentRepository) UpdateStatus(_ context.Context, reference string, status payment.Status, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[reference]
	if !ok {
		return false, nil
	}
	changed := p.Apply(status, at)
	r.payments[reference] = p
	return changed, nil
}

func (r *PaymentRepository) List(_ context.Context, limit, offset int) ([]*payment.Payment, error) {
	r.mu.RLock()
	all := make([]*payment.Payment, 0, len(r.payments))
	for _, p := range r.payments {
		p := p
		all = append(all, &p)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].Reference > all[j].Reference
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}
