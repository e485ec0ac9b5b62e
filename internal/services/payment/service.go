package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storepay/internal/core/reconcile"
	"storepay/internal/domain/payment"
	"storepay/internal/provider"
	"storepay/internal/store/repositories"

	"github.com/rs/zerolog/log"
)

// Result is the answer of every payment operation at the service boundary.
// Failures the provider reports come back as Success=false; failures that
// prevented an answer come back as errors.
type Result struct {
	Success   bool            `json:"success"`
	Reference string          `json:"reference,omitempty"`
	Status    payment.Status  `json:"status,omitempty"`
	Message   string          `json:"message"`
	Raw       json.RawMessage `json:"-"`
}

// Service handles payment business logic
type Service struct {
	gateway provider.Gateway
	repo    repositories.PaymentRepository
	watcher *reconcile.Watcher
	now     func() time.Time
}

// NewService creates a new payment service. Accepted cash-ins are watched
// with poller until they settle.
func NewService(gateway provider.Gateway, repo repositories.PaymentRepository, poller *reconcile.Poller) *Service {
	s := &Service{
		gateway: gateway,
		repo:    repo,
		now:     time.Now,
	}
	s.watcher = reconcile.NewWatcher(poller, s.recordOutcome)
	return s
}

// ProcessPayment submits a cash-in. On acceptance the payment is recorded as
// PENDING and watched in the background.
func (s *Service) ProcessPayment(ctx context.Context, req payment.Request) (Result, error) {
	req.Phone = strings.TrimSpace(req.Phone)
	req.OrderID = strings.TrimSpace(req.OrderID)

	resp, err := s.gateway.CashIn(ctx, provider.CashInReq{Amount: req.Amount, Phone: req.Phone})
	if err != nil {
		return Result{}, ServiceError{Op: "process_payment", Message: "cash-in failed", Err: err}
	}
	if !resp.Success {
		return Result{Success: false, Message: resp.Message, Raw: resp.Raw}, nil
	}

	// The provider has the money request now; a local write failure must not
	// hide the reference from the caller.
	now := s.now()
	record, err := payment.NewPending(resp.Reference, req, now)
	if err == nil {
		err = s.repo.Save(ctx, record)
	}
	if err != nil {
		log.Error().Err(err).Str("ref", resp.Reference).Msg("failed to record payment")
	}

	if resp.Status.IsTerminal() {
		s.settle(ctx, resp.Reference, resp.Status)
	} else {
		s.watcher.Watch(resp.Reference)
	}

	log.Info().
		Str("ref", resp.Reference).
		Str("order_id", req.OrderID).
		Int64("amount", int64(req.Amount)).
		Msg("payment initiated")

	return Result{
		Success:   true,
		Reference: resp.Reference,
		Status:    resp.Status,
		Message:   resp.Message,
		Raw:       resp.Raw,
	}, nil
}

// GetTransactionStatus asks the provider for the current status of ref.
// Unrecognised statuses are reported as PENDING.
func (s *Service) GetTransactionStatus(ctx context.Context, ref string) (Result, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Result{}, &provider.ValidationError{Field: "ref", Message: "Transaction reference is required"}
	}

	txn, err := s.gateway.FindTransaction(ctx, ref)
	if err != nil {
		return Result{}, ServiceError{Op: "transaction_status", Message: "status query failed", Err: err}
	}

	status := txn.Status
	if status.IsTerminal() {
		s.settle(ctx, ref, status)
		s.watcher.Stop(ref)
	} else {
		status = payment.StatusPending
	}

	return Result{
		Success:   true,
		Reference: txn.Reference,
		Status:    status,
		Message:   "Transaction status retrieved",
		Raw:       txn.Raw,
	}, nil
}

// Await watches ref (joining a running watch) until it settles or ctx ends.
func (s *Service) Await(ctx context.Context, ref string) (Result, error) {
	out, err := s.watcher.Watch(ref).Wait(ctx)
	if err != nil {
		return Result{Success: false, Reference: ref, Status: payment.StatusPending, Message: pollMessage(err)}, err
	}
	return Result{
		Success:   true,
		Reference: ref,
		Status:    out.Status,
		Message:   fmt.Sprintf("Transaction settled after %d checks", out.Attempts),
	}, nil
}

// StopWatching cancels background polling of ref, for a caller that
// abandoned checkout. It reports whether a poll was running.
func (s *Service) StopWatching(ref string) bool {
	stopped := s.watcher.Stop(ref)
	if stopped {
		log.Info().Str("ref", ref).Msg("polling stopped by caller")
	}
	return stopped
}

// Payment returns the locally recorded state of ref.
func (s *Service) Payment(ctx context.Context, ref string) (*payment.Payment, error) {
	return s.repo.FindByReference(ctx, ref)
}

// List retrieves recorded payments with pagination
func (s *Service) List(ctx context.Context, limit, offset int) ([]*payment.Payment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// Watching is the number of payments being polled.
func (s *Service) Watching() int { return s.watcher.Active() }

// Shutdown stops all background polling.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.watcher.Shutdown(ctx)
}

func (s *Service) recordOutcome(ctx context.Context, o reconcile.Outcome) {
	s.settle(ctx, o.Reference, o.Status)
}

func (s *Service) settle(ctx context.Context, ref string, status payment.Status) {
	changed, err := s.repo.UpdateStatus(ctx, ref, status, s.now())
	if err != nil {
		log.Error().Err(err).Str("ref", ref).Str("status", string(status)).Msg("failed to record payment status")
		return
	}
	if changed {
		log.Info().Str("ref", ref).Str("status", string(status)).Msg("payment settled")
	}
}

func pollMessage(err error) string {
	switch {
	case errors.Is(err, provider.ErrPollStopped):
		return "Polling stopped"
	case errors.Is(err, provider.ErrPollExhausted):
		return "Transaction is still pending, check again later"
	default:
		return "Could not confirm transaction"
	}
}

// ServiceError represents a payment service error
type ServiceError struct {
	Op      string
	Message string
	Err     error
}

func (e ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment service %s: %s (%v)", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("payment service %s: %s", e.Op, e.Message)
}

func (e ServiceError) Unwrap() error {
	return e.Err
}
