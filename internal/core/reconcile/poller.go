// Package reconcile confirms submitted payments by polling the provider until
// they settle.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storepay/internal/domain/payment"
	"storepay/internal/provider"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultMaxAttempts = 60
)

var errStillPending = errors.New("transaction still pending")

// Finder looks a transaction up by reference. provider.Gateway satisfies it.
type Finder interface {
	FindTransaction(ctx context.Context, ref string) (*provider.Transaction, error)
}

// Outcome is what a finished poll observed.
type Outcome struct {
	Reference   string
	Status      payment.Status
	Transaction *provider.Transaction
	Attempts    int
}

type Option func(*Poller)

// WithTimer replaces the wall-clock timer between queries.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(p *Poller) { p.newTimer = newTimer }
}

// Poller queries a transaction at a fixed interval until it is SUCCESS or
// FAILED, the attempt cap is hit, or the poll is stopped. Queries of one
// reference never overlap.
type Poller struct {
	finder      Finder
	interval    time.Duration
	maxAttempts int
	newTimer    func() backoff.Timer
}

func NewPoller(finder Finder, interval time.Duration, maxAttempts int, opts ...Option) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	p := &Poller{
		finder:      finder,
		interval:    interval,
		maxAttempts: maxAttempts,
		newTimer:    func() backoff.Timer { return nil },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll is the handle of one running poll. The owner must Stop it when it
// loses interest; it also ends on its own once the attempt cap is reached.
type Poll struct {
	ref    string
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	outcome Outcome
	err     error
}

// Stop cancels the poll. Safe to call more than once and after completion.
func (p *Poll) Stop() { p.cancel() }

// Done is closed when the poll has finished for any reason.
func (p *Poll) Done() <-chan struct{} { return p.done }

// Wait blocks until the poll finishes or ctx ends. The error is
// ErrPollExhausted, ErrPollStopped, a permanent query error, or ctx's error.
func (p *Poll) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-p.done:
		return p.result()
	}
}

func (p *Poll) result() (Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome, p.err
}

// Start begins polling ref in the background. The first query is issued
// immediately. Cancelling ctx stops the poll like Stop does.
func (p *Poller) Start(ctx context.Context, ref string) *Poll {
	ctx, cancel := context.WithCancel(ctx)
	poll := &Poll{ref: ref, cancel: cancel, done: make(chan struct{})}
	go p.run(ctx, poll)
	return poll
}

func (p *Poller) run(ctx context.Context, poll *Poll) {
	defer close(poll.done)
	defer poll.cancel()

	var (
		attempts int
		failures int // consecutive query errors
		lastErr  error
		outcome  = Outcome{Reference: poll.ref, Status: payment.StatusPending}
	)

	query := func() error {
		attempts++
		txn, err := p.finder.FindTransaction(ctx, poll.ref)
		if err != nil {
			if provider.IsFatal(err) {
				return backoff.Permanent(err)
			}
			failures++
			lastErr = err
			if ctx.Err() == nil {
				log.Warn().
					Err(err).
					Str("ref", poll.ref).
					Int("attempt", attempts).
					Int("consecutive_failures", failures).
					Msg("status query inconclusive")
			}
			return err
		}
		failures, lastErr = 0, nil
		outcome.Transaction = txn
		outcome.Status = txn.Status
		if !txn.Status.IsTerminal() {
			return errStillPending
		}
		return nil
	}

	schedule := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.interval), uint64(p.maxAttempts-1)),
		ctx,
	)
	notify := func(err error, next time.Duration) {
		log.Debug().Str("ref", poll.ref).Int("attempt", attempts).Dur("next_in", next).Msg("polling again")
	}

	err := backoff.RetryNotifyWithTimer(query, schedule, notify, p.newTimer())
	if !outcome.Status.IsTerminal() {
		outcome.Status = payment.StatusPending
	}
	outcome.Attempts = attempts

	switch {
	case err == nil:
		log.Info().
			Str("ref", poll.ref).
			Str("status", string(outcome.Status)).
			Int("attempts", attempts).
			Msg("transaction settled")
	case ctx.Err() != nil:
		err = provider.ErrPollStopped
		log.Info().Str("ref", poll.ref).Int("attempts", attempts).Msg("polling stopped")
	case provider.IsFatal(err):
		log.Error().Err(err).Str("ref", poll.ref).Int("attempts", attempts).Msg("polling aborted")
	case lastErr != nil:
		err = fmt.Errorf("%w after %d attempts (%d consecutive query failures): %w",
			provider.ErrPollExhausted, attempts, failures, lastErr)
		log.Error().Err(err).Str("ref", poll.ref).Msg("polling gave up")
	default:
		err = fmt.Errorf("%w after %d attempts", provider.ErrPollExhausted, attempts)
		log.Warn().Str("ref", poll.ref).Int("attempts", attempts).Msg("polling gave up, transaction still pending")
	}

	poll.mu.Lock()
	poll.outcome, poll.err = outcome, err
	poll.mu.Unlock()
}
