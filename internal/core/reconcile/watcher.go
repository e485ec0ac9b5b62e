package reconcile

import (
	"context"
	"sync"

	"storepay/internal/domain/payment"
	"storepay/internal/provider"

	"github.com/rs/zerolog/log"
)

// Watcher runs at most one poll per reference for the lifetime of the
// process and reports settled transactions to onTerminal.
type Watcher struct {
	poller     *Poller
	onTerminal func(ctx context.Context, o Outcome)

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	polls  map[string]*Poll
	closed bool
}

func NewWatcher(poller *Poller, onTerminal func(ctx context.Context, o Outcome)) *Watcher {
	base, cancel := context.WithCancel(context.Background())
	return &Watcher{
		poller:     poller,
		onTerminal: onTerminal,
		base:       base,
		cancel:     cancel,
		polls:      make(map[string]*Poll),
	}
}

// Watch starts polling ref unless a poll for it is already running, in which
// case that poll is returned.
func (w *Watcher) Watch(ref string) *Poll {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.polls[ref]; ok {
		return p
	}
	if w.closed {
		return stoppedPoll(ref)
	}

	p := w.poller.Start(w.base, ref)
	w.polls[ref] = p
	w.wg.Add(1)
	go w.await(p)
	return p
}

func (w *Watcher) await(p *Poll) {
	defer w.wg.Done()
	<-p.Done()

	w.mu.Lock()
	if w.polls[p.ref] == p {
		delete(w.polls, p.ref)
	}
	w.mu.Unlock()

	outcome, err := p.result()
	if err != nil || w.onTerminal == nil {
		return
	}
	w.onTerminal(context.Background(), outcome)
}

// Stop cancels the poll for ref. It reports whether one was running.
func (w *Watcher) Stop(ref string) bool {
	w.mu.Lock()
	p, ok := w.polls[ref]
	w.mu.Unlock()
	if ok {
		p.Stop()
	}
	return ok
}

// Active is the number of references being polled.
func (w *Watcher) Active() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.polls)
}

// Shutdown stops every poll and waits for them, or for ctx.
func (w *Watcher) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info().Msg("transaction watcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func stoppedPoll(ref string) *Poll {
	p := &Poll{ref: ref, cancel: func() {}, done: make(chan struct{}), err: provider.ErrPollStopped}
	p.outcome = Outcome{Reference: ref, Status: payment.StatusPending}
	close(p.done)
	return p
}
