package pagination

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/catalog-client/pkg/cache"
	"github.com/Sternrassler/catalog-client/pkg/client"
	"github.com/Sternrassler/catalog-client/pkg/logging"
)

// RunFunc is the work of one revalidation session.
type RunFunc func(ctx context.Context) error

// session is one exclusive, cancellable revalidation run.
type session struct {
	sig    cache.Signature
	done   chan struct{}
	cancel context.CancelFunc
}

// SessionCoordinator keeps at most one revalidation session active
// process-wide. Callers asking for the active signature join its session;
// callers asking for another signature cancel it and start their own.
type SessionCoordinator struct {
	mu     sync.Mutex
	active map[cache.Signature]*session

	notify func(cache.Signature)
	logger zerolog.Logger
}

// NewSessionCoordinator creates a coordinator. notify is called whenever a
// signature starts or stops validating and may be nil.
func NewSessionCoordinator(notify func(cache.Signature), logger zerolog.Logger) *SessionCoordinator {
	return &SessionCoordinator{
		active: make(map[cache.Signature]*session),
		notify: notify,
		logger: logging.WithComponent(logger, "session-coordinator"),
	}
}

// Ensure makes sure a session for sig is running and waits for it. run is
// only used when a new session has to be started. The session outlives
// ctx: if ctx ends first Ensure returns a cancellation error while the
// session carries on for its other callers. Session failures are logged
// and never returned.
func (c *SessionCoordinator) Ensure(ctx context.Context, sig cache.Signature, run RunFunc) error {
	s := c.acquire(ctx, sig, run)

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return client.NewCancellationError(ctx.Err())
	}
}

// Start is Ensure without waiting. The returned channel is closed when the
// session ends.
func (c *SessionCoordinator) Start(ctx context.Context, sig cache.Signature, run RunFunc) <-chan struct{} {
	return c.acquire(ctx, sig, run).done
}

// acquire returns the active session for sig, replacing and cancelling any
// session for another signature in the same critical section.
func (c *SessionCoordinator) acquire(ctx context.Context, sig cache.Signature, run RunFunc) *session {
	c.mu.Lock()
	if s, ok := c.active[sig]; ok {
		c.mu.Unlock()
		revalidationSessionsTotal.WithLabelValues(outcomeJoined).Inc()
		c.logger.Debug().Str("signature", sig.String()).Msg("Joined revalidation session")
		return s
	}

	var preempted []cache.Signature
	for other, s := range c.active {
		s.cancel()
		delete(c.active, other)
		preempted = append(preempted, other)
	}

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{
		sig:    sig,
		done:   make(chan struct{}),
		cancel: cancel,
	}
	c.active[sig] = s
	c.mu.Unlock()

	for _, other := range preempted {
		revalidationSessionsTotal.WithLabelValues(outcomePreempted).Inc()
		c.logger.Debug().
			Str("signature", other.String()).
			Str("by", sig.String()).
			Msg("Revalidation session preempted")
		c.changed(other)
	}

	revalidationSessionsTotal.WithLabelValues(outcomeStarted).Inc()
	c.logger.Debug().Str("signature", sig.String()).Msg("Revalidation session started")
	c.changed(sig)

	go c.run(sessionCtx, s, run)
	return s
}

func (c *SessionCoordinator) run(ctx context.Context, s *session, run RunFunc) {
	start := time.Now()
	err := run(ctx)

	c.mu.Lock()
	if c.active[s.sig] == s {
		delete(c.active, s.sig)
	}
	c.mu.Unlock()
	s.cancel()

	switch {
	case err == nil:
		revalidationSessionsTotal.WithLabelValues(outcomeCompleted).Inc()
		c.logger.Debug().
			Str("signature", s.sig.String()).
			Dur("duration", time.Since(start)).
			Msg("Revalidation session completed")
	case client.IsCancellation(err):
		revalidationSessionsTotal.WithLabelValues(outcomeCancelled).Inc()
		c.logger.Debug().
			Str("signature", s.sig.String()).
			Msg("Revalidation session cancelled")
	default:
		// Cached pages stay in place on a failed revalidation.
		revalidationSessionsTotal.WithLabelValues(outcomeFailed).Inc()
		c.logger.Warn().
			Err(err).
			Str("signature", s.sig.String()).
			Str("error_class", string(client.Classify(err))).
			Dur("duration", time.Since(start)).
			Msg("Revalidation session failed, keeping cached pages")
	}

	c.changed(s.sig)
	close(s.done)
}

// IsValidating reports whether a session for sig is active.
func (c *SessionCoordinator) IsValidating(sig cache.Signature) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[sig]
	return ok
}

// Active returns the signature of the active session, if any.
func (c *SessionCoordinator) Active() (cache.Signature, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for sig := range c.active {
		return sig, true
	}
	return "", false
}

// Cancel cancels the session for sig. It is a no-op when none is active.
func (c *SessionCoordinator) Cancel(sig cache.Signature) bool {
	c.mu.Lock()
	s, ok := c.active[sig]
	if ok {
		delete(c.active, sig)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	s.cancel()
	c.changed(sig)
	return true
}

func (c *SessionCoordinator) changed(sig cache.Signature) {
	if c.notify != nil {
		c.notify(sig)
	}
}
