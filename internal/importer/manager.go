package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound means the session id is unknown or already discarded.
var ErrSessionNotFound = errors.New("session not found")

// DefaultSessionTTL is how long an idle session survives before sweeping.
var DefaultSessionTTL = 30 * time.Minute

// DefaultDoneLinger is how long a completed session stays visible so the
// user sees the confirmation before the working state is cleared.
var DefaultDoneLinger = 15 * time.Second

// ManagerOptions tune session lifecycle and decode concurrency.
type ManagerOptions struct {
	SessionTTL         time.Duration
	DoneLinger         time.Duration
	MaxConcurrentLoads int
	LoadWait           time.Duration
	// Sink receives user-facing notices from every session. Nil discards.
	Sink NotificationSink
}

// Manager owns all live import sessions. Each open dialog or page in the
// frontend maps to exactly one session, created on the first successful
// upload and discarded on close, reset, or TTL expiry.
type Manager struct {
	backend    Backend
	limiter    *LoadLimiter
	sink       NotificationSink
	ttl        time.Duration
	doneLinger time.Duration

	store *sessionStore
}

// NewManager creates a Manager submitting through backend.
func NewManager(backend Backend, opts ManagerOptions) *Manager {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if opts.DoneLinger <= 0 {
		opts.DoneLinger = DefaultDoneLinger
	}
	sink := opts.Sink
	if sink == nil {
		sink = discardSink{}
	}
	return &Manager{
		backend:    backend,
		limiter:    NewLoadLimiter(opts.MaxConcurrentLoads, opts.LoadWait),
		sink:       sink,
		ttl:        opts.SessionTTL,
		doneLinger: opts.DoneLinger,
		store:      newSessionStore(),
	}
}

// Open runs the pipeline over a fresh upload and creates a session holding
// the result. A parse, header, or empty-file failure creates nothing: the
// caller stays in its pre-upload state and receives the banner error.
func (m *Manager) Open(ctx context.Context, importerKey, fileName string, data []byte) (*Session, error) {
	def, ok := Get(importerKey)
	if !ok {
		return nil, fmt.Errorf("unknown importer: %s", importerKey)
	}

	if err := m.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer m.limiter.Release()

	records, errs, err := runPipeline(def, fileName, data)
	if err != nil {
		return nil, err
	}

	s := newSession(uuid.New().String(), def, m.sink)
	gen := s.beginLoad()
	if err := s.completeLoad(gen, fileName, records, errs); err != nil {
		return nil, err
	}

	m.store.put(s)
	return s, nil
}

// ReplaceFile re-runs the whole pipeline over a newly chosen file for an
// existing session, discarding prior records. Decodes racing against a
// newer file selection lose by load generation and report ErrStaleLoad.
func (m *Manager) ReplaceFile(ctx context.Context, id, fileName string, data []byte) error {
	s, ok := m.store.get(id)
	if !ok {
		return ErrSessionNotFound
	}

	gen := s.beginLoad()

	if err := m.limiter.Acquire(ctx); err != nil {
		return err
	}
	defer m.limiter.Release()

	records, errs, err := runPipeline(s.def, fileName, data)
	if err != nil {
		return err
	}
	return s.completeLoad(gen, fileName, records, errs)
}

// Get returns a live session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	return m.store.get(id)
}

// Submit posts the session's batch and, on success, schedules the session
// for removal after the linger delay.
func (m *Manager) Submit(ctx context.Context, id, actorID string) (*SubmitResult, error) {
	s, ok := m.store.get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	result, err := s.Submit(ctx, m.backend, actorID)
	if err != nil {
		return nil, err
	}

	time.AfterFunc(m.doneLinger, func() { m.store.remove(id) })
	return result, nil
}

// Discard resets a session: records, groups, errors and the session itself
// are dropped. Reported false when the id is unknown.
func (m *Manager) Discard(id string) bool {
	return m.store.remove(id)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	return m.store.count()
}

// LoadStatus exposes the decode limiter state for monitoring.
func (m *Manager) LoadStatus() LoadLimiterStatus {
	return m.limiter.Status()
}

// WaitForLoads blocks until no file decodes are in flight or ctx expires.
// Used during graceful shutdown.
func (m *Manager) WaitForLoads(ctx context.Context) error {
	return m.limiter.WaitForDrain(ctx)
}

// StartSweeper periodically removes sessions idle longer than the TTL.
// Runs until ctx is cancelled; call from main as a goroutine.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(time.Now().Add(-m.ttl))
		}
	}
}

func (m *Manager) sweep(cutoff time.Time) {
	for _, s := range m.store.all() {
		if s.idleSince().Before(cutoff) {
			m.store.remove(s.ID)
		}
	}
}
