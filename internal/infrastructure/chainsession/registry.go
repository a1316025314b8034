// Package chainsession implements the chain session manager (C6): the
// run registry, base/run id mapping, the at-most-one-active-run-per-base
// invariant, pending gate review handling, and atomic JSON persistence.
package chainsession

import (
	"sync"
	"time"

	"go.uber.org/zap"

	domain "github.com/promptgate/gateway/internal/domain/session"
)

// StaleAfter is the inactivity threshold past which a session is
// considered stale and eligible for sweep (spec §4.6, §5: >24h).
const StaleAfter = 24 * time.Hour

// Registry holds all chain sessions in memory, serialising every mutation
// behind a single mutex (spec §5: "the session registry is the only
// write-contended store; all mutations go through the session manager").
type Registry struct {
	mu         sync.Mutex
	runs       map[string]*domain.Session // runID -> session
	baseToRuns map[string][]string        // baseChainID -> runIDs, creation order
	runToBase  map[string]string          // runID -> baseChainID
	store      Store
	logger     *zap.Logger
	now        func() time.Time
}

// Store persists the registry document. A nil Store disables persistence
// (useful for tests); NewFileStore provides the atomic-rename JSON
// implementation used in production.
type Store interface {
	Load() (*Document, error)
	Save(doc *Document) error
}

// New creates a Registry backed by store (may be nil), loading any
// existing document. Loading a missing or corrupt file yields an empty
// registry plus a warning (spec §4.6 Persistence) rather than failing.
func New(store Store, logger *zap.Logger) *Registry {
	r := &Registry{
		runs:       make(map[string]*domain.Session),
		baseToRuns: make(map[string][]string),
		runToBase:  make(map[string]string),
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
	if store != nil {
		doc, err := store.Load()
		if err != nil {
			logger.Warn("failed to load chain session registry; starting empty", zap.Error(err))
		} else if doc != nil {
			r.hydrate(doc)
		}
	}
	return r
}

// CreateRun creates a new run under baseChainID, marking any existing
// active run under that base as dormant (spec §4.6 invariant: at-most-one
// active run per base).
func (r *Registry) CreateRun(baseChainID string, totalSteps int, originalArgs string, blueprint domain.Blueprint) *domain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, runID := range r.baseToRuns[baseChainID] {
		if s := r.runs[runID]; s != nil && s.Lifecycle == domain.LifecycleCanonical {
			s.Lifecycle = domain.LifecycleDormant
		}
	}

	ordinal := len(r.baseToRuns[baseChainID]) + 1
	runID := domain.RunKey(baseChainID, ordinal)
	now := r.now()

	steps := make([]*domain.StepMeta, totalSteps)
	for i := range steps {
		steps[i] = &domain.StepMeta{State: domain.StepPending}
	}

	session := &domain.Session{
		RunID:          runID,
		BaseChainID:    baseChainID,
		CurrentStep:    1,
		TotalSteps:     totalSteps,
		Steps:          steps,
		OriginalArgs:   originalArgs,
		Blueprint:      blueprint,
		Lifecycle:      domain.LifecycleCanonical,
		StartedAt:      now,
		LastActivityAt: now,
	}

	r.runs[runID] = session
	r.baseToRuns[baseChainID] = append(r.baseToRuns[baseChainID], runID)
	r.runToBase[runID] = baseChainID

	r.persist()
	return session
}

// Get returns the session for runID, or (nil, false) if unknown — any
// call referencing a missing run id returns "undefined" rather than
// throwing (spec §4.6 invariant).
func (r *Registry) Get(runID string) (*domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.runs[runID]
	return s, ok
}

// ActiveRun returns the canonical, still-active run for baseChainID, if
// any.
func (r *Registry) ActiveRun(baseChainID string) (*domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.baseToRuns[baseChainID]) - 1; i >= 0; i-- {
		s := r.runs[r.baseToRuns[baseChainID][i]]
		if s != nil && s.Lifecycle == domain.LifecycleCanonical && s.IsActive(r.now(), StaleAfter) {
			return s, true
		}
	}
	return nil, false
}

// History returns every run id ever created under baseChainID, in
// creation order.
func (r *Registry) History(baseChainID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.baseToRuns[baseChainID]))
	copy(out, r.baseToRuns[baseChainID])
	return out
}

// Touch updates a session's last-activity timestamp and persists.
func (r *Registry) Touch(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.runs[runID]; ok {
		s.LastActivityAt = r.now()
		r.persist()
	}
}

// Mutate applies fn to the session for runID under the registry lock and
// persists the result. Returns false if runID is unknown.
func (r *Registry) Mutate(runID string, fn func(*domain.Session)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.runs[runID]
	if !ok {
		return false
	}
	fn(s)
	s.LastActivityAt = r.now()
	r.persist()
	return true
}

// Abort marks a run as dormant (no longer active) without deleting its
// history, per the explicit-abort lifecycle (spec §5).
func (r *Registry) Abort(runID string) bool {
	return r.Mutate(runID, func(s *domain.Session) {
		s.Lifecycle = domain.LifecycleDormant
	})
}

// Sweep removes runs whose last activity exceeds StaleAfter, best-effort
// and idempotent (spec §4.6, §5).
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	removed := 0
	for runID, s := range r.runs {
		if now.Sub(s.LastActivityAt) <= StaleAfter {
			continue
		}
		delete(r.runs, runID)
		delete(r.runToBase, runID)
		base := s.BaseChainID
		filtered := r.baseToRuns[base][:0]
		for _, id := range r.baseToRuns[base] {
			if id != runID {
				filtered = append(filtered, id)
			}
		}
		r.baseToRuns[base] = filtered
		removed++
	}
	if removed > 0 {
		r.persist()
	}
	return removed
}
