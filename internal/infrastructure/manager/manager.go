// Package manager implements the Prompt/Gate Manager (C8): a narrow
// CRUD-plus-version-history contract over authored prompt and gate bodies,
// explicitly not the hot-reloading, disk-authoritative authoring system
// spec §4.8 calls out of scope — a minimal in-memory implementation
// exists purely so the core and its tests have something concrete to
// drive (spec SPEC_FULL.md §4.8).
package manager

import (
	"fmt"
	"sort"
	"sync"
	"time"

	domain "github.com/promptgate/gateway/internal/domain/manager"
	apperrors "github.com/promptgate/gateway/pkg/errors"
)

// Manager is the C8 contract: list, inspect, create, update, delete,
// reload, history, rollback, compare (spec §4.8).
type Manager interface {
	List(kind domain.EntryKind) []string
	Inspect(kind domain.EntryKind, id string) (*domain.Entry, bool)
	Create(kind domain.EntryKind, id, category, body string) error
	Update(kind domain.EntryKind, id, body string) error
	Delete(kind domain.EntryKind, id string) error
	Reload() error
	History(kind domain.EntryKind, id string) ([]domain.Version, error)
	Rollback(kind domain.EntryKind, id string, version int, confirm bool) error
	Compare(kind domain.EntryKind, id string, from, to int) (domain.Version, domain.Version, error)
}

type key struct {
	kind domain.EntryKind
	id   string
}

// InMemoryManager is the demo Manager: every entry and its full version
// history lives in memory, optionally backed by a ReloadSource for
// `reload` (spec §4.8's "reload" action re-reads the authoring source of
// truth; here that source is whatever ReloadSource was constructed with).
type InMemoryManager struct {
	mu       sync.RWMutex
	entries  map[key]*domain.Entry
	versions map[key][]domain.Version
	now      func() time.Time
	source   ReloadSource
}

// ReloadSource supplies the authoritative entry set reload re-reads from.
// A nil source makes Reload a no-op (acceptable for a pure in-memory demo
// with no backing files).
type ReloadSource interface {
	LoadAll() ([]*domain.Entry, error)
}

// New creates an empty InMemoryManager, optionally backed by source for
// reload.
func New(source ReloadSource) *InMemoryManager {
	return &InMemoryManager{
		entries:  make(map[key]*domain.Entry),
		versions: make(map[key][]domain.Version),
		now:      time.Now,
		source:   source,
	}
}

// List returns every entry id of the given kind, sorted.
func (m *InMemoryManager) List(kind domain.EntryKind) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for k := range m.entries {
		if k.kind == kind {
			ids = append(ids, k.id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Inspect returns the current entry for (kind, id).
func (m *InMemoryManager) Inspect(kind domain.EntryKind, id string) (*domain.Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key{kind, id}]
	return e, ok
}

// Create adds a new entry, rejecting self/dangling/circular references
// when kind is a prompt (spec §4.8's validation is scoped to
// `{{ref:prompt_id}}`, which only appears in prompt bodies).
func (m *InMemoryManager) Create(kind domain.EntryKind, id, category, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{kind, id}
	if _, exists := m.entries[k]; exists {
		return apperrors.NewValidationError(fmt.Sprintf("%s %q already exists", kind, id))
	}

	if kind == domain.EntryKindPrompt {
		if err := validateReferences(id, body, m.lookupPromptBodyLocked); err != nil {
			return apperrors.NewValidationError(err.Error()).WithDetails(map[string]interface{}{"id": id})
		}
	}

	entry := &domain.Entry{ID: id, Kind: kind, Category: category, Body: body, Version: 1, UpdatedAt: m.now()}
	m.entries[k] = entry
	m.versions[k] = []domain.Version{{Version: 1, Body: body, UpdatedAt: entry.UpdatedAt}}
	return nil
}

// Update replaces an entry's body, appending a new version (spec §4.8
// history).
func (m *InMemoryManager) Update(kind domain.EntryKind, id, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{kind, id}
	entry, ok := m.entries[k]
	if !ok {
		return apperrors.NewValidationError(fmt.Sprintf("%s %q not found", kind, id))
	}

	if kind == domain.EntryKindPrompt {
		if err := validateReferences(id, body, m.lookupPromptBodyLocked); err != nil {
			return apperrors.NewValidationError(err.Error()).WithDetails(map[string]interface{}{"id": id})
		}
	}

	entry.Body = body
	entry.Version++
	entry.UpdatedAt = m.now()
	m.versions[k] = append(m.versions[k], domain.Version{Version: entry.Version, Body: body, UpdatedAt: entry.UpdatedAt})
	return nil
}

// Delete removes an entry and its history.
func (m *InMemoryManager) Delete(kind domain.EntryKind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{kind, id}
	if _, ok := m.entries[k]; !ok {
		return apperrors.NewValidationError(fmt.Sprintf("%s %q not found", kind, id))
	}
	delete(m.entries, k)
	delete(m.versions, k)
	return nil
}

// Reload re-reads every entry from source, replacing the in-memory set
// wholesale. A nil source makes this a no-op.
func (m *InMemoryManager) Reload() error {
	if m.source == nil {
		return nil
	}
	entries, err := m.source.LoadAll()
	if err != nil {
		return apperrors.NewSystemError("failed to reload authoring source", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[key]*domain.Entry, len(entries))
	m.versions = make(map[key][]domain.Version, len(entries))
	for _, e := range entries {
		k := key{e.Kind, e.ID}
		m.entries[k] = e
		m.versions[k] = []domain.Version{{Version: e.Version, Body: e.Body, UpdatedAt: e.UpdatedAt}}
	}
	return nil
}

// History returns every retained version of (kind, id), oldest first.
func (m *InMemoryManager) History(kind domain.EntryKind, id string) ([]domain.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions, ok := m.versions[key{kind, id}]
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("%s %q not found", kind, id))
	}
	out := make([]domain.Version, len(versions))
	copy(out, versions)
	return out, nil
}

// Rollback restores a prior version as the current body, appending it as
// a new version rather than truncating history (so `history` always
// reflects every transition the entry went through). confirm must be true
// — rollback is deliberately not silently retriable (spec §4.8
// `rollback(version, confirm=true)`).
func (m *InMemoryManager) Rollback(kind domain.EntryKind, id string, version int, confirm bool) error {
	if !confirm {
		return apperrors.NewValidationError("rollback requires confirm=true")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{kind, id}
	versions, ok := m.versions[k]
	if !ok {
		return apperrors.NewValidationError(fmt.Sprintf("%s %q not found", kind, id))
	}
	var target *domain.Version
	for i := range versions {
		if versions[i].Version == version {
			target = &versions[i]
			break
		}
	}
	if target == nil {
		return apperrors.NewValidationError(fmt.Sprintf("%s %q has no version %d", kind, id, version))
	}

	entry := m.entries[k]
	entry.Body = target.Body
	entry.Version++
	entry.UpdatedAt = m.now()
	m.versions[k] = append(m.versions[k], domain.Version{Version: entry.Version, Body: target.Body, UpdatedAt: entry.UpdatedAt})
	return nil
}

// Compare returns the two named versions' snapshots for the caller to
// diff (the manager does not itself compute a textual diff — spec §4.8
// names the action, not a diff algorithm).
func (m *InMemoryManager) Compare(kind domain.EntryKind, id string, from, to int) (domain.Version, domain.Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions, ok := m.versions[key{kind, id}]
	if !ok {
		return domain.Version{}, domain.Version{}, apperrors.NewValidationError(fmt.Sprintf("%s %q not found", kind, id))
	}
	fromV, ok := findVersion(versions, from)
	if !ok {
		return domain.Version{}, domain.Version{}, apperrors.NewValidationError(fmt.Sprintf("%s %q has no version %d", kind, id, from))
	}
	toV, ok := findVersion(versions, to)
	if !ok {
		return domain.Version{}, domain.Version{}, apperrors.NewValidationError(fmt.Sprintf("%s %q has no version %d", kind, id, to))
	}
	return fromV, toV, nil
}

func findVersion(versions []domain.Version, n int) (domain.Version, bool) {
	for _, v := range versions {
		if v.Version == n {
			return v, true
		}
	}
	return domain.Version{}, false
}

// lookupPromptBodyLocked resolves a prompt id's current body for
// reference validation. Callers must hold m.mu.
func (m *InMemoryManager) lookupPromptBodyLocked(id string) (string, bool) {
	e, ok := m.entries[key{domain.EntryKindPrompt, id}]
	if !ok {
		return "", false
	}
	return e.Body, true
}
