package chainsession

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	domain "github.com/promptgate/gateway/internal/domain/session"
)

// DocumentVersion is the current persisted schema version.
const DocumentVersion = 1

// stepDoc is the wire shape of a StepMeta.
type stepDoc struct {
	State         domain.StepState         `json:"state"`
	Placeholder   bool                      `json:"placeholder,omitempty"`
	StartedAt     time.Time                 `json:"startedAt,omitempty"`
	CompletedAt   time.Time                 `json:"completedAt,omitempty"`
	LastResult    string                    `json:"lastResult,omitempty"`
	PendingReview *domain.PendingGateReview `json:"pendingReview,omitempty"`
}

// sessionDoc is the wire shape of a Session.
type sessionDoc struct {
	RunID          string            `json:"runId"`
	BaseChainID    string            `json:"baseChainId"`
	CurrentStep    int               `json:"currentStep"`
	TotalSteps     int               `json:"totalSteps"`
	Steps          []stepDoc         `json:"steps"`
	OriginalArgs   string            `json:"originalArgs"`
	Blueprint      domain.Blueprint  `json:"blueprint"`
	Lifecycle      domain.Lifecycle  `json:"lifecycle"`
	StartedAt      time.Time         `json:"startedAt"`
	LastActivityAt time.Time         `json:"lastActivityAt"`
}

// Document is the full persisted registry. Canonical field names are
// "runs" and "runMapping"; legacy readers may populate LegacySessions /
// LegacyChainMapping instead (spec §4.6: "legacy keys are read for
// backward compatibility but written under canonical names").
type Document struct {
	Version int                   `json:"version"`
	Runs    map[string]sessionDoc `json:"runs"`
	// RunMapping maps baseChainID -> ordered run ids.
	RunMapping map[string][]string `json:"runMapping"`

	// Legacy keys, read-only compatibility inputs from an older schema.
	LegacySessions     map[string]sessionDoc `json:"sessions,omitempty"`
	LegacyChainMapping  map[string][]string   `json:"chainMapping,omitempty"`
}

// hydrate populates the in-memory registry from a loaded Document,
// preferring canonical keys and falling back to legacy keys when the
// canonical ones are empty.
func (r *Registry) hydrate(doc *Document) {
	runs := doc.Runs
	if len(runs) == 0 {
		runs = doc.LegacySessions
	}
	mapping := doc.RunMapping
	if len(mapping) == 0 {
		mapping = doc.LegacyChainMapping
	}

	for runID, sd := range runs {
		steps := make([]*domain.StepMeta, len(sd.Steps))
		for i, st := range sd.Steps {
			steps[i] = &domain.StepMeta{
				State:         st.State,
				Placeholder:   st.Placeholder,
				StartedAt:     st.StartedAt,
				CompletedAt:   st.CompletedAt,
				LastResult:    st.LastResult,
				PendingReview: st.PendingReview,
			}
		}
		r.runs[runID] = &domain.Session{
			RunID:          sd.RunID,
			BaseChainID:    sd.BaseChainID,
			CurrentStep:    sd.CurrentStep,
			TotalSteps:     sd.TotalSteps,
			Steps:          steps,
			OriginalArgs:   sd.OriginalArgs,
			Blueprint:      sd.Blueprint,
			Lifecycle:      sd.Lifecycle,
			StartedAt:      sd.StartedAt,
			LastActivityAt: sd.LastActivityAt,
		}
		r.runToBase[runID] = sd.BaseChainID
	}
	for base, ids := range mapping {
		cp := make([]string, len(ids))
		copy(cp, ids)
		r.baseToRuns[base] = cp
	}
}

// toDocument snapshots the registry's current state. Caller must hold
// r.mu.
func (r *Registry) toDocument() *Document {
	doc := &Document{
		Version:    DocumentVersion,
		Runs:       make(map[string]sessionDoc, len(r.runs)),
		RunMapping: make(map[string][]string, len(r.baseToRuns)),
	}
	for runID, s := range r.runs {
		steps := make([]stepDoc, len(s.Steps))
		for i, st := range s.Steps {
			steps[i] = stepDoc{
				State:         st.State,
				Placeholder:   st.Placeholder,
				StartedAt:     st.StartedAt,
				CompletedAt:   st.CompletedAt,
				LastResult:    st.LastResult,
				PendingReview: st.PendingReview,
			}
		}
		doc.Runs[runID] = sessionDoc{
			RunID:          s.RunID,
			BaseChainID:    s.BaseChainID,
			CurrentStep:    s.CurrentStep,
			TotalSteps:     s.TotalSteps,
			Steps:          steps,
			OriginalArgs:   s.OriginalArgs,
			Blueprint:      s.Blueprint,
			Lifecycle:      s.Lifecycle,
			StartedAt:      s.StartedAt,
			LastActivityAt: s.LastActivityAt,
		}
	}
	for base, ids := range r.baseToRuns {
		cp := make([]string, len(ids))
		copy(cp, ids)
		doc.RunMapping[base] = cp
	}
	return doc
}

// persist writes the current state via r.store, if configured. Caller
// must hold r.mu. Persistence errors are logged, not returned — a write
// failure must never abort the mutation that triggered it (spec §5).
func (r *Registry) persist() {
	if r.store == nil {
		return
	}
	if err := r.store.Save(r.toDocument()); err != nil {
		r.logger.Warn("failed to persist chain session registry", zap.Error(err))
	}
}

// FileStore persists the Document as JSON under dir/chain-sessions.json using
// a temp-file-then-rename write for atomicity (grounded on the teacher's
// ToolResultCache/config writers which use the same pattern).
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore writing to <dir>/chain-sessions.json.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, "chain-sessions.json")}
}

// Load reads the document from disk. A missing file returns a nil
// Document with no error (empty registry); a corrupt file returns a nil
// Document with an error so the caller can log a warning.
func (f *FileStore) Load() (*Document, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("corrupt chain session store %s: %w", f.path, err)
	}
	return &doc, nil
}

// Save writes doc atomically: marshal to a temp file in the same
// directory, then os.Rename over the canonical path.
func (f *FileStore) Save(doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".sessions-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
