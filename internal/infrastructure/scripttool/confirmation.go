package scripttool

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
	"time"

	domaintool "github.com/promptgate/gateway/internal/domain/scripttool"
)

// ConfirmationTracker records pending script-tool confirmations keyed by
// (promptId, toolId, inputHash), evicting expired entries transparently on
// lookup (spec §4.4, §5).
type ConfirmationTracker struct {
	mu      sync.Mutex
	pending map[string]domaintool.PendingConfirmation
	now     func() time.Time
}

// NewConfirmationTracker returns an empty tracker.
func NewConfirmationTracker() *ConfirmationTracker {
	return &ConfirmationTracker{
		pending: make(map[string]domaintool.PendingConfirmation),
		now:     time.Now,
	}
}

// HashInputs computes SHA-256 over the tool id plus a stably key-sorted
// JSON encoding of inputs (grounded on the teacher's tool-result cache key
// derivation).
func HashInputs(toolID string, inputs map[string]interface{}) string {
	h := sha256.New()
	h.Write([]byte(toolID))
	h.Write([]byte{0})
	h.Write(stableJSON(inputs))
	return hex.EncodeToString(h.Sum(nil))
}

func stableJSON(inputs map[string]interface{}) []byte {
	if len(inputs) == 0 {
		return []byte("{}")
	}
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make([]byte, 0, 64)
	ordered = append(ordered, '{')
	for i, k := range keys {
		if i > 0 {
			ordered = append(ordered, ',')
		}
		keyJSON, _ := json.Marshal(k)
		valJSON, _ := json.Marshal(inputs[k])
		ordered = append(ordered, keyJSON...)
		ordered = append(ordered, ':')
		ordered = append(ordered, valJSON...)
	}
	ordered = append(ordered, '}')
	return ordered
}

func trackerKey(promptID, toolID string) string {
	return promptID + "\x00" + toolID
}

// Check reports whether a pending confirmation exists for (promptID,
// toolID) with the given input hash. If it exists and matches, it is
// consumed (single-use) and ok is true. If it exists but is expired, it is
// evicted and ok is false.
func (t *ConfirmationTracker) Check(promptID, toolID, inputHash string) (ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := trackerKey(promptID, toolID)
	entry, found := t.pending[key]
	if !found {
		return false
	}
	if entry.Expired(t.now()) {
		delete(t.pending, key)
		return false
	}
	if entry.InputHash != inputHash {
		return false
	}
	delete(t.pending, key)
	return true
}

// Record stores a new pending confirmation, overwriting any existing entry
// for the same (promptID, toolID).
func (t *ConfirmationTracker) Record(promptID, toolID, inputHash string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[trackerKey(promptID, toolID)] = domaintool.PendingConfirmation{
		PromptID:  promptID,
		ToolID:    toolID,
		InputHash: inputHash,
		ExpiresAt: t.now().Add(domaintool.ConfirmationTTL),
	}
}
