package registry

import (
	"time"

	managerdomain "github.com/promptgate/gateway/internal/domain/manager"
)

// ManagerSource adapts PromptSource/GateSource into manager.ReloadSource,
// so `reload` (spec §4.8) re-reads the same on-disk authoring trees the
// dispatcher was built from rather than leaving the C8 Manager's `reload`
// a permanent no-op.
type ManagerSource struct {
	Prompts *PromptSource
	Gates   *GateSource
}

// LoadAll implements manager.ReloadSource.
func (s *ManagerSource) LoadAll() ([]*managerdomain.Entry, error) {
	now := time.Now()
	var entries []*managerdomain.Entry

	for _, id := range s.Prompts.List() {
		rec, _ := s.Prompts.Get(id)
		body, err := s.Prompts.Content(id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &managerdomain.Entry{
			ID:        id,
			Kind:      managerdomain.EntryKindPrompt,
			Category:  rec.Category,
			Body:      body,
			Version:   1,
			UpdatedAt: now,
		})
	}

	defs, err := s.Gates.All()
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		body := def.Guidance
		if body == "" && def.GuidanceFile != "" {
			if text, err := s.Gates.ReadGuidanceFile(def.GuidanceFile); err == nil {
				body = text
			}
		}
		entries = append(entries, &managerdomain.Entry{
			ID:        def.ID,
			Kind:      managerdomain.EntryKindGate,
			Body:      body,
			Version:   1,
			UpdatedAt: now,
		})
	}

	return entries, nil
}
