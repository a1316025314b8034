// Package registry provides the minimal on-disk-backed PromptRegistry/
// GateRegistry implementations the demo server and its tests drive the
// core against (spec SPEC_FULL.md §4.8: explicitly not the hot-reloading,
// versioned authoring system — no file-watching, no version persistence
// beyond what the C8 manager keeps in memory).
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	gatedomain "github.com/promptgate/gateway/internal/domain/gate"
	promptdomain "github.com/promptgate/gateway/internal/domain/prompt"
	scripttooldomain "github.com/promptgate/gateway/internal/domain/scripttool"
	apperrors "github.com/promptgate/gateway/pkg/errors"
)

// PromptSource loads prompt.Record values and their raw user-message
// bodies from `prompts/{category}/{id}/` (spec §6 on-disk layout),
// satisfying promptengine.PromptRegistry directly.
type PromptSource struct {
	root    string
	records map[string]*promptdomain.Record
	content map[string]string
}

// NewPromptSource walks root once at construction time, loading every
// prompt.yaml it finds.
func NewPromptSource(root string) (*PromptSource, error) {
	s := &PromptSource{root: root, records: map[string]*promptdomain.Record{}, content: map[string]string{}}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PromptSource) load() error {
	categories, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.NewSystemError("failed to read prompts root", err)
	}

	for _, catEntry := range categories {
		if !catEntry.IsDir() {
			continue
		}
		catDir := filepath.Join(s.root, catEntry.Name())
		ids, err := os.ReadDir(catDir)
		if err != nil {
			return apperrors.NewSystemError(fmt.Sprintf("failed to read category %q", catEntry.Name()), err)
		}
		for _, idEntry := range ids {
			if !idEntry.IsDir() {
				continue
			}
			if err := s.loadOne(filepath.Join(catDir, idEntry.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *PromptSource) loadOne(dir string) error {
	raw, err := os.ReadFile(filepath.Join(dir, "prompt.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil // not a prompt directory
		}
		return apperrors.NewSystemError(fmt.Sprintf("failed to read %s/prompt.yaml", dir), err)
	}

	var py promptYAML
	if err := yaml.Unmarshal(raw, &py); err != nil {
		return apperrors.NewSystemError(fmt.Sprintf("failed to parse %s/prompt.yaml", dir), err)
	}

	rec := &promptdomain.Record{
		ID:              py.ID,
		Category:        py.Category,
		ExplicitGateIDs: py.ExplicitGateIDs,
	}
	for _, cs := range py.Chain {
		rec.ChainSteps = append(rec.ChainSteps, promptdomain.ChainStep{PromptID: cs.PromptID, ApplyToSteps: cs.ApplyToSteps})
	}
	if py.FrameworkRecommendation != nil {
		rec.FrameworkRecommendation = &promptdomain.FrameworkRecommendation{
			FrameworkID: py.FrameworkRecommendation.FrameworkID,
			Confidence:  py.FrameworkRecommendation.Confidence,
		}
	}

	for _, toolID := range py.Tools {
		tool, err := loadTool(filepath.Join(dir, "tools", toolID))
		if err != nil {
			return err
		}
		if tool != nil {
			rec.ScriptTools = append(rec.ScriptTools, tool)
		}
	}

	body, err := readIfExists(filepath.Join(dir, "user-message.md"))
	if err != nil {
		return err
	}
	sysMsg, err := readIfExists(filepath.Join(dir, "system-message.md"))
	if err != nil {
		return err
	}
	rec.SystemMessage = sysMsg

	s.records[rec.ID] = rec
	s.content[rec.ID] = body
	return nil
}

func loadTool(dir string) (*scripttooldomain.Definition, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "tool.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.NewSystemError(fmt.Sprintf("failed to read %s/tool.yaml", dir), err)
	}
	var ty toolYAML
	if err := yaml.Unmarshal(raw, &ty); err != nil {
		return nil, apperrors.NewSystemError(fmt.Sprintf("failed to parse %s/tool.yaml", dir), err)
	}

	var schema map[string]interface{}
	if schemaRaw, err := os.ReadFile(filepath.Join(dir, "schema.json")); err == nil {
		if err := json.Unmarshal(schemaRaw, &schema); err != nil {
			return nil, apperrors.NewSystemError(fmt.Sprintf("failed to parse %s/schema.json", dir), err)
		}
	} else if !os.IsNotExist(err) {
		return nil, apperrors.NewSystemError(fmt.Sprintf("failed to read %s/schema.json", dir), err)
	}

	scriptPath := ty.ScriptPath
	if scriptPath != "" && !filepath.IsAbs(scriptPath) {
		scriptPath = filepath.Join(dir, scriptPath)
	}

	return &scripttooldomain.Definition{
		ID:          ty.ID,
		Name:        ty.Name,
		ScriptPath:  scriptPath,
		Runtime:     scripttooldomain.Runtime(ty.Runtime),
		InputSchema: schema,
		Execution: scripttooldomain.ExecutionConfig{
			Trigger:            scripttooldomain.Trigger(ty.Execution.Trigger),
			Confirm:            ty.Execution.Confirm,
			Strict:             ty.Execution.Strict,
			ConfirmMessage:     ty.Execution.ConfirmMessage,
			AutoApproveOnValid: ty.Execution.AutoApproveOnValid,
		},
		TimeoutMS:  ty.TimeoutMS,
		Env:        ty.Env,
		WorkingDir: ty.WorkingDir,
		Enabled:    ty.Enabled,
	}, nil
}

func readIfExists(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", apperrors.NewSystemError(fmt.Sprintf("failed to read %s", path), err)
	}
	return string(raw), nil
}

// Get implements promptengine.PromptRegistry.
func (s *PromptSource) Get(id string) (*promptdomain.Record, bool) {
	rec, ok := s.records[id]
	return rec, ok
}

// List implements promptengine.PromptRegistry.
func (s *PromptSource) List() []string {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids
}

// Content implements promptengine.PromptRegistry.
func (s *PromptSource) Content(id string) (string, error) {
	body, ok := s.content[id]
	if !ok {
		return "", apperrors.NewUnknownPromptError(fmt.Sprintf("unknown prompt %q", id), nil)
	}
	return body, nil
}

// gateDefFromYAML converts one gate.yaml document into a gate Definition,
// shared with gate_source.go.
func gateDefFromYAML(gy gateYAML) *gatedomain.Definition {
	def := &gatedomain.Definition{
		ID:           gy.ID,
		Name:         gy.Name,
		Type:         gatedomain.Type(gy.Type),
		Severity:     gatedomain.Severity(gy.Severity),
		Guidance:     gy.Guidance,
		GuidanceFile: gy.GuidanceFile,
		Activation: gatedomain.ActivationRules{
			Categories:      gy.Activation.Categories,
			Frameworks:      gy.Activation.Frameworks,
			ExplicitRequest: gy.Activation.ExplicitRequest,
		},
		Retry: gatedomain.RetryConfig{
			MaxAttempts:      gy.Retry.MaxAttempts,
			ImprovementHints: gy.Retry.ImprovementHints,
			PreserveContext:  gy.Retry.PreserveContext,
		},
		GateKind: gatedomain.GateKind(gy.GateKind),
	}
	if gy.EnforcementOverride != "" {
		enf := gatedomain.Enforcement(gy.EnforcementOverride)
		def.EnforcementOverride = &enf
	}
	for _, c := range gy.PassCriteria {
		def.PassCriteria = append(def.PassCriteria, gatedomain.Criterion{
			Type:           gatedomain.CriterionType(c.Type),
			Description:    c.Description,
			MinLength:      c.MinLength,
			MaxLength:      c.MaxLength,
			Pattern:        c.Pattern,
			PromptTemplate: c.PromptTemplate,
			Threshold:      c.Threshold,
		})
	}
	return def
}
