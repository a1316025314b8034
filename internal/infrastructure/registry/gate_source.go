package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	gatedomain "github.com/promptgate/gateway/internal/domain/gate"
	apperrors "github.com/promptgate/gateway/pkg/errors"
)

// GateSource loads gate Definitions from `gates/{id}/gate.yaml` (+
// optional `guidance.md`), satisfying gate.DefinitionSource directly.
type GateSource struct {
	root string
	defs []*gatedomain.Definition
}

// NewGateSource walks root once at construction time, loading every
// gate.yaml it finds.
func NewGateSource(root string) (*GateSource, error) {
	s := &GateSource{root: root}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *GateSource) load() error {
	ids, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperrors.NewSystemError("failed to read gates root", err)
	}

	for _, idEntry := range ids {
		if !idEntry.IsDir() {
			continue
		}
		dir := filepath.Join(s.root, idEntry.Name())
		raw, err := os.ReadFile(filepath.Join(dir, "gate.yaml"))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return apperrors.NewSystemError(fmt.Sprintf("failed to read %s/gate.yaml", dir), err)
		}
		var gy gateYAML
		if err := yaml.Unmarshal(raw, &gy); err != nil {
			return apperrors.NewSystemError(fmt.Sprintf("failed to parse %s/gate.yaml", dir), err)
		}
		def := gateDefFromYAML(gy)
		if def.GuidanceFile != "" {
			// Stored relative to a gate's own directory on disk; rewritten
			// here to be relative to the gates root so ReadGuidanceFile can
			// resolve it without knowing the gate's id.
			def.GuidanceFile = filepath.Join(idEntry.Name(), def.GuidanceFile)
		}
		s.defs = append(s.defs, def)
	}
	return nil
}

// All implements gate.DefinitionSource.
func (s *GateSource) All() ([]*gatedomain.Definition, error) {
	return s.defs, nil
}

// ReadGuidanceFile implements gate.DefinitionSource, resolving a relative
// path against the gates root, so a gate's `{id}/guidance.md` is read from
// `gates/{id}/guidance.md` (spec §6).
func (s *GateSource) ReadGuidanceFile(path string) (string, error) {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(s.root, path)
	}
	raw, err := os.ReadFile(full)
	if err != nil {
		return "", apperrors.NewSystemError(fmt.Sprintf("failed to read guidance file %s", full), err)
	}
	return string(raw), nil
}
