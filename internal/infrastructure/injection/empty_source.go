package injection

import domain "github.com/promptgate/gateway/internal/domain/injection"

// EmptySource is a ConfigSource with nothing authored at any level: every
// lookup falls through to resolveHierarchy's "default" level, so every
// type injects with frequency "every 1" at both targets. It's the
// dispatcher's baseline when no step/chain/category/global overrides have
// been authored — the hierarchy still resolves correctly, it just never
// finds anything above "default".
type EmptySource struct{}

func (EmptySource) StepConfig(stepKey string, t domain.Type) (*domain.Config, bool) {
	return nil, false
}

func (EmptySource) ChainConfig(chainID string, t domain.Type) (*domain.Config, bool) {
	return nil, false
}

func (EmptySource) CategoryConfig(category string, t domain.Type) (*domain.Config, bool) {
	return nil, false
}

func (EmptySource) GlobalConfig(t domain.Type) (*domain.Config, bool) {
	return nil, false
}
