// Package modelregistry tracks model versions and deterministic A/B variant assignment.
package modelregistry

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	"caremesh/services/agent-guard/internal/domain/guarderrors"
)

// VersionStatus is the lifecycle status of a model version.
type VersionStatus string

const (
	StatusActive     VersionStatus = "active"
	StatusDeprecated VersionStatus = "deprecated"
	StatusShadow     VersionStatus = "shadow"
)

// ModelVersion identifies a concrete model the pipeline may call.
type ModelVersion struct {
	ID     string
	Type   string // e.g. "intent-refiner", "action-planner"
	Name   string // provider model identifier
	Status VersionStatus
}

// Variant is one arm of an experiment with its traffic share.
type Variant struct {
	VersionID string
	Percent   int
}

// ABTestConfig splits an experiment's traffic across model versions.
type ABTestConfig struct {
	ExperimentID string
	Variants     []Variant
}

// Validate checks that the traffic split covers exactly 100 percent.
func (c ABTestConfig) Validate() error {
	if c.ExperimentID == "" {
		return fmt.Errorf("experiment id is empty")
	}
	if len(c.Variants) == 0 {
		return fmt.Errorf("experiment %q has no variants", c.ExperimentID)
	}
	total := 0
	for _, v := range c.Variants {
		if v.Percent < 0 {
			return fmt.Errorf("experiment %q variant %q has negative percent", c.ExperimentID, v.VersionID)
		}
		total += v.Percent
	}
	if total != 100 {
		return fmt.Errorf("experiment %q traffic split sums to %d, want 100", c.ExperimentID, total)
	}
	return nil
}

// Registry holds model versions and experiment configurations.
type Registry struct {
	mu          sync.RWMutex
	versions    map[string]ModelVersion
	experiments map[string]ABTestConfig
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		versions:    make(map[string]ModelVersion),
		experiments: make(map[string]ABTestConfig),
	}
}

// RegisterVersion adds or replaces a model version.
func (r *Registry) RegisterVersion(v ModelVersion) error {
	if v.ID == "" || v.Name == "" {
		return fmt.Errorf("model version requires id and name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions[v.ID] = v
	return nil
}

// RegisterExperiment validates and stores an experiment. Every variant must
// reference a registered version.
func (r *Registry) RegisterExperiment(cfg ABTestConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range cfg.Variants {
		if _, ok := r.versions[v.VersionID]; !ok {
			return fmt.Errorf("experiment %q references unknown model version %q", cfg.ExperimentID, v.VersionID)
		}
	}
	r.experiments[cfg.ExperimentID] = cfg
	return nil
}

// GetVersion returns a model version by id.
func (r *Registry) GetVersion(ctx context.Context, id string) (ModelVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.versions[id]
	if !ok {
		return ModelVersion{}, guarderrors.New(ctx, guarderrors.LayerDomain, guarderrors.ErrorTypeNotFound,
			fmt.Sprintf("model version %q is not registered", id), nil, "model-version-get-001")
	}
	return v, nil
}

// AssignVariant deterministically maps a tenant into the experiment's traffic
// split. The assignment is a pure function of (tenant id, experiment id):
// repeated calls are stable, and across many tenants the observed distribution
// converges to the configured percentages.
func (r *Registry) AssignVariant(ctx context.Context, tenantID, experimentID string) (ModelVersion, error) {
	r.mu.RLock()
	cfg, ok := r.experiments[experimentID]
	r.mu.RUnlock()

	if !ok {
		return ModelVersion{}, guarderrors.New(ctx, guarderrors.LayerDomain, guarderrors.ErrorTypeNotFound,
			fmt.Sprintf("experiment %q is not registered", experimentID), nil, "model-assign-001")
	}

	bucket := Bucket(tenantID, experimentID)
	cumulative := 0
	for _, v := range cfg.Variants {
		cumulative += v.Percent
		if bucket < cumulative {
			return r.GetVersion(ctx, v.VersionID)
		}
	}
	// Unreachable when the split validates to 100; fall back to the last variant.
	return r.GetVersion(ctx, cfg.Variants[len(cfg.Variants)-1].VersionID)
}

// Bucket hashes (tenant, experiment) into [0, 100).
func Bucket(tenantID, experimentID string) int {
	sum := sha256.Sum256([]byte(tenantID + "|" + experimentID))
	return int(binary.BigEndian.Uint64(sum[:8]) % 100)
}
