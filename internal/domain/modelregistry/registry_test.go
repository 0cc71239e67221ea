package modelregistry_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caremesh/services/agent-guard/internal/domain/guarderrors"
	"caremesh/services/agent-guard/internal/domain/modelregistry"
)

func newRegistry(t *testing.T, variants ...modelregistry.Variant) *modelregistry.Registry {
	t.Helper()
	r := modelregistry.NewRegistry()
	for _, v := range variants {
		require.NoError(t, r.RegisterVersion(modelregistry.ModelVersion{
			ID: v.VersionID, Name: v.VersionID, Type: "intent-refiner", Status: modelregistry.StatusActive,
		}))
	}
	require.NoError(t, r.RegisterExperiment(modelregistry.ABTestConfig{
		ExperimentID: "refine-exp",
		Variants:     variants,
	}))
	return r
}

func TestRegistry_RegisterVersionRequiresIDAndName(t *testing.T) {
	r := modelregistry.NewRegistry()
	assert.Error(t, r.RegisterVersion(modelregistry.ModelVersion{Name: "m1"}))
	assert.Error(t, r.RegisterVersion(modelregistry.ModelVersion{ID: "m1"}))
	assert.NoError(t, r.RegisterVersion(modelregistry.ModelVersion{ID: "m1", Name: "m1"}))
}

func TestRegistry_ExperimentValidation(t *testing.T) {
	r := modelregistry.NewRegistry()
	require.NoError(t, r.RegisterVersion(modelregistry.ModelVersion{ID: "m1", Name: "m1"}))

	tests := []struct {
		name string
		cfg  modelregistry.ABTestConfig
	}{
		{"empty experiment id", modelregistry.ABTestConfig{
			Variants: []modelregistry.Variant{{VersionID: "m1", Percent: 100}},
		}},
		{"no variants", modelregistry.ABTestConfig{ExperimentID: "e1"}},
		{"split under 100", modelregistry.ABTestConfig{
			ExperimentID: "e1",
			Variants:     []modelregistry.Variant{{VersionID: "m1", Percent: 60}},
		}},
		{"negative percent", modelregistry.ABTestConfig{
			ExperimentID: "e1",
			Variants: []modelregistry.Variant{
				{VersionID: "m1", Percent: 120}, {VersionID: "m1", Percent: -20},
			},
		}},
		{"unknown version", modelregistry.ABTestConfig{
			ExperimentID: "e1",
			Variants:     []modelregistry.Variant{{VersionID: "ghost", Percent: 100}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, r.RegisterExperiment(tt.cfg))
		})
	}
}

func TestRegistry_GetVersionUnknown(t *testing.T) {
	r := modelregistry.NewRegistry()
	_, err := r.GetVersion(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, guarderrors.IsType(err, guarderrors.ErrorTypeNotFound))
}

func TestAssignVariant_IsStableAcrossCalls(t *testing.T) {
	r := newRegistry(t,
		modelregistry.Variant{VersionID: "m1", Percent: 50},
		modelregistry.Variant{VersionID: "m2", Percent: 50},
	)
	ctx := context.Background()

	for _, tenant := range []string{"clinic-a", "clinic-b", "clinic-c", "clinic-d"} {
		first, err := r.AssignVariant(ctx, tenant, "refine-exp")
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			again, err := r.AssignVariant(ctx, tenant, "refine-exp")
			require.NoError(t, err)
			assert.Equal(t, first.ID, again.ID, "tenant %s must keep its variant", tenant)
		}
	}
}

func TestAssignVariant_UnknownExperiment(t *testing.T) {
	r := modelregistry.NewRegistry()
	_, err := r.AssignVariant(context.Background(), "clinic-a", "ghost-exp")
	require.Error(t, err)
	assert.True(t, guarderrors.IsType(err, guarderrors.ErrorTypeNotFound))
}

func TestAssignVariant_SingleVariantTakesAllTraffic(t *testing.T) {
	r := newRegistry(t, modelregistry.Variant{VersionID: "m1", Percent: 100})
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		v, err := r.AssignVariant(ctx, fmt.Sprintf("tenant-%d", i), "refine-exp")
		require.NoError(t, err)
		assert.Equal(t, "m1", v.ID)
	}
}

func TestAssignVariant_DistributionConvergesToSplit(t *testing.T) {
	r := newRegistry(t,
		modelregistry.Variant{VersionID: "m1", Percent: 50},
		modelregistry.Variant{VersionID: "m2", Percent: 50},
	)
	ctx := context.Background()

	const tenants = 10000
	counts := map[string]int{}
	for i := 0; i < tenants; i++ {
		v, err := r.AssignVariant(ctx, fmt.Sprintf("tenant-%d", i), "refine-exp")
		require.NoError(t, err)
		counts[v.ID]++
	}

	// 50/50 split over 10k tenants; allow 3 percentage points of drift.
	assert.InDelta(t, tenants/2, counts["m1"], 300, "m1 share %d", counts["m1"])
	assert.InDelta(t, tenants/2, counts["m2"], 300, "m2 share %d", counts["m2"])
}

func TestBucket_IsBounded(t *testing.T) {
	for i := 0; i < 1000; i++ {
		b := modelregistry.Bucket(fmt.Sprintf("tenant-%d", i), "refine-exp")
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, 100)
	}
}
