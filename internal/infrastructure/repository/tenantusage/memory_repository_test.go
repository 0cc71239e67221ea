package tenantusage_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caremesh/services/agent-guard/internal/domain/usage"
	tenantusagerepo "caremesh/services/agent-guard/internal/infrastructure/repository/tenantusage"
)

func TestMemoryRepository_IncrementAccumulates(t *testing.T) {
	repo := tenantusagerepo.NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Increment(ctx, "clinic-a", "2026-08", usage.Delta{
		Requests: 1, Tokens: 120, ToolCalls: 2, CostUSD: decimal.NewFromFloat(0.004),
	}))
	require.NoError(t, repo.Increment(ctx, "clinic-a", "2026-08", usage.Delta{
		Requests: 1, Tokens: 80, ToolCalls: 1, CostUSD: decimal.NewFromFloat(0.002),
	}))

	record, err := repo.Get(ctx, "clinic-a", "2026-08")
	require.NoError(t, err)
	assert.EqualValues(t, 2, record.Requests)
	assert.EqualValues(t, 200, record.Tokens)
	assert.EqualValues(t, 3, record.ToolCalls)
	assert.True(t, record.EstimatedCostUSD.Equal(decimal.NewFromFloat(0.006)),
		"got %s", record.EstimatedCostUSD)
	assert.False(t, record.UpdatedAt.IsZero())
}

func TestMemoryRepository_TenantsAndPeriodsAreIsolated(t *testing.T) {
	repo := tenantusagerepo.NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Increment(ctx, "clinic-a", "2026-08", usage.Delta{Requests: 5}))
	require.NoError(t, repo.Increment(ctx, "clinic-b", "2026-08", usage.Delta{Requests: 3}))
	require.NoError(t, repo.Increment(ctx, "clinic-a", "2026-07", usage.Delta{Requests: 9}))

	record, err := repo.Get(ctx, "clinic-a", "2026-08")
	require.NoError(t, err)
	assert.EqualValues(t, 5, record.Requests)

	record, err = repo.Get(ctx, "clinic-b", "2026-08")
	require.NoError(t, err)
	assert.EqualValues(t, 3, record.Requests)
}

func TestMemoryRepository_GetUnknownTenantReturnsZeroRecord(t *testing.T) {
	repo := tenantusagerepo.NewMemoryRepository()

	record, err := repo.Get(context.Background(), "clinic-x", "2026-08")
	require.NoError(t, err)
	assert.Equal(t, "clinic-x", record.TenantID)
	assert.Equal(t, "2026-08", record.Period)
	assert.Zero(t, record.Requests)
	assert.True(t, record.EstimatedCostUSD.IsZero())
}

func TestMemoryRepository_ResetPeriodDropsOnlyThatPeriod(t *testing.T) {
	repo := tenantusagerepo.NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, repo.Increment(ctx, "clinic-a", "2026-07", usage.Delta{Requests: 4}))
	require.NoError(t, repo.Increment(ctx, "clinic-a", "2026-08", usage.Delta{Requests: 6}))
	require.NoError(t, repo.ResetPeriod(ctx, "2026-08"))

	record, err := repo.Get(ctx, "clinic-a", "2026-08")
	require.NoError(t, err)
	assert.Zero(t, record.Requests)

	record, err = repo.Get(ctx, "clinic-a", "2026-07")
	require.NoError(t, err)
	assert.EqualValues(t, 4, record.Requests)
}

func TestMemoryRepository_ConcurrentIncrementsNeverLoseCounts(t *testing.T) {
	repo := tenantusagerepo.NewMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.Increment(ctx, "clinic-a", "2026-08", usage.Delta{Requests: 1, Tokens: 10}))
		}()
	}
	wg.Wait()

	record, err := repo.Get(ctx, "clinic-a", "2026-08")
	require.NoError(t, err)
	assert.EqualValues(t, 50, record.Requests)
	assert.EqualValues(t, 500, record.Tokens)
}
