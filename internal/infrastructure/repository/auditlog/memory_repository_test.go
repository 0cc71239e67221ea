package auditlog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caremesh/services/agent-guard/internal/domain/audit"
	"caremesh/services/agent-guard/internal/infrastructure/repository/auditlog"
)

func seed(t *testing.T, repo *auditlog.MemoryRepository) {
	t.Helper()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	events := []audit.Event{
		{ID: "e1", RequestID: "req-1", TenantID: "clinic-a", Type: audit.EventRequestReceived, Tag: audit.TagNone, Sequence: 1, CreatedAt: base},
		{ID: "e2", RequestID: "req-1", TenantID: "clinic-a", Type: audit.EventPolicyDeny, Tag: audit.TagSecurity, Sequence: 2, CreatedAt: base.Add(time.Second)},
		{ID: "e3", RequestID: "req-2", TenantID: "clinic-a", Type: audit.EventRequestReceived, Tag: audit.TagNone, Sequence: 1, CreatedAt: base.Add(2 * time.Second)},
		{ID: "e4", RequestID: "req-3", TenantID: "clinic-b", Type: audit.EventBreakerOpened, Tag: audit.TagReliability, Sequence: 1, CreatedAt: base.Add(3 * time.Second)},
	}
	for i := range events {
		require.NoError(t, repo.Append(context.Background(), &events[i]))
	}
}

func ids(events []audit.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func TestMemoryRepository_FiltersByTenant(t *testing.T) {
	repo := auditlog.NewMemoryRepository()
	seed(t, repo)

	events, total, err := repo.Query(context.Background(), audit.Filter{TenantID: "clinic-a"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, []string{"e1", "e2", "e3"}, ids(events))
}

func TestMemoryRepository_FiltersByRequestAndType(t *testing.T) {
	repo := auditlog.NewMemoryRepository()
	seed(t, repo)

	events, _, err := repo.Query(context.Background(), audit.Filter{RequestID: "req-1", Type: audit.EventPolicyDeny})
	require.NoError(t, err)
	assert.Equal(t, []string{"e2"}, ids(events))
}

func TestMemoryRepository_FiltersByIncidentTag(t *testing.T) {
	repo := auditlog.NewMemoryRepository()
	seed(t, repo)

	events, _, err := repo.Query(context.Background(), audit.Filter{Tag: audit.TagReliability})
	require.NoError(t, err)
	assert.Equal(t, []string{"e4"}, ids(events))
}

func TestMemoryRepository_FiltersByTimeWindow(t *testing.T) {
	repo := auditlog.NewMemoryRepository()
	seed(t, repo)
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	events, _, err := repo.Query(context.Background(), audit.Filter{
		From: base.Add(time.Second),
		To:   base.Add(2 * time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"e2", "e3"}, ids(events))
}

func TestMemoryRepository_PaginationKeepsTotal(t *testing.T) {
	repo := auditlog.NewMemoryRepository()
	seed(t, repo)

	events, total, err := repo.Query(context.Background(), audit.Filter{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Equal(t, []string{"e1", "e2"}, ids(events))

	events, total, err = repo.Query(context.Background(), audit.Filter{Offset: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Equal(t, []string{"e3", "e4"}, ids(events))

	events, total, err = repo.Query(context.Background(), audit.Filter{Offset: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Empty(t, events)
}

func TestMemoryRepository_OrdersBySequenceWithinSameInstant(t *testing.T) {
	repo := auditlog.NewMemoryRepository()
	at := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	for _, e := range []audit.Event{
		{ID: "late", RequestID: "req-1", Sequence: 2, CreatedAt: at},
		{ID: "early", RequestID: "req-1", Sequence: 1, CreatedAt: at},
	} {
		event := e
		require.NoError(t, repo.Append(context.Background(), &event))
	}

	events, _, err := repo.Query(context.Background(), audit.Filter{RequestID: "req-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, ids(events))
}
