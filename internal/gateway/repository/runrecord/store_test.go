package runrecord

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodeflow/internal/runner"
)

func TestMemoryStoreListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, runner.Record{RunID: "a", NodeID: "w1", StartedAt: base}))
	require.NoError(t, s.Save(ctx, runner.Record{RunID: "b", NodeID: "w1", StartedAt: base.Add(time.Minute)}))
	require.NoError(t, s.Save(ctx, runner.Record{RunID: "c", NodeID: "w2", StartedAt: base.Add(2 * time.Minute)}))

	got, err := s.List(ctx, "w1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].RunID)
	assert.Equal(t, "a", got[1].RunID)

	got, err = s.List(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].RunID)
}

func TestMemoryStoreRequiresRunID(t *testing.T) {
	assert.Error(t, NewMemoryStore().Save(context.Background(), runner.Record{NodeID: "w"}))
}

func TestPostgresQueries(t *testing.T) {
	q, args := insertQuery(runner.Record{RunID: "r", NodeID: "w", Success: true})
	assert.True(t, strings.HasPrefix(q, `INSERT INTO "run_records"`))
	assert.Contains(t, q, "ON CONFLICT")
	assert.Len(t, args, len(columns))

	q, args = listQuery("w", 5)
	assert.Contains(t, q, `FROM "run_records"`)
	assert.Contains(t, q, `"node_id" = $1`)
	assert.Contains(t, q, "ORDER BY")
	assert.Equal(t, []any{"w"}, args)

	q, args = listQuery("", 0)
	assert.NotContains(t, q, "WHERE")
	assert.Empty(t, args)
	assert.Contains(t, q, "LIMIT 20")
}
