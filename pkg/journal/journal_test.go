package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalRecordAndList(t *testing.T) {
	ctx := context.Background()
	j, err := Open(ctx, filepath.Join(t.TempDir(), "state", "state.db"))
	require.NoError(t, err)
	defer j.Close()

	_, ok, err := j.LastChange(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, j.Record(ctx, Entry{RunID: "r1", Time: base, Output: "/etc/bird/x.conf", Digest: "aa", Changed: true, Clauses: 3}))
	require.NoError(t, j.Record(ctx, Entry{RunID: "r2", Time: base.Add(time.Minute), Output: "/etc/bird/x.conf", Digest: "aa", Clauses: 3, Skipped: 1}))

	all, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "r2", all[0].RunID)
	assert.False(t, all[0].Changed)
	assert.Equal(t, 1, all[0].Skipped)
	assert.True(t, all[1].Time.Equal(base))

	one, err := j.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)

	last, ok, err := j.LastChange(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r1", last.RunID)
	assert.Equal(t, 3, last.Clauses)
}
