package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.Observe(Run{
		Time:           time.Unix(1700000000, 0),
		Success:        true,
		Changed:        true,
		Candidates:     4,
		Clauses:        2,
		MissingAddress: 1,
		MissingMapping: 1,
	})
	path := filepath.Join(t.TempDir(), "peerlab_bird.prom")
	require.NoError(t, r.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, "peerlab_bird_policy_clauses 2")
	assert.Contains(t, out, "peerlab_bird_config_changed 1")
	assert.Contains(t, out, `peerlab_bird_skipped_nodes{reason="no_mapping"} 1`)
	assert.Contains(t, out, "# TYPE peerlab_bird_last_change_timestamp_seconds gauge")
}

func TestObserveFailureKeepsPreviousCounts(t *testing.T) {
	r := New()
	r.Observe(Run{Time: time.Unix(100, 0), Success: true, Clauses: 5})
	r.Observe(Run{Time: time.Unix(200, 0), Success: false})

	mfs, err := r.Gatherer().Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range mfs {
		if len(mf.GetMetric()) == 1 && mf.GetMetric()[0].GetGauge() != nil {
			values[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 5.0, values["peerlab_bird_policy_clauses"])
	assert.Equal(t, 0.0, values["peerlab_bird_last_run_success"])
	assert.Equal(t, 200.0, values["peerlab_bird_last_run_timestamp_seconds"])
}
