package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/miku/stationagg/internal/engine"
)

var stats = engine.Stats{
	Rows:     1000,
	Bytes:    13000,
	Refills:  3,
	Shards:   4,
	Grows:    2,
	Stations: 41,
}

func TestCollector_Observe(t *testing.T) {
	c := NewCollector(DefaultNamespace, zap.NewNop())
	c.Observe("engine", stats, 1500*time.Millisecond, nil)
	c.Observe("engine", stats, 500*time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("engine", "ok")))
	assert.Equal(t, 2000.0, testutil.ToFloat64(c.rowsTotal))
	assert.Equal(t, 26000.0, testutil.ToFloat64(c.bytesTotal))
	assert.Equal(t, 6.0, testutil.ToFloat64(c.refillsTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.tableGrowsTotal))
	assert.Equal(t, 41.0, testutil.ToFloat64(c.stations))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.shards))
	assert.Equal(t, 0.5, testutil.ToFloat64(c.duration))
	assert.Greater(t, testutil.ToFloat64(c.lastSuccess), 0.0)
}

func TestCollector_ObserveError(t *testing.T) {
	c := NewCollector(DefaultNamespace, nil)
	c.Observe("naive", stats, time.Second, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runsTotal.WithLabelValues("naive", "error")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.rowsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.lastSuccess))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.duration))
}

func TestCollector_SeparateRegistries(t *testing.T) {
	a := NewCollector(DefaultNamespace, nil)
	b := NewCollector(DefaultNamespace, nil)
	a.Observe("engine", stats, time.Second, nil)

	n, err := testutil.GatherAndCount(b.Gatherer(), "brc_rows_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.rowsTotal))
}

func TestCollector_WriteTextfile(t *testing.T) {
	c := NewCollector(DefaultNamespace, nil)
	c.Observe("engine", stats, time.Second, nil)

	path := filepath.Join(t.TempDir(), "1brc.prom")
	require.NoError(t, c.WriteTextfile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(b)
	assert.Contains(t, content, "brc_rows_total 1000\n")
	assert.Contains(t, content, "brc_stations 41\n")
	assert.Contains(t, content, `brc_runs_total{mode="engine",status="ok"} 1`)

	expected := `
# HELP brc_table_grows_total Total number of station table resizes
# TYPE brc_table_grows_total counter
brc_table_grows_total 2
`
	require.NoError(t, testutil.GatherAndCompare(c.Gatherer(), strings.NewReader(expected), "brc_table_grows_total"))
}

func TestCollector_WriteTextfileError(t *testing.T) {
	c := NewCollector(DefaultNamespace, nil)
	err := c.WriteTextfile(filepath.Join(t.TempDir(), "missing", "1brc.prom"))
	assert.Error(t, err)
}
