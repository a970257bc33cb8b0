package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Cache(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CacheLookup("hit")
	m.CacheLookup("hit")
	m.CacheLookup("miss")
	m.CacheRemoved("pattern", 3)
	m.CacheError("set")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RemovedKeys.WithLabelValues("pattern")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheErrors.WithLabelValues("set")))
}

func TestMetrics_HandlerCompleted(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.HandlerCompleted("proposal.evaluated", "cache", time.Millisecond, nil)
	m.HandlerCompleted("proposal.evaluated", "email", time.Millisecond, errors.New("smtp down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HandlerRuns.WithLabelValues("proposal.evaluated", "cache", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HandlerRuns.WithLabelValues("proposal.evaluated", "email", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.HandlerDuration))
}

func TestNew_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	assert.Panics(t, func() { New(reg) })
}
