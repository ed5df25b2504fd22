package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/codescord/broker/internal/protocol"
)

// NewPool registers its collectors on the default registry, so a second call
// in the same process panics; the tests share one instance.
var sharedPool = NewPool()

func TestObserveSetsGauges(t *testing.T) {
	p := sharedPool
	p.Observe(3, 7, 2)

	assert.Equal(t, float64(3), testutil.ToFloat64(p.InFlight))
	assert.Equal(t, float64(7), testutil.ToFloat64(p.QueueDepth))
	assert.Equal(t, float64(2), testutil.ToFloat64(p.PortsInUse))
}

func TestRecordLeaseIncrementsByOutcome(t *testing.T) {
	p := sharedPool
	p.RecordLease(protocol.OutcomeSuccess, 0.25)
	p.RecordLease(protocol.OutcomeSuccess, 0.30)
	p.RecordLease(protocol.OutcomeWorkerTimeout, 1.0)

	assert.Equal(t, float64(2), testutil.ToFloat64(p.LeasesTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.LeasesTotal.WithLabelValues("worker_timeout")))
}
