package metrics

import (
	"testing"

	"github.com/RidgeA/bus-rpc/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.RecordCall("rpc.text.upper", types.OutcomeOK, 0.01)
	p.RecordCall("rpc.text.upper", types.OutcomeTimeout, 1)
	p.RecordRetry("rpc.text.upper")
	p.RecordRetry("rpc.text.upper")
	p.RecordAckWait("rpc.text.upper", true, 0.001)
	p.RecordDispatch("rpc.text.upper", types.DispatchRejected)
	p.RecordInflight(3)
	p.RecordResubscribe(4)
	p.RecordStateTransition(types.StateStarting, types.StateRunning)

	require.InDelta(t, 1, testutil.ToFloat64(p.calls.WithLabelValues("rpc.text.upper", types.OutcomeOK)), 0)
	require.InDelta(t, 2, testutil.ToFloat64(p.retries.WithLabelValues("rpc.text.upper")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.dispatches.WithLabelValues("rpc.text.upper", types.DispatchRejected)), 0)
	require.InDelta(t, 3, testutil.ToFloat64(p.inflight), 0)
	require.InDelta(t, 4, testutil.ToFloat64(p.subscriptions), 0)
	require.InDelta(t, 1, testutil.ToFloat64(p.transitions.WithLabelValues("Starting", "Running")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestPrometheusCollector_Defaults(t *testing.T) {
	p := NewPrometheus(prometheus.NewRegistry(), "")
	require.Equal(t, "busrpc", p.namespace)
}

func TestNopMetrics_Interface(t *testing.T) {
	var m types.MetricsCollector = NewNop()
	require.NotPanics(t, func() {
		m.RecordCall("s", types.OutcomeOK, 1)
		m.RecordRetry("s")
		m.RecordAckWait("s", false, 1)
		m.RecordDispatch("s", types.DispatchOK)
		m.RecordInflight(1)
		m.RecordResubscribe(1)
		m.RecordStateTransition(types.StateRunning, types.StateStopping)
	})
}
