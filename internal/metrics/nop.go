// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/RidgeA/bus-rpc/types"

// NopMetrics implements a no-op metrics collector.
type NopMetrics struct{}

var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// RecordCall discards the call metric.
func (n *NopMetrics) RecordCall(_ /* subject */, _ /* outcome */ string, _ /* seconds */ float64) {}

// RecordRetry discards the retry metric.
func (n *NopMetrics) RecordRetry(_ /* subject */ string) {}

// RecordAckWait discards the ack wait metric.
func (n *NopMetrics) RecordAckWait(_ /* subject */ string, _ /* acked */ bool, _ /* seconds */ float64) {
}

// RecordDispatch discards the dispatch metric.
func (n *NopMetrics) RecordDispatch(_ /* subject */, _ /* outcome */ string) {}

// RecordInflight discards the in-flight gauge.
func (n *NopMetrics) RecordInflight(_ /* n */ int) {}

// RecordResubscribe discards the resubscribe metric.
func (n *NopMetrics) RecordResubscribe(_ /* count */ int) {}

// RecordStateTransition discards the state transition metric.
func (n *NopMetrics) RecordStateTransition(_ /* from */, _ /* to */ types.State) {}
