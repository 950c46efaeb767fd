package types

// Call outcomes reported through MetricsCollector.RecordCall.
const (
	OutcomeOK       = "ok"
	OutcomeTimeout  = "timeout"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

// Dispatch outcomes reported through MetricsCollector.RecordDispatch.
const (
	DispatchOK       = "ok"
	DispatchFailed   = "failed"
	DispatchRejected = "rejected"
)

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking. Methods are called from caller
// goroutines, transport callbacks and gate workers, so they must be thread-safe.
type MetricsCollector interface {
	ClientMetrics
	ServerMetrics
}

// ClientMetrics defines metrics recorded on the calling side.
type ClientMetrics interface {
	// RecordCall records the final outcome of one logical call, retries included.
	//
	// Parameters:
	//   - subject: Subject the call was published to
	//   - outcome: One of the Outcome* constants
	//   - seconds: Wall-clock duration of the call
	RecordCall(subject, outcome string, seconds float64)

	// RecordRetry records one retry after a timed out attempt.
	RecordRetry(subject string)

	// RecordAckWait records how the acknowledgment phase of an attempt ended.
	//
	// Parameters:
	//   - subject: Subject the attempt was published to
	//   - acked: true when an ACK (or the result itself) ended the wait
	//   - seconds: Time spent in the phase
	RecordAckWait(subject string, acked bool, seconds float64)
}

// ServerMetrics defines metrics recorded by the serving side.
type ServerMetrics interface {
	// RecordDispatch records what happened to one inbound request.
	//
	// Parameters:
	//   - subject: Subject the request arrived on
	//   - outcome: One of the Dispatch* constants
	RecordDispatch(subject, outcome string)

	// RecordInflight sets the number of procedures currently executing.
	RecordInflight(n int)

	// RecordResubscribe records a (re)creation of all procedure subscriptions.
	//
	// Parameters:
	//   - count: Number of subscriptions created
	RecordResubscribe(count int)

	// RecordStateTransition records a server lifecycle transition.
	RecordStateTransition(from, to State)
}
