package remote

// Outcome classifies the remote system's reaction to a write operation.
// Expected outcomes are values, not errors: only infrastructure failures
// travel as Go errors.
type Outcome string

const (
	// OutcomeAccepted means the remote system reported at least one
	// created/altered/deleted record.
	OutcomeAccepted Outcome = "ACCEPTED"
	// OutcomeRejected means the remote system reported line-level errors or an
	// explicit error count. Retrying the same payload unchanged will reject
	// again, so rejections are never retried automatically.
	OutcomeRejected Outcome = "REJECTED"
	// OutcomeIgnored means the remote system returned neither errors nor
	// counters nor a status indicator. The remote system is known to silently
	// accept-and-drop malformed payloads this way; callers must treat Ignored
	// as a failure requiring investigation, not as success.
	OutcomeIgnored Outcome = "IGNORED"
	// OutcomeTransportFault means the response could not be parsed at all and
	// the attempt should be treated like any other transport failure.
	OutcomeTransportFault Outcome = "TRANSPORT_FAULT"
)

// String returns the string representation of Outcome
func (o Outcome) String() string {
	return string(o)
}

// ImportResult is the classified result of a remote write operation.
type ImportResult struct {
	Outcome    Outcome
	Created    int
	Altered    int
	Deleted    int
	LineErrors []string
	// RemoteID is the identifier the remote system assigned to the last
	// created voucher, when it reported one.
	RemoteID string
	// FaultReason carries parse diagnostics for OutcomeTransportFault and,
	// for OutcomeIgnored, whether an all-zero status block was present.
	FaultReason string
}

// Accepted reports whether the remote system confirmed the write.
func (r *ImportResult) Accepted() bool {
	return r.Outcome == OutcomeAccepted
}

// Rejected reports whether the remote system explicitly rejected the write.
func (r *ImportResult) Rejected() bool {
	return r.Outcome == OutcomeRejected
}

// Total returns the sum of the reported mutation counters.
func (r *ImportResult) Total() int {
	return r.Created + r.Altered + r.Deleted
}
