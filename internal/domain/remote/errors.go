package remote

import "errors"

var (
	// ErrRemoteUnavailable indicates the remote system could not be reached
	// (connection refused, timeout). Retryable.
	ErrRemoteUnavailable = errors.New("remote: accounting system unavailable")
	// ErrRemoteRequestFailed indicates the remote system answered with an HTTP
	// error status. Retryable.
	ErrRemoteRequestFailed = errors.New("remote: request failed")
	// ErrInvalidResponse indicates the remote response could not be parsed
	// even after sanitization. Retryable.
	ErrInvalidResponse = errors.New("remote: invalid response")
	// ErrInvalidPayload indicates a write payload failed validation before any
	// network call. Not retryable.
	ErrInvalidPayload = errors.New("remote: invalid payload")
	// ErrLedgerNotFound indicates a ledger lookup matched nothing at any tier.
	ErrLedgerNotFound = errors.New("remote: ledger not found")
	// ErrNotConfigured indicates the connector is missing required
	// configuration such as the endpoint URL.
	ErrNotConfigured = errors.New("remote: connector not configured")
)

// IsTransportFault reports whether err belongs to the retryable transport
// fault class of the error taxonomy. Payload validation failures and explicit
// remote rejections are never transport faults.
func IsTransportFault(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable) ||
		errors.Is(err, ErrRemoteRequestFailed) ||
		errors.Is(err, ErrInvalidResponse)
}
