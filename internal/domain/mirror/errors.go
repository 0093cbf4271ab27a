package mirror

import "errors"

var (
	// ErrInvalidTransition indicates a disallowed sync-status transition.
	ErrInvalidTransition = errors.New("mirror: invalid sync status transition")
	// ErrVoucherNotFound indicates the referenced voucher does not exist locally.
	ErrVoucherNotFound = errors.New("mirror: voucher not found")
)
