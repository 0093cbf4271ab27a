package remote

import (
	"context"
	"time"
)

// Row is one record pulled from the remote system, flattened to the
// upper-snake attribute-name convention produced by the protocol codec.
type Row map[string]string

// Get returns the first non-empty value among the given keys. Remote exports
// name the same column differently depending on the report shape, so lookups
// go through alias lists.
func (r Row) Get(keys ...string) string {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// Connector is the typed protocol client for the remote accounting system.
// All operations block on network I/O bounded by the configured timeout; a
// timeout surfaces as a transport fault error.
type Connector interface {
	// FetchLedgers pulls the full party ledger collection.
	FetchLedgers(ctx context.Context) ([]Row, error)
	// FetchVouchers pulls vouchers dated within [from, to].
	FetchVouchers(ctx context.Context, from, to time.Time) ([]Row, error)
	// FetchStockItems pulls the full stock item collection.
	FetchStockItems(ctx context.Context) ([]Row, error)
	// FetchOutstandingBills pulls the open receivable and payable bills.
	FetchOutstandingBills(ctx context.Context) ([]Row, error)

	// CreateVoucher posts a voucher create, auto-creating the party and
	// cash/bank counter-ledgers when missing.
	CreateVoucher(ctx context.Context, p CreateVoucherPayload) (*ImportResult, error)
	// AlterVoucher posts a voucher alteration.
	AlterVoucher(ctx context.Context, p AlterVoucherPayload) (*ImportResult, error)
	// DeleteVoucher posts a voucher deletion.
	DeleteVoucher(ctx context.Context, p DeleteVoucherPayload) (*ImportResult, error)
	// UpdateLedgerFields alters a ledger's fields after allow-list validation.
	UpdateLedgerFields(ctx context.Context, ledgerName string, fields LedgerFieldSet) (*ImportResult, error)

	// EnsureLedger creates the named ledger under the given parent group if it
	// does not already exist remotely.
	EnsureLedger(ctx context.Context, name, parentGroup string) error
	// LookupLedger resolves a ledger name fuzzily: exact case-insensitive
	// match first, then prefix, then substring, returning the first non-empty
	// tier's matches. When no tier matches it fails with ErrLedgerNotFound.
	LookupLedger(ctx context.Context, name string) ([]string, error)
}
