package mirror

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PartyLedgerRepository defines persistence operations for party ledgers
type PartyLedgerRepository interface {
	FindByName(ctx context.Context, name string) (*PartyLedger, error)
	Create(ctx context.Context, ledger *PartyLedger) error
	Update(ctx context.Context, ledger *PartyLedger) error
	FindAll(ctx context.Context) ([]PartyLedger, error)
}

// VoucherRepository defines persistence operations for transaction vouchers
type VoucherRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Voucher, error)
	// FindByNumberAndDate looks up by the pull-reconciliation natural key,
	// assumed unique within the accounting period.
	FindByNumberAndDate(ctx context.Context, number string, date time.Time) (*Voucher, error)
	FindByStatus(ctx context.Context, status SyncStatus) ([]Voucher, error)
	Create(ctx context.Context, voucher *Voucher) error
	Update(ctx context.Context, voucher *Voucher) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// StockItemRepository defines persistence operations for stock items
type StockItemRepository interface {
	FindByName(ctx context.Context, name string) (*StockItem, error)
	Create(ctx context.Context, item *StockItem) error
	Update(ctx context.Context, item *StockItem) error
	FindAll(ctx context.Context) ([]StockItem, error)
}

// OutstandingBillRepository defines persistence operations for open bills
type OutstandingBillRepository interface {
	FindByReference(ctx context.Context, referenceName string) (*OutstandingBill, error)
	Create(ctx context.Context, bill *OutstandingBill) error
	Update(ctx context.Context, bill *OutstandingBill) error
	FindAll(ctx context.Context) ([]OutstandingBill, error)
}

// Store bundles the four mirror repositories and provides transactional
// execution. All pull passes of one sync run share a single transaction
// through WithinTx; a failure in any pass rolls back the whole run.
type Store interface {
	Ledgers() PartyLedgerRepository
	Vouchers() VoucherRepository
	StockItems() StockItemRepository
	Bills() OutstandingBillRepository
	// WithinTx runs fn against a Store whose repositories are bound to one
	// local transaction, committing on nil and rolling back on error.
	WithinTx(ctx context.Context, fn func(Store) error) error
}
