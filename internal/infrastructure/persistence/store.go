package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/tallybridge/backend/internal/domain/mirror"
)

// GormStore bundles the four mirror repositories over one GORM handle and
// implements the transactional Store contract.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GormStore
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Ledgers returns the party ledger repository
func (s *GormStore) Ledgers() mirror.PartyLedgerRepository {
	return NewGormPartyLedgerRepository(s.db)
}

// Vouchers returns the voucher repository
func (s *GormStore) Vouchers() mirror.VoucherRepository {
	return NewGormVoucherRepository(s.db)
}

// StockItems returns the stock item repository
func (s *GormStore) StockItems() mirror.StockItemRepository {
	return NewGormStockItemRepository(s.db)
}

// Bills returns the outstanding bill repository
func (s *GormStore) Bills() mirror.OutstandingBillRepository {
	return NewGormOutstandingBillRepository(s.db)
}

// WithinTx runs fn against a store bound to one transaction. The transaction
// commits when fn returns nil and rolls back on error, which makes a multi-pass
// pull sync atomic per invocation.
func (s *GormStore) WithinTx(ctx context.Context, fn func(mirror.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}

// Ensure GormStore implements the Store interface
var _ mirror.Store = (*GormStore)(nil)
