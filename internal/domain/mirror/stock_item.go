package mirror

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockItem is an inventory item mirrored from the remote accounting system.
// A persistently negative closing quantity is a data-quality signal consumed
// by compliance checks downstream; this core only records it.
type StockItem struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"` // natural key, unique
	ParentGroup  string          `json:"parent_group"`
	ClosingQty   decimal.Decimal `json:"closing_qty"`
	LastRate     decimal.Decimal `json:"last_rate"`
	Unit         string          `json:"unit"`
	LastSyncedAt *time.Time      `json:"last_synced_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewStockItem creates a stock item freshly observed in a pull pass.
func NewStockItem(name, parentGroup string) *StockItem {
	now := time.Now()
	return &StockItem{
		ID:          uuid.New(),
		Name:        name,
		ParentGroup: parentGroup,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Refresh overwrites the mutable fields from a freshly pulled remote row.
func (s *StockItem) Refresh(parentGroup string, closingQty, lastRate decimal.Decimal, unit string, at time.Time) {
	s.ParentGroup = parentGroup
	s.ClosingQty = closingQty
	s.LastRate = lastRate
	s.Unit = unit
	s.LastSyncedAt = &at
	s.UpdatedAt = at
}
