package mirror

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OutstandingBill is an open bill mirrored from the remote accounting system.
// Amount sign convention: positive = receivable, negative = payable.
type OutstandingBill struct {
	ID            uuid.UUID       `json:"id"`
	ReferenceName string          `json:"reference_name"` // natural key, unique
	PartyName     string          `json:"party_name"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       *time.Time      `json:"due_date"`
	Overdue       bool            `json:"overdue"`
	LastSyncedAt  *time.Time      `json:"last_synced_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewOutstandingBill creates a bill freshly observed in a pull pass.
func NewOutstandingBill(referenceName, partyName string) *OutstandingBill {
	now := time.Now()
	return &OutstandingBill{
		ID:            uuid.New(),
		ReferenceName: referenceName,
		PartyName:     partyName,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsReceivable reports whether the bill is money owed to us.
func (b *OutstandingBill) IsReceivable() bool {
	return b.Amount.IsPositive()
}

// Refresh overwrites the mutable fields from a freshly pulled remote row and
// recomputes the overdue flag against the given reference time.
func (b *OutstandingBill) Refresh(partyName string, amount decimal.Decimal, dueDate *time.Time, at time.Time) {
	b.PartyName = partyName
	b.Amount = amount
	b.DueDate = dueDate
	b.Overdue = dueDate != nil && dueDate.Before(at)
	b.LastSyncedAt = &at
	b.UpdatedAt = at
}
