package mirror

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PartyLedger is a party account mirrored from the remote accounting system.
// Rows are created either by pull reconciliation or by an explicit
// create-if-missing call triggered by a push.
type PartyLedger struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"` // natural key, unique
	ParentGroup    string          `json:"parent_group"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	TaxNumber      string          `json:"tax_number"`
	Phone          string          `json:"phone"`
	Email          string          `json:"email"`
	Address        string          `json:"address"`
	Active         bool            `json:"active"`
	LastSyncedAt   *time.Time      `json:"last_synced_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewPartyLedger creates a party ledger freshly observed in a pull pass.
func NewPartyLedger(name, parentGroup string) *PartyLedger {
	now := time.Now()
	return &PartyLedger{
		ID:          uuid.New(),
		Name:        name,
		ParentGroup: parentGroup,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Refresh overwrites the mutable fields from a freshly pulled remote row and
// stamps the sync time. The natural key is never touched.
func (l *PartyLedger) Refresh(parentGroup string, opening, closing decimal.Decimal, taxNumber, phone, email, address string, at time.Time) {
	l.ParentGroup = parentGroup
	l.OpeningBalance = opening
	l.ClosingBalance = closing
	l.TaxNumber = taxNumber
	l.Phone = phone
	l.Email = email
	l.Address = address
	l.Active = true
	l.LastSyncedAt = &at
	l.UpdatedAt = at
}
