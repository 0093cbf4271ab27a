package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallybridge/backend/internal/domain/mirror"
)

// PartyLedgerModel is the persistence model for the PartyLedger entity.
type PartyLedgerModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	Name           string          `gorm:"type:varchar(200);not null;uniqueIndex"`
	ParentGroup    string          `gorm:"type:varchar(200)"`
	OpeningBalance decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ClosingBalance decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxNumber      string          `gorm:"type:varchar(50)"`
	Phone          string          `gorm:"type:varchar(50)"`
	Email          string          `gorm:"type:varchar(200)"`
	Address        string          `gorm:"type:text"`
	Active         bool            `gorm:"not null;default:true"`
	LastSyncedAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName returns the table name for GORM
func (PartyLedgerModel) TableName() string {
	return "party_ledgers"
}

// ToDomain converts the persistence model to a domain PartyLedger entity.
func (m *PartyLedgerModel) ToDomain() *mirror.PartyLedger {
	return &mirror.PartyLedger{
		ID:             m.ID,
		Name:           m.Name,
		ParentGroup:    m.ParentGroup,
		OpeningBalance: m.OpeningBalance,
		ClosingBalance: m.ClosingBalance,
		TaxNumber:      m.TaxNumber,
		Phone:          m.Phone,
		Email:          m.Email,
		Address:        m.Address,
		Active:         m.Active,
		LastSyncedAt:   m.LastSyncedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain PartyLedger entity.
func (m *PartyLedgerModel) FromDomain(l *mirror.PartyLedger) {
	m.ID = l.ID
	m.Name = l.Name
	m.ParentGroup = l.ParentGroup
	m.OpeningBalance = l.OpeningBalance
	m.ClosingBalance = l.ClosingBalance
	m.TaxNumber = l.TaxNumber
	m.Phone = l.Phone
	m.Email = l.Email
	m.Address = l.Address
	m.Active = l.Active
	m.LastSyncedAt = l.LastSyncedAt
	m.CreatedAt = l.CreatedAt
	m.UpdatedAt = l.UpdatedAt
}

// PartyLedgerModelFromDomain creates a new persistence model from domain.
func PartyLedgerModelFromDomain(l *mirror.PartyLedger) *PartyLedgerModel {
	m := &PartyLedgerModel{}
	m.FromDomain(l)
	return m
}

// VoucherModel is the persistence model for the Voucher entity.
type VoucherModel struct {
	ID            uuid.UUID          `gorm:"type:uuid;primary_key"`
	RemoteID      string             `gorm:"type:varchar(100);not null;index"`
	VoucherNumber string             `gorm:"type:varchar(100);not null;uniqueIndex:idx_voucher_number_date,priority:1"`
	Date          time.Time          `gorm:"not null;uniqueIndex:idx_voucher_number_date,priority:2"`
	Kind          mirror.VoucherKind `gorm:"type:varchar(20);not null"`
	PartyName     string             `gorm:"type:varchar(200);not null;index"`
	Amount        decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	Narration     string             `gorm:"type:text"`
	Status        mirror.SyncStatus  `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	LastSyncedAt  *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName returns the table name for GORM
func (VoucherModel) TableName() string {
	return "vouchers"
}

// ToDomain converts the persistence model to a domain Voucher entity.
func (m *VoucherModel) ToDomain() *mirror.Voucher {
	return &mirror.Voucher{
		ID:            m.ID,
		RemoteID:      m.RemoteID,
		VoucherNumber: m.VoucherNumber,
		Date:          m.Date,
		Kind:          m.Kind,
		PartyName:     m.PartyName,
		Amount:        m.Amount,
		Narration:     m.Narration,
		Status:        m.Status,
		LastSyncedAt:  m.LastSyncedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Voucher entity.
func (m *VoucherModel) FromDomain(v *mirror.Voucher) {
	m.ID = v.ID
	m.RemoteID = v.RemoteID
	m.VoucherNumber = v.VoucherNumber
	m.Date = v.Date
	m.Kind = v.Kind
	m.PartyName = v.PartyName
	m.Amount = v.Amount
	m.Narration = v.Narration
	m.Status = v.Status
	m.LastSyncedAt = v.LastSyncedAt
	m.CreatedAt = v.CreatedAt
	m.UpdatedAt = v.UpdatedAt
}

// VoucherModelFromDomain creates a new persistence model from domain.
func VoucherModelFromDomain(v *mirror.Voucher) *VoucherModel {
	m := &VoucherModel{}
	m.FromDomain(v)
	return m
}

// StockItemModel is the persistence model for the StockItem entity.
type StockItemModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	Name         string          `gorm:"type:varchar(200);not null;uniqueIndex"`
	ParentGroup  string          `gorm:"type:varchar(200)"`
	ClosingQty   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LastRate     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Unit         string          `gorm:"type:varchar(50)"`
	LastSyncedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for GORM
func (StockItemModel) TableName() string {
	return "stock_items"
}

// ToDomain converts the persistence model to a domain StockItem entity.
func (m *StockItemModel) ToDomain() *mirror.StockItem {
	return &mirror.StockItem{
		ID:           m.ID,
		Name:         m.Name,
		ParentGroup:  m.ParentGroup,
		ClosingQty:   m.ClosingQty,
		LastRate:     m.LastRate,
		Unit:         m.Unit,
		LastSyncedAt: m.LastSyncedAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain StockItem entity.
func (m *StockItemModel) FromDomain(s *mirror.StockItem) {
	m.ID = s.ID
	m.Name = s.Name
	m.ParentGroup = s.ParentGroup
	m.ClosingQty = s.ClosingQty
	m.LastRate = s.LastRate
	m.Unit = s.Unit
	m.LastSyncedAt = s.LastSyncedAt
	m.CreatedAt = s.CreatedAt
	m.UpdatedAt = s.UpdatedAt
}

// StockItemModelFromDomain creates a new persistence model from domain.
func StockItemModelFromDomain(s *mirror.StockItem) *StockItemModel {
	m := &StockItemModel{}
	m.FromDomain(s)
	return m
}

// OutstandingBillModel is the persistence model for the OutstandingBill entity.
type OutstandingBillModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	ReferenceName string          `gorm:"type:varchar(200);not null;uniqueIndex"`
	PartyName     string          `gorm:"type:varchar(200);not null;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DueDate       *time.Time
	Overdue       bool `gorm:"not null;default:false"`
	LastSyncedAt  *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName returns the table name for GORM
func (OutstandingBillModel) TableName() string {
	return "outstanding_bills"
}

// ToDomain converts the persistence model to a domain OutstandingBill entity.
func (m *OutstandingBillModel) ToDomain() *mirror.OutstandingBill {
	return &mirror.OutstandingBill{
		ID:            m.ID,
		ReferenceName: m.ReferenceName,
		PartyName:     m.PartyName,
		Amount:        m.Amount,
		DueDate:       m.DueDate,
		Overdue:       m.Overdue,
		LastSyncedAt:  m.LastSyncedAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain OutstandingBill entity.
func (m *OutstandingBillModel) FromDomain(b *mirror.OutstandingBill) {
	m.ID = b.ID
	m.ReferenceName = b.ReferenceName
	m.PartyName = b.PartyName
	m.Amount = b.Amount
	m.DueDate = b.DueDate
	m.Overdue = b.Overdue
	m.LastSyncedAt = b.LastSyncedAt
	m.CreatedAt = b.CreatedAt
	m.UpdatedAt = b.UpdatedAt
}

// OutstandingBillModelFromDomain creates a new persistence model from domain.
func OutstandingBillModelFromDomain(b *mirror.OutstandingBill) *OutstandingBillModel {
	m := &OutstandingBillModel{}
	m.FromDomain(b)
	return m
}

// MirrorModels lists every mirror table model for schema migration.
func MirrorModels() []interface{} {
	return []interface{}{
		&PartyLedgerModel{},
		&VoucherModel{},
		&StockItemModel{},
		&OutstandingBillModel{},
	}
}
