package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tallybridge/backend/internal/domain/mirror"
	"github.com/tallybridge/backend/internal/domain/shared"
	"github.com/tallybridge/backend/internal/infrastructure/persistence/models"
)

// GormPartyLedgerRepository implements PartyLedgerRepository using GORM
type GormPartyLedgerRepository struct {
	db *gorm.DB
}

// NewGormPartyLedgerRepository creates a new GormPartyLedgerRepository
func NewGormPartyLedgerRepository(db *gorm.DB) *GormPartyLedgerRepository {
	return &GormPartyLedgerRepository{db: db}
}

// FindByName finds a party ledger by its natural key
func (r *GormPartyLedgerRepository) FindByName(ctx context.Context, name string) (*mirror.PartyLedger, error) {
	var model models.PartyLedgerModel
	if err := r.db.WithContext(ctx).First(&model, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new party ledger row
func (r *GormPartyLedgerRepository) Create(ctx context.Context, ledger *mirror.PartyLedger) error {
	model := models.PartyLedgerModelFromDomain(ledger)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update overwrites an existing party ledger row
func (r *GormPartyLedgerRepository) Update(ctx context.Context, ledger *mirror.PartyLedger) error {
	model := models.PartyLedgerModelFromDomain(ledger)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindAll returns every party ledger ordered by name
func (r *GormPartyLedgerRepository) FindAll(ctx context.Context) ([]mirror.PartyLedger, error) {
	var ledgerModels []models.PartyLedgerModel
	if err := r.db.WithContext(ctx).Order("name").Find(&ledgerModels).Error; err != nil {
		return nil, err
	}
	ledgers := make([]mirror.PartyLedger, len(ledgerModels))
	for i := range ledgerModels {
		ledgers[i] = *ledgerModels[i].ToDomain()
	}
	return ledgers, nil
}

// Ensure GormPartyLedgerRepository implements the repository interface
var _ mirror.PartyLedgerRepository = (*GormPartyLedgerRepository)(nil)
