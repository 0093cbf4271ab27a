package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tallybridge/backend/internal/domain/mirror"
	"github.com/tallybridge/backend/internal/domain/shared"
	"github.com/tallybridge/backend/internal/infrastructure/persistence/models"
)

// GormOutstandingBillRepository implements OutstandingBillRepository using GORM
type GormOutstandingBillRepository struct {
	db *gorm.DB
}

// NewGormOutstandingBillRepository creates a new GormOutstandingBillRepository
func NewGormOutstandingBillRepository(db *gorm.DB) *GormOutstandingBillRepository {
	return &GormOutstandingBillRepository{db: db}
}

// FindByReference finds a bill by its natural key
func (r *GormOutstandingBillRepository) FindByReference(ctx context.Context, referenceName string) (*mirror.OutstandingBill, error) {
	var model models.OutstandingBillModel
	if err := r.db.WithContext(ctx).First(&model, "reference_name = ?", referenceName).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new bill row
func (r *GormOutstandingBillRepository) Create(ctx context.Context, bill *mirror.OutstandingBill) error {
	model := models.OutstandingBillModelFromDomain(bill)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update overwrites an existing bill row
func (r *GormOutstandingBillRepository) Update(ctx context.Context, bill *mirror.OutstandingBill) error {
	model := models.OutstandingBillModelFromDomain(bill)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindAll returns every open bill ordered by reference name
func (r *GormOutstandingBillRepository) FindAll(ctx context.Context) ([]mirror.OutstandingBill, error) {
	var billModels []models.OutstandingBillModel
	if err := r.db.WithContext(ctx).Order("reference_name").Find(&billModels).Error; err != nil {
		return nil, err
	}
	bills := make([]mirror.OutstandingBill, len(billModels))
	for i := range billModels {
		bills[i] = *billModels[i].ToDomain()
	}
	return bills, nil
}

// Ensure GormOutstandingBillRepository implements the repository interface
var _ mirror.OutstandingBillRepository = (*GormOutstandingBillRepository)(nil)
