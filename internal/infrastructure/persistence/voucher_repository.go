package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallybridge/backend/internal/domain/mirror"
	"github.com/tallybridge/backend/internal/domain/shared"
	"github.com/tallybridge/backend/internal/infrastructure/persistence/models"
)

// GormVoucherRepository implements VoucherRepository using GORM
type GormVoucherRepository struct {
	db *gorm.DB
}

// NewGormVoucherRepository creates a new GormVoucherRepository
func NewGormVoucherRepository(db *gorm.DB) *GormVoucherRepository {
	return &GormVoucherRepository{db: db}
}

// FindByID finds a voucher by its local ID
func (r *GormVoucherRepository) FindByID(ctx context.Context, id uuid.UUID) (*mirror.Voucher, error) {
	var model models.VoucherModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumberAndDate finds a voucher by the pull-reconciliation natural key.
// Dates are compared by calendar day.
func (r *GormVoucherRepository) FindByNumberAndDate(ctx context.Context, number string, date time.Time) (*mirror.Voucher, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var model models.VoucherModel
	if err := r.db.WithContext(ctx).
		First(&model, "voucher_number = ? AND date >= ? AND date < ?", number, dayStart, dayEnd).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStatus returns every voucher in the given sync status, oldest first,
// so the offline queue drains in arrival order.
func (r *GormVoucherRepository) FindByStatus(ctx context.Context, status mirror.SyncStatus) ([]mirror.Voucher, error) {
	var voucherModels []models.VoucherModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at").
		Find(&voucherModels).Error; err != nil {
		return nil, err
	}
	vouchers := make([]mirror.Voucher, len(voucherModels))
	for i := range voucherModels {
		vouchers[i] = *voucherModels[i].ToDomain()
	}
	return vouchers, nil
}

// Create inserts a new voucher row
func (r *GormVoucherRepository) Create(ctx context.Context, voucher *mirror.Voucher) error {
	model := models.VoucherModelFromDomain(voucher)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update overwrites an existing voucher row
func (r *GormVoucherRepository) Update(ctx context.Context, voucher *mirror.Voucher) error {
	model := models.VoucherModelFromDomain(voucher)
	return r.db.WithContext(ctx).Save(model).Error
}

// Delete removes a voucher row by local ID
func (r *GormVoucherRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.VoucherModel{}, "id = ?", id).Error
}

// Ensure GormVoucherRepository implements the repository interface
var _ mirror.VoucherRepository = (*GormVoucherRepository)(nil)
