package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tallybridge/backend/internal/domain/mirror"
	"github.com/tallybridge/backend/internal/domain/shared"
	"github.com/tallybridge/backend/internal/infrastructure/persistence/models"
)

// GormStockItemRepository implements StockItemRepository using GORM
type GormStockItemRepository struct {
	db *gorm.DB
}

// NewGormStockItemRepository creates a new GormStockItemRepository
func NewGormStockItemRepository(db *gorm.DB) *GormStockItemRepository {
	return &GormStockItemRepository{db: db}
}

// FindByName finds a stock item by its natural key
func (r *GormStockItemRepository) FindByName(ctx context.Context, name string) (*mirror.StockItem, error) {
	var model models.StockItemModel
	if err := r.db.WithContext(ctx).First(&model, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new stock item row
func (r *GormStockItemRepository) Create(ctx context.Context, item *mirror.StockItem) error {
	model := models.StockItemModelFromDomain(item)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update overwrites an existing stock item row
func (r *GormStockItemRepository) Update(ctx context.Context, item *mirror.StockItem) error {
	model := models.StockItemModelFromDomain(item)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindAll returns every stock item ordered by name
func (r *GormStockItemRepository) FindAll(ctx context.Context) ([]mirror.StockItem, error) {
	var itemModels []models.StockItemModel
	if err := r.db.WithContext(ctx).Order("name").Find(&itemModels).Error; err != nil {
		return nil, err
	}
	items := make([]mirror.StockItem, len(itemModels))
	for i := range itemModels {
		items[i] = *itemModels[i].ToDomain()
	}
	return items, nil
}

// Ensure GormStockItemRepository implements the repository interface
var _ mirror.StockItemRepository = (*GormStockItemRepository)(nil)
