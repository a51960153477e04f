package discounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hermagulator/shopbot/pkg/db/models"
)

// Repository manages persistence for discount codes and their usage trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Discount, error)
	FindByCode(ctx context.Context, code string) (*models.Discount, error)
	List(ctx context.Context, limit, offset int) ([]models.Discount, error)
	Create(ctx context.Context, discount *models.Discount) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	// ConsumeUsage increments used_count when the limit still allows it and
	// reports whether a row was updated.
	ConsumeUsage(ctx context.Context, id uuid.UUID) (bool, error)
	ReturnUsage(ctx context.Context, id uuid.UUID) error
	CreateUsage(ctx context.Context, usage *models.DiscountUsage) error
	DeleteUsage(ctx context.Context, discountID, orderID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a discounts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	var discount models.Discount
	if err := r.db.WithContext(ctx).First(&discount, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &discount, nil
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Discount, error) {
	var discount models.Discount
	if err := r.db.WithContext(ctx).First(&discount, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &discount, nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]models.Discount, error) {
	var discounts []models.Discount
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&discounts).Error; err != nil {
		return nil, err
	}
	return discounts, nil
}

func (r *repository) Create(ctx context.Context, discount *models.Discount) error {
	if discount.ID == uuid.Nil {
		discount.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(discount).Error
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Discount{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ConsumeUsage(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE discounts
		SET used_count = used_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND is_active AND (usage_limit IS NULL OR used_count < usage_limit)
	`, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ReturnUsage(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE discounts
		SET used_count = used_count - 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND used_count > 0
	`, id).Error
}

func (r *repository) CreateUsage(ctx context.Context, usage *models.DiscountUsage) error {
	if usage.ID == uuid.Nil {
		usage.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(usage).Error
}

func (r *repository) DeleteUsage(ctx context.Context, discountID, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("discount_id = ? AND order_id = ?", discountID, orderID).
		Delete(&models.DiscountUsage{}).Error
}
