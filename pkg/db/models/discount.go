package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hermagulator/shopbot/pkg/enums"
)

// Discount describes a discount code. UsedCount never exceeds UsageLimit
// when the limit is set; consumption is guarded at the storage layer.
type Discount struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Code        string               `gorm:"column:code;not null;uniqueIndex"`
	Type        enums.DiscountType   `gorm:"column:type;type:discount_type_enum;not null"`
	Amount      decimal.Decimal      `gorm:"column:amount;type:numeric(18,2);not null"`
	Target      enums.DiscountTarget `gorm:"column:target;type:discount_target_enum;not null;default:all"`
	TargetID    *uuid.UUID           `gorm:"column:target_id;type:uuid"`
	MinPurchase *decimal.Decimal     `gorm:"column:min_purchase;type:numeric(18,2)"`
	MaxDiscount *decimal.Decimal     `gorm:"column:max_discount;type:numeric(18,2)"`
	UsageLimit  *int                 `gorm:"column:usage_limit"`
	UsedCount   int                  `gorm:"column:used_count;not null;default:0"`
	StartDate   *time.Time           `gorm:"column:start_date"`
	EndDate     *time.Time           `gorm:"column:end_date"`
	IsActive    bool                 `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (Discount) TableName() string {
	return "discounts"
}

// DiscountUsage records one consumption of a discount by one order. The
// unique index on (discount_id, order_id) prevents double application.
type DiscountUsage struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	DiscountID uuid.UUID `gorm:"column:discount_id;type:uuid;not null;uniqueIndex:ux_discount_usage_discount_order"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_discount_usage_discount_order"`
	UsedAt     time.Time `gorm:"column:used_at;autoCreateTime"`
}

func (DiscountUsage) TableName() string {
	return "discount_usage"
}
