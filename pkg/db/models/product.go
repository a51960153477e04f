package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category groups products for browsing and discount targeting.
type Category struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Category) TableName() string {
	return "categories"
}

// Product is a digital good. AvailableQty and ReservedQty together form the
// stock gate: creating an order moves quantity from available to reserved,
// payment consumes the reservation, cancellation returns it.
type Product struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID      *uuid.UUID      `gorm:"column:category_id;type:uuid;index"`
	Name            string          `gorm:"column:name;not null"`
	Description     string          `gorm:"column:description"`
	Price           decimal.Decimal `gorm:"column:price;type:numeric(18,2);not null"`
	AvailableQty    int             `gorm:"column:available_qty;not null;default:0"`
	ReservedQty     int             `gorm:"column:reserved_qty;not null;default:0"`
	DeliveryPayload json.RawMessage `gorm:"column:delivery_payload;type:jsonb"`
	IsActive        bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string {
	return "products"
}

// Deliverable reports whether the product carries digital delivery data that
// should be attached to an order as soon as it is paid.
func (p Product) Deliverable() bool {
	return len(p.DeliveryPayload) > 0
}
