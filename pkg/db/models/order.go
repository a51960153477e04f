package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hermagulator/shopbot/pkg/enums"
)

// Order represents one purchase attempt. Items are snapshotted at creation
// and immutable afterward.
type Order struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID         int64               `gorm:"column:user_id;not null;index"`
	Status         enums.OrderStatus   `gorm:"column:status;type:order_status_enum;not null"`
	PaymentMethod  *enums.PaymentMethod `gorm:"column:payment_method;type:payment_method_enum"`
	SubtotalAmount decimal.Decimal     `gorm:"column:subtotal_amount;type:numeric(18,2);not null"`
	DiscountAmount decimal.Decimal     `gorm:"column:discount_amount;type:numeric(18,2);not null;default:0"`
	TotalAmount    decimal.Decimal     `gorm:"column:total_amount;type:numeric(18,2);not null"`
	DiscountID     *uuid.UUID          `gorm:"column:discount_id;type:uuid"`
	PaymentReceipt *string             `gorm:"column:payment_receipt"`
	DeliveryData   json.RawMessage     `gorm:"column:delivery_data;type:jsonb"`
	Items          []OrderItem         `gorm:"foreignKey:OrderID"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem snapshots a product line at order-creation time. Later catalog
// price changes do not touch existing orders.
type OrderItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID    uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Name         string          `gorm:"column:name;not null"`
	Quantity     int             `gorm:"column:quantity;not null"`
	PricePerUnit decimal.Decimal `gorm:"column:price_per_unit;type:numeric(18,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// TotalPrice returns quantity times the snapshotted unit price.
func (i OrderItem) TotalPrice() decimal.Decimal {
	return i.PricePerUnit.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
