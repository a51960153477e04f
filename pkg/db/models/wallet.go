package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds one user's internal balance. Created lazily on first
// interaction and never deleted, only deactivated.
type Wallet struct {
	UserID    int64           `gorm:"column:user_id;primaryKey"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric(18,2);not null;default:0"`
	IsActive  bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Wallet) TableName() string {
	return "wallets"
}
