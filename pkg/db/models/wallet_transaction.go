package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hermagulator/shopbot/pkg/enums"
)

// WalletTransaction is an immutable, append-only ledger entry. Amount and
// owner never change after creation; only the status moves forward.
type WalletTransaction struct {
	ID             int64                   `gorm:"column:id;primaryKey;autoIncrement"`
	UserID         int64                   `gorm:"column:user_id;not null;index"`
	Type           enums.TransactionType   `gorm:"column:type;type:transaction_type_enum;not null"`
	Amount         decimal.Decimal         `gorm:"column:amount;type:numeric(18,2);not null"`
	BalanceAfter   decimal.Decimal         `gorm:"column:balance_after;type:numeric(18,2);not null"`
	Method         string                  `gorm:"column:method"`
	Reference      *string                 `gorm:"column:reference"`
	Description    string                  `gorm:"column:description"`
	RelatedOrderID *uuid.UUID              `gorm:"column:related_order_id;type:uuid"`
	Status         enums.TransactionStatus `gorm:"column:status;type:transaction_status_enum;not null"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}

// SignedAmount returns the amount with the sign implied by the entry type.
func (t WalletTransaction) SignedAmount() decimal.Decimal {
	if t.Type.IsCredit() {
		return t.Amount
	}
	return t.Amount.Neg()
}
