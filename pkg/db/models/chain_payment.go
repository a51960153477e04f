package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChainPayment records a consumed on-chain transaction. The unique index on
// (receive_address, tx_id) is the replay guard: a chain transaction can be
// accepted by at most one order or deposit system-wide.
type ChainPayment struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ReceiveAddress string          `gorm:"column:receive_address;not null;uniqueIndex:ux_chain_payments_address_tx"`
	TxID           string          `gorm:"column:tx_id;not null;uniqueIndex:ux_chain_payments_address_tx"`
	FromAddress    string          `gorm:"column:from_address;not null"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(18,6);not null"`
	ChainTimestamp time.Time       `gorm:"column:chain_timestamp;not null"`
	OrderID        *uuid.UUID      `gorm:"column:order_id;type:uuid"`
	UserID         int64           `gorm:"column:user_id;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (ChainPayment) TableName() string {
	return "chain_payments"
}
