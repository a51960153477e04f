package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hermagulator/shopbot/pkg/enums"
)

// OrderCreatedEvent signals a new order awaiting payment.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	UserID      int64           `json:"user_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

// OrderCancelledEvent is emitted whenever an order is cancelled before delivery.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      int64     `json:"user_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// OrderDeliveredEvent surfaces the delivery for downstream notification.
type OrderDeliveredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      int64     `json:"user_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// OrderRefundedEvent reports a completed refund back into the buyer's wallet.
type OrderRefundedEvent struct {
	OrderID      uuid.UUID       `json:"order_id"`
	UserID       int64           `json:"user_id"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
}

// PaymentNeedsReviewEvent tells operators a receipt is waiting on manual review.
type PaymentNeedsReviewEvent struct {
	OrderID uuid.UUID          `json:"order_id"`
	UserID  int64              `json:"user_id"`
	Method  enums.PaymentMethod `json:"method"`
	Receipt string             `json:"receipt,omitempty"`
}

// PaymentConfirmedEvent is emitted once a payment clears verification.
type PaymentConfirmedEvent struct {
	OrderID uuid.UUID           `json:"order_id"`
	UserID  int64               `json:"user_id"`
	Method  enums.PaymentMethod `json:"method"`
	Amount  decimal.Decimal     `json:"amount"`
}

// PaymentRejectedEvent carries the reason verification closed negative.
type PaymentRejectedEvent struct {
	OrderID uuid.UUID           `json:"order_id"`
	UserID  int64               `json:"user_id"`
	Method  enums.PaymentMethod `json:"method"`
	Reason  string              `json:"reason"`
}

// DepositRequestedEvent signals a card top-up awaiting operator approval.
type DepositRequestedEvent struct {
	TransactionID int64           `json:"transaction_id"`
	UserID        int64           `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// DepositApprovedEvent reports an approved top-up credited to the wallet.
type DepositApprovedEvent struct {
	TransactionID int64           `json:"transaction_id"`
	UserID        int64           `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
}

// DepositRejectedEvent reports a declined top-up request.
type DepositRejectedEvent struct {
	TransactionID int64  `json:"transaction_id"`
	UserID        int64  `json:"user_id"`
	Reason        string `json:"reason,omitempty"`
}
