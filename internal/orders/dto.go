package orders

import (
	"github.com/google/uuid"

	"github.com/hermagulator/shopbot/pkg/enums"
)

// OrderItemInput is one cart line in a create request.
type OrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateOrderInput captures everything a buyer supplies at checkout.
type CreateOrderInput struct {
	UserID       int64
	Items        []OrderItemInput
	DiscountCode string
}

// SelectPaymentMethodInput moves a fresh order toward payment.
type SelectPaymentMethodInput struct {
	OrderID uuid.UUID
	UserID  int64
	Method  enums.PaymentMethod
}

// SubmitReceiptInput parks an order for manual payment review.
type SubmitReceiptInput struct {
	OrderID uuid.UUID
	UserID  int64
	Receipt string
}

// MarkPaidInput finalizes payment on an order. Receipt is the payment
// evidence (a chain tx id, a card receipt reference) when one exists.
type MarkPaidInput struct {
	OrderID uuid.UUID
	Method  enums.PaymentMethod
	Receipt *string
	ActorID int64
	IsAdmin bool
}

// CancelInput voids an order before it is paid.
type CancelInput struct {
	OrderID uuid.UUID
	ActorID int64
	IsAdmin bool
	Reason  string
}

// RefundInput returns a paid order's money to the buyer's wallet.
type RefundInput struct {
	OrderID uuid.UUID
	ActorID int64
	Reason  string
}
