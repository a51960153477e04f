package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder       OutboxAggregateType = "order"
	AggregateWallet      OutboxAggregateType = "wallet"
	AggregateTransaction OutboxAggregateType = "wallet_transaction"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateWallet,
	AggregateTransaction,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderCancelled     OutboxEventType = "order_cancelled"
	EventOrderDelivered     OutboxEventType = "order_delivered"
	EventPaymentNeedsReview OutboxEventType = "payment_needs_review"
	EventPaymentConfirmed   OutboxEventType = "payment_confirmed"
	EventPaymentRejected    OutboxEventType = "payment_rejected"
	EventDepositRequested   OutboxEventType = "deposit_requested"
	EventDepositApproved    OutboxEventType = "deposit_approved"
	EventDepositRejected    OutboxEventType = "deposit_rejected"
	EventOrderRefunded      OutboxEventType = "order_refunded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderCancelled,
	EventOrderDelivered,
	EventPaymentNeedsReview,
	EventPaymentConfirmed,
	EventPaymentRejected,
	EventDepositRequested,
	EventDepositApproved,
	EventDepositRejected,
	EventOrderRefunded,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
