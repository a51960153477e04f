package orders

import "github.com/hermagulator/shopbot/pkg/enums"

// allowedTransitions is the full order lifecycle. Anything not listed is
// rejected as a state conflict, and the two terminal states have no exits.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending: {
		enums.OrderStatusAwaitingPayment,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusAwaitingPayment: {
		enums.OrderStatusPaymentVerification,
		enums.OrderStatusPaid,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPaymentVerification: {
		enums.OrderStatusPaid,
		enums.OrderStatusAwaitingPayment,
		enums.OrderStatusCancelled,
	},
	enums.OrderStatusPaid: {
		enums.OrderStatusDelivered,
		enums.OrderStatusRefunded,
	},
	enums.OrderStatusDelivered: {
		enums.OrderStatusRefunded,
	},
}

// CanTransition reports whether the lifecycle permits moving from one
// status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// sourcesFor lists every status that may move into the target. Used to
// build guarded UPDATEs so concurrent writers collapse to one winner.
func sourcesFor(to enums.OrderStatus) []enums.OrderStatus {
	var sources []enums.OrderStatus
	for from, targets := range allowedTransitions {
		for _, candidate := range targets {
			if candidate == to {
				sources = append(sources, from)
			}
		}
	}
	return sources
}
