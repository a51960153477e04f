package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hermagulator/shopbot/internal/discounts"
	"github.com/hermagulator/shopbot/internal/wallet"
	"github.com/hermagulator/shopbot/pkg/db/models"
	"github.com/hermagulator/shopbot/pkg/enums"
	pkgerrors "github.com/hermagulator/shopbot/pkg/errors"
	"github.com/hermagulator/shopbot/pkg/metrics"
	"github.com/hermagulator/shopbot/pkg/outbox"
	"github.com/hermagulator/shopbot/pkg/outbox/payloads"
	"github.com/hermagulator/shopbot/pkg/pagination"
)

// Service owns the order lifecycle. Every transition goes through a guarded
// status UPDATE so two concurrent writers collapse to a single winner.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	SelectPaymentMethod(ctx context.Context, input SelectPaymentMethodInput) (*models.Order, error)
	SubmitReceipt(ctx context.Context, input SubmitReceiptInput) error
	RejectVerification(ctx context.Context, orderID uuid.UUID, actorID int64, reason string) error
	MarkPaid(ctx context.Context, input MarkPaidInput) (*models.Order, error)
	Cancel(ctx context.Context, input CancelInput) error
	Refund(ctx context.Context, input RefundInput) error
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetUserOrder(ctx context.Context, orderID uuid.UUID, userID int64) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID int64, page pagination.Params) ([]models.Order, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	products  ProductSource
	stock     StockGate
	discounts DiscountEngine
	wallet    WalletRefunder
	metrics   *metrics.PaymentMetrics
}

// NewService wires an order service with the required collaborators. The
// metrics receiver may be nil.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	products ProductSource,
	stock StockGate,
	discountEngine DiscountEngine,
	walletSvc WalletRefunder,
	paymentMetrics *metrics.PaymentMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if products == nil {
		return nil, fmt.Errorf("product source required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock gate required")
	}
	if discountEngine == nil {
		return nil, fmt.Errorf("discount engine required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet refunder required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outboxSvc,
		products:  products,
		stock:     stock,
		discounts: discountEngine,
		wallet:    walletSvc,
		metrics:   paymentMetrics,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.UserID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order needs at least one item")
	}
	seen := map[uuid.UUID]bool{}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if seen[item.ProductID] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in cart")
		}
		seen[item.ProductID] = true
	}

	// Snapshot products up front so price changes mid-checkout cannot skew
	// the order.
	lines := make([]models.OrderItem, 0, len(input.Items))
	cartLines := make([]discounts.CartLine, 0, len(input.Items))
	subtotal := decimal.Zero
	for _, item := range input.Items {
		product, err := s.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		if !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, "product is no longer available")
		}
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		lines = append(lines, models.OrderItem{
			ProductID:    product.ID,
			Name:         product.Name,
			Quantity:     item.Quantity,
			PricePerUnit: product.Price,
		})
		cartLines = append(cartLines, discounts.CartLine{
			ProductID:  product.ID,
			CategoryID: product.CategoryID,
			LineTotal:  lineTotal,
		})
	}

	var quote *discounts.Quote
	if input.DiscountCode != "" {
		var err error
		quote, err = s.discounts.Validate(ctx, input.DiscountCode, cartLines)
		if err != nil {
			return nil, err
		}
	}

	order := &models.Order{
		ID:             uuid.New(),
		UserID:         input.UserID,
		Status:         enums.OrderStatusPending,
		SubtotalAmount: subtotal,
		DiscountAmount: decimal.Zero,
		TotalAmount:    subtotal,
		Items:          lines,
	}
	if quote != nil {
		order.DiscountID = &quote.Discount.ID
		order.DiscountAmount = quote.Amount
		order.TotalAmount = subtotal.Sub(quote.Amount)
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		for _, item := range input.Items {
			if err := s.stock.Reserve(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		if quote != nil {
			if err := s.discounts.Apply(ctx, tx, quote.Discount.ID, order.ID); err != nil {
				return err
			}
		}
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID.String(),
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				UserID:      input.UserID,
				TotalAmount: order.TotalAmount,
				ItemCount:   len(order.Items),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(string(enums.OrderStatusPending))
	return order, nil
}

func (s *service) SelectPaymentMethod(ctx context.Context, input SelectPaymentMethodInput) (*models.Order, error) {
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.Method))
	}
	order, err := s.GetUserOrder(ctx, input.OrderID, input.UserID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusAwaitingPayment,
			[]enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusAwaitingPayment},
			map[string]any{"payment_method": input.Method})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is past payment selection")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveTransition(string(enums.OrderStatusAwaitingPayment))
	order.Status = enums.OrderStatusAwaitingPayment
	order.PaymentMethod = &input.Method
	return order, nil
}

func (s *service) SubmitReceipt(ctx context.Context, input SubmitReceiptInput) error {
	if input.Receipt == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "receipt required")
	}
	order, err := s.GetUserOrder(ctx, input.OrderID, input.UserID)
	if err != nil {
		return err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPaymentVerification,
			[]enums.OrderStatus{enums.OrderStatusAwaitingPayment},
			map[string]any{"payment_receipt": input.Receipt})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment")
		}
		method := enums.PaymentMethodCard
		if order.PaymentMethod != nil {
			method = *order.PaymentMethod
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentNeedsReview,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID.String(),
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data: payloads.PaymentNeedsReviewEvent{
				OrderID: order.ID,
				UserID:  order.UserID,
				Method:  method,
				Receipt: input.Receipt,
			},
		})
	})
	if err != nil {
		return err
	}
	s.metrics.ObserveTransition(string(enums.OrderStatusPaymentVerification))
	return nil
}

func (s *service) RejectVerification(ctx context.Context, orderID uuid.UUID, actorID int64, reason string) error {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusAwaitingPayment,
			[]enums.OrderStatus{enums.OrderStatusPaymentVerification},
			map[string]any{"payment_receipt": nil})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not under payment review")
		}
		method := enums.PaymentMethodCard
		if order.PaymentMethod != nil {
			method = *order.PaymentMethod
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRejected,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID.String(),
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actorID, IsAdmin: true},
			Data: payloads.PaymentRejectedEvent{
				OrderID: order.ID,
				UserID:  order.UserID,
				Method:  method,
				Reason:  reason,
			},
		})
	})
	if err != nil {
		return err
	}
	s.metrics.ObserveTransition(string(enums.OrderStatusAwaitingPayment))
	return nil
}

// MarkPaid finalizes payment: the guarded transition wins or loses
// atomically, reservations become real decrements, and orders whose every
// item carries a digital payload are delivered in the same transaction.
func (s *service) MarkPaid(ctx context.Context, input MarkPaidInput) (*models.Order, error) {
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.Method))
	}
	order, err := s.GetOrder(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	// Catalog reads happen before the write transaction opens; only the
	// assembled payload is attached inside it.
	deliveryData, deliverable, err := s.collectDeliveryData(ctx, order)
	if err != nil {
		return nil, err
	}

	delivered := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		updates := map[string]any{"payment_method": input.Method}
		if input.Receipt != nil {
			updates["payment_receipt"] = *input.Receipt
		}
		moved, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPaid,
			sourcesFor(enums.OrderStatusPaid), updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be paid in its current state")
		}

		for _, item := range order.Items {
			if err := s.stock.CommitReservation(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		actor := &outbox.ActorRef{UserID: input.ActorID, IsAdmin: input.IsAdmin}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID.String(),
			Version:       1,
			Actor:         actor,
			Data: payloads.PaymentConfirmedEvent{
				OrderID: order.ID,
				UserID:  order.UserID,
				Method:  input.Method,
				Amount:  order.TotalAmount,
			},
		}); err != nil {
			return err
		}

		if !deliverable {
			return nil
		}

		movedToDelivered, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusDelivered,
			[]enums.OrderStatus{enums.OrderStatusPaid},
			map[string]any{"delivery_data": deliveryData})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deliver order")
		}
		if !movedToDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order left paid state during delivery")
		}
		delivered = true
		order.DeliveryData = deliveryData

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDelivered,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID.String(),
			Version:       1,
			Actor:         actor,
			Data: payloads.OrderDeliveredEvent{
				OrderID:     order.ID,
				UserID:      order.UserID,
				DeliveredAt: time.Now().UTC(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveTransition(string(enums.OrderStatusPaid))
	order.Status = enums.OrderStatusPaid
	order.PaymentMethod = &input.Method
	if input.Receipt != nil {
		order.PaymentReceipt = input.Receipt
	}
	if delivered {
		s.metrics.ObserveTransition(string(enums.OrderStatusDelivered))
		order.Status = enums.OrderStatusDelivered
	}
	return order, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	order, err := s.GetOrder(ctx, input.OrderID)
	if err != nil {
		return err
	}
	if !input.IsAdmin && order.UserID != input.ActorID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusCancelled,
			sourcesFor(enums.OrderStatusCancelled), nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be cancelled in its current state")
		}

		for _, item := range order.Items {
			if err := s.stock.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		if order.DiscountID != nil {
			if err := s.discounts.Revert(ctx, tx, *order.DiscountID, order.ID); err != nil {
				return err
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID.String(),
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, IsAdmin: input.IsAdmin},
			Data: payloads.OrderCancelledEvent{
				OrderID:     order.ID,
				UserID:      order.UserID,
				CancelledAt: time.Now().UTC(),
				Reason:      input.Reason,
			},
		})
	})
	if err != nil {
		return err
	}
	s.metrics.ObserveTransition(string(enums.OrderStatusCancelled))
	return nil
}

// Refund moves a paid or delivered order to refunded and credits the full
// total back to the buyer's wallet. The status flip and the ledger credit
// share one transaction: either both commit or the order stays refundable.
func (s *service) Refund(ctx context.Context, input RefundInput) error {
	order, err := s.GetOrder(ctx, input.OrderID)
	if err != nil {
		return err
	}

	orderID := order.ID
	description := input.Reason
	if description == "" {
		description = "order refund"
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusRefunded,
			sourcesFor(enums.OrderStatusRefunded), nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot be refunded in its current state")
		}

		if _, err := s.wallet.CreditTx(ctx, tx, wallet.EntryInput{
			UserID:         order.UserID,
			Type:           enums.TransactionTypeRefund,
			Amount:         order.TotalAmount,
			Method:         string(enums.PaymentMethodWallet),
			Description:    description,
			RelatedOrderID: &orderID,
		}); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderRefunded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID.String(),
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, IsAdmin: true},
			Data: payloads.OrderRefundedEvent{
				OrderID:      order.ID,
				UserID:       order.UserID,
				RefundAmount: order.TotalAmount,
			},
		})
	})
	if err != nil {
		return err
	}

	s.metrics.ObserveTransition(string(enums.OrderStatusRefunded))
	return nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) GetUserOrder(ctx context.Context, orderID uuid.UUID, userID int64) (*models.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	return order, nil
}

func (s *service) ListUserOrders(ctx context.Context, userID int64, page pagination.Params) ([]models.Order, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	page = pagination.Normalize(page)
	list, err := s.repo.ListByUser(ctx, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

// collectDeliveryData assembles the per-product delivery payloads. An order
// is auto-deliverable only when every product carries one.
func (s *service) collectDeliveryData(ctx context.Context, order *models.Order) (json.RawMessage, bool, error) {
	payloadsByProduct := make(map[string]json.RawMessage, len(order.Items))
	for _, item := range order.Items {
		product, err := s.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, false, err
		}
		if !product.Deliverable() {
			return nil, false, nil
		}
		payloadsByProduct[product.ID.String()] = product.DeliveryPayload
	}
	data, err := json.Marshal(payloadsByProduct)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode delivery data")
	}
	return data, true, nil
}
