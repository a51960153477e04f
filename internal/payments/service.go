package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hermagulator/shopbot/internal/orders"
	"github.com/hermagulator/shopbot/pkg/db/models"
	"github.com/hermagulator/shopbot/pkg/enums"
	pkgerrors "github.com/hermagulator/shopbot/pkg/errors"
	"github.com/hermagulator/shopbot/pkg/logger"
	"github.com/hermagulator/shopbot/pkg/metrics"
)

// PayInput is a buyer's attempt to pay an order. Reference carries the
// method-specific evidence: a chain transaction id for crypto, a bank
// receipt for card, nothing for wallet.
type PayInput struct {
	OrderID   uuid.UUID
	UserID    int64
	Method    enums.PaymentMethod
	Reference string
}

// ResolveCardInput is the admin verdict on a receipt under review.
type ResolveCardInput struct {
	OrderID uuid.UUID
	Approve bool
	ActorID int64
	Reason  string
}

// CryptoDepositInput tops a wallet up from an on-chain transfer. The
// declared amount is checked against what the chain actually recorded.
type CryptoDepositInput struct {
	UserID int64
	TxID   string
	Amount decimal.Decimal
}

// Outcome reports where a payment attempt left the order.
type Outcome struct {
	Order       *models.Order
	NeedsReview bool
}

// Strategy verifies one payment method against an order.
type Strategy interface {
	Method() enums.PaymentMethod
	Pay(ctx context.Context, order *models.Order, input PayInput) (*Outcome, error)
}

// Service dispatches payment attempts to the strategy matching the chosen
// method and owns the two admin resolution paths.
type Service interface {
	ProcessPayment(ctx context.Context, input PayInput) (*Outcome, error)
	ResolveCardPayment(ctx context.Context, input ResolveCardInput) (*models.Order, error)
	DepositWithCrypto(ctx context.Context, input CryptoDepositInput) (*models.WalletTransaction, error)
}

type service struct {
	ordersSvc  orderGateway
	walletSvc  walletLedger
	verifier   chainVerifier
	chainRepo  ChainPaymentRepository
	strategies map[enums.PaymentMethod]Strategy
	metrics    *metrics.PaymentMetrics
	logg       *logger.Logger
}

// NewService wires the dispatcher with one strategy per payment method. The
// metrics receiver may be nil.
func NewService(
	ordersSvc orderGateway,
	walletSvc walletLedger,
	verifier chainVerifier,
	chainRepo ChainPaymentRepository,
	paymentMetrics *metrics.PaymentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if ordersSvc == nil {
		return nil, fmt.Errorf("order gateway required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet ledger required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("chain verifier required")
	}
	if chainRepo == nil {
		return nil, fmt.Errorf("chain payment repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	svc := &service{
		ordersSvc: ordersSvc,
		walletSvc: walletSvc,
		verifier:  verifier,
		chainRepo: chainRepo,
		metrics:   paymentMetrics,
		logg:      logg,
	}
	svc.strategies = map[enums.PaymentMethod]Strategy{
		enums.PaymentMethodWallet: &walletStrategy{svc: svc},
		enums.PaymentMethodCard:   &cardStrategy{svc: svc},
		enums.PaymentMethodCrypto: &cryptoStrategy{svc: svc},
	}
	return svc, nil
}

func (s *service) ProcessPayment(ctx context.Context, input PayInput) (*Outcome, error) {
	strategy, ok := s.strategies[input.Method]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", input.Method))
	}

	order, err := s.ordersSvc.GetUserOrder(ctx, input.OrderID, input.UserID)
	if err != nil {
		return nil, err
	}
	switch order.Status {
	case enums.OrderStatusAwaitingPayment, enums.OrderStatusPaymentVerification:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment")
	}

	outcome, err := strategy.Pay(ctx, order, input)
	if err != nil {
		s.observe(input.Method, "rejected")
		return nil, err
	}
	if outcome.NeedsReview {
		s.observe(input.Method, "needs_review")
	} else {
		s.observe(input.Method, "confirmed")
	}
	return outcome, nil
}

// ResolveCardPayment is the admin verdict for orders parked in payment
// verification. Approval finalizes the order; rejection sends it back to
// awaiting payment with the receipt cleared.
func (s *service) ResolveCardPayment(ctx context.Context, input ResolveCardInput) (*models.Order, error) {
	if !input.Approve {
		if err := s.ordersSvc.RejectVerification(ctx, input.OrderID, input.ActorID, input.Reason); err != nil {
			return nil, err
		}
		s.observe(enums.PaymentMethodCard, "rejected")
		return s.ordersSvc.GetOrder(ctx, input.OrderID)
	}

	order, err := s.ordersSvc.MarkPaid(ctx, orders.MarkPaidInput{
		OrderID: input.OrderID,
		Method:  enums.PaymentMethodCard,
		ActorID: input.ActorID,
		IsAdmin: true,
	})
	if err != nil {
		return nil, err
	}
	s.observe(enums.PaymentMethodCard, "confirmed")
	return order, nil
}

// DepositWithCrypto verifies an on-chain transfer and credits the amount
// the chain actually recorded to the sender's wallet. The chain payment row
// claims the transaction before any money moves, so a replayed tx id fails
// fast.
func (s *service) DepositWithCrypto(ctx context.Context, input CryptoDepositInput) (*models.WalletTransaction, error) {
	if input.UserID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "deposit amount must be positive")
	}

	if err := s.ensureTxUnclaimed(ctx, input.TxID); err != nil {
		s.observe(enums.PaymentMethodCrypto, "rejected")
		return nil, err
	}

	chainTx, err := s.verifyChainTx(ctx, input.TxID, input.Amount)
	if err != nil {
		s.observe(enums.PaymentMethodCrypto, "rejected")
		return nil, err
	}

	claim := &models.ChainPayment{
		ReceiveAddress: s.verifier.ReceiveAddress(),
		TxID:           chainTx.TxID,
		FromAddress:    chainTx.FromAddress,
		Amount:         chainTx.Amount,
		ChainTimestamp: chainTx.Timestamp,
		UserID:         input.UserID,
	}
	if err := s.chainRepo.Record(ctx, claim); err != nil {
		s.observe(enums.PaymentMethodCrypto, "rejected")
		return nil, err
	}

	reference := chainTx.TxID
	entry, err := s.walletSvc.Credit(ctx, walletDepositEntry(input.UserID, chainTx.Amount, &reference))
	if err != nil {
		if removeErr := s.chainRepo.Remove(ctx, claim.ID); removeErr != nil {
			s.logg.Error(ctx, "failed to release chain payment claim after deposit failure", removeErr)
		}
		s.observe(enums.PaymentMethodCrypto, "rejected")
		return nil, err
	}
	s.observe(enums.PaymentMethodCrypto, "confirmed")
	return entry, nil
}

// ensureTxUnclaimed turns an already-consumed tx id away before spending a
// node round trip on verification. The unique index behind Record still
// closes the race between two concurrent claims.
func (s *service) ensureTxUnclaimed(ctx context.Context, txID string) error {
	_, err := s.chainRepo.FindByTx(ctx, s.verifier.ReceiveAddress(), txID)
	if err == nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "chain transaction already consumed")
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil
	}
	return err
}

func (s *service) observe(method enums.PaymentMethod, outcome string) {
	s.metrics.ObserveVerification(string(method), outcome)
}
