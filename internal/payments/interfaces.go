package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hermagulator/shopbot/internal/orders"
	"github.com/hermagulator/shopbot/internal/tron"
	"github.com/hermagulator/shopbot/internal/wallet"
	"github.com/hermagulator/shopbot/pkg/db/models"
)

// orderGateway is the slice of the order lifecycle the payment strategies
// drive.
type orderGateway interface {
	GetUserOrder(ctx context.Context, orderID uuid.UUID, userID int64) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkPaid(ctx context.Context, input orders.MarkPaidInput) (*models.Order, error)
	SubmitReceipt(ctx context.Context, input orders.SubmitReceiptInput) error
	RejectVerification(ctx context.Context, orderID uuid.UUID, actorID int64, reason string) error
}

// walletLedger is the balance primitive the wallet strategy and the
// compensation path depend on.
type walletLedger interface {
	Debit(ctx context.Context, input wallet.EntryInput) (*models.WalletTransaction, error)
	Credit(ctx context.Context, input wallet.EntryInput) (*models.WalletTransaction, error)
}

// chainVerifier is the on-chain oracle behind the crypto strategy.
type chainVerifier interface {
	Verify(ctx context.Context, txID string, expectedAmount decimal.Decimal) (*tron.Transaction, error)
	ReceiveAddress() string
}
