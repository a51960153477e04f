package payments

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hermagulator/shopbot/internal/orders"
	"github.com/hermagulator/shopbot/internal/wallet"
	"github.com/hermagulator/shopbot/pkg/db/models"
	"github.com/hermagulator/shopbot/pkg/enums"
)

// walletStrategy debits the buyer's balance and finalizes the order. When
// the paid transition loses the race after the debit already landed, the
// money goes straight back as a refund entry.
type walletStrategy struct {
	svc *service
}

func (w *walletStrategy) Method() enums.PaymentMethod {
	return enums.PaymentMethodWallet
}

func (w *walletStrategy) Pay(ctx context.Context, order *models.Order, input PayInput) (*Outcome, error) {
	orderID := order.ID
	_, err := w.svc.walletSvc.Debit(ctx, wallet.EntryInput{
		UserID:         order.UserID,
		Type:           enums.TransactionTypePurchase,
		Amount:         order.TotalAmount,
		Method:         string(enums.PaymentMethodWallet),
		Description:    fmt.Sprintf("payment for order %s", order.ID),
		RelatedOrderID: &orderID,
	})
	if err != nil {
		return nil, err
	}

	paid, err := w.svc.ordersSvc.MarkPaid(ctx, orders.MarkPaidInput{
		OrderID: order.ID,
		Method:  enums.PaymentMethodWallet,
		ActorID: input.UserID,
	})
	if err != nil {
		// The debit is already committed. Compensate before surfacing the
		// failure.
		reference := fmt.Sprintf("compensation:%s", order.ID)
		if _, creditErr := w.svc.walletSvc.Credit(ctx, wallet.EntryInput{
			UserID:         order.UserID,
			Type:           enums.TransactionTypeRefund,
			Amount:         order.TotalAmount,
			Method:         string(enums.PaymentMethodWallet),
			Reference:      &reference,
			Description:    fmt.Sprintf("reversal of failed payment for order %s", order.ID),
			RelatedOrderID: &orderID,
		}); creditErr != nil {
			w.svc.logg.Error(ctx, "wallet compensation failed, balance diverges from ledger intent", creditErr)
		}
		return nil, err
	}
	return &Outcome{Order: paid}, nil
}

func walletDepositEntry(userID int64, amount decimal.Decimal, reference *string) wallet.EntryInput {
	return wallet.EntryInput{
		UserID:      userID,
		Type:        enums.TransactionTypeDeposit,
		Amount:      amount,
		Method:      string(enums.PaymentMethodCrypto),
		Reference:   reference,
		Description: "crypto deposit",
	}
}
