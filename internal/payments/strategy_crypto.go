package payments

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/hermagulator/shopbot/internal/orders"
	"github.com/hermagulator/shopbot/internal/tron"
	"github.com/hermagulator/shopbot/pkg/db/models"
	"github.com/hermagulator/shopbot/pkg/enums"
	pkgerrors "github.com/hermagulator/shopbot/pkg/errors"
)

// cryptoStrategy verifies the chain transaction, claims it in the replay
// registry, then finalizes the order. The claim happens before MarkPaid so
// a tx id can never pay two orders even under concurrent submission.
type cryptoStrategy struct {
	svc *service
}

func (c *cryptoStrategy) Method() enums.PaymentMethod {
	return enums.PaymentMethodCrypto
}

func (c *cryptoStrategy) Pay(ctx context.Context, order *models.Order, input PayInput) (*Outcome, error) {
	if input.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "crypto payment requires a transaction id")
	}

	if err := c.svc.ensureTxUnclaimed(ctx, input.Reference); err != nil {
		return nil, err
	}

	chainTx, err := c.svc.verifyChainTx(ctx, input.Reference, order.TotalAmount)
	if err != nil {
		return nil, err
	}

	claim := &models.ChainPayment{
		ReceiveAddress: c.svc.verifier.ReceiveAddress(),
		TxID:           chainTx.TxID,
		FromAddress:    chainTx.FromAddress,
		Amount:         chainTx.Amount,
		ChainTimestamp: chainTx.Timestamp,
		OrderID:        &order.ID,
		UserID:         order.UserID,
	}
	if err := c.svc.chainRepo.Record(ctx, claim); err != nil {
		return nil, err
	}

	receipt := chainTx.TxID
	paid, err := c.svc.ordersSvc.MarkPaid(ctx, orders.MarkPaidInput{
		OrderID: order.ID,
		Method:  enums.PaymentMethodCrypto,
		Receipt: &receipt,
		ActorID: input.UserID,
	})
	if err != nil {
		if removeErr := c.svc.chainRepo.Remove(ctx, claim.ID); removeErr != nil {
			c.svc.logg.Error(ctx, "failed to release chain payment claim after paid transition failure", removeErr)
		}
		return nil, err
	}
	return &Outcome{Order: paid}, nil
}

// verifyChainTx translates oracle verdicts into coded errors: node outages
// are retriable dependency failures, everything else is a final validation
// verdict on the submitted transaction.
func (s *service) verifyChainTx(ctx context.Context, txID string, expected decimal.Decimal) (*tron.Transaction, error) {
	chainTx, err := s.verifier.Verify(ctx, txID, expected)
	if err == nil {
		return chainTx, nil
	}
	var verifyErr *tron.VerifyError
	if errors.As(err, &verifyErr) {
		if verifyErr.Retriable() {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "chain node unavailable")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "chain transaction rejected")
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify chain transaction")
}
