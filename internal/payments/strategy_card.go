package payments

import (
	"context"

	"github.com/hermagulator/shopbot/internal/orders"
	"github.com/hermagulator/shopbot/pkg/db/models"
	"github.com/hermagulator/shopbot/pkg/enums"
	pkgerrors "github.com/hermagulator/shopbot/pkg/errors"
)

// cardStrategy cannot confirm anything on its own: it parks the order with
// the submitted receipt until an operator resolves it.
type cardStrategy struct {
	svc *service
}

func (c *cardStrategy) Method() enums.PaymentMethod {
	return enums.PaymentMethodCard
}

func (c *cardStrategy) Pay(ctx context.Context, order *models.Order, input PayInput) (*Outcome, error) {
	if input.Reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "card payment requires a receipt")
	}
	if err := c.svc.ordersSvc.SubmitReceipt(ctx, orders.SubmitReceiptInput{
		OrderID: order.ID,
		UserID:  input.UserID,
		Receipt: input.Reference,
	}); err != nil {
		return nil, err
	}

	order.Status = enums.OrderStatusPaymentVerification
	order.PaymentReceipt = &input.Reference
	return &Outcome{Order: order, NeedsReview: true}, nil
}
