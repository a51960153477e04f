package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hermagulator/shopbot/api/middleware"
	"github.com/hermagulator/shopbot/api/responses"
	"github.com/hermagulator/shopbot/api/validators"
	catalogsvc "github.com/hermagulator/shopbot/internal/catalog"
	discountsvc "github.com/hermagulator/shopbot/internal/discounts"
	ordersvc "github.com/hermagulator/shopbot/internal/orders"
	paymentsvc "github.com/hermagulator/shopbot/internal/payments"
	walletsvc "github.com/hermagulator/shopbot/internal/wallet"
	"github.com/hermagulator/shopbot/pkg/db/models"
	"github.com/hermagulator/shopbot/pkg/enums"
	pkgerrors "github.com/hermagulator/shopbot/pkg/errors"
	"github.com/hermagulator/shopbot/pkg/logger"
)

type resolvePaymentRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

type refundRequest struct {
	Reason string `json:"reason"`
}

type rejectDepositRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type createProductRequest struct {
	CategoryID      *uuid.UUID `json:"category_id"`
	Name            string     `json:"name" validate:"required"`
	Description     string     `json:"description"`
	Price           string     `json:"price" validate:"required"`
	AvailableQty    int        `json:"available_qty" validate:"min=0"`
	DeliveryPayload string     `json:"delivery_payload"`
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

type createDiscountRequest struct {
	Code        string     `json:"code" validate:"required"`
	Type        string     `json:"type" validate:"required,oneof=percentage fixed"`
	Amount      string     `json:"amount" validate:"required"`
	Target      string     `json:"target" validate:"omitempty,oneof=all product category"`
	TargetID    *uuid.UUID `json:"target_id"`
	MinPurchase *string    `json:"min_purchase"`
	MaxDiscount *string    `json:"max_discount"`
	UsageLimit  *int       `json:"usage_limit"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type discountResponse struct {
	ID         uuid.UUID            `json:"id"`
	Code       string               `json:"code"`
	Type       enums.DiscountType   `json:"type"`
	Amount     string               `json:"amount"`
	Target     enums.DiscountTarget `json:"target"`
	UsageLimit *int                 `json:"usage_limit,omitempty"`
	UsedCount  int                  `json:"used_count"`
	IsActive   bool                 `json:"is_active"`
}

func newDiscountResponse(discount *models.Discount) discountResponse {
	return discountResponse{
		ID:         discount.ID,
		Code:       discount.Code,
		Type:       discount.Type,
		Amount:     discount.Amount.StringFixed(2),
		Target:     discount.Target,
		UsageLimit: discount.UsageLimit,
		UsedCount:  discount.UsedCount,
		IsActive:   discount.IsActive,
	}
}

// AdminResolvePayment settles an order parked in payment verification.
func AdminResolvePayment(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload resolvePaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ResolveCardPayment(r.Context(), paymentsvc.ResolveCardInput{
			OrderID: orderID,
			Approve: payload.Approve,
			ActorID: middleware.UserIDFromContext(r.Context()),
			Reason:  payload.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// AdminRefundOrder flips a paid or delivered order to refunded and credits
// the buyer's wallet.
func AdminRefundOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload refundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.Refund(r.Context(), ordersvc.RefundInput{
			OrderID: orderID,
			ActorID: middleware.UserIDFromContext(r.Context()),
			Reason:  payload.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": string(enums.OrderStatusRefunded)})
	}
}

func AdminApproveDeposit(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transactionID, err := transactionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.ApproveDeposit(r.Context(), transactionID, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWalletTransactionResponse(entry))
	}
}

func AdminRejectDeposit(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transactionID, err := transactionIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload rejectDepositRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.RejectDeposit(r.Context(), transactionID, middleware.UserIDFromContext(r.Context()), payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": string(enums.TransactionStatusRejected)})
	}
}

func AdminCreateProduct(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), catalogsvc.CreateProductInput{
			CategoryID:      payload.CategoryID,
			Name:            payload.Name,
			Description:     payload.Description,
			Price:           payload.Price,
			AvailableQty:    payload.AvailableQty,
			DeliveryPayload: []byte(payload.DeliveryPayload),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newProductResponse(product))
	}
}

func AdminSetProductActive(svc catalogsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		var payload setActiveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetProductActive(r.Context(), productID, payload.Active); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"is_active": payload.Active})
	}
}

func AdminCreateDiscount(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createDiscountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discount, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newDiscountResponse(discount))
	}
}

func AdminSetDiscountActive(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		discountID, err := uuid.Parse(chi.URLParam(r, "discountID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount id"))
			return
		}

		var payload setActiveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetActive(r.Context(), discountID, payload.Active); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"is_active": payload.Active})
	}
}

func AdminListDiscounts(svc discountsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		discounts, err := svc.List(r.Context(), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]discountResponse, 0, len(discounts))
		for i := range discounts {
			out = append(out, newDiscountResponse(&discounts[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func (r createDiscountRequest) toInput() (discountsvc.CreateDiscountInput, error) {
	discountType, err := enums.ParseDiscountType(r.Type)
	if err != nil {
		return discountsvc.CreateDiscountInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type")
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return discountsvc.CreateDiscountInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}

	target := enums.DiscountTargetAll
	if r.Target != "" {
		target, err = enums.ParseDiscountTarget(r.Target)
		if err != nil {
			return discountsvc.CreateDiscountInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target")
		}
	}

	input := discountsvc.CreateDiscountInput{
		Code:       r.Code,
		Type:       discountType,
		Amount:     amount,
		Target:     target,
		TargetID:   r.TargetID,
		UsageLimit: r.UsageLimit,
		StartDate:  r.StartDate,
		EndDate:    r.EndDate,
	}
	if r.MinPurchase != nil {
		minPurchase, err := decimal.NewFromString(*r.MinPurchase)
		if err != nil {
			return discountsvc.CreateDiscountInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid min purchase")
		}
		input.MinPurchase = &minPurchase
	}
	if r.MaxDiscount != nil {
		maxDiscount, err := decimal.NewFromString(*r.MaxDiscount)
		if err != nil {
			return discountsvc.CreateDiscountInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid max discount")
		}
		input.MaxDiscount = &maxDiscount
	}
	return input, nil
}

func transactionIDFromRequest(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "transactionID")
	transactionID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || transactionID <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction id")
	}
	return transactionID, nil
}
