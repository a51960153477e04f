package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hermagulator/shopbot/api/middleware"
	"github.com/hermagulator/shopbot/api/responses"
	"github.com/hermagulator/shopbot/api/validators"
	ordersvc "github.com/hermagulator/shopbot/internal/orders"
	paymentsvc "github.com/hermagulator/shopbot/internal/payments"
	"github.com/hermagulator/shopbot/pkg/db/models"
	"github.com/hermagulator/shopbot/pkg/enums"
	pkgerrors "github.com/hermagulator/shopbot/pkg/errors"
	"github.com/hermagulator/shopbot/pkg/logger"
)

type createOrderRequest struct {
	Items        []orderItemPayload `json:"items" validate:"required,min=1,dive"`
	DiscountCode string             `json:"discount_code"`
}

type orderItemPayload struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

type selectMethodRequest struct {
	Method string `json:"method" validate:"required,oneof=card crypto wallet"`
}

type payOrderRequest struct {
	Method    string `json:"method" validate:"required,oneof=card crypto wallet"`
	Reference string `json:"reference"`
}

type orderItemResponse struct {
	ProductID    uuid.UUID `json:"product_id"`
	Name         string    `json:"name"`
	Quantity     int       `json:"quantity"`
	PricePerUnit string    `json:"price_per_unit"`
	TotalPrice   string    `json:"total_price"`
}

type orderResponse struct {
	ID             uuid.UUID           `json:"id"`
	Status         enums.OrderStatus   `json:"status"`
	PaymentMethod  *string             `json:"payment_method,omitempty"`
	SubtotalAmount string              `json:"subtotal_amount"`
	DiscountAmount string              `json:"discount_amount"`
	TotalAmount    string              `json:"total_amount"`
	Items          []orderItemResponse `json:"items"`
	DeliveryData   json.RawMessage     `json:"delivery_data,omitempty"`
	NeedsReview    bool                `json:"needs_review,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:             order.ID,
		Status:         order.Status,
		SubtotalAmount: order.SubtotalAmount.StringFixed(2),
		DiscountAmount: order.DiscountAmount.StringFixed(2),
		TotalAmount:    order.TotalAmount.StringFixed(2),
		DeliveryData:   order.DeliveryData,
		CreatedAt:      order.CreatedAt,
	}
	if order.PaymentMethod != nil {
		method := string(*order.PaymentMethod)
		resp.PaymentMethod = &method
	}
	resp.Items = make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID:    item.ProductID,
			Name:         item.Name,
			Quantity:     item.Quantity,
			PricePerUnit: item.PricePerUnit.StringFixed(2),
			TotalPrice:   item.TotalPrice().StringFixed(2),
		})
	}
	return resp
}

// OrderCreate handles checkout: stock is reserved and the discount consumed
// before the caller sees the order.
func OrderCreate(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]ordersvc.OrderItemInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, ordersvc.OrderItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
		}

		order, err := svc.CreateOrder(r.Context(), ordersvc.CreateOrderInput{
			UserID:       userID,
			Items:        items,
			DiscountCode: payload.DiscountCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

func OrderGet(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetUserOrder(r.Context(), orderID, middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

func OrderList(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := svc.ListUserOrders(r.Context(), middleware.UserIDFromContext(r.Context()), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]orderResponse, 0, len(orders))
		for i := range orders {
			out = append(out, newOrderResponse(&orders[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func OrderSelectMethod(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload selectMethodRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(payload.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		order, err := svc.SelectPaymentMethod(r.Context(), ordersvc.SelectPaymentMethodInput{
			OrderID: orderID,
			UserID:  middleware.UserIDFromContext(r.Context()),
			Method:  method,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// OrderPay runs the payment attempt through the verifier matching the
// chosen method.
func OrderPay(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload payOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(payload.Method)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		outcome, err := svc.ProcessPayment(r.Context(), paymentsvc.PayInput{
			OrderID:   orderID,
			UserID:    middleware.UserIDFromContext(r.Context()),
			Method:    method,
			Reference: payload.Reference,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := newOrderResponse(outcome.Order)
		resp.NeedsReview = outcome.NeedsReview
		responses.WriteSuccess(w, resp)
	}
}

func OrderCancel(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := orderIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.Cancel(r.Context(), ordersvc.CancelInput{
			OrderID: orderID,
			ActorID: middleware.UserIDFromContext(r.Context()),
			IsAdmin: middleware.IsAdminFromContext(r.Context()),
			Reason:  "cancelled by buyer",
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": string(enums.OrderStatusCancelled)})
	}
}

func orderIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "orderID")
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}
