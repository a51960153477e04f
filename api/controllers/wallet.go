package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hermagulator/shopbot/api/middleware"
	"github.com/hermagulator/shopbot/api/responses"
	"github.com/hermagulator/shopbot/api/validators"
	paymentsvc "github.com/hermagulator/shopbot/internal/payments"
	walletsvc "github.com/hermagulator/shopbot/internal/wallet"
	"github.com/hermagulator/shopbot/pkg/db/models"
	"github.com/hermagulator/shopbot/pkg/enums"
	pkgerrors "github.com/hermagulator/shopbot/pkg/errors"
	"github.com/hermagulator/shopbot/pkg/logger"
)

type depositRequest struct {
	Amount  string `json:"amount" validate:"required"`
	Receipt string `json:"receipt" validate:"required"`
}

type cryptoDepositRequest struct {
	Amount string `json:"amount" validate:"required"`
	TxID   string `json:"tx_id" validate:"required"`
}

type walletTransactionResponse struct {
	ID             int64                   `json:"id"`
	Type           enums.TransactionType   `json:"type"`
	Status         enums.TransactionStatus `json:"status"`
	Amount         string                  `json:"amount"`
	BalanceAfter   string                  `json:"balance_after"`
	Method         string                  `json:"method,omitempty"`
	Description    string                  `json:"description,omitempty"`
	RelatedOrderID *uuid.UUID              `json:"related_order_id,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
}

func newWalletTransactionResponse(entry *models.WalletTransaction) walletTransactionResponse {
	return walletTransactionResponse{
		ID:             entry.ID,
		Type:           entry.Type,
		Status:         entry.Status,
		Amount:         entry.Amount.StringFixed(2),
		BalanceAfter:   entry.BalanceAfter.StringFixed(2),
		Method:         entry.Method,
		Description:    entry.Description,
		RelatedOrderID: entry.RelatedOrderID,
		CreatedAt:      entry.CreatedAt,
	}
}

func WalletBalance(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		balance, err := svc.GetBalance(r.Context(), middleware.UserIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"balance": balance.StringFixed(2)})
	}
}

func WalletHistory(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entries, err := svc.History(r.Context(), middleware.UserIDFromContext(r.Context()), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]walletTransactionResponse, 0, len(entries))
		for i := range entries {
			out = append(out, newWalletTransactionResponse(&entries[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// WalletDeposit records a card top-up request. The money does not move
// until an operator approves it.
func WalletDeposit(svc walletsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload depositRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := decimal.NewFromString(payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		entry, err := svc.RequestDeposit(r.Context(), walletsvc.DepositRequestInput{
			UserID:  middleware.UserIDFromContext(r.Context()),
			Amount:  amount,
			Receipt: payload.Receipt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, newWalletTransactionResponse(entry))
	}
}

// WalletCryptoDeposit verifies the on-chain transfer and credits the wallet
// immediately when it checks out.
func WalletCryptoDeposit(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload cryptoDepositRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := decimal.NewFromString(payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		entry, err := svc.DepositWithCrypto(r.Context(), paymentsvc.CryptoDepositInput{
			UserID: middleware.UserIDFromContext(r.Context()),
			TxID:   payload.TxID,
			Amount: amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newWalletTransactionResponse(entry))
	}
}
