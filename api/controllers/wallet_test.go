package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	paymentsvc "github.com/hermagulator/shopbot/internal/payments"
	walletsvc "github.com/hermagulator/shopbot/internal/wallet"
	"github.com/hermagulator/shopbot/pkg/db/models"
	"github.com/hermagulator/shopbot/pkg/enums"
	pkgerrors "github.com/hermagulator/shopbot/pkg/errors"
	"github.com/hermagulator/shopbot/pkg/pagination"
)

type stubWalletService struct {
	balance        func(ctx context.Context, userID int64) (decimal.Decimal, error)
	history        func(ctx context.Context, userID int64, page pagination.Params) ([]models.WalletTransaction, error)
	requestDeposit func(ctx context.Context, input walletsvc.DepositRequestInput) (*models.WalletTransaction, error)
}

func (s *stubWalletService) EnsureWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	return nil, nil
}

func (s *stubWalletService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	if s.balance != nil {
		return s.balance(ctx, userID)
	}
	return decimal.Zero, nil
}

func (s *stubWalletService) Credit(ctx context.Context, input walletsvc.EntryInput) (*models.WalletTransaction, error) {
	return nil, nil
}

func (s *stubWalletService) CreditTx(ctx context.Context, tx *gorm.DB, input walletsvc.EntryInput) (*models.WalletTransaction, error) {
	return nil, nil
}

func (s *stubWalletService) Debit(ctx context.Context, input walletsvc.EntryInput) (*models.WalletTransaction, error) {
	return nil, nil
}

func (s *stubWalletService) History(ctx context.Context, userID int64, page pagination.Params) ([]models.WalletTransaction, error) {
	if s.history != nil {
		return s.history(ctx, userID, page)
	}
	return nil, nil
}

func (s *stubWalletService) RequestDeposit(ctx context.Context, input walletsvc.DepositRequestInput) (*models.WalletTransaction, error) {
	if s.requestDeposit != nil {
		return s.requestDeposit(ctx, input)
	}
	return nil, nil
}

func (s *stubWalletService) ApproveDeposit(ctx context.Context, transactionID int64, actorID int64) (*models.WalletTransaction, error) {
	return nil, nil
}

func (s *stubWalletService) RejectDeposit(ctx context.Context, transactionID int64, actorID int64, reason string) error {
	return nil
}

func TestWalletBalanceFormatsDecimal(t *testing.T) {
	svc := &stubWalletService{
		balance: func(ctx context.Context, userID int64) (decimal.Decimal, error) {
			if userID != 12 {
				t.Fatalf("unexpected user id %d", userID)
			}
			return decimal.RequireFromString("107.5"), nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/wallet/balance", "", 12)

	resp := httptest.NewRecorder()
	WalletBalance(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["balance"] != "107.50" {
		t.Fatalf("unexpected balance %q", envelope.Data["balance"])
	}
}

func TestWalletDepositAcceptsPendingRequest(t *testing.T) {
	svc := &stubWalletService{
		requestDeposit: func(ctx context.Context, input walletsvc.DepositRequestInput) (*models.WalletTransaction, error) {
			if input.UserID != 12 {
				t.Fatalf("unexpected user id %d", input.UserID)
			}
			if !input.Amount.Equal(decimal.RequireFromString("40.00")) {
				t.Fatalf("unexpected amount %s", input.Amount)
			}
			if input.Receipt != "bank-slip-9" {
				t.Fatalf("unexpected receipt %q", input.Receipt)
			}
			return &models.WalletTransaction{
				ID:           3,
				UserID:       input.UserID,
				Type:         enums.TransactionTypeDeposit,
				Status:       enums.TransactionStatusPending,
				Amount:       input.Amount,
				BalanceAfter: decimal.Zero,
			}, nil
		},
	}

	body := `{"amount":"40.00","receipt":"bank-slip-9"}`
	req := authedRequest(http.MethodPost, "/api/v1/wallet/deposits", body, 12)

	resp := httptest.NewRecorder()
	WalletDeposit(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d body=%s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data walletTransactionResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Status != enums.TransactionStatusPending {
		t.Fatalf("unexpected status %s", envelope.Data.Status)
	}
}

func TestWalletDepositRejectsBadAmount(t *testing.T) {
	req := authedRequest(http.MethodPost, "/api/v1/wallet/deposits", `{"amount":"forty","receipt":"r"}`, 12)

	resp := httptest.NewRecorder()
	WalletDeposit(&stubWalletService{}, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestWalletCryptoDepositCreditsImmediately(t *testing.T) {
	svc := &stubPaymentsService{
		deposit: func(ctx context.Context, input paymentsvc.CryptoDepositInput) (*models.WalletTransaction, error) {
			if input.TxID != "cafe01" {
				t.Fatalf("unexpected tx id %q", input.TxID)
			}
			return &models.WalletTransaction{
				ID:           8,
				UserID:       input.UserID,
				Type:         enums.TransactionTypeDeposit,
				Status:       enums.TransactionStatusCompleted,
				Amount:       input.Amount,
				BalanceAfter: input.Amount,
			}, nil
		},
	}

	body := `{"amount":"25.00","tx_id":"cafe01"}`
	req := authedRequest(http.MethodPost, "/api/v1/wallet/deposits/crypto", body, 12)

	resp := httptest.NewRecorder()
	WalletCryptoDeposit(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data walletTransactionResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.BalanceAfter != "25.00" {
		t.Fatalf("unexpected balance_after %q", envelope.Data.BalanceAfter)
	}
}

func TestWalletCryptoDepositSurfacesReplayConflict(t *testing.T) {
	svc := &stubPaymentsService{
		deposit: func(ctx context.Context, input paymentsvc.CryptoDepositInput) (*models.WalletTransaction, error) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "chain transaction already consumed")
		},
	}

	body := `{"amount":"25.00","tx_id":"cafe01"}`
	req := authedRequest(http.MethodPost, "/api/v1/wallet/deposits/crypto", body, 12)

	resp := httptest.NewRecorder()
	WalletCryptoDeposit(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}
