package wallet

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hermagulator/shopbot/pkg/enums"
	pkgerrors "github.com/hermagulator/shopbot/pkg/errors"
	"github.com/hermagulator/shopbot/pkg/outbox"
	"github.com/hermagulator/shopbot/pkg/pagination"
)

func setupWalletTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	wallets := `
CREATE TABLE IF NOT EXISTS wallets (
  user_id INTEGER PRIMARY KEY,
  balance NUMERIC NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	transactions := `
CREATE TABLE IF NOT EXISTS wallet_transactions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL,
  type TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  balance_after NUMERIC NOT NULL,
  method TEXT NOT NULL DEFAULT '',
  reference TEXT,
  description TEXT NOT NULL DEFAULT '',
  related_order_id TEXT,
  status TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(wallets).Error)
	require.NoError(t, db.Exec(transactions).Error)
	return db
}

type dbTxRunner struct {
	db *gorm.DB
}

func (r dbTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func newWalletService(t *testing.T, db *gorm.DB) (Service, *stubOutboxPublisher) {
	t.Helper()

	publisher := &stubOutboxPublisher{}
	svc, err := NewService(NewRepository(db), dbTxRunner{db: db}, publisher)
	require.NoError(t, err)
	return svc, publisher
}

func TestEnsureWalletCreatesLazily(t *testing.T) {
	db := setupWalletTestDB(t)
	svc, _ := newWalletService(t, db)

	balance, err := svc.GetBalance(context.Background(), 100)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	again, err := svc.GetBalance(context.Background(), 100)
	require.NoError(t, err)
	assert.True(t, again.IsZero())
}

func TestCreditWritesBalanceAndLedgerTogether(t *testing.T) {
	db := setupWalletTestDB(t)
	svc, _ := newWalletService(t, db)

	entry, err := svc.Credit(context.Background(), EntryInput{
		UserID: 101,
		Type:   enums.TransactionTypeDeposit,
		Amount: decimal.RequireFromString("50.00"),
		Method: "crypto",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, entry.Status)
	assert.True(t, entry.BalanceAfter.Equal(decimal.RequireFromString("50.00")))

	balance, err := svc.GetBalance(context.Background(), 101)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("50.00")))

	history, err := svc.History(context.Background(), 101, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, enums.TransactionTypeDeposit, history[0].Type)
}

func TestDebitRejectsOverdraw(t *testing.T) {
	db := setupWalletTestDB(t)
	svc, _ := newWalletService(t, db)

	_, err := svc.Credit(context.Background(), EntryInput{
		UserID: 102,
		Type:   enums.TransactionTypeDeposit,
		Amount: decimal.RequireFromString("20.00"),
	})
	require.NoError(t, err)

	_, err = svc.Debit(context.Background(), EntryInput{
		UserID: 102,
		Type:   enums.TransactionTypePurchase,
		Amount: decimal.RequireFromString("20.01"),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds))

	// Failed debit leaves no ledger entry behind.
	history, err := svc.History(context.Background(), 102, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, history, 1)

	balance, err := svc.GetBalance(context.Background(), 102)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("20.00")))
}

func TestDebitRecordsBalanceAfter(t *testing.T) {
	db := setupWalletTestDB(t)
	svc, _ := newWalletService(t, db)

	_, err := svc.Credit(context.Background(), EntryInput{
		UserID: 103,
		Type:   enums.TransactionTypeDeposit,
		Amount: decimal.RequireFromString("75.50"),
	})
	require.NoError(t, err)

	entry, err := svc.Debit(context.Background(), EntryInput{
		UserID: 103,
		Type:   enums.TransactionTypeWithdrawal,
		Amount: decimal.RequireFromString("25.50"),
	})
	require.NoError(t, err)
	assert.True(t, entry.BalanceAfter.Equal(decimal.RequireFromString("50.00")))
	assert.True(t, entry.SignedAmount().IsNegative())
}

func TestCreditRejectsDebitEntryTypes(t *testing.T) {
	db := setupWalletTestDB(t)
	svc, _ := newWalletService(t, db)

	_, err := svc.Credit(context.Background(), EntryInput{
		UserID: 104,
		Type:   enums.TransactionTypePurchase,
		Amount: decimal.RequireFromString("5.00"),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestBalanceMatchesSignedLedgerSum(t *testing.T) {
	db := setupWalletTestDB(t)
	svc, _ := newWalletService(t, db)
	repo := NewRepository(db)

	userID := int64(105)
	_, err := svc.Credit(context.Background(), EntryInput{UserID: userID, Type: enums.TransactionTypeDeposit, Amount: decimal.RequireFromString("100.00")})
	require.NoError(t, err)
	_, err = svc.Debit(context.Background(), EntryInput{UserID: userID, Type: enums.TransactionTypePurchase, Amount: decimal.RequireFromString("33.25")})
	require.NoError(t, err)
	_, err = svc.Credit(context.Background(), EntryInput{UserID: userID, Type: enums.TransactionTypeRefund, Amount: decimal.RequireFromString("3.25")})
	require.NoError(t, err)

	// A pending request must not move the sum.
	_, err = svc.RequestDeposit(context.Background(), DepositRequestInput{UserID: userID, Amount: decimal.RequireFromString("999.00")})
	require.NoError(t, err)

	balance, err := svc.GetBalance(context.Background(), userID)
	require.NoError(t, err)

	sum, err := repo.SumSignedCompleted(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(sum), "balance %s, ledger sum %s", balance, sum)
}

func TestDepositReviewFlow(t *testing.T) {
	db := setupWalletTestDB(t)
	svc, publisher := newWalletService(t, db)

	userID := int64(106)
	request, err := svc.RequestDeposit(context.Background(), DepositRequestInput{
		UserID:  userID,
		Amount:  decimal.RequireFromString("40.00"),
		Receipt: "receipt-123",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusPending, request.Status)

	balance, err := svc.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	approved, err := svc.ApproveDeposit(context.Background(), request.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusApproved, approved.Status)
	assert.True(t, approved.BalanceAfter.Equal(decimal.RequireFromString("40.00")))

	balance, err = svc.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("40.00")))

	// Approving twice is a state conflict, not a double credit.
	_, err = svc.ApproveDeposit(context.Background(), request.ID, 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	var types []enums.OutboxEventType
	for _, event := range publisher.events {
		types = append(types, event.EventType)
	}
	assert.Contains(t, types, enums.EventDepositRequested)
	assert.Contains(t, types, enums.EventDepositApproved)
}

func TestRejectDepositLeavesBalanceUntouched(t *testing.T) {
	db := setupWalletTestDB(t)
	svc, publisher := newWalletService(t, db)

	userID := int64(107)
	request, err := svc.RequestDeposit(context.Background(), DepositRequestInput{
		UserID: userID,
		Amount: decimal.RequireFromString("15.00"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.RejectDeposit(context.Background(), request.ID, 1, "unreadable receipt"))

	balance, err := svc.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	history, err := svc.History(context.Background(), userID, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, enums.TransactionStatusRejected, history[0].Status)

	var types []enums.OutboxEventType
	for _, event := range publisher.events {
		types = append(types, event.EventType)
	}
	assert.Contains(t, types, enums.EventDepositRejected)
}

func TestDebitFrozenWalletIsStateConflict(t *testing.T) {
	db := setupWalletTestDB(t)
	svc, _ := newWalletService(t, db)

	userID := int64(108)
	_, err := svc.Credit(context.Background(), EntryInput{
		UserID: userID,
		Type:   enums.TransactionTypeDeposit,
		Amount: decimal.RequireFromString("50.00"),
	})
	require.NoError(t, err)

	require.NoError(t, db.Exec("UPDATE wallets SET is_active = 0 WHERE user_id = ?", userID).Error)

	// Plenty of balance: the failure is the frozen flag, not the funds.
	_, err = svc.Debit(context.Background(), EntryInput{
		UserID: userID,
		Type:   enums.TransactionTypePurchase,
		Amount: decimal.RequireFromString("10.00"),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.False(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds))
}

func TestRefundCreditLandsOnFrozenWallet(t *testing.T) {
	db := setupWalletTestDB(t)
	svc, _ := newWalletService(t, db)

	userID := int64(109)
	_, err := svc.Credit(context.Background(), EntryInput{
		UserID: userID,
		Type:   enums.TransactionTypeDeposit,
		Amount: decimal.RequireFromString("30.00"),
	})
	require.NoError(t, err)

	require.NoError(t, db.Exec("UPDATE wallets SET is_active = 0 WHERE user_id = ?", userID).Error)

	entry, err := svc.Credit(context.Background(), EntryInput{
		UserID: userID,
		Type:   enums.TransactionTypeRefund,
		Amount: decimal.RequireFromString("12.50"),
	})
	require.NoError(t, err)
	assert.True(t, entry.BalanceAfter.Equal(decimal.RequireFromString("42.50")))

	// A fresh deposit still needs an active wallet.
	_, err = svc.Credit(context.Background(), EntryInput{
		UserID: userID,
		Type:   enums.TransactionTypeDeposit,
		Amount: decimal.RequireFromString("5.00"),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}
