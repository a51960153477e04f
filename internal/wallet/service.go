package wallet

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hermagulator/shopbot/pkg/db/models"
	"github.com/hermagulator/shopbot/pkg/enums"
	pkgerrors "github.com/hermagulator/shopbot/pkg/errors"
	"github.com/hermagulator/shopbot/pkg/outbox"
	"github.com/hermagulator/shopbot/pkg/outbox/payloads"
	"github.com/hermagulator/shopbot/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines wallet balance and ledger operations. Credit and Debit
// always write the balance change and its ledger entry in one transaction,
// with balance_after read back inside that transaction.
type Service interface {
	EnsureWallet(ctx context.Context, userID int64) (*models.Wallet, error)
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
	Credit(ctx context.Context, input EntryInput) (*models.WalletTransaction, error)
	CreditTx(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.WalletTransaction, error)
	Debit(ctx context.Context, input EntryInput) (*models.WalletTransaction, error)
	History(ctx context.Context, userID int64, page pagination.Params) ([]models.WalletTransaction, error)
	RequestDeposit(ctx context.Context, input DepositRequestInput) (*models.WalletTransaction, error)
	ApproveDeposit(ctx context.Context, transactionID int64, actorID int64) (*models.WalletTransaction, error)
	RejectDeposit(ctx context.Context, transactionID int64, actorID int64, reason string) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// EntryInput captures the immutable data a balance-affecting ledger entry
// requires.
type EntryInput struct {
	UserID         int64
	Type           enums.TransactionType
	Amount         decimal.Decimal
	Method         string
	Reference      *string
	Description    string
	RelatedOrderID *uuid.UUID
}

// DepositRequestInput captures a card top-up awaiting operator review.
type DepositRequestInput struct {
	UserID  int64
	Amount  decimal.Decimal
	Receipt string
}

// NewService wires a wallet service with the required collaborators.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc}, nil
}

func (s *service) EnsureWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return ensureWalletWith(ctx, s.repo, userID)
}

func ensureWalletWith(ctx context.Context, repo Repository, userID int64) (*models.Wallet, error) {
	wallet, err := repo.FindWallet(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	wallet = &models.Wallet{UserID: userID, Balance: decimal.Zero, IsActive: true}
	if err := repo.CreateWallet(ctx, wallet); err != nil {
		// Another request may have created it in between.
		if existing, findErr := repo.FindWallet(ctx, userID); findErr == nil {
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
	}
	return wallet, nil
}

func (s *service) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	wallet, err := s.EnsureWallet(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return wallet.Balance, nil
}

func (s *service) Credit(ctx context.Context, input EntryInput) (*models.WalletTransaction, error) {
	var entry *models.WalletTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		entry, txErr = s.CreditTx(ctx, tx, input)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CreditTx applies a credit inside the caller's transaction so the balance
// change commits or rolls back together with the caller's own writes.
// Refund entries restore money the wallet already surrendered and land even
// when the wallet is frozen; deposits still require an active wallet.
func (s *service) CreditTx(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.WalletTransaction, error) {
	if err := validateEntry(input); err != nil {
		return nil, err
	}
	if !input.Type.IsCredit() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit requires a deposit or refund entry")
	}

	repo := s.repo.WithTx(tx)
	if _, err := ensureWalletWith(ctx, repo, input.UserID); err != nil {
		return nil, err
	}

	var applied bool
	var err error
	if input.Type == enums.TransactionTypeRefund {
		applied, err = repo.RestoreBalance(ctx, input.UserID, input.Amount)
	} else {
		applied, err = repo.CreditBalance(ctx, input.UserID, input.Amount)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit wallet")
	}
	if !applied {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "wallet is not active")
	}

	wallet, err := repo.FindWallet(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload wallet")
	}

	entry := buildEntry(input, wallet.Balance, enums.TransactionStatusCompleted)
	if err := repo.CreateTransaction(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ledger entry")
	}
	return entry, nil
}

func (s *service) Debit(ctx context.Context, input EntryInput) (*models.WalletTransaction, error) {
	if err := validateEntry(input); err != nil {
		return nil, err
	}
	if input.Type.IsCredit() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "debit requires a withdrawal or purchase entry")
	}
	if _, err := s.EnsureWallet(ctx, input.UserID); err != nil {
		return nil, err
	}

	var entry *models.WalletTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		applied, err := repo.DebitBalance(ctx, input.UserID, input.Amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit wallet")
		}
		if !applied {
			// A frozen wallet and a short balance both miss the guarded
			// UPDATE; the caller gets told which one it was.
			wallet, findErr := repo.FindWallet(ctx, input.UserID)
			if findErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "reload wallet")
			}
			if !wallet.IsActive {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "wallet is not active")
			}
			return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "balance too low for this operation")
		}

		wallet, err := repo.FindWallet(ctx, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload wallet")
		}

		entry = buildEntry(input, wallet.Balance, enums.TransactionStatusCompleted)
		if err := repo.CreateTransaction(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ledger entry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) History(ctx context.Context, userID int64, page pagination.Params) ([]models.WalletTransaction, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	page = pagination.Normalize(page)
	entries, err := s.repo.ListTransactions(ctx, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}
	return entries, nil
}

func (s *service) RequestDeposit(ctx context.Context, input DepositRequestInput) (*models.WalletTransaction, error) {
	if input.UserID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	wallet, err := s.EnsureWallet(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	receipt := input.Receipt
	entry := &models.WalletTransaction{
		UserID:       input.UserID,
		Type:         enums.TransactionTypeDeposit,
		Amount:       input.Amount,
		BalanceAfter: wallet.Balance,
		Method:       string(enums.PaymentMethodCard),
		Description:  "card top-up pending review",
		Status:       enums.TransactionStatusPending,
	}
	if receipt != "" {
		entry.Reference = &receipt
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateTransaction(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record deposit request")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDepositRequested,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   strconv.FormatInt(entry.ID, 10),
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data: payloads.DepositRequestedEvent{
				TransactionID: entry.ID,
				UserID:        input.UserID,
				Amount:        input.Amount,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) ApproveDeposit(ctx context.Context, transactionID int64, actorID int64) (*models.WalletTransaction, error) {
	var approved *models.WalletTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		entry, err := repo.FindTransaction(ctx, transactionID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "deposit request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load deposit request")
		}
		if entry.Type != enums.TransactionTypeDeposit || entry.Status != enums.TransactionStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "deposit request is not pending")
		}

		applied, err := repo.CreditBalance(ctx, entry.UserID, entry.Amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit wallet")
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "wallet is not active")
		}

		wallet, err := repo.FindWallet(ctx, entry.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload wallet")
		}

		updates := map[string]any{
			"status":        enums.TransactionStatusApproved,
			"balance_after": wallet.Balance,
		}
		if err := repo.UpdateTransaction(ctx, entry.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update deposit request")
		}

		entry.Status = enums.TransactionStatusApproved
		entry.BalanceAfter = wallet.Balance
		approved = entry

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDepositApproved,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   strconv.FormatInt(entry.ID, 10),
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actorID, IsAdmin: true},
			Data: payloads.DepositApprovedEvent{
				TransactionID: entry.ID,
				UserID:        entry.UserID,
				Amount:        entry.Amount,
				BalanceAfter:  wallet.Balance,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

func (s *service) RejectDeposit(ctx context.Context, transactionID int64, actorID int64, reason string) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		entry, err := repo.FindTransaction(ctx, transactionID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "deposit request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load deposit request")
		}
		if entry.Type != enums.TransactionTypeDeposit || entry.Status != enums.TransactionStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "deposit request is not pending")
		}

		updates := map[string]any{"status": enums.TransactionStatusRejected}
		if reason != "" {
			updates["description"] = reason
		}
		if err := repo.UpdateTransaction(ctx, entry.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update deposit request")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDepositRejected,
			AggregateType: enums.AggregateTransaction,
			AggregateID:   strconv.FormatInt(entry.ID, 10),
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actorID, IsAdmin: true},
			Data: payloads.DepositRejectedEvent{
				TransactionID: entry.ID,
				UserID:        entry.UserID,
				Reason:        reason,
			},
		})
	})
}

func validateEntry(input EntryInput) error {
	if input.UserID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid entry type %q", input.Type))
	}
	if !input.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return nil
}

func buildEntry(input EntryInput, balanceAfter decimal.Decimal, status enums.TransactionStatus) *models.WalletTransaction {
	return &models.WalletTransaction{
		UserID:         input.UserID,
		Type:           input.Type,
		Amount:         input.Amount,
		BalanceAfter:   balanceAfter,
		Method:         input.Method,
		Reference:      input.Reference,
		Description:    input.Description,
		RelatedOrderID: input.RelatedOrderID,
		Status:         status,
	}
}
