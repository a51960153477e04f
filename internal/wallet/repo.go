package wallet

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hermagulator/shopbot/pkg/db/models"
	"github.com/hermagulator/shopbot/pkg/enums"
)

// Repository manages persistence for wallets and their ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindWallet(ctx context.Context, userID int64) (*models.Wallet, error)
	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	// CreditBalance adds amount to an active wallet and reports whether a
	// row was updated.
	CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error)
	// RestoreBalance adds amount back regardless of the active flag, so
	// reversals land even on a frozen wallet. Reports whether a row was
	// updated.
	RestoreBalance(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error)
	// DebitBalance subtracts amount from an active wallet holding at least
	// that much and reports whether a row was updated.
	DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error)
	CreateTransaction(ctx context.Context, entry *models.WalletTransaction) error
	FindTransaction(ctx context.Context, id int64) (*models.WalletTransaction, error)
	UpdateTransaction(ctx context.Context, id int64, updates map[string]any) error
	ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]models.WalletTransaction, error)
	SumSignedCompleted(ctx context.Context, userID int64) (decimal.Decimal, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindWallet(ctx context.Context, userID int64) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE wallets
		SET balance = balance + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND is_active
	`, amount, userID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) RestoreBalance(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE wallets
		SET balance = balance + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`, amount, userID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) DebitBalance(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE wallets
		SET balance = balance - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND is_active AND balance >= ?
	`, amount, userID, amount)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) CreateTransaction(ctx context.Context, entry *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) FindTransaction(ctx context.Context, id int64) (*models.WalletTransaction, error) {
	var entry models.WalletTransaction
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) UpdateTransaction(ctx context.Context, id int64, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]models.WalletTransaction, error) {
	var entries []models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// SumSignedCompleted totals the signed amounts of entries that count toward
// the balance. Used by reconciliation checks.
func (r *repository) SumSignedCompleted(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var entries []models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, []enums.TransactionStatus{
			enums.TransactionStatusApproved,
			enums.TransactionStatusCompleted,
		}).
		Find(&entries).Error; err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, entry := range entries {
		sum = sum.Add(entry.SignedAmount())
	}
	return sum, nil
}
