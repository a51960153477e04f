package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hermagulator/shopbot/pkg/db"
	"github.com/hermagulator/shopbot/pkg/db/models"
	pkgerrors "github.com/hermagulator/shopbot/pkg/errors"
)

// ChainPaymentRepository persists consumed chain transactions. The unique
// index on (receive_address, tx_id) is what makes Record the replay guard.
type ChainPaymentRepository interface {
	Record(ctx context.Context, payment *models.ChainPayment) error
	Remove(ctx context.Context, id uuid.UUID) error
	FindByTx(ctx context.Context, receiveAddress, txID string) (*models.ChainPayment, error)
}

type chainPaymentRepository struct {
	db *gorm.DB
}

func NewChainPaymentRepository(gdb *gorm.DB) ChainPaymentRepository {
	return &chainPaymentRepository{db: gdb}
}

func (r *chainPaymentRepository) Record(ctx context.Context, payment *models.ChainPayment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		if db.IsUniqueViolation(err, "ux_chain_payments_address_tx") || db.IsUniqueViolation(err, "") {
			return pkgerrors.New(pkgerrors.CodeConflict, "chain transaction already consumed")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record chain payment")
	}
	return nil
}

func (r *chainPaymentRepository) Remove(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ChainPayment{}, "id = ?", id).Error
}

func (r *chainPaymentRepository) FindByTx(ctx context.Context, receiveAddress, txID string) (*models.ChainPayment, error) {
	var payment models.ChainPayment
	err := r.db.WithContext(ctx).
		Where("receive_address = ? AND tx_id = ?", receiveAddress, txID).
		First(&payment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "chain payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load chain payment")
	}
	return &payment, nil
}
