package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hermagulator/shopbot/internal/discounts"
	"github.com/hermagulator/shopbot/internal/wallet"
	"github.com/hermagulator/shopbot/pkg/db/models"
	"github.com/hermagulator/shopbot/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ProductSource provides the catalog reads order creation and delivery need.
type ProductSource interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// StockGate moves stock between the available and reserved pools. Implemented
// by the catalog service.
type StockGate interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	CommitReservation(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// DiscountEngine is the slice of the discounts service order flows consume.
type DiscountEngine interface {
	Validate(ctx context.Context, code string, lines []discounts.CartLine) (*discounts.Quote, error)
	Apply(ctx context.Context, tx *gorm.DB, discountID, orderID uuid.UUID) error
	Revert(ctx context.Context, tx *gorm.DB, discountID, orderID uuid.UUID) error
}

// WalletRefunder credits refunds back into the buyer's wallet inside the
// caller's transaction.
type WalletRefunder interface {
	CreditTx(ctx context.Context, tx *gorm.DB, input wallet.EntryInput) (*models.WalletTransaction, error)
}
