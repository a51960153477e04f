package discounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/hermagulator/shopbot/pkg/db/models"
	"github.com/hermagulator/shopbot/pkg/enums"
	pkgerrors "github.com/hermagulator/shopbot/pkg/errors"
	"github.com/hermagulator/shopbot/pkg/pagination"
)

// CartLine is the slice of an order a discount is evaluated against.
type CartLine struct {
	ProductID  uuid.UUID
	CategoryID *uuid.UUID
	LineTotal  decimal.Decimal
}

// Quote is the outcome of a successful validation: the discount that matched
// and the amount it takes off the order.
type Quote struct {
	Discount *models.Discount
	Amount   decimal.Decimal
}

// Service validates and consumes discount codes. Validation is read-only;
// Apply and Revert run inside the caller's order transaction.
type Service interface {
	Validate(ctx context.Context, code string, lines []CartLine) (*Quote, error)
	Apply(ctx context.Context, tx *gorm.DB, discountID, orderID uuid.UUID) error
	Revert(ctx context.Context, tx *gorm.DB, discountID, orderID uuid.UUID) error
	Create(ctx context.Context, input CreateDiscountInput) (*models.Discount, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Get(ctx context.Context, id uuid.UUID) (*models.Discount, error)
	List(ctx context.Context, page pagination.Params) ([]models.Discount, error)
}

type service struct {
	repo Repository
}

// CreateDiscountInput captures the fields an operator supplies for a new code.
type CreateDiscountInput struct {
	Code        string
	Type        enums.DiscountType
	Amount      decimal.Decimal
	Target      enums.DiscountTarget
	TargetID    *uuid.UUID
	MinPurchase *decimal.Decimal
	MaxDiscount *decimal.Decimal
	UsageLimit  *int
	StartDate   *time.Time
	EndDate     *time.Time
}

// NewService wires a discounts service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("discounts repository required")
	}
	return &service{repo: repo}, nil
}

// Validate runs the eligibility checks in a fixed order so the caller always
// sees the most specific failure: existence, active flag, date window, usage
// limit, minimum purchase, then target match.
func (s *service) Validate(ctx context.Context, code string, lines []CartLine) (*Quote, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code required")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	discount, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "discount code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount")
	}

	now := time.Now()
	if !discount.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "discount code is disabled")
	}
	if discount.StartDate != nil && now.Before(*discount.StartDate) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "discount code is not active yet")
	}
	if discount.EndDate != nil && now.After(*discount.EndDate) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "discount code has expired")
	}
	if discount.UsageLimit != nil && discount.UsedCount >= *discount.UsageLimit {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "discount code usage limit reached")
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal)
	}
	if discount.MinPurchase != nil && total.LessThan(*discount.MinPurchase) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total below discount minimum").
			WithDetails(map[string]string{"min_purchase": discount.MinPurchase.StringFixed(2)})
	}

	eligible := eligibleTotal(discount, lines)
	if !eligible.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount does not apply to any item in the cart")
	}

	amount := computeAmount(discount, eligible)
	if amount.GreaterThan(total) {
		amount = total
	}

	return &Quote{Discount: discount, Amount: amount}, nil
}

func (s *service) Apply(ctx context.Context, tx *gorm.DB, discountID, orderID uuid.UUID) error {
	if discountID == uuid.Nil || orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount id and order id required")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for discount apply")
	}
	repo := s.repo.WithTx(tx)

	consumed, err := repo.ConsumeUsage(ctx, discountID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume discount usage")
	}
	if !consumed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "discount code no longer available")
	}

	usage := &models.DiscountUsage{DiscountID: discountID, OrderID: orderID}
	if err := repo.CreateUsage(ctx, usage); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record discount usage")
	}
	return nil
}

func (s *service) Revert(ctx context.Context, tx *gorm.DB, discountID, orderID uuid.UUID) error {
	if discountID == uuid.Nil || orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount id and order id required")
	}
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for discount revert")
	}
	repo := s.repo.WithTx(tx)

	if err := repo.DeleteUsage(ctx, discountID, orderID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete discount usage")
	}
	if err := repo.ReturnUsage(ctx, discountID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "return discount usage")
	}
	return nil
}

func (s *service) Create(ctx context.Context, input CreateDiscountInput) (*models.Discount, error) {
	input.Code = strings.TrimSpace(strings.ToUpper(input.Code))
	if input.Code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid discount type %q", input.Type))
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount amount must be positive")
	}
	if input.Type == enums.DiscountTypePercentage && input.Amount.GreaterThan(decimal.NewFromInt(100)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percentage discount cannot exceed 100")
	}
	if input.Target == "" {
		input.Target = enums.DiscountTargetAll
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid discount target %q", input.Target))
	}
	if input.Target != enums.DiscountTargetAll && input.TargetID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target id required for scoped discounts")
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end date before start date")
	}

	discount := &models.Discount{
		Code:        input.Code,
		Type:        input.Type,
		Amount:      input.Amount,
		Target:      input.Target,
		TargetID:    input.TargetID,
		MinPurchase: input.MinPurchase,
		MaxDiscount: input.MaxDiscount,
		UsageLimit:  input.UsageLimit,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, discount); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create discount")
	}
	return discount, nil
}

func (s *service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount id required")
	}
	if err := s.repo.Update(ctx, id, map[string]any{"is_active": active}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update discount")
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Discount, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount id required")
	}
	discount, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "discount not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount")
	}
	return discount, nil
}

func (s *service) List(ctx context.Context, page pagination.Params) ([]models.Discount, error) {
	page = pagination.Normalize(page)
	discounts, err := s.repo.List(ctx, page.Limit, page.Offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list discounts")
	}
	return discounts, nil
}

// eligibleTotal sums the lines the discount's target covers.
func eligibleTotal(discount *models.Discount, lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		switch discount.Target {
		case enums.DiscountTargetProduct:
			if discount.TargetID != nil && line.ProductID == *discount.TargetID {
				total = total.Add(line.LineTotal)
			}
		case enums.DiscountTargetCategory:
			if discount.TargetID != nil && line.CategoryID != nil && *line.CategoryID == *discount.TargetID {
				total = total.Add(line.LineTotal)
			}
		default:
			total = total.Add(line.LineTotal)
		}
	}
	return total
}

func computeAmount(discount *models.Discount, eligible decimal.Decimal) decimal.Decimal {
	switch discount.Type {
	case enums.DiscountTypePercentage:
		amount := eligible.Mul(discount.Amount).Div(decimal.NewFromInt(100)).Round(2)
		if discount.MaxDiscount != nil && amount.GreaterThan(*discount.MaxDiscount) {
			amount = *discount.MaxDiscount
		}
		return amount
	default:
		// Fixed discounts never exceed what the eligible lines are worth.
		if discount.Amount.GreaterThan(eligible) {
			return eligible
		}
		return discount.Amount
	}
}
