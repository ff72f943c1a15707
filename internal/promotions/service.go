package promotions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgdb "github.com/thanhledev/audiomart-backend/pkg/db"
	"github.com/thanhledev/audiomart-backend/pkg/db/models"
	"github.com/thanhledev/audiomart-backend/pkg/enums"
	pkgerrors "github.com/thanhledev/audiomart-backend/pkg/errors"
	"github.com/thanhledev/audiomart-backend/pkg/pagination"
)

// Service validates and applies promotion codes.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Promotion, error)
	List(ctx context.Context, page pagination.Params) ([]models.Promotion, int64, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	// Validate resolves an applicable promotion for the given subtotal.
	Validate(ctx context.Context, code string, subtotalCents int64) (*models.Promotion, error)
	// Redeem consumes one use inside the caller's transaction.
	Redeem(ctx context.Context, tx *gorm.DB, promotionID uuid.UUID) error
}

// CreateInput carries a new promotion definition.
type CreateInput struct {
	Code             string
	Type             enums.PromotionType
	Value            int64
	MinSubtotalCents int64
	StartsAt         *time.Time
	EndsAt           *time.Time
	UsageLimit       *int
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds the promotions service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promotions repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Promotion, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid promotion type")
	}
	if input.Value < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "value cannot be negative")
	}
	if input.Type == enums.PromotionTypePercent && input.Value > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "percent value cannot exceed 100")
	}
	if input.StartsAt != nil && input.EndsAt != nil && input.EndsAt.Before(*input.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ends_at must follow starts_at")
	}
	if input.UsageLimit != nil && *input.UsageLimit <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage limit must be positive")
	}

	promotion := &models.Promotion{
		Code:             code,
		Type:             input.Type,
		Value:            input.Value,
		MinSubtotalCents: input.MinSubtotalCents,
		StartsAt:         input.StartsAt,
		EndsAt:           input.EndsAt,
		Active:           true,
		UsageLimit:       input.UsageLimit,
	}
	if err := s.repo.Create(ctx, promotion); err != nil {
		if pkgdb.IsUniqueViolation(err, "uq_promotions_code") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "promotion code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create promotion")
	}
	return promotion, nil
}

func (s *service) List(ctx context.Context, page pagination.Params) ([]models.Promotion, int64, error) {
	promotions, total, err := s.repo.List(ctx, pagination.Normalize(page))
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list promotions")
	}
	return promotions, total, nil
}

func (s *service) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "promotion id required")
	}
	rows, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update promotion")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found")
	}
	return nil
}

func (s *service) Validate(ctx context.Context, code string, subtotalCents int64) (*models.Promotion, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "code required")
	}

	promotion, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotion")
	}

	now := s.now().UTC()
	switch {
	case !promotion.Active:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "promotion is inactive")
	case promotion.StartsAt != nil && now.Before(*promotion.StartsAt):
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "promotion has not started")
	case promotion.EndsAt != nil && now.After(*promotion.EndsAt):
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "promotion has expired")
	case promotion.UsageLimit != nil && promotion.UsedCount >= *promotion.UsageLimit:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "promotion usage limit reached")
	case subtotalCents < promotion.MinSubtotalCents:
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "subtotal below promotion minimum").
			WithDetails(map[string]any{"min_subtotal_cents": promotion.MinSubtotalCents})
	}

	return promotion, nil
}

func (s *service) Redeem(ctx context.Context, tx *gorm.DB, promotionID uuid.UUID) error {
	if promotionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "promotion id required")
	}
	rows, err := s.repo.WithTx(tx).IncrementUsage(ctx, promotionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redeem promotion")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "promotion usage limit reached")
	}
	return nil
}

// ComputeDiscount returns the discount for the promotion, capped at subtotal.
func ComputeDiscount(promotion *models.Promotion, subtotalCents int64) int64 {
	if promotion == nil || subtotalCents <= 0 {
		return 0
	}

	var discount int64
	switch promotion.Type {
	case enums.PromotionTypeFixed:
		discount = promotion.Value
	case enums.PromotionTypePercent:
		discount = decimal.NewFromInt(subtotalCents).
			Mul(decimal.NewFromInt(promotion.Value)).
			Div(decimal.NewFromInt(100)).
			Floor().
			IntPart()
	default:
		return 0
	}

	if discount > subtotalCents {
		discount = subtotalCents
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
