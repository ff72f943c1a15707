package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/thanhledev/audiomart-backend/pkg/cache"
	pkgdb "github.com/thanhledev/audiomart-backend/pkg/db"
	"github.com/thanhledev/audiomart-backend/pkg/db/models"
	"github.com/thanhledev/audiomart-backend/pkg/enums"
	pkgerrors "github.com/thanhledev/audiomart-backend/pkg/errors"
	"github.com/thanhledev/audiomart-backend/pkg/logger"
	"github.com/thanhledev/audiomart-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the product catalog.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	List(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.Product, int64, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// CreateInput carries a new product listing.
type CreateInput struct {
	SKU               string
	Name              string
	Description       *string
	Category          *string
	Brand             *string
	PriceCents        int64
	Images            []string
	InitialStock      int
	LowStockThreshold int
}

// UpdateInput carries mutable product fields; nil fields stay untouched.
type UpdateInput struct {
	Name        *string
	Description *string
	Category    *string
	Brand       *string
	PriceCents  *int64
	Images      []string
	Status      *enums.ProductStatus
}

type service struct {
	repo  Repository
	tx    txRunner
	cache *cache.Cache
	logg  *logger.Logger
}

// NewService builds the catalog service with the required dependencies.
func NewService(repo Repository, tx txRunner, productCache *cache.Cache, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:  repo,
		tx:    tx,
		cache: productCache,
		logg:  logg,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	input.SKU = strings.TrimSpace(input.SKU)
	input.Name = strings.TrimSpace(input.Name)
	if input.SKU == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku required")
	}
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}
	if input.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if input.InitialStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial stock cannot be negative")
	}
	if input.LowStockThreshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "low stock threshold cannot be negative")
	}

	product := &models.Product{
		SKU:         input.SKU,
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Brand:       input.Brand,
		PriceCents:  input.PriceCents,
		Images:      pq.StringArray(input.Images),
		Status:      enums.ProductStatusActive,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, product); err != nil {
			if pkgdb.IsUniqueViolation(err, "uq_products_sku") {
				return pkgerrors.New(pkgerrors.CodeConflict, "sku already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}

		stock := &models.StockRecord{
			ProductID:         product.ID,
			AvailableQty:      input.InitialStock,
			LowStockThreshold: input.LowStockThreshold,
		}
		if err := tx.WithContext(ctx).Create(stock).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock record")
		}
		product.Stock = stock
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return product, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.PriceCents != nil && *input.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product status")
	}

	var updated *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindByID(ctx, id)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		if input.Name != nil {
			trimmed := strings.TrimSpace(*input.Name)
			if trimmed == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
			}
			product.Name = trimmed
		}
		if input.Description != nil {
			product.Description = input.Description
		}
		if input.Category != nil {
			product.Category = input.Category
		}
		if input.Brand != nil {
			product.Brand = input.Brand
		}
		if input.PriceCents != nil {
			product.PriceCents = *input.PriceCents
		}
		if input.Images != nil {
			product.Images = pq.StringArray(input.Images)
		}
		if input.Status != nil {
			product.Status = *input.Status
		}

		if err := repo.Update(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
		}
		updated = product
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return updated, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	var cached models.Product
	if hit, err := s.cache.GetJSON(ctx, cache.PrefixProducts, id.String(), &cached); err == nil && hit {
		return &cached, nil
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	if err := s.cache.SetJSON(ctx, cache.PrefixProducts, id.String(), product); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "product cache write failed")
	}
	return product, nil
}

// GetActiveByIDs loads active products keyed by ID. Missing or inactive
// products are absent from the result; callers decide how strict to be.
func (s *service) GetActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	products, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	result := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		if product.Status != enums.ProductStatusActive {
			continue
		}
		result[product.ID] = product
	}
	return result, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, page pagination.Params) ([]models.Product, int64, error) {
	products, total, err := s.repo.List(ctx, filter, pagination.Normalize(page))
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return products, total, nil
}

func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	status := enums.ProductStatusInactive
	_, err := s.Update(ctx, id, UpdateInput{Status: &status})
	return err
}

func (s *service) invalidate(ctx context.Context) {
	if err := s.cache.InvalidatePrefix(ctx, cache.PrefixProducts); err != nil && s.logg != nil {
		s.logg.Warn(ctx, "product cache invalidation failed")
	}
}
