package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/thanhledev/audiomart-backend/api/responses"
	"github.com/thanhledev/audiomart-backend/api/validators"
	"github.com/thanhledev/audiomart-backend/internal/catalog"
	"github.com/thanhledev/audiomart-backend/pkg/enums"
	pkgerrors "github.com/thanhledev/audiomart-backend/pkg/errors"
	"github.com/thanhledev/audiomart-backend/pkg/logger"
	"github.com/thanhledev/audiomart-backend/pkg/pagination"
)

// ProductsList is the public catalog browse endpoint.
func ProductsList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Only operators may browse beyond active listings.
		filter := catalog.ListFilter{
			Category: r.URL.Query().Get("category"),
			Search:   r.URL.Query().Get("q"),
			Status:   enums.ProductStatusActive,
		}

		page := pagination.FromRequest(r)
		products, total, err := svc.List(r.Context(), filter, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePaged(w, products, pagination.NewMeta(page, total))
	}
}

func ProductsGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(chi.URLParam(r, "productID"), "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

type createProductRequest struct {
	SKU               string   `json:"sku" validate:"required"`
	Name              string   `json:"name" validate:"required"`
	Description       *string  `json:"description"`
	Category          *string  `json:"category"`
	Brand             *string  `json:"brand"`
	PriceCents        int64    `json:"price_cents" validate:"min=0"`
	Images            []string `json:"images"`
	InitialStock      int      `json:"initial_stock" validate:"min=0"`
	LowStockThreshold int      `json:"low_stock_threshold" validate:"min=0"`
}

// ProductsCreate registers a new listing with its opening stock.
func ProductsCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Create(r.Context(), catalog.CreateInput{
			SKU:               payload.SKU,
			Name:              payload.Name,
			Description:       payload.Description,
			Category:          payload.Category,
			Brand:             payload.Brand,
			PriceCents:        payload.PriceCents,
			Images:            payload.Images,
			InitialStock:      payload.InitialStock,
			LowStockThreshold: payload.LowStockThreshold,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

type updateProductRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Brand       *string  `json:"brand"`
	PriceCents  *int64   `json:"price_cents"`
	Images      []string `json:"images"`
	Status      *string  `json:"status"`
}

func ProductsUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(chi.URLParam(r, "productID"), "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := catalog.UpdateInput{
			Name:        payload.Name,
			Description: payload.Description,
			Category:    payload.Category,
			Brand:       payload.Brand,
			PriceCents:  payload.PriceCents,
			Images:      payload.Images,
		}
		if payload.Status != nil {
			status, err := enums.ParseProductStatus(*payload.Status)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product status"))
				return
			}
			input.Status = &status
		}

		product, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ProductsDeactivate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(chi.URLParam(r, "productID"), "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Deactivate(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]uuid.UUID{"id": id})
	}
}
