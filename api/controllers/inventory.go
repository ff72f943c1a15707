package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/thanhledev/audiomart-backend/api/responses"
	"github.com/thanhledev/audiomart-backend/api/validators"
	"github.com/thanhledev/audiomart-backend/internal/inventory"
	"github.com/thanhledev/audiomart-backend/pkg/logger"
	"github.com/thanhledev/audiomart-backend/pkg/pagination"
)

func InventoryGetStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(chi.URLParam(r, "productID"), "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := svc.GetStock(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// InventoryListStock pages through stock records; low_stock=true narrows the
// listing to products at or below their threshold.
func InventoryListStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lowStockOnly, err := validators.ParseQueryBool(r, "low_stock", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page := pagination.FromRequest(r)
		records, total, err := svc.ListStock(r.Context(), lowStockOnly, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePaged(w, records, pagination.NewMeta(page, total))
	}
}

type adjustStockRequest struct {
	SetAvailable *int    `json:"set_available"`
	Delta        *int    `json:"delta"`
	Note         *string `json:"note"`
}

// InventoryAdjust applies an operator correction, absolute or relative.
func InventoryAdjust(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(chi.URLParam(r, "productID"), "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.Adjust(r.Context(), inventory.AdjustInput{
			ProductID:    productID,
			SetAvailable: payload.SetAvailable,
			Delta:        payload.Delta,
			Note:         payload.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

type thresholdRequest struct {
	Threshold int `json:"threshold" validate:"min=0"`
}

func InventorySetThreshold(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(chi.URLParam(r, "productID"), "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload thresholdRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetThreshold(r.Context(), productID, payload.Threshold); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product_id": productID, "threshold": payload.Threshold})
	}
}

// InventoryListMovements returns the audit trail, optionally scoped to one
// product via the product_id query parameter.
func InventoryListMovements(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID := uuid.Nil
		if raw := r.URL.Query().Get("product_id"); raw != "" {
			parsed, err := validators.ParseUUIDParam(raw, "product_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			productID = parsed
		}

		page := pagination.FromRequest(r)
		movements, total, err := svc.ListMovements(r.Context(), productID, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePaged(w, movements, pagination.NewMeta(page, total))
	}
}

func InventoryListAlerts(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		onlyOpen, err := validators.ParseQueryBool(r, "only_open", true)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page := pagination.FromRequest(r)
		alerts, total, err := svc.ListAlerts(r.Context(), onlyOpen, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePaged(w, alerts, pagination.NewMeta(page, total))
	}
}

func InventoryResolveAlert(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		alertID, err := validators.ParseUUIDParam(chi.URLParam(r, "alertID"), "alertID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ResolveAlert(r.Context(), alertID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]uuid.UUID{"id": alertID})
	}
}
