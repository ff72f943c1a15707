package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/thanhledev/audiomart-backend/internal/catalog"
	"github.com/thanhledev/audiomart-backend/pkg/db/models"
	"github.com/thanhledev/audiomart-backend/pkg/enums"
	"github.com/thanhledev/audiomart-backend/pkg/pagination"
)

type stubCatalogService struct {
	product *models.Product
	list    []models.Product
	total   int64
	err     error

	lastFilter catalog.ListFilter
	lastInput  catalog.CreateInput
}

func (s *stubCatalogService) Create(_ context.Context, input catalog.CreateInput) (*models.Product, error) {
	s.lastInput = input
	return s.product, s.err
}

func (s *stubCatalogService) Update(context.Context, uuid.UUID, catalog.UpdateInput) (*models.Product, error) {
	return s.product, s.err
}

func (s *stubCatalogService) Get(context.Context, uuid.UUID) (*models.Product, error) {
	return s.product, s.err
}

func (s *stubCatalogService) GetActiveByIDs(context.Context, []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	return nil, s.err
}

func (s *stubCatalogService) List(_ context.Context, filter catalog.ListFilter, _ pagination.Params) ([]models.Product, int64, error) {
	s.lastFilter = filter
	return s.list, s.total, s.err
}

func (s *stubCatalogService) Deactivate(context.Context, uuid.UUID) error {
	return s.err
}

func TestProductsListForcesActiveStatus(t *testing.T) {
	svc := &stubCatalogService{
		list:  []models.Product{{ID: uuid.New(), SKU: "AMP-001", Status: enums.ProductStatusActive}},
		total: 1,
	}
	handler := ProductsList(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products?category=amplifiers&q=tube", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastFilter.Status != enums.ProductStatusActive {
		t.Fatalf("public listing must filter to active, got %q", svc.lastFilter.Status)
	}
	if svc.lastFilter.Category != "amplifiers" || svc.lastFilter.Search != "tube" {
		t.Fatalf("query filters not forwarded: %+v", svc.lastFilter)
	}
}

func TestProductsGetRejectsBadID(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/products/{productID}", ProductsGet(&stubCatalogService{}, nil))

	req := httptest.NewRequest(http.MethodGet, "/products/abc", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestProductsCreateSuccess(t *testing.T) {
	product := &models.Product{ID: uuid.New(), SKU: "HP-200", Name: "Studio Headphones"}
	svc := &stubCatalogService{product: product}
	handler := ProductsCreate(svc, nil)

	body := `{"sku":"HP-200","name":"Studio Headphones","price_cents":2490000,"initial_stock":25,"low_stock_threshold":5}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/products", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastInput.SKU != "HP-200" || svc.lastInput.InitialStock != 25 {
		t.Fatalf("input not forwarded: %+v", svc.lastInput)
	}

	var envelope struct {
		Data models.Product `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.SKU != product.SKU {
		t.Fatalf("unexpected sku %q", envelope.Data.SKU)
	}
}

func TestProductsCreateValidatesRequiredFields(t *testing.T) {
	handler := ProductsCreate(&stubCatalogService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/products", strings.NewReader(`{"name":"No SKU"}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestProductsUpdateRejectsUnknownStatus(t *testing.T) {
	router := chi.NewRouter()
	router.Patch("/products/{productID}", ProductsUpdate(&stubCatalogService{}, nil))

	req := httptest.NewRequest(http.MethodPatch, "/products/"+uuid.NewString(), strings.NewReader(`{"status":"ARCHIVED"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
