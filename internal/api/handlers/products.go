package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dom/product-console/internal/api/middleware"
	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ProductHandler struct {
	productService *service.ProductService
	lg             *zap.SugaredLogger
}

func NewProductHandler(productService *service.ProductService, lg *zap.SugaredLogger) *ProductHandler {
	return &ProductHandler{productService: productService, lg: lg}
}

type CreateProductRequest struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Description string   `json:"description"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Image       *string  `json:"image" validate:"omitempty,url"`
}

// UpdateProductRequest is a partial update; absent fields keep their value.
type UpdateProductRequest struct {
	Name        *string  `json:"name" validate:"omitempty,max=255"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Image       *string  `json:"image" validate:"omitempty,url"`
}

type ProductListResponse struct {
	Products []*domain.Product `json:"products"`
	Total    int               `json:"total"`
}

type ProductResponse struct {
	Message string          `json:"message,omitempty"`
	Product *domain.Product `json:"product"`
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := h.productService.List(r.Context(), domain.ProductFilter{
		Search:    strings.TrimSpace(q.Get("search")),
		SortBy:    domain.ProductSortField(q.Get("sortBy")),
		SortOrder: domain.SortOrder(strings.ToLower(q.Get("sortOrder"))),
	})
	if err != nil {
		h.lg.Errorw("list products failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}

	writeJSON(w, http.StatusOK, ProductListResponse{Products: products, Total: len(products)})
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get product", err)
		return
	}
	writeJSON(w, http.StatusOK, ProductResponse{Product: product})
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.GetIdentity(r.Context())

	var req CreateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		h.lg.Warnw("create product: invalid body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if details := ValidateStruct(req); details != nil {
		h.lg.Warnw("create product: validation failed", "details", details)
		writeValidationError(w, details)
		return
	}

	product, err := h.productService.Create(r.Context(), identity, service.CreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Image:       req.Image,
	})
	if err != nil {
		h.writeServiceError(w, "create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, ProductResponse{Message: "Product created successfully", Product: product})
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.GetIdentity(r.Context())
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req UpdateProductRequest
	if err := decodeJSON(r, &req); err != nil {
		h.lg.Warnw("update product: invalid body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	details := ValidateStruct(req)
	if req.Name != nil && *req.Name == "" {
		details = append(details, ValidationError{Field: "name", Message: "Name is required"})
	}
	if details != nil {
		h.lg.Warnw("update product: validation failed", "details", details)
		writeValidationError(w, details)
		return
	}

	product, err := h.productService.Update(r.Context(), identity, id, domain.ProductChanges{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Image:       req.Image,
	})
	if err != nil {
		h.writeServiceError(w, "update product", err)
		return
	}
	writeJSON(w, http.StatusOK, ProductResponse{Message: "Product updated successfully", Product: product})
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.GetIdentity(r.Context())
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), identity, id); err != nil {
		h.writeServiceError(w, "delete product", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Product deleted successfully"})
}

func (h *ProductHandler) productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		// Ids are UUIDs, so a malformed one cannot name an existing product.
		h.lg.Warnw("product: malformed id", "id", chi.URLParam(r, "id"))
		writeError(w, http.StatusNotFound, "Product not found")
		return uuid.Nil, false
	}
	return id, true
}

func (h *ProductHandler) writeServiceError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, domain.ErrProductNotFound) {
		h.lg.Warnw(op+": not found", "error", err)
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	h.lg.Errorw(op+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
