package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/repository"
	"github.com/prn-tf/meridian/internal/service"
)

// ProductHandler serves /api/v1/products and /api/v1/categories.
type ProductHandler struct {
	products *service.ProductService
	logger   zerolog.Logger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(products *service.ProductService, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		products: products,
		logger:   logger.With().Str("handler", "product").Logger(),
	}
}

// Routes mounts the product endpoints.
func (h *ProductHandler) Routes(r chi.Router) {
	r.Get("/", h.Search)
	r.Post("/", h.Create)
	r.Get("/statistics", h.Statistics)
	r.Get("/low-stock", h.LowStock)
	r.Get("/out-of-stock", h.OutOfStock)
	r.Get("/top-rated", h.TopRated)
	r.Post("/bulk/inventory", h.BulkInventory)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Put("/active", h.SetActive)
		r.Post("/reserve", h.stockAction(h.products.ReserveStock))
		r.Post("/release", h.stockAction(h.products.ReleaseStock))
		r.Post("/restock", h.stockAction(h.products.Restock))
		r.Post("/ratings", h.AddRating)
		r.Get("/related", h.Related)
	})
}

// Categories handles GET /categories.
func (h *ProductHandler) Categories(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, h.products.ListCategories())
}

// ByCategory handles GET /categories/{id}/products.
func (h *ProductHandler) ByCategory(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.GetProductsByCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) fail(w http.ResponseWriter, err error) {
	writeServiceError(w, h.logger, err)
}

func badQuery(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
}

// ===== Queries =====

// Search handles GET /products with category, tags, min_price, max_price,
// min_rating, max_rating, in_stock, active, q, sort, order, limit and offset.
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query())
	criteria := repository.ProductSearchCriteria{
		CategoryID: q.String("category"),
		Tags:       q.List("tags"),
		InStock:    q.OptionalBool("in_stock"),
		IsActive:   q.OptionalBool("active"),
		SearchTerm: q.String("q"),
		Limit:      q.Int("limit", 0),
		Offset:     q.Int("offset", 0),
		SortBy:     q.String("sort"),
		SortOrder:  repository.SortOrder(q.String("order")),
	}
	criteria.PriceRange = rangeParam(q, "min_price", "max_price")
	criteria.RatingRange = rangeParam(q, "min_rating", "max_rating")
	if err := q.Err(); err != nil {
		badQuery(w, err)
		return
	}

	res, err := h.products.SearchProducts(r.Context(), criteria)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func rangeParam(q *queryParser, minName, maxName string) *repository.Range {
	lo, hasMin := q.Float(minName)
	hi, hasMax := q.Float(maxName)
	if !hasMin && !hasMax {
		return nil
	}
	return &repository.Range{Min: lo, Max: hi}
}

func (h *ProductHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.products.GetProductStatistics(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

func (h *ProductHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query())
	threshold := q.OptionalInt("threshold")
	if err := q.Err(); err != nil {
		badQuery(w, err)
		return
	}
	products, err := h.products.GetLowStockProducts(r.Context(), threshold)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) OutOfStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.GetOutOfStockProducts(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) TopRated(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query())
	minAverage, ok := q.Float("min")
	if !ok {
		minAverage = 4
	}
	if err := q.Err(); err != nil {
		badQuery(w, err)
		return
	}
	products, err := h.products.GetProductsByRating(r.Context(), minAverage)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Related(w http.ResponseWriter, r *http.Request) {
	q := newQueryParser(r.URL.Query())
	limit := q.Int("limit", 0)
	if err := q.Err(); err != nil {
		badQuery(w, err)
		return
	}
	products, err := h.products.GetRelatedProducts(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, products)
}

// ===== Single product =====

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateProductRequest
	if !bind(w, r, &req) {
		return
	}
	product, err := h.products.CreateProduct(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateProductRequest
	if !bind(w, r, &req) {
		return
	}
	req.ID = chi.URLParam(r, "id")
	product, err := h.products.UpdateProduct(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	removed, err := h.products.DeleteProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	if !removed {
		WriteError(w, http.StatusNotFound, CodeNotFound, domain.ErrProductNotFound.Error(), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Active *bool `json:"active"`
	}
	if !bind(w, r, &body) {
		return
	}
	if body.Active == nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "active is required", map[string]string{"active": "is required"})
		return
	}
	product, err := h.products.SetProductActive(r.Context(), chi.URLParam(r, "id"), *body.Active)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, product)
}

// quantityBody is the body of the stock endpoints.
type quantityBody struct {
	Quantity int `json:"quantity"`
}

func (h *ProductHandler) stockAction(fn func(ctx context.Context, id string, n int) (*domain.Product, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body quantityBody
		if !bind(w, r, &body) {
			return
		}
		product, err := fn(r.Context(), chi.URLParam(r, "id"), body.Quantity)
		if err != nil {
			h.fail(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, product)
	}
}

func (h *ProductHandler) AddRating(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Stars int `json:"stars"`
	}
	if !bind(w, r, &body) {
		return
	}
	product, err := h.products.AddRating(r.Context(), chi.URLParam(r, "id"), body.Stars)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, product)
}

// ===== Bulk =====

func (h *ProductHandler) BulkInventory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Updates []service.InventoryUpdate `json:"updates"`
	}
	if !bind(w, r, &body) {
		return
	}
	report, err := h.products.BulkUpdateInventory(r.Context(), body.Updates)
	if err != nil {
		h.fail(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}
