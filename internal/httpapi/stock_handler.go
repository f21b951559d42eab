package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/NicolaiBoKunkel/e-commerce-project/internal/stock"
)

type StockHandler struct {
	repo stock.Repository
}

func NewStockHandler(repo stock.Repository) *StockHandler {
	return &StockHandler{repo: repo}
}

func NewStockRouter(h *StockHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/health", h.Health)

	r.Route("/internal", func(r chi.Router) {
		r.Get("/stock/{productId}", h.GetAvailability)
		r.Post("/stock/adjust", h.AdjustAvailability)
	})

	return r
}

func (h *StockHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "stock-reconciler"})
}

func (h *StockHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	item, err := h.repo.Get(r.Context(), productID)
	if err != nil {
		if errors.Is(err, stock.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load availability")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

type adjustRequest struct {
	ProductID string `json:"productId"`
	Available int    `json:"available"`
}

func (h *StockHandler) AdjustAvailability(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" || req.Available < 0 {
		writeError(w, http.StatusBadRequest, "productId and a non-negative available count are required")
		return
	}

	if err := h.repo.SetAvailable(r.Context(), req.ProductID, req.Available); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to adjust availability")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
