package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/response"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/store"
)

// CatalogHandler serves the read-only card catalog.
type CatalogHandler struct {
	store *store.Store
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(s *store.Store) *CatalogHandler {
	return &CatalogHandler{store: s}
}

// Search returns brief cards whose name contains the name parameter.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		response.Fail(w, http.StatusBadRequest, "Search name is required")
		return
	}
	response.OK(w, h.store.SearchCards(name))
}

// Card returns one card.
func (h *CatalogHandler) Card(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.Card(chi.URLParam(r, "cardID"))
	if err != nil {
		response.Fail(w, http.StatusNotFound, "Card not found")
		return
	}
	response.OK(w, c)
}
