package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/response"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/store"
)

// CollectionHandler serves the signed-in user's collection.
type CollectionHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewCollectionHandler creates a new CollectionHandler.
func NewCollectionHandler(s *store.Store, logger *slog.Logger) *CollectionHandler {
	return &CollectionHandler{store: s, logger: logger}
}

// List returns the collection, or 204 when it is empty.
func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, _ := currentSession(r)
	items := h.store.Items(sess.Email)
	if len(items) == 0 {
		response.NoContent(w)
		return
	}
	response.OK(w, items)
}

// Add creates an item.
func (h *CollectionHandler) Add(w http.ResponseWriter, r *http.Request) {
	sess, _ := currentSession(r)

	var in store.ItemInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := h.store.AddItem(sess.Email, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logger.Debug("Added card to collection", "card", in.CardID, "id", item.ID)
	response.Created(w, item)
}

// Update replaces the mutable fields of an item.
func (h *CollectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	sess, _ := currentSession(r)
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	var in store.ItemInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := h.store.UpdateItem(sess.Email, id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, item)
}

// Remove deletes an item.
func (h *CollectionHandler) Remove(w http.ResponseWriter, r *http.Request) {
	sess, _ := currentSession(r)
	id, ok := itemID(w, r)
	if !ok {
		return
	}

	if err := h.store.RemoveItem(sess.Email, id); err != nil {
		h.writeError(w, err)
		return
	}
	response.NoContent(w)
}

// Stats returns collection totals.
func (h *CollectionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	sess, _ := currentSession(r)
	response.OK(w, h.store.Stats(sess.Email))
}

func (h *CollectionHandler) writeError(w http.ResponseWriter, err error) {
	var vErr *store.ValidationError
	switch {
	case errors.As(err, &vErr):
		response.BadRequest(w, vErr)
	case errors.Is(err, store.ErrNotFound):
		response.Fail(w, http.StatusNotFound, "Collection item not found")
	default:
		h.logger.Error("Collection operation failed", "error", err)
		response.Fail(w, http.StatusInternalServerError, "Internal server error")
	}
}

func itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(w, http.StatusBadRequest, "Invalid collection item id")
		return 0, false
	}
	return id, true
}
