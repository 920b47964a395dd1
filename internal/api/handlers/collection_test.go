package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/response"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/store"
)

const testEmail = "misty@example.com"

func newTestCollectionHandler(t *testing.T) (*CollectionHandler, *store.Store) {
	t.Helper()
	st := store.New(store.DefaultCatalog(), store.WithBcryptCost(bcrypt.MinCost))
	if _, err := st.Register(testEmail, "starmie1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	return NewCollectionHandler(st, slog.New(slog.DiscardHandler)), st
}

// request builds a request as the session middleware and router would
// deliver it.
func request(method, target, body, itemID string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	ctx := store.WithSession(r.Context(), store.Session{ID: "s1", Email: testEmail})
	if itemID != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("itemID", itemID)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return r.WithContext(ctx)
}

func TestCollectionHandler_ListEmpty(t *testing.T) {
	h, _ := newTestCollectionHandler(t)

	w := httptest.NewRecorder()
	h.List(w, request(http.MethodGet, "/api/collection", "", ""))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", w.Body.String())
	}
}

func TestCollectionHandler_Add(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectMessage  string
	}{
		{
			name:           "known card",
			body:           `{"cardId":"base1-58","variant":"normal","quantity":2,"condition":"near_mint"}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "unknown card is stored without details",
			body:           `{"cardId":"promo-1","variant":"normal","quantity":1,"condition":"mint"}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "zero quantity",
			body:           `{"cardId":"base1-58","variant":"normal","quantity":0,"condition":"mint"}`,
			expectedStatus: http.StatusBadRequest,
			expectMessage:  "Quantity must be at least 1",
		},
		{
			name:           "missing card id",
			body:           `{"variant":"normal","quantity":1,"condition":"mint"}`,
			expectedStatus: http.StatusBadRequest,
			expectMessage:  "Card ID is required",
		},
		{
			name:           "malformed body",
			body:           `{"cardId":`,
			expectedStatus: http.StatusBadRequest,
			expectMessage:  "Invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestCollectionHandler(t)

			w := httptest.NewRecorder()
			h.Add(w, request(http.MethodPost, "/api/collection", tt.body, ""))

			if w.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.expectedStatus, w.Body.String())
			}
			if tt.expectMessage != "" {
				var resp response.ErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if resp.Message != tt.expectMessage {
					t.Errorf("message = %q, want %q", resp.Message, tt.expectMessage)
				}
				return
			}

			var item store.Item
			if err := json.NewDecoder(w.Body).Decode(&item); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if item.ID == 0 {
				t.Error("expected an assigned id")
			}
		})
	}
}

func TestCollectionHandler_UpdateAndRemove(t *testing.T) {
	h, st := newTestCollectionHandler(t)
	item, err := st.AddItem(testEmail, store.ItemInput{CardID: "base1-4", Variant: "holofoil", Quantity: 1, Condition: "mint"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	id := "1"
	if item.ID != 1 {
		t.Fatalf("first item id = %d", item.ID)
	}

	tests := []struct {
		name           string
		method         string
		itemID         string
		body           string
		expectedStatus int
	}{
		{"update", http.MethodPut, id, `{"quantity":3,"condition":"near_mint","notes":"graded"}`, http.StatusOK},
		{"update invalid", http.MethodPut, id, `{"quantity":-1,"condition":"mint"}`, http.StatusBadRequest},
		{"update missing", http.MethodPut, "99", `{"quantity":1,"condition":"mint"}`, http.StatusNotFound},
		{"bad id", http.MethodPut, "abc", `{"quantity":1,"condition":"mint"}`, http.StatusBadRequest},
		{"remove", http.MethodDelete, id, "", http.StatusNoContent},
		{"remove again", http.MethodDelete, id, "", http.StatusNotFound},
	}

	// Cases run in order against one store.
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r := request(tt.method, "/api/collection/"+tt.itemID, tt.body, tt.itemID)
		if tt.method == http.MethodPut {
			h.Update(w, r)
		} else {
			h.Remove(w, r)
		}
		if w.Code != tt.expectedStatus {
			t.Errorf("%s: status = %d, want %d: %s", tt.name, w.Code, tt.expectedStatus, w.Body.String())
		}
		if tt.name == "update" {
			var got store.Item
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Quantity != 3 || got.Variant != "holofoil" || got.Notes != "graded" {
				t.Errorf("updated item = %+v", got)
			}
		}
	}
}

func TestCollectionHandler_Stats(t *testing.T) {
	h, st := newTestCollectionHandler(t)
	for _, in := range []store.ItemInput{
		{CardID: "base1-58", Variant: "normal", Quantity: 2, Condition: "mint"},
		{CardID: "base1-58", Variant: "holofoil", Quantity: 1, Condition: "mint"},
		{CardID: "base2-60", Variant: "normal", Quantity: 4, Condition: "mint"},
	} {
		if _, err := st.AddItem(testEmail, in); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	w := httptest.NewRecorder()
	h.Stats(w, request(http.MethodGet, "/api/collection/stats", "", ""))

	var stats store.Stats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalCards != 7 || stats.UniqueCards != 2 {
		t.Errorf("stats = %+v, want 7 cards and 2 unique", stats)
	}
}
