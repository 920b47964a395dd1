package collection

import (
	"context"
	"strconv"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apiclient"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apperror"
)

const pathCollection = "/collection"

// Repository performs collection calls through the shared API client,
// which attaches the session cookie and CSRF header and turns a 401 into a
// forced sign-out.
type Repository struct {
	api *apiclient.Client
}

// NewRepository creates a repository over api.
func NewRepository(api *apiclient.Client) *Repository {
	return &Repository{api: api}
}

// List returns every item. An empty or 204 response is an empty slice.
func (r *Repository) List(ctx context.Context) ([]Item, error) {
	var items []Item
	if err := r.api.Get(ctx, pathCollection, nil, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

// Add validates req and creates an item, returning it with its server id.
func (r *Repository) Add(ctx context.Context, req AddRequest) (Item, error) {
	if err := req.Validate(); err != nil {
		return Item{}, err
	}
	var item Item
	if err := r.api.Post(ctx, pathCollection, req, &item); err != nil {
		return Item{}, err
	}
	if item.ID == 0 {
		return Item{}, apperror.NewServerRejected(0, "server did not return the created item")
	}
	return item, nil
}

// Update validates req and replaces the mutable fields of item id.
func (r *Repository) Update(ctx context.Context, id int64, req UpdateRequest) (Item, error) {
	if id <= 0 {
		return Item{}, apperror.NewValidationf("invalid item id %d", id)
	}
	if err := req.Validate(); err != nil {
		return Item{}, err
	}
	var item Item
	if err := r.api.Put(ctx, itemPath(id), req, &item); err != nil {
		return Item{}, err
	}
	if item.ID != id {
		return Item{}, apperror.NewServerRejected(0, "server did not return the updated item")
	}
	return item, nil
}

// Remove deletes item id. A 404 is returned as NotFound; callers that treat
// removal as idempotent should ignore it.
func (r *Repository) Remove(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperror.NewValidationf("invalid item id %d", id)
	}
	return r.api.Delete(ctx, itemPath(id))
}

// Stats returns the backend's totals.
func (r *Repository) Stats(ctx context.Context) (ServerStats, error) {
	var stats ServerStats
	err := r.api.Get(ctx, pathCollection+"/stats", nil, &stats)
	return stats, err
}

func itemPath(id int64) string {
	return pathCollection + "/" + strconv.FormatInt(id, 10)
}
