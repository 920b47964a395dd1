// Package catalog reads the public card catalog used when adding cards to
// the collection.
package catalog

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apiclient"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apperror"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/collection"
)

const pathCards = "/pokemon/cards"

// CardBrief is a search result.
type CardBrief struct {
	ID      string `json:"id"`
	LocalID string `json:"localId"`
	Name    string `json:"name"`
	Image   string `json:"image,omitempty"`
}

// Card is the full catalog entry.
type Card struct {
	ID          string            `json:"id"`
	LocalID     string            `json:"localId"`
	Name        string            `json:"name"`
	Image       string            `json:"image,omitempty"`
	Category    string            `json:"category,omitempty"`
	Illustrator string            `json:"illustrator,omitempty"`
	Rarity      string            `json:"rarity,omitempty"`
	Set         collection.SetRef `json:"set"`
	HP          int               `json:"hp,omitempty"`
	Types       []string          `json:"types,omitempty"`
	Stage       string            `json:"stage,omitempty"`
	EvolveFrom  string            `json:"evolveFrom,omitempty"`
	Description string            `json:"description,omitempty"`
}

// Details returns the snapshot stored alongside a collection item.
func (c Card) Details() collection.CardDetails {
	set := c.Set
	return collection.CardDetails{
		ID:       c.ID,
		LocalID:  c.LocalID,
		Name:     c.Name,
		Image:    c.Image,
		Category: c.Category,
		Rarity:   c.Rarity,
		HP:       c.HP,
		Types:    c.Types,
		Set:      &set,
	}
}

// Client performs catalog lookups.
type Client struct {
	api *apiclient.Client
}

// NewClient creates a catalog client over api.
func NewClient(api *apiclient.Client) *Client {
	return &Client{api: api}
}

// Search returns cards whose name contains name.
func (c *Client) Search(ctx context.Context, name string) ([]CardBrief, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.NewValidation("search name is required")
	}
	var cards []CardBrief
	if err := c.api.Get(ctx, pathCards+"/search", url.Values{"name": {name}}, &cards); err != nil {
		return nil, err
	}
	if cards == nil {
		cards = []CardBrief{}
	}
	return cards, nil
}

// Card fetches one card by id.
func (c *Client) Card(ctx context.Context, id string) (Card, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Card{}, apperror.NewValidation("card id is required")
	}
	var card Card
	err := c.api.Get(ctx, pathCards+"/"+url.PathEscape(id), nil, &card)
	return card, err
}

// Searcher runs searches where only the latest one counts. Starting a
// search cancels the one in flight; a superseded search returns a
// StaleResponse error instead of its results.
type Searcher struct {
	client *Client

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewSearcher wraps client.
func NewSearcher(client *Client) *Searcher {
	return &Searcher{client: client}
}

// Search supersedes any earlier search and runs this one.
func (s *Searcher) Search(ctx context.Context, name string) ([]CardBrief, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.seq++
	seq := s.seq
	s.cancel = cancel
	s.mu.Unlock()

	cards, err := s.client.Search(ctx, name)

	s.mu.Lock()
	latest := s.seq == seq
	if latest {
		s.cancel = nil
	}
	s.mu.Unlock()

	if !latest {
		s.client.api.Metrics().StaleDiscards.Add(1)
		return nil, apperror.NewStale("card search")
	}
	return cards, err
}
