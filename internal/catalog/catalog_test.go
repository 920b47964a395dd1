package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/api/apitest"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apiclient"
	"github.com/ramonehamilton/TCG-Collection-Tracker/internal/apperror"
)

func newClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	api, err := apiclient.New(apiclient.Config{BaseURL: baseURL, MaxRetries: -1})
	require.NoError(t, err)
	return NewClient(api)
}

func TestClient_Search(t *testing.T) {
	c := newClient(t, apitest.New(t).BaseURL())
	ctx := context.Background()

	cards, err := c.Search(ctx, "pikachu")
	require.NoError(t, err)
	require.Len(t, cards, 3)
	for _, card := range cards {
		assert.Equal(t, "Pikachu", card.Name)
	}

	cards, err = c.Search(ctx, "mewtwo")
	require.NoError(t, err)
	assert.NotNil(t, cards)
	assert.Empty(t, cards)

	_, err = c.Search(ctx, "  ")
	assert.True(t, apperror.IsValidation(err))
}

func TestClient_SearchEscapesName(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query().Get("name")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := newClient(t, server.URL+"/api").Search(context.Background(), "Farfetch'd & co")
	require.NoError(t, err)
	assert.Equal(t, "Farfetch'd & co", got)
}

func TestClient_Card(t *testing.T) {
	c := newClient(t, apitest.New(t).BaseURL())
	ctx := context.Background()

	card, err := c.Card(ctx, "base1-4")
	require.NoError(t, err)
	assert.Equal(t, "Charizard", card.Name)
	assert.Equal(t, "Base Set", card.Set.Name)

	d := card.Details()
	assert.Equal(t, "Base Set", d.SetName())
	assert.Equal(t, []string{"Fire"}, d.Types)

	_, err = c.Card(ctx, "nope-1")
	assert.True(t, apperror.IsNotFound(err))
}

func TestSearcher_LatestWins(t *testing.T) {
	slowStarted := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") == "pik" {
			close(slowStarted)
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
			return
		}
		_, _ = w.Write([]byte(`[{"id":"base1-58","localId":"58","name":"Pikachu"}]`))
	}))
	defer server.Close()

	client := newClient(t, server.URL+"/api")
	s := NewSearcher(client)
	ctx := context.Background()

	slowErr := make(chan error, 1)
	go func() {
		_, err := s.Search(ctx, "pik")
		slowErr <- err
	}()
	<-slowStarted

	cards, err := s.Search(ctx, "pikachu")
	require.NoError(t, err)
	require.Len(t, cards, 1)

	select {
	case err := <-slowErr:
		assert.True(t, apperror.IsStale(err), "expected StaleResponse, got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded search was not cancelled")
	}
	assert.Equal(t, uint64(1), client.api.Metrics().StaleDiscards.Load())
}
