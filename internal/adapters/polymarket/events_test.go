package polymarket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEventSlug = "springfield-mayoral-election-2026"

func TestFetchEvent_Success(t *testing.T) {
	data, err := os.ReadFile("../../../testdata/fixtures/gamma_events.json")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events", r.URL.Path)
		assert.Equal(t, testEventSlug, r.URL.Query().Get("slug"))
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	defer srv.Close()

	event, err := newTestClient(nil, srv).FetchEvent(context.Background(), testEventSlug)
	require.NoError(t, err)

	assert.True(t, event.NegRisk)
	assert.Equal(t, "0xe3a2b5b0a5f1ecb4c9b2b0fe7f3b5d6a1c5a0cbd6b3c8f1d2e7a4b9c0d1e2f00", event.NegRiskMarketID)
	require.Len(t, event.Markets, 3)

	var slots []int
	for _, m := range event.Markets {
		slot, err := m.Slot()
		require.NoError(t, err)
		slots = append(slots, slot)
	}
	assert.Equal(t, []int{0, 2, 18}, slots)

	bob, ok := event.Market("will-bob-win-the-2026-springfield-mayoral-election")
	require.True(t, ok)
	assert.Equal(t, "0x9b7e1c4d3a2f5e6d7c8b9a0f1e2d3c4b5a69788796a5b4c3d2e1f0a9b8c7d6e5", bob.ConditionID)
}

func TestFetchEvent_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newTestClient(nil, srv).FetchEvent(context.Background(), "missing-event")
	assert.ErrorIs(t, err, domain.ErrMetadataNotFound)
}

func TestFetchEvent_IgnoresOtherSlugs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"slug":"something-else","negRiskMarketID":"0x01","markets":[]}]`))
	}))
	defer srv.Close()

	_, err := newTestClient(nil, srv).FetchEvent(context.Background(), testEventSlug)
	assert.ErrorIs(t, err, domain.ErrMetadataNotFound)
}

func TestFetchEvent_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(nil, srv).FetchEvent(context.Background(), testEventSlug)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.NotErrorIs(t, err, domain.ErrMetadataNotFound)
}
