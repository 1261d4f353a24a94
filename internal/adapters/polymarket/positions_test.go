package polymarket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/automerger/internal/adapters/polymarket"
	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "0xb48b9192DC52eED724Fa58c66Fa8926d06A3648e"

func newTestClient(dataSrv, gammaSrv *httptest.Server) *polymarket.Client {
	dataURL := ""
	gammaURL := ""
	if dataSrv != nil {
		dataURL = dataSrv.URL
	}
	if gammaSrv != nil {
		gammaURL = gammaSrv.URL
	}
	c := polymarket.NewClient(dataURL, gammaURL)
	c.SetRetryWait(time.Millisecond)
	return c
}

func TestFetchPositions_Success(t *testing.T) {
	data, err := os.ReadFile("../../../testdata/fixtures/data_positions.json")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, testWallet, q.Get("user"))
		assert.Equal(t, "0.1", q.Get("sizeThreshold"))
		assert.Equal(t, "500", q.Get("limit"))
		assert.Equal(t, "0", q.Get("offset"))
		assert.Equal(t, "CURRENT", q.Get("sortBy"))
		assert.Equal(t, "DESC", q.Get("sortDirection"))
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	defer srv.Close()

	client := newTestClient(srv, nil)
	positions, err := client.FetchPositions(context.Background(), testWallet)
	require.NoError(t, err)
	require.Len(t, positions, 3)

	p := positions[0]
	assert.Equal(t, "springfield-mayoral-election-2026", p.EventSlug)
	assert.Equal(t, "will-alice-win-the-2026-springfield-mayoral-election", p.Slug)
	assert.Equal(t, "0x5626a8fdffcd2db7c93fc3039f0e21a4b641e222fe19e91457a9ec5d2c348454", p.ConditionID)
	assert.True(t, p.Size.Equal(decimal.NewFromInt(10)))
	assert.True(t, p.IsNo())
	assert.True(t, p.NegativeRisk)

	// size como string JSON
	assert.True(t, positions[1].Size.Equal(decimal.RequireFromString("7.5")))

	assert.False(t, positions[2].IsNo())
}

func TestFetchPositions_Paginates(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		page := []map[string]any{
			{"slug": "a", "eventSlug": "e", "outcome": "No", "outcomeIndex": 1, "size": 1},
			{"slug": "b", "eventSlug": "e", "outcome": "No", "outcomeIndex": 1, "size": 2},
		}
		switch n {
		case 1:
			assert.Equal(t, "0", r.URL.Query().Get("offset"))
		case 2:
			assert.Equal(t, "2", r.URL.Query().Get("offset"))
			page = page[:1]
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	client := newTestClient(srv, nil)
	client.SetPositionsQuery(polymarket.PositionsQuery{PageLimit: 2})

	positions, err := client.FetchPositions(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Len(t, positions, 3)
	assert.Equal(t, int32(2), calls.Load(), "debe parar tras una página incompleta")
}

func TestFetchPositions_SkipsUnparseableSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"slug":"a","size":null},{"slug":"b","size":4}]`))
	}))
	defer srv.Close()

	positions, err := newTestClient(srv, nil).FetchPositions(context.Background(), testWallet)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "b", positions[0].Slug)
}

func TestFetchPositions_ServerErrorRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, nil).FetchPositions(context.Background(), testWallet)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, int32(4), calls.Load())
}

func TestFetchPositions_RecoversAfterTransientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	positions, err := newTestClient(srv, nil).FetchPositions(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchPositions_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid user"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, nil).FetchPositions(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)

	var se *polymarket.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}
