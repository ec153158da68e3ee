package interfaces

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"auctionhub/internal/service/auction/application"
	"auctionhub/internal/service/auction/domain"
	"auctionhub/internal/service/auction/infrastructure"
	"auctionhub/internal/service/auction/infrastructure/lock"
)

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	finals := infrastructure.NewMemoryFinalizationStore()
	catalog := infrastructure.NewMemoryAuctionCatalog(domain.ResolveOptions{}, finals)
	catalog.Put(domain.RawSettings{
		ProductID:        "p-1",
		Enabled:          "yes",
		StartPrice:       "10",
		BidIncrement:     "2",
		AutomaticBidding: "yes",
	})
	catalog.Put(domain.RawSettings{ProductID: "sealed", Enabled: "yes", StartPrice: "5", Sealed: "yes"})

	svc := application.NewBidApplicationService(
		noop.NewTracerProvider().Tracer("test"),
		lock.NewMemoryLocker(time.Second),
		catalog, nil,
		infrastructure.NewMemoryLedger(),
		infrastructure.NewMemoryStateStore(),
		application.WithClock(func() time.Time { return now }),
		application.WithFinalizationStore(finals),
	)
	mux := http.NewServeMux()
	NewAuctionHandler(svc).RegisterRoutes(mux)
	return mux
}

func postBid(t *testing.T, mux *http.ServeMux, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auction/bid", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestPlaceBidEndpoint(t *testing.T) {
	mux := newTestMux(t)

	rec := postBid(t, mux, `{"productId":"p-1","userId":"alice","amount":"10"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var outcome domain.BidOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.Equal(t, domain.OutcomeAccepted, outcome.Status)
	assert.Equal(t, "10", outcome.CurrentBid.String())

	rec = postBid(t, mux, `{"productId":"p-1","userId":"bob","isAuto":true,"amount":12,"maxAutoAmount":"50"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = postBid(t, mux, `{"productId":"p-1","userId":"alice","amount":"20"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.Equal(t, domain.OutcomeOutbid, outcome.Status)
	assert.True(t, outcome.WasOutbid)
	assert.Equal(t, "22", outcome.CurrentBid.String())
}

func TestPlaceBidEndpointErrors(t *testing.T) {
	mux := newTestMux(t)

	tests := []struct {
		name   string
		body   string
		status int
		reason string
	}{
		{"malformed json", `{`, http.StatusBadRequest, "invalid_request"},
		{"missing product", `{"userId":"u","amount":"10"}`, http.StatusBadRequest, "invalid_product"},
		{"unknown product", `{"productId":"x","userId":"u","amount":"10"}`, http.StatusNotFound, "product_not_found"},
		{"too low", `{"productId":"p-1","userId":"u","amount":"1"}`, http.StatusUnprocessableEntity, "bid_too_low"},
		{"anonymous without session", `{"productId":"p-1","amount":"10"}`, http.StatusBadRequest, "missing_bidder_identity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postBid(t, mux, tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.reason, resp.Error)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/auction/bid", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSessionCookieIdentifiesAnonymousBidder(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest(http.MethodPost, "/auction/bid", strings.NewReader(`{"productId":"p-1","amount":"10"}`))
	req.AddCookie(&http.Cookie{Name: "auction_session", Value: "anon-1"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/auction/bids?productId=p-1&include_outbid=yes", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []application.BidHistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "session:a***", entries[0].Bidder)
}

func TestStatusEndpointNeverLeaksProxyMaximum(t *testing.T) {
	mux := newTestMux(t)
	rec := postBid(t, mux, `{"productId":"p-1","userId":"bob","isAuto":true,"amount":"10","maxAutoAmount":"999"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/auction/status?productId=p-1", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "999")

	var view application.AuctionStatusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, domain.LifecycleActive, view.State)
	require.NotNil(t, view.CurrentBid)
	assert.Equal(t, "10", view.CurrentBid.String())

	req = httptest.NewRequest(http.MethodGet, "/auction/bids?productId=p-1", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.NotContains(t, rec.Body.String(), "999")
}

func TestSealedHistoryHidesAmounts(t *testing.T) {
	mux := newTestMux(t)
	rec := postBid(t, mux, `{"productId":"sealed","userId":"dave","amount":"7"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postBid(t, mux, `{"productId":"sealed","userId":"dave","amount":"9"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "sealed_duplicate_bid")

	req := httptest.NewRequest(http.MethodGet, "/auction/bids?productId=sealed", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"amount"`)
}
