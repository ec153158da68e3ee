package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"auctionhub/internal/pkg/httpclient"
	"auctionhub/internal/service/auction/domain"
	"auctionhub/internal/service/auction/domain/port"
)

var (
	_ port.StockCheck       = (*InventoryHTTPAdapter)(nil)
	_ port.NotificationSink = (*NotificationKafkaAdapter)(nil)
)

func newInventory(t *testing.T, h http.HandlerFunc) *InventoryHTTPAdapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client := httpclient.NewClient(noop.NewTracerProvider().Tracer("test"), httpclient.StaticResolver(srv.URL))
	return NewInventoryHTTPAdapter(client, "")
}

func TestInventoryHTTPAdapter(t *testing.T) {
	a := newInventory(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, InventoryCheckPath, r.URL.Path)
		id := r.URL.Query().Get("productId")
		_ = json.NewEncoder(w).Encode(stockResponse{ProductID: id, Available: id == "in-stock"})
	})

	ok, err := a.IsAvailable(context.Background(), "in-stock")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.IsAvailable(context.Background(), "sold-out")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInventoryHTTPAdapterSurfacesFailures(t *testing.T) {
	a := newInventory(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	})

	ok, err := a.IsAvailable(context.Background(), "p")
	require.Error(t, err)
	assert.False(t, ok)
	var statusErr *httpclient.StatusError
	assert.True(t, errors.As(err, &statusErr))
}

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestNotificationKafkaAdapterPublishesWinner(t *testing.T) {
	w := &recordingWriter{}
	a := NewNotificationKafkaAdapter(w)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ev := domain.WinnerDeclared{
		EventID:     "evt-1",
		ProductID:   "p-1",
		Winner:      domain.Bidder{UserID: "alice"},
		BidID:       3,
		Amount:      decimal.RequireFromString("42.50"),
		WinningTime: at,
		DeclaredAt:  at,
	}
	require.NoError(t, a.WinnerDeclared(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "p-1", string(w.msgs[0].Key))

	var got domain.WinnerDeclared
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, "alice", got.Winner.UserID)
	assert.True(t, ev.Amount.Equal(got.Amount))
	assert.NoError(t, a.Close())
}

func TestNotificationKafkaAdapterWrapsWriteError(t *testing.T) {
	boom := errors.New("broker unavailable")
	a := NewNotificationKafkaAdapter(&recordingWriter{err: boom})

	err := a.WinnerDeclared(context.Background(), domain.WinnerDeclared{ProductID: "p-1"})
	assert.ErrorIs(t, err, boom)
}
