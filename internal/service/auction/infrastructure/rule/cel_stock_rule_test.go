package rule

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auctionhub/internal/pkg/redis"
	"auctionhub/internal/service/auction/domain/port"
)

const defaultRule = `listing.in_stock && (!listing.manage_stock || listing.stock_quantity > 0)`

var _ port.StockCheck = (*CELStockRule)(nil)

func TestCELStockRule(t *testing.T) {
	facts := NewMemoryFacts()
	facts.Put("unmanaged", ListingFacts{InStock: true})
	facts.Put("managed-left", ListingFacts{InStock: true, ManageStock: true, StockQuantity: 1})
	facts.Put("managed-empty", ListingFacts{InStock: true, ManageStock: true, StockQuantity: 0})
	facts.Put("out", ListingFacts{InStock: false})

	r, err := NewCELStockRule(defaultRule, facts)
	require.NoError(t, err)

	tests := []struct {
		productID string
		want      bool
	}{
		{"unmanaged", true},
		{"managed-left", true},
		{"managed-empty", false},
		{"out", false},
		{"unknown", false},
	}
	for _, tt := range tests {
		t.Run(tt.productID, func(t *testing.T) {
			got, err := r.IsAvailable(context.Background(), tt.productID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCELStockRuleRejectsBadExpressions(t *testing.T) {
	_, err := NewCELStockRule(`listing.in_stock &&`, NewMemoryFacts())
	assert.Error(t, err)

	_, err = NewCELStockRule(`listing.stock_quantity + 1`, NewMemoryFacts())
	assert.Error(t, err)
}

func TestCELStockRuleCustomStatus(t *testing.T) {
	facts := NewMemoryFacts()
	facts.Put("p", ListingFacts{InStock: true, Status: "draft"})

	r, err := NewCELStockRule(`listing.in_stock && listing.status == "publish"`, facts)
	require.NoError(t, err)

	ok, err := r.IsAvailable(context.Background(), "p")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisFactsFeedRule(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	defer client.Close()

	facts := NewRedisFacts(client)
	ctx := context.Background()
	require.NoError(t, facts.Put(ctx, "p", ListingFacts{InStock: true, ManageStock: true, StockQuantity: 3, Status: "publish"}))

	got, found, err := facts.Facts(ctx, "p")
	require.NoError(t, err)
	require.True(t, found)
	assert.EqualValues(t, 3, got.StockQuantity)

	_, found, err = facts.Facts(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	r, err := NewCELStockRule(defaultRule, facts)
	require.NoError(t, err)
	ok, err := r.IsAvailable(ctx, "p")
	require.NoError(t, err)
	assert.True(t, ok)
}
