package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auctionhub/internal/service/auction/infrastructure/rule"
)

func TestCheckStockHandler(t *testing.T) {
	facts := rule.NewMemoryFacts()
	facts.Put("sold-out", rule.ListingFacts{InStock: true, ManageStock: true, StockQuantity: 0})
	facts.Put("one-left", rule.ListingFacts{InStock: true, ManageStock: true, StockQuantity: 1})
	stockRule, err := rule.NewCELStockRule(defaultRule, facts)
	require.NoError(t, err)
	h := checkStockHandler(facts, stockRule)

	tests := []struct {
		productID string
		want      bool
	}{
		{"sold-out", false},
		{"one-left", true},
		{"untracked", true},
	}
	for _, tt := range tests {
		t.Run(tt.productID, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/check_stock?productId="+tt.productID, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var resp stockResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.productID, resp.ProductID)
			assert.Equal(t, tt.want, resp.Available)
		})
	}

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/check_stock", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
