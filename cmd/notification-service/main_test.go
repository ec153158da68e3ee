package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auctionhub/internal/service/auction/domain"
)

func TestProcessWinner(t *testing.T) {
	ev := domain.WinnerDeclared{
		EventID:     "evt-1",
		ProductID:   "p-1",
		Winner:      domain.Bidder{UserID: "alice"},
		BidID:       9,
		Amount:      decimal.RequireFromString("31"),
		WinningTime: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	value, err := json.Marshal(ev)
	require.NoError(t, err)

	assert.NoError(t, processWinner(kafka.Message{Topic: "auction-winners", Key: []byte("p-1"), Value: value}))
}

func TestProcessWinnerRejectsBadPayloads(t *testing.T) {
	assert.Error(t, processWinner(kafka.Message{Value: []byte("{")}))
	assert.Error(t, processWinner(kafka.Message{Value: []byte(`{"productId":"p-1"}`)}))
}
