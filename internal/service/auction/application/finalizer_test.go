package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auctionhub/internal/service/auction/domain"
)

func TestFinalizerDeclaresWinnerOnce(t *testing.T) {
	h := newHarness(t)
	h.auction("p", func(r *domain.RawSettings) { r.ReservePrice = "15" })

	_, err := h.bid(t, "p", "alice", "10")
	require.NoError(t, err)
	_, err = h.autoBid(t, "p", "bob", "16", "40")
	require.NoError(t, err)

	h.now = testNow.Add(2 * time.Hour)
	finalizer := h.newFinalizer(10)

	report, err := finalizer.ProcessEnded(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, 1, report.Finalized[domain.ReasonWinnerNotified])

	rec, err := h.finals.Get(context.Background(), "p")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Processed)
	assert.Equal(t, "user:bob", rec.Winner.Key())
	requireDecimal(t, "16", rec.WinningAmount)
	require.NotNil(t, rec.WinningTime)
	assert.True(t, rec.WinningTime.Equal(testNow))

	require.Equal(t, 1, h.sink.count())
	ev := h.sink.events[0]
	assert.Equal(t, "p", ev.ProductID)
	assert.NotEmpty(t, ev.EventID)
	requireDecimal(t, "16", ev.Amount)

	// a second sweep finds nothing, a direct call is a no-op
	report, err = finalizer.ProcessEnded(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Candidates)

	_, err = finalizer.FinalizeAuction(context.Background(), "p")
	require.ErrorIs(t, err, domain.ErrAlreadyFinalized)
	assert.Equal(t, 1, h.sink.count())

	view, err := h.service.Status(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, domain.LifecycleEnded, view.State)
	require.NotNil(t, view.Finalization)
	assert.Equal(t, domain.ReasonWinnerNotified, *view.Finalization)
}

func TestFinalizerTerminalOutcomes(t *testing.T) {
	h := newHarness(t)
	h.auction("reserve", func(r *domain.RawSettings) { r.ReservePrice = "100" })
	h.auction("empty")

	_, err := h.bid(t, "reserve", "alice", "50")
	require.NoError(t, err)

	h.now = testNow.Add(2 * time.Hour)
	report, err := h.newFinalizer(10).ProcessEnded(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 1, report.Finalized[domain.ReasonReserveNotMet])
	assert.Equal(t, 1, report.Finalized[domain.ReasonNoWinner])
	assert.Zero(t, report.Failed)
	assert.Equal(t, 0, h.sink.count())

	rec, err := h.finals.Get(context.Background(), "reserve")
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonReserveNotMet, rec.Reason)
	assert.True(t, rec.Winner.IsZero())
}

func TestFinalizerRechecksClock(t *testing.T) {
	h := newHarness(t)
	h.auction("p")
	_, err := h.bid(t, "p", "alice", "10")
	require.NoError(t, err)

	// invoked directly while the auction is still running
	rec, err := h.newFinalizer(10).FinalizeAuction(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonNoWinner, rec.Reason)
	assert.Equal(t, 0, h.sink.count())
}

func TestFinalizerKeepsRecordWhenNotificationFails(t *testing.T) {
	h := newHarness(t)
	h.sink.err = errBoom
	h.auction("p")
	_, err := h.bid(t, "p", "alice", "10")
	require.NoError(t, err)

	h.now = testNow.Add(2 * time.Hour)
	report, err := h.newFinalizer(10).ProcessEnded(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Finalized[domain.ReasonWinnerNotified])
	assert.Zero(t, report.Failed)

	rec, err := h.finals.Get(context.Background(), "p")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, domain.ReasonWinnerNotified, rec.Reason)
}

func TestFinalizerBatchSizeBoundsOneSweep(t *testing.T) {
	h := newHarness(t)
	for _, id := range []string{"a", "b", "c"} {
		h.auction(id)
	}
	h.now = testNow.Add(2 * time.Hour)
	finalizer := h.newFinalizer(2)

	first, err := finalizer.ProcessEnded(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Candidates)

	second, err := finalizer.ProcessEnded(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Candidates)

	third, err := finalizer.ProcessEnded(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, third.Candidates)
}

func TestBidRejectedAfterAuctionEnds(t *testing.T) {
	h := newHarness(t)
	h.auction("p")
	h.now = testNow.Add(2 * time.Hour)

	_, err := h.bid(t, "p", "alice", "10")
	requireRejected(t, err, domain.ReasonAlreadyEnded)
}
