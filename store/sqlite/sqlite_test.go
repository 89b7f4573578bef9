package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbstextile/piecework-engine/ledger"
)

var testClock = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleWorker(id ledger.WorkerID) ledger.Worker {
	return ledger.Worker{
		ID:   id,
		Name: "Ramesh",
		Rates: map[ledger.StageID]ledger.Money{
			"stage-collar": ledger.MustParseMoney("4.75"),
		},
		AdvanceBalance: ledger.MustParseMoney("150.50"),
		PaymentMethod:  ledger.MethodUPI,
		UPIID:          "ramesh@upi",
		Active:         true,
		CreatedAt:      testClock,
	}
}

func TestWorkerRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	w := sampleWorker("w1")
	require.NoError(t, s.SaveWorker(ctx, w))

	got, err := s.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, w.Name, got.Name)
	assert.True(t, got.AdvanceBalance.Equal(w.AdvanceBalance), "money must survive as exact decimal")
	assert.True(t, got.Rates["stage-collar"].Equal(w.Rates["stage-collar"]))
	assert.Equal(t, ledger.MethodUPI, got.PaymentMethod)
	assert.True(t, got.Active)

	// Save again is an upsert
	w.Name = "Ramesh K"
	require.NoError(t, s.SaveWorker(ctx, w))
	got, err = s.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "Ramesh K", got.Name)

	_, err = s.GetWorker(ctx, "w-missing")
	assert.ErrorIs(t, err, ledger.ErrWorkerNotFound)
}

func TestLotRoundTripWithSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lot := ledger.Lot{
		ID:        "LOT-1",
		LotNumber: "RBS-2026-014",
		Date:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Design:    "Round Neck Tee",
		ExtraDetails: []ledger.LotExtraDetail{
			{ID: "ed-1", Label: "Fabric", Value: "Combed cotton"},
		},
		TotalQuantity: 600,
		Status:        ledger.LotRunning,
		StageRates: []ledger.LotStageRate{
			{ID: "stage-collar", Name: "Collar / Round Neck", Rate: ledger.MustParseMoney("4")},
			{ID: "stage-hem", Name: "Bottom & Sleeve Hem", Rate: ledger.MustParseMoney("2.5")},
		},
		CreatedAt: testClock,
	}
	require.NoError(t, s.SaveLot(ctx, lot))

	got, err := s.GetLot(ctx, "LOT-1")
	require.NoError(t, err)
	assert.Equal(t, lot.LotNumber, got.LotNumber)
	require.Len(t, got.StageRates, 2)
	assert.True(t, got.StageRates[0].Rate.Equal(ledger.MustParseMoney("4")))
	require.Len(t, got.ExtraDetails, 1)
	assert.Equal(t, "Fabric", got.ExtraDetails[0].Label)
	assert.Equal(t, lot.Date.Format(time.DateOnly), got.Date.Format(time.DateOnly))
}

func TestPendingPartitionAndUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := ledger.JobWork{
		ID:         "JW-1001",
		WorkerID:   "w1",
		LotID:      "LOT-1",
		StageID:    "stage-collar",
		Date:       time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		QtyGiven:   100,
		RateAtTime: ledger.MustParseMoney("4"),
		CreatedAt:  testClock,
	}
	require.NoError(t, s.AddJobWork(ctx, job))

	later := job
	later.ID = "JW-1002"
	later.CreatedAt = testClock.Add(time.Minute)
	require.NoError(t, s.AddJobWork(ctx, later))

	// Pending returns both, oldest first
	pending, err := s.PendingJobWorks(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ledger.JobWorkID("JW-1001"), pending[0].ID)

	// Closing one removes it from the partition
	job.QtyCompleted = 100
	job.PaymentID = "PAY-1"
	require.NoError(t, s.UpdateJobWork(ctx, job))

	pending, err = s.PendingJobWorks(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ledger.JobWorkID("JW-1002"), pending[0].ID)

	// Updating a missing record reports not found
	missing := job
	missing.ID = "JW-9999"
	assert.ErrorIs(t, s.UpdateJobWork(ctx, missing), ledger.ErrJobWorkNotFound)
}

func TestPendingOrderSurvivesFractionalSeconds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// 500ms and 510ms: a trailing-zero-trimming timestamp format would
	// store ".5Z" and ".51Z", which do not compare lexicographically in
	// chronological order.
	first := ledger.JobWork{
		ID:         "JW-1",
		WorkerID:   "w1",
		LotID:      "LOT-1",
		StageID:    "stage-collar",
		Date:       time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		QtyGiven:   100,
		RateAtTime: ledger.MustParseMoney("4"),
		CreatedAt:  testClock.Add(500 * time.Millisecond),
	}
	second := first
	second.ID = "JW-2"
	second.CreatedAt = testClock.Add(510 * time.Millisecond)

	// Insert newest first so id order cannot mask a broken sort
	require.NoError(t, s.AddJobWork(ctx, second))
	require.NoError(t, s.AddJobWork(ctx, first))

	pending, err := s.PendingJobWorks(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, ledger.JobWorkID("JW-1"), pending[0].ID, "oldest record must come first")
	assert.Equal(t, ledger.JobWorkID("JW-2"), pending[1].ID)
	assert.True(t, pending[1].CreatedAt.After(pending[0].CreatedAt))
}

func TestLotDateUpdatePersists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lot := ledger.Lot{
		ID:            "LOT-1",
		LotNumber:     "RBS-2026-014",
		Date:          time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		TotalQuantity: 600,
		Status:        ledger.LotRunning,
		CreatedAt:     testClock,
	}
	require.NoError(t, s.SaveLot(ctx, lot))

	lot.Date = time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveLot(ctx, lot))

	got, err := s.GetLot(ctx, "LOT-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-12", got.Date.Format(time.DateOnly))
}

func TestPaymentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := ledger.Payment{
		ID:              "PAY-1",
		WorkerID:        "w1",
		JobWorkIDs:      []ledger.JobWorkID{"JW-1001", "JW-1002"},
		TotalAmount:     ledger.MustParseMoney("450"),
		AdvanceDeducted: ledger.MustParseMoney("150"),
		NetPayable:      ledger.MustParseMoney("300"),
		Method:          ledger.MethodCash,
		Date:            time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Status:          ledger.PaymentPaid,
		CreatedAt:       testClock,
	}
	require.NoError(t, s.AddPayment(ctx, p))

	got, err := s.GetPayment(ctx, "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, p.JobWorkIDs, got.JobWorkIDs)
	assert.True(t, got.NetPayable.Equal(p.NetPayable))

	// Payments are append-only: same id again is rejected
	err = s.AddPayment(ctx, p)
	assert.ErrorIs(t, err, ledger.ErrDuplicateID)
}

func TestNextIDMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.NextID(ctx, ledger.SeqJobWork)
	require.NoError(t, err)
	second, err := s.NextID(ctx, ledger.SeqJobWork)
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
	// Job work ids start above the legacy hand-numbered range
	assert.Equal(t, "JW-1001", string(ledger.FormatJobWorkID(first)))

	pay, err := s.NextID(ctx, ledger.SeqPayment)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pay)
}

func TestWithTxCommitsAtomically(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveWorker(ctx, sampleWorker("w1")))

	// A failing transaction leaves nothing behind
	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.AddAdvanceTransaction(ctx, ledger.AdvanceTransaction{
			ID: "ADV-x", WorkerID: "w1",
			Amount: ledger.MustParseMoney("100"),
			Date:   testClock, Type: ledger.AdvanceGiven, CreatedAt: testClock,
		}); err != nil {
			return err
		}
		w, err := tx.GetWorker(ctx, "w1")
		if err != nil {
			return err
		}
		w.AdvanceBalance = w.AdvanceBalance.Add(ledger.MustParseMoney("100"))
		if err := tx.SaveWorker(ctx, *w); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	advances, err := s.ListAdvances(ctx)
	require.NoError(t, err)
	assert.Empty(t, advances)
	w, err := s.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, w.AdvanceBalance.Equal(ledger.MustParseMoney("150.50")))

	// The same transaction succeeds when fn returns nil
	err = s.WithTx(ctx, func(tx ledger.Store) error {
		if err := tx.AddAdvanceTransaction(ctx, ledger.AdvanceTransaction{
			ID: "ADV-y", WorkerID: "w1",
			Amount: ledger.MustParseMoney("100"),
			Date:   testClock, Type: ledger.AdvanceGiven, CreatedAt: testClock,
		}); err != nil {
			return err
		}
		w, err := tx.GetWorker(ctx, "w1")
		if err != nil {
			return err
		}
		w.AdvanceBalance = w.AdvanceBalance.Add(ledger.MustParseMoney("100"))
		return tx.SaveWorker(ctx, *w)
	})
	require.NoError(t, err)

	advances, err = s.ListAdvances(ctx)
	require.NoError(t, err)
	assert.Len(t, advances, 1)
	w, err = s.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, w.AdvanceBalance.Equal(ledger.MustParseMoney("250.50")))
}
