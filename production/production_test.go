package production

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbstextile/piecework-engine/ledger"
	"github.com/rbstextile/piecework-engine/ledger/store"
)

var testClock = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	require.NoError(t, SeedStages(context.Background(), mem))
	svc := NewService(mem).WithClock(func() time.Time { return testClock })
	return svc, mem
}

func addWorker(t *testing.T, s ledger.Store, id ledger.WorkerID, active bool, rates map[ledger.StageID]ledger.Money) {
	t.Helper()
	require.NoError(t, s.SaveWorker(context.Background(), ledger.Worker{
		ID:            id,
		Name:          "Worker " + string(id),
		Rates:         rates,
		PaymentMethod: ledger.MethodCash,
		Active:        active,
		CreatedAt:     testClock,
	}))
}

// =============================================================================
// STAGE CATALOG
// =============================================================================

func TestSeedStagesIsIdempotentAndPreservesEdits(t *testing.T) {
	// GIVEN a seeded catalog with one rate edited afterwards
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, SeedStages(ctx, mem))
	require.NoError(t, mem.SaveStage(ctx, ledger.Stage{
		ID: "stage-collar", Name: "Collar / Round Neck", BaseRate: ledger.NewMoneyFromInt(5),
	}))

	// WHEN seeding again
	require.NoError(t, SeedStages(ctx, mem))

	// THEN the catalog still has seven stages and the edit survived
	stages, err := mem.ListStages(ctx)
	require.NoError(t, err)
	assert.Len(t, stages, 7)
	for _, st := range stages {
		if st.ID == "stage-collar" {
			assert.Equal(t, "5.00", st.BaseRate.Display())
		}
	}
}

// =============================================================================
// LOT CREATION
// =============================================================================

func TestCreateLotSnapshotsCatalogRates(t *testing.T) {
	// GIVEN the default catalog
	svc, mem := newTestService(t)
	ctx := context.Background()

	// WHEN creating a lot with one per-lot override
	lot, err := svc.CreateLot(ctx, NewLotInput{
		LotNumber:     "LOT-2026-001",
		Design:        "Round Neck Tee",
		Color:         "Navy",
		TotalQuantity: 500,
		StageRates: map[ledger.StageID]ledger.Money{
			"stage-collar": ledger.MustParseMoney("4.5"),
		},
	})
	require.NoError(t, err)

	// THEN the lot carries every catalog stage with the override applied
	assert.Equal(t, ledger.LotID("LOT-1"), lot.ID)
	assert.Equal(t, ledger.LotRunning, lot.Status)
	require.Len(t, lot.StageRates, 7)
	collar, ok := lot.StageRate("stage-collar")
	require.True(t, ok)
	assert.Equal(t, "4.50", collar.Rate.Display())
	shoulder, ok := lot.StageRate("stage-shoulder")
	require.True(t, ok)
	assert.Equal(t, "2.50", shoulder.Rate.Display())

	// AND a later catalog edit does not leak into the frozen snapshot
	require.NoError(t, mem.SaveStage(ctx, ledger.Stage{
		ID: "stage-shoulder", Name: "Shoulder Stitching", BaseRate: ledger.NewMoneyFromInt(9),
	}))
	stored, err := mem.GetLot(ctx, lot.ID)
	require.NoError(t, err)
	frozen, _ := stored.StageRate("stage-shoulder")
	assert.Equal(t, "2.50", frozen.Rate.Display())
}

func TestCreateLotRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateLot(ctx, NewLotInput{LotNumber: "L1", TotalQuantity: 0})
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	_, err = svc.CreateLot(ctx, NewLotInput{LotNumber: "  ", TotalQuantity: 100})
	assert.ErrorIs(t, err, ledger.ErrMissingField)

	_, err = svc.CreateLot(ctx, NewLotInput{
		LotNumber:     "L1",
		TotalQuantity: 100,
		StageRates:    map[ledger.StageID]ledger.Money{"stage-collar": ledger.NewMoneyFromInt(-1)},
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestLotIDsAreSequential(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.CreateLot(ctx, NewLotInput{LotNumber: "A", TotalQuantity: 10})
	require.NoError(t, err)
	second, err := svc.CreateLot(ctx, NewLotInput{LotNumber: "B", TotalQuantity: 10})
	require.NoError(t, err)

	assert.Equal(t, ledger.LotID("LOT-1"), first.ID)
	assert.Equal(t, ledger.LotID("LOT-2"), second.ID)
}

// =============================================================================
// WORK ISSUANCE
// =============================================================================

func TestIssueWorkFreezesLotRate(t *testing.T) {
	// GIVEN a running lot and an active worker with no overrides
	svc, mem := newTestService(t)
	ctx := context.Background()
	addWorker(t, mem, "w1", true, nil)
	lot, err := svc.CreateLot(ctx, NewLotInput{LotNumber: "L1", TotalQuantity: 500})
	require.NoError(t, err)

	// WHEN issuing 100 pieces of collar work
	job, err := svc.IssueWork(ctx, IssueInput{
		WorkerID: "w1", LotID: lot.ID, StageID: "stage-collar", Qty: 100,
	})
	require.NoError(t, err)

	// THEN the lot snapshot rate is frozen into the record
	assert.Equal(t, ledger.JobWorkID("JW-1001"), job.ID)
	assert.Equal(t, "4.00", job.RateAtTime.Display())
	assert.Equal(t, int64(100), job.QtyGiven)
	assert.Zero(t, job.QtyCompleted)
	assert.False(t, job.Settled())
}

func TestIssueWorkPrefersWorkerOverrideRate(t *testing.T) {
	// GIVEN a worker with a personal collar rate above the lot's
	svc, mem := newTestService(t)
	ctx := context.Background()
	addWorker(t, mem, "w1", true, map[ledger.StageID]ledger.Money{
		"stage-collar": ledger.MustParseMoney("4.75"),
	})
	lot, err := svc.CreateLot(ctx, NewLotInput{LotNumber: "L1", TotalQuantity: 500})
	require.NoError(t, err)

	// WHEN issuing collar work
	job, err := svc.IssueWork(ctx, IssueInput{
		WorkerID: "w1", LotID: lot.ID, StageID: "stage-collar", Qty: 50,
	})
	require.NoError(t, err)

	// THEN the override wins over the lot snapshot
	assert.Equal(t, "4.75", job.RateAtTime.Display())

	// AND removing the override later leaves the issued rate frozen
	w, err := mem.GetWorker(ctx, "w1")
	require.NoError(t, err)
	w.Rates = nil
	require.NoError(t, mem.SaveWorker(ctx, *w))
	stored, err := mem.GetJobWork(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "4.75", stored.RateAtTime.Display())
}

func TestIssueWorkValidation(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()
	addWorker(t, mem, "w-active", true, nil)
	addWorker(t, mem, "w-idle", false, nil)
	lot, err := svc.CreateLot(ctx, NewLotInput{LotNumber: "L1", TotalQuantity: 500})
	require.NoError(t, err)

	// Inactive worker
	_, err = svc.IssueWork(ctx, IssueInput{WorkerID: "w-idle", LotID: lot.ID, StageID: "stage-collar", Qty: 10})
	assert.ErrorIs(t, err, ledger.ErrWorkerInactive)

	// Unknown worker
	_, err = svc.IssueWork(ctx, IssueInput{WorkerID: "w-nope", LotID: lot.ID, StageID: "stage-collar", Qty: 10})
	assert.ErrorIs(t, err, ledger.ErrWorkerNotFound)

	// Non-positive quantity
	_, err = svc.IssueWork(ctx, IssueInput{WorkerID: "w-active", LotID: lot.ID, StageID: "stage-collar", Qty: 0})
	assert.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	// Stage not in the lot snapshot
	_, err = svc.IssueWork(ctx, IssueInput{WorkerID: "w-active", LotID: lot.ID, StageID: "stage-embroidery", Qty: 10})
	assert.ErrorIs(t, err, ledger.ErrStageNotInLot)

	// Completed lot
	_, err = svc.SetLotStatus(ctx, lot.ID, ledger.LotCompleted)
	require.NoError(t, err)
	_, err = svc.IssueWork(ctx, IssueInput{WorkerID: "w-active", LotID: lot.ID, StageID: "stage-collar", Qty: 10})
	assert.ErrorIs(t, err, ledger.ErrLotNotRunning)
}

func TestCompletingLotKeepsExistingWork(t *testing.T) {
	// GIVEN issued work on a running lot
	svc, mem := newTestService(t)
	ctx := context.Background()
	addWorker(t, mem, "w1", true, nil)
	lot, err := svc.CreateLot(ctx, NewLotInput{LotNumber: "L1", TotalQuantity: 500})
	require.NoError(t, err)
	job, err := svc.IssueWork(ctx, IssueInput{WorkerID: "w1", LotID: lot.ID, StageID: "stage-collar", Qty: 100})
	require.NoError(t, err)

	// WHEN the lot is completed
	_, err = svc.SetLotStatus(ctx, lot.ID, ledger.LotCompleted)
	require.NoError(t, err)

	// THEN the pending work is untouched and still settleable
	pending, err := mem.PendingJobWorks(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, job.ID, pending[0].ID)
}

// =============================================================================
// ROSTER
// =============================================================================

func TestRosterAddAndDeactivate(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()
	roster := NewRoster(mem).WithClock(func() time.Time { return testClock })

	// GIVEN a newly registered worker
	w, err := roster.Add(ctx, WorkerInput{
		Name:          "Lakshmi",
		Skill:         "Overlock",
		PaymentMethod: ledger.MethodUPI,
		UPIID:         "lakshmi@upi",
	})
	require.NoError(t, err)
	assert.True(t, w.Active)
	assert.True(t, w.AdvanceBalance.IsZero())
	assert.NotEmpty(t, w.ID)

	// WHEN deactivated
	w, err = roster.SetActive(ctx, w.ID, false)
	require.NoError(t, err)
	assert.False(t, w.Active)

	// THEN the record remains resolvable
	stored, err := mem.GetWorker(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lakshmi", stored.Name)
}

func TestRosterUpdateKeepsBalanceAndActive(t *testing.T) {
	// GIVEN a worker carrying an advance
	mem := store.NewMemory()
	ctx := context.Background()
	roster := NewRoster(mem)
	w, err := roster.Add(ctx, WorkerInput{Name: "Ramesh"})
	require.NoError(t, err)
	stored, err := mem.GetWorker(ctx, w.ID)
	require.NoError(t, err)
	stored.AdvanceBalance = ledger.NewMoneyFromInt(300)
	require.NoError(t, mem.SaveWorker(ctx, *stored))

	// WHEN updating profile fields
	updated, err := roster.Update(ctx, w.ID, WorkerInput{
		Name:   "Ramesh K",
		Mobile: "9876543210",
	})
	require.NoError(t, err)

	// THEN the balance and active flag are untouched
	assert.Equal(t, "Ramesh K", updated.Name)
	assert.True(t, updated.Active)
	assert.True(t, updated.AdvanceBalance.Equal(ledger.NewMoneyFromInt(300)))
}

func TestRosterValidation(t *testing.T) {
	roster := NewRoster(store.NewMemory())
	ctx := context.Background()

	_, err := roster.Add(ctx, WorkerInput{Name: "  "})
	assert.ErrorIs(t, err, ledger.ErrMissingField)

	_, err = roster.Add(ctx, WorkerInput{
		Name:  "X",
		Rates: map[ledger.StageID]ledger.Money{"stage-collar": ledger.NewMoneyFromInt(-2)},
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}
