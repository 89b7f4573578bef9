package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbstextile/piecework-engine/advance"
	"github.com/rbstextile/piecework-engine/ledger"
	"github.com/rbstextile/piecework-engine/ledger/store"
	"github.com/rbstextile/piecework-engine/production"
	"github.com/rbstextile/piecework-engine/settlement"
)

var day = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

// fixture runs a realistic day on the floor: two workers, one lot, issued
// work, an advance, and one settlement with a partial split.
type fixture struct {
	mem     *store.Memory
	reports *Service
	lot     *ledger.Lot
	ramesh  ledger.WorkerID
	suresh  ledger.WorkerID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	clock := func() time.Time { return day.Add(10 * time.Hour) }

	require.NoError(t, production.SeedStages(ctx, mem))
	roster := production.NewRoster(mem).WithClock(clock)
	prod := production.NewService(mem).WithClock(clock)
	adv := advance.NewLedger(mem).WithClock(clock)
	eng := settlement.NewEngine(mem).WithClock(clock)

	ramesh, err := roster.Add(ctx, production.WorkerInput{Name: "Ramesh"})
	require.NoError(t, err)
	suresh, err := roster.Add(ctx, production.WorkerInput{Name: "Suresh"})
	require.NoError(t, err)

	lot, err := prod.CreateLot(ctx, production.NewLotInput{
		LotNumber: "L-2026-001", Date: day, Design: "Tee", TotalQuantity: 100,
	})
	require.NoError(t, err)

	// Ramesh: 100 collar pcs @ 4, finishes 60. Suresh: 50 shoulder pcs
	// @ 2.5, left pending.
	j1, err := prod.IssueWork(ctx, production.IssueInput{
		WorkerID: ramesh.ID, LotID: lot.ID, StageID: "stage-collar", Date: day, Qty: 100,
	})
	require.NoError(t, err)
	_, err = prod.IssueWork(ctx, production.IssueInput{
		WorkerID: suresh.ID, LotID: lot.ID, StageID: "stage-shoulder", Date: day, Qty: 50,
	})
	require.NoError(t, err)

	_, err = adv.Give(ctx, ramesh.ID, ledger.NewMoneyFromInt(100), day, "")
	require.NoError(t, err)

	_, err = eng.Finalize(ctx, ramesh.ID, settlement.Entered{j1.ID: 60})
	require.NoError(t, err)

	return &fixture{
		mem:     mem,
		reports: NewService(mem),
		lot:     lot,
		ramesh:  ramesh.ID,
		suresh:  suresh.ID,
	}
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.reports.Dashboard(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, d.ActiveWorkers)
	assert.Equal(t, 1, d.RunningLots)

	// Pending: Ramesh's 40-piece carry-forward @ 4 and Suresh's 50 @ 2.5
	assert.Equal(t, 2, d.PendingJobs)
	assert.Equal(t, int64(90), d.PendingQty)
	assert.Equal(t, "285.00", d.PendingAmount.Display())

	// Ramesh's 100 advance was fully recovered by the settlement
	assert.True(t, d.AdvanceOutstanding.IsZero())
}

func TestLotProgressCountsSettledWorkOnly(t *testing.T) {
	f := newFixture(t)

	p, err := f.reports.LotProgress(context.Background(), f.lot.ID)
	require.NoError(t, err)

	// 100 pieces through 7 stages
	assert.Equal(t, int64(700), p.PotentialWork)
	// Only Ramesh's 60 settled collar pieces count as completed
	assert.Equal(t, int64(60), p.CompletedWork)
	assert.InDelta(t, 60.0/700.0*100, p.Percent, 0.001)

	byStage := make(map[ledger.StageID]StageProgress)
	for _, sp := range p.Stages {
		byStage[sp.StageID] = sp
	}
	// Issued conserves across the settlement split: 60 paid + 40 sibling
	assert.Equal(t, int64(100), byStage["stage-collar"].Issued)
	assert.Equal(t, int64(60), byStage["stage-collar"].Completed)
	assert.Equal(t, int64(50), byStage["stage-shoulder"].Issued)
	assert.Zero(t, byStage["stage-shoulder"].Completed)

	// Stage wages follow settled pieces at the rate each job carried
	assert.Equal(t, "240.00", byStage["stage-collar"].Wages.Display())
	assert.Equal(t, "0.00", byStage["stage-shoulder"].Wages.Display())
}

func TestLabourReport(t *testing.T) {
	f := newFixture(t)

	rows, err := f.reports.LabourReport(context.Background(), day, day)
	require.NoError(t, err)

	// Only Ramesh was paid in range
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, f.ramesh, r.WorkerID)
	assert.Equal(t, "Ramesh", r.WorkerName)
	assert.Equal(t, 1, r.JobsSettled)
	assert.Equal(t, int64(60), r.PiecesSettled)
	assert.Equal(t, "240.00", r.GrossEarned.Display()) // 60 x 4
	assert.Equal(t, "100.00", r.AdvanceCut.Display())
	assert.Equal(t, "140.00", r.NetPaid.Display())
	assert.True(t, r.AdvanceBalance.IsZero())
}

func TestLabourReportEmptyOutsideRange(t *testing.T) {
	f := newFixture(t)

	rows, err := f.reports.LabourReport(context.Background(),
		day.AddDate(0, 0, 1), day.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDailySummary(t *testing.T) {
	f := newFixture(t)

	d, err := f.reports.DailySummary(context.Background(), day)
	require.NoError(t, err)

	// Issuance: 100 + 50, plus the 40-piece carry-forward keeps the
	// original issuance date, so issued pieces stay conserved at 150 for
	// the day even though the split added a record.
	assert.Equal(t, int64(150), d.PiecesIssued)
	assert.Equal(t, 3, d.JobsIssued)

	assert.Equal(t, 1, d.PaymentsMade)
	assert.Equal(t, "240.00", d.GrossSettled.Display())
	assert.Equal(t, "140.00", d.NetPaidOut.Display())
	assert.Equal(t, "100.00", d.AdvancesGiven.Display())
	assert.Equal(t, "100.00", d.AdvancesTaken.Display())
}
