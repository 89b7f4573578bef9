/*
Package reports derives read-only aggregations from the work ledger.

PURPOSE:
  Everything here is a projection: recomputed from JobWork, Payment and
  AdvanceTransaction records on every call, never stored. The ledger is
  the single source of truth; a report can always be thrown away and
  rebuilt.

REPORTS:
  - Dashboard:   Headline counts and outstanding amounts
  - LotProgress: Per-stage completion against a lot's potential work
  - LabourReport: Per-worker earnings and payouts over a date range
  - DailySummary: One day's issuance, settlement and cash movement
*/
package reports

import (
	"context"
	"time"

	"github.com/rbstextile/piecework-engine/ledger"
)

// Service computes projections over a store. Read-only; a plain Store is
// enough, no transactions are ever opened.
type Service struct {
	store ledger.Store
}

func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Dashboard is the headline view of the factory's current state.
type Dashboard struct {
	ActiveWorkers      int
	RunningLots        int
	PendingJobs        int
	PendingQty         int64        // unpaid pieces on the floor
	PendingAmount      ledger.Money // what settling everything now would gross
	AdvanceOutstanding ledger.Money // sum of positive worker balances
}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	workers, err := s.store.ListWorkers(ctx)
	if err != nil {
		return nil, err
	}
	lots, err := s.store.ListLots(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.PendingJobWorks(ctx)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		PendingJobs:        len(pending),
		PendingAmount:      ledger.ZeroMoney(),
		AdvanceOutstanding: ledger.ZeroMoney(),
	}
	for _, w := range workers {
		if w.Active {
			d.ActiveWorkers++
		}
		if w.AdvanceBalance.IsPositive() {
			d.AdvanceOutstanding = d.AdvanceOutstanding.Add(w.AdvanceBalance)
		}
	}
	for _, l := range lots {
		if l.Status == ledger.LotRunning {
			d.RunningLots++
		}
	}
	for _, j := range pending {
		d.PendingQty += j.QtyGiven
		d.PendingAmount = d.PendingAmount.Add(j.RateAtTime.MulQty(j.QtyGiven))
	}
	return d, nil
}

// =============================================================================
// LOT PROGRESS
// =============================================================================

// StageProgress is one stage's issued and settled quantities within a lot.
type StageProgress struct {
	StageID   ledger.StageID
	StageName string
	Issued    int64        // pieces handed out, paid or not
	Completed int64        // pieces settled and paid
	Wages     ledger.Money // settled pieces at the rate each job carried
}

// LotProgress measures a lot against its potential work: every piece must
// pass every stage, so potential = TotalQuantity * len(StageRates).
type LotProgress struct {
	LotID         ledger.LotID
	LotNumber     string
	Status        ledger.LotStatus
	TotalQuantity int64
	PotentialWork int64
	CompletedWork int64
	Percent       float64
	Stages        []StageProgress
}

func (s *Service) LotProgress(ctx context.Context, id ledger.LotID) (*LotProgress, error) {
	lot, err := s.store.GetLot(ctx, id)
	if err != nil {
		return nil, err
	}
	jobs, err := s.store.ListJobWorks(ctx)
	if err != nil {
		return nil, err
	}

	p := &LotProgress{
		LotID:         lot.ID,
		LotNumber:     lot.LotNumber,
		Status:        lot.Status,
		TotalQuantity: lot.TotalQuantity,
		PotentialWork: lot.TotalQuantity * int64(len(lot.StageRates)),
	}
	index := make(map[ledger.StageID]int, len(lot.StageRates))
	for i, sr := range lot.StageRates {
		index[sr.ID] = i
		p.Stages = append(p.Stages, StageProgress{
			StageID:   sr.ID,
			StageName: sr.Name,
			Wages:     ledger.ZeroMoney(),
		})
	}
	for _, j := range jobs {
		if j.LotID != lot.ID {
			continue
		}
		i, ok := index[j.StageID]
		if !ok {
			continue // issued against a stage later removed from the snapshot
		}
		p.Stages[i].Issued += j.QtyGiven
		p.Stages[i].Completed += j.QtyCompleted
		p.Stages[i].Wages = p.Stages[i].Wages.Add(j.RateAtTime.MulQty(j.QtyCompleted))
		p.CompletedWork += j.QtyCompleted
	}
	if p.PotentialWork > 0 {
		p.Percent = float64(p.CompletedWork) / float64(p.PotentialWork) * 100
	}
	return p, nil
}

// =============================================================================
// LABOUR REPORT
// =============================================================================

// WorkerEarnings is one worker's row in the labour report.
type WorkerEarnings struct {
	WorkerID       ledger.WorkerID
	WorkerName     string
	JobsSettled    int
	PiecesSettled  int64
	GrossEarned    ledger.Money
	AdvanceCut     ledger.Money
	NetPaid        ledger.Money
	AdvanceBalance ledger.Money
}

// LabourReport aggregates payments per worker over [from, to] inclusive,
// by payment date. Workers with no payments in range are omitted.
func (s *Service) LabourReport(ctx context.Context, from, to time.Time) ([]WorkerEarnings, error) {
	payments, err := s.store.ListPayments(ctx)
	if err != nil {
		return nil, err
	}
	workers, err := s.store.ListWorkers(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[ledger.WorkerID]*ledger.Worker, len(workers))
	for i := range workers {
		names[workers[i].ID] = &workers[i]
	}

	index := make(map[ledger.WorkerID]int)
	var rows []WorkerEarnings
	for _, p := range payments {
		if !inRange(p.Date, from, to) {
			continue
		}
		i, ok := index[p.WorkerID]
		if !ok {
			row := WorkerEarnings{
				WorkerID:       p.WorkerID,
				WorkerName:     "Unknown",
				GrossEarned:    ledger.ZeroMoney(),
				AdvanceCut:     ledger.ZeroMoney(),
				NetPaid:        ledger.ZeroMoney(),
				AdvanceBalance: ledger.ZeroMoney(),
			}
			if w := names[p.WorkerID]; w != nil {
				row.WorkerName = w.Name
				row.AdvanceBalance = w.AdvanceBalance
			}
			i = len(rows)
			index[p.WorkerID] = i
			rows = append(rows, row)
		}
		rows[i].JobsSettled += len(p.JobWorkIDs)
		rows[i].GrossEarned = rows[i].GrossEarned.Add(p.TotalAmount)
		rows[i].AdvanceCut = rows[i].AdvanceCut.Add(p.AdvanceDeducted)
		rows[i].NetPaid = rows[i].NetPaid.Add(p.NetPayable)
	}

	// Settled piece counts come from the closed jobs each payment names.
	jobs, err := s.store.ListJobWorks(ctx)
	if err != nil {
		return nil, err
	}
	byJob := make(map[ledger.JobWorkID]int64, len(jobs))
	for _, j := range jobs {
		byJob[j.ID] = j.QtyCompleted
	}
	for _, p := range payments {
		if !inRange(p.Date, from, to) {
			continue
		}
		if i, ok := index[p.WorkerID]; ok {
			for _, id := range p.JobWorkIDs {
				rows[i].PiecesSettled += byJob[id]
			}
		}
	}
	return rows, nil
}

// =============================================================================
// DAILY SUMMARY
// =============================================================================

// DailySummary is one calendar day's activity.
type DailySummary struct {
	Date           time.Time
	PiecesIssued   int64
	JobsIssued     int
	PaymentsMade   int
	GrossSettled   ledger.Money
	NetPaidOut     ledger.Money
	AdvancesGiven  ledger.Money
	AdvancesTaken  ledger.Money // recovered, by deduction or repayment
}

func (s *Service) DailySummary(ctx context.Context, day time.Time) (*DailySummary, error) {
	jobs, err := s.store.ListJobWorks(ctx)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.ListPayments(ctx)
	if err != nil {
		return nil, err
	}
	advances, err := s.store.ListAdvances(ctx)
	if err != nil {
		return nil, err
	}

	d := &DailySummary{
		Date:          day,
		GrossSettled:  ledger.ZeroMoney(),
		NetPaidOut:    ledger.ZeroMoney(),
		AdvancesGiven: ledger.ZeroMoney(),
		AdvancesTaken: ledger.ZeroMoney(),
	}
	for _, j := range jobs {
		if sameDay(j.Date, day) {
			d.JobsIssued++
			d.PiecesIssued += j.QtyGiven
		}
	}
	for _, p := range payments {
		if sameDay(p.Date, day) {
			d.PaymentsMade++
			d.GrossSettled = d.GrossSettled.Add(p.TotalAmount)
			d.NetPaidOut = d.NetPaidOut.Add(p.NetPayable)
		}
	}
	for _, a := range advances {
		if !sameDay(a.Date, day) {
			continue
		}
		if a.Type == ledger.AdvanceGiven {
			d.AdvancesGiven = d.AdvancesGiven.Add(a.Amount)
		} else {
			d.AdvancesTaken = d.AdvancesTaken.Add(a.Amount)
		}
	}
	return d, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func inRange(t, from, to time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	u := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(f) && !day.After(u)
}
