/*
Package settlement converts outstanding piece-rate work into payments.

PURPOSE:
  This is the wage computation and job-splitting engine. Given a worker's
  pending JobWork records and the quantities they actually finished, it
  computes gross wage, deducts the worker's advance, pays the net, closes
  the paid portion of each job and carries any unpaid remainder forward as
  a fresh pending record.

KEY CONCEPTS:
  - Candidate: One worker's pending jobs + advance balance + payout method
  - Entered:   Caller-supplied map of job id -> quantity finished now
  - Summary:   Pure wage arithmetic, re-derivable for preview before commit
  - Finalize:  The single-shot commit, atomic at the storage layer

CRITICAL INVARIANTS:
  1. Every issued unit is accounted for exactly once across paid and
     unpaid records: originalQtyGiven == paid.QtyGiven + sibling.QtyGiven.
  2. A closed job has QtyGiven == QtyCompleted == the entered quantity and
     carries the payment id. It never re-enters the pending partition.
  3. advanceDeducted = min(advanceBalance, gross); net = gross - deducted.
     Net is never negative and the advance is never over-recovered.
  4. Jobs with a zero entered quantity are untouched - still pending,
     still fully unpaid, excluded from the payment.
  5. If every entered quantity is zero the settlement is rejected whole:
     no payment, no mutation.

FINALIZE IS NOT IDEMPOTENT:
  Calling it twice for the same worker settles whatever is pending at each
  call. Closed jobs stay out of later candidates only because they carry a
  payment id.

SEE ALSO:
  - ledger/: Record types and the transactional store contract
  - advance/: The advance ledger the deduction is recovered into
*/
package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/rbstextile/piecework-engine/ledger"
)

// =============================================================================
// CANDIDATE - One worker's pending settlement
// =============================================================================

// Candidate is one worker's group of unpaid JobWork records together with
// the advance balance and payout method the settlement will use.
//
// A candidate whose worker record has been deleted still settles: the name
// falls back to "Unknown", the balance to zero, the method to cash.
// Referential integrity is advisory here, not enforced.
type Candidate struct {
	WorkerID       ledger.WorkerID
	WorkerName     string
	AdvanceBalance ledger.Money
	PaymentMethod  ledger.PaymentMethod
	UPIID          string
	PendingJobs    []ledger.JobWork
}

// Entered maps a pending job to the quantity the worker finished now.
// Jobs absent from the map (or mapped to zero) are left out of the
// settlement entirely.
type Entered map[ledger.JobWorkID]int64

// Summary is the wage arithmetic of one settlement. Pure data, safe to
// recompute for preview display before commit.
type Summary struct {
	Gross           ledger.Money
	AdvanceDeducted ledger.Money
	Net             ledger.Money
}

// Result is everything a finalized settlement produced.
type Result struct {
	Payment     ledger.Payment
	PaidJobs    []ledger.JobWork // rewritten in place to their paid shape
	BalanceJobs []ledger.JobWork // carry-forward siblings, if any
	Recovery    *ledger.AdvanceTransaction
	Summary     Summary
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine groups pending work and runs settlements against a transactional
// store.
type Engine struct {
	store ledger.TxStore
	now   func() time.Time
}

func NewEngine(store ledger.TxStore) *Engine {
	return &Engine{store: store, now: time.Now}
}

// WithClock overrides the engine's clock. Tests use this to make sibling
// timestamps deterministic.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// PendingByWorker partitions every JobWork with no payment id by worker.
// Each group plus the worker's advance balance and payout method is one
// pending settlement candidate. Order follows first pending job per worker.
func (e *Engine) PendingByWorker(ctx context.Context) ([]Candidate, error) {
	pending, err := e.store.PendingJobWorks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending job works: %w", err)
	}
	workers, err := e.store.ListWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load workers: %w", err)
	}
	return groupPending(pending, workers), nil
}

// CandidateFor returns the pending settlement candidate for one worker, or
// nil if the worker has no pending work.
func (e *Engine) CandidateFor(ctx context.Context, workerID ledger.WorkerID) (*Candidate, error) {
	candidates, err := e.PendingByWorker(ctx)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if candidates[i].WorkerID == workerID {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

func groupPending(pending []ledger.JobWork, workers []ledger.Worker) []Candidate {
	byID := make(map[ledger.WorkerID]*ledger.Worker, len(workers))
	for i := range workers {
		byID[workers[i].ID] = &workers[i]
	}

	index := make(map[ledger.WorkerID]int)
	var candidates []Candidate
	for _, job := range pending {
		i, ok := index[job.WorkerID]
		if !ok {
			c := Candidate{
				WorkerID:       job.WorkerID,
				WorkerName:     "Unknown",
				AdvanceBalance: ledger.ZeroMoney(),
				PaymentMethod:  ledger.MethodCash,
			}
			if w := byID[job.WorkerID]; w != nil {
				c.WorkerName = w.Name
				c.AdvanceBalance = w.AdvanceBalance
				c.PaymentMethod = w.PaymentMethod
				c.UPIID = w.UPIID
			}
			i = len(candidates)
			index[job.WorkerID] = i
			candidates = append(candidates, c)
		}
		candidates[i].PendingJobs = append(candidates[i].PendingJobs, job)
	}
	return candidates
}

// =============================================================================
// SUMMARY - Pure wage arithmetic
// =============================================================================

// ValidateEntered rejects quantities that are negative, exceed the issued
// quantity of their job, or reference jobs outside the candidate. Rejection
// happens here, at input time, never inside the arithmetic.
func ValidateEntered(c *Candidate, entered Entered) error {
	inCandidate := make(map[ledger.JobWorkID]int64, len(c.PendingJobs))
	for _, job := range c.PendingJobs {
		inCandidate[job.ID] = job.QtyGiven
	}
	for id, qty := range entered {
		issued, ok := inCandidate[id]
		if !ok {
			return fmt.Errorf("job %s is not pending for worker %s: %w",
				id, c.WorkerID, ledger.ErrJobWorkNotFound)
		}
		if qty < 0 {
			return fmt.Errorf("job %s: entered %d: %w", id, qty, ledger.ErrInvalidQuantity)
		}
		if qty > issued {
			return &ledger.QtyExceedsIssuedError{JobWorkID: id, Issued: issued, Entered: qty}
		}
	}
	return nil
}

// Summarize computes the settlement arithmetic for a candidate:
//
//	gross  = sum(enteredQty * rateAtTime) over the candidate's jobs
//	advance = min(advanceBalance, gross)
//	net     = gross - advance
//
// No side effects; call freely for preview.
func Summarize(c *Candidate, entered Entered) (Summary, error) {
	if err := ValidateEntered(c, entered); err != nil {
		return Summary{}, err
	}

	gross := ledger.ZeroMoney()
	for _, job := range c.PendingJobs {
		if qty := entered[job.ID]; qty > 0 {
			gross = gross.Add(job.RateAtTime.MulQty(qty))
		}
	}

	advance := c.AdvanceBalance.Max(ledger.ZeroMoney()).Min(gross)
	return Summary{
		Gross:           gross,
		AdvanceDeducted: advance,
		Net:             gross.Sub(advance),
	}, nil
}

// =============================================================================
// FINALIZE - Single-shot atomic commit
// =============================================================================

// Finalize settles the worker's pending work with the entered quantities.
// All mutations - job rewrites, carry-forward siblings, the payment, the
// advance recovery and the worker balance - commit in one store
// transaction or not at all.
//
// Returns ledger.ErrNothingToSettle (and mutates nothing) when every
// entered quantity is zero.
func (e *Engine) Finalize(ctx context.Context, workerID ledger.WorkerID, entered Entered) (*Result, error) {
	var result *Result
	err := e.store.WithTx(ctx, func(s ledger.Store) error {
		r, err := e.finalize(ctx, s, workerID, entered)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) finalize(ctx context.Context, s ledger.Store, workerID ledger.WorkerID, entered Entered) (*Result, error) {
	// Re-read the pending partition inside the transaction; the candidate
	// handed to the preview may be stale.
	pending, err := s.PendingJobWorks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending job works: %w", err)
	}
	workers, err := s.ListWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load workers: %w", err)
	}

	var candidate *Candidate
	for _, c := range groupPending(pending, workers) {
		if c.WorkerID == workerID {
			cc := c
			candidate = &cc
			break
		}
	}
	if candidate == nil {
		return nil, fmt.Errorf("worker %s: %w", workerID, ledger.ErrNothingToSettle)
	}

	summary, err := Summarize(candidate, entered)
	if err != nil {
		return nil, err
	}
	if !anyNonzero(candidate, entered) {
		return nil, fmt.Errorf("worker %s: %w", workerID, ledger.ErrNothingToSettle)
	}

	seq, err := s.NextID(ctx, ledger.SeqPayment)
	if err != nil {
		return nil, err
	}
	paymentID := ledger.FormatPaymentID(seq)
	now := e.now().UTC()

	result := &Result{Summary: summary}
	for _, job := range candidate.PendingJobs {
		qty := entered[job.ID]
		if qty == 0 {
			continue // untouched: still pending, still fully unpaid
		}

		balanceQty := job.QtyGiven - qty

		paid := job
		paid.QtyGiven = qty
		paid.QtyCompleted = qty
		paid.PaymentID = paymentID
		if err := s.UpdateJobWork(ctx, paid); err != nil {
			return nil, err
		}
		result.PaidJobs = append(result.PaidJobs, paid)

		if balanceQty > 0 {
			sibSeq, err := s.NextID(ctx, ledger.SeqJobWork)
			if err != nil {
				return nil, err
			}
			sibling := job
			sibling.ID = ledger.FormatJobWorkID(sibSeq)
			sibling.QtyGiven = balanceQty
			sibling.QtyCompleted = 0
			sibling.PaymentID = ""
			sibling.CreatedAt = laterThan(now, job.CreatedAt)
			if err := s.AddJobWork(ctx, sibling); err != nil {
				return nil, err
			}
			result.BalanceJobs = append(result.BalanceJobs, sibling)
		}
	}

	paidIDs := make([]ledger.JobWorkID, len(result.PaidJobs))
	for i, job := range result.PaidJobs {
		paidIDs[i] = job.ID
	}

	payment := ledger.Payment{
		ID:              paymentID,
		WorkerID:        workerID,
		JobWorkIDs:      paidIDs,
		TotalAmount:     summary.Gross,
		AdvanceDeducted: summary.AdvanceDeducted,
		NetPayable:      summary.Net,
		Method:          candidate.PaymentMethod,
		Date:            now,
		Status:          ledger.PaymentPaid,
		CreatedAt:       now,
	}
	if err := s.AddPayment(ctx, payment); err != nil {
		return nil, err
	}
	result.Payment = payment

	if summary.AdvanceDeducted.IsPositive() {
		recovery := ledger.AdvanceTransaction{
			ID:        ledger.NewAdvanceTxID(),
			WorkerID:  workerID,
			Amount:    summary.AdvanceDeducted,
			Date:      now,
			Type:      ledger.AdvanceRecovered,
			Note:      fmt.Sprintf("Auto-recovered from settlement %s", paymentID),
			CreatedAt: now,
		}
		if err := s.AddAdvanceTransaction(ctx, recovery); err != nil {
			return nil, err
		}
		result.Recovery = &recovery

		// Stored balance moves inside the same transaction as the log
		// append; the two can never diverge.
		worker, err := s.GetWorker(ctx, workerID)
		if err == nil {
			worker.AdvanceBalance = worker.AdvanceBalance.Sub(summary.AdvanceDeducted)
			if err := s.SaveWorker(ctx, *worker); err != nil {
				return nil, err
			}
		} else if !ledger.IsNotFound(err) {
			return nil, err
		}
	}

	return result, nil
}

func anyNonzero(c *Candidate, entered Entered) bool {
	for _, job := range c.PendingJobs {
		if entered[job.ID] > 0 {
			return true
		}
	}
	return false
}

// laterThan returns now, pushed just past prev if the clock has not
// advanced. Keeps the carry-forward sibling strictly after its original in
// insertion order.
func laterThan(now, prev time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Millisecond)
}
