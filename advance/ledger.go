/*
Package advance maintains the worker advance ledger.

PURPOSE:
  Workers draw cash advances against future wages. This package owns the
  append-only transaction log of those advances and the denormalized
  balance kept on the worker record.

KEY CONCEPTS:
  - GIVEN:     Cash handed to the worker, balance goes up
  - RECOVERED: Money taken back, usually deducted from a settlement,
               balance goes down
  - The log is the source of truth; the stored balance is a cache that
    moves in the same transaction as every append.

BALANCE MAY GO NEGATIVE:
  Recovery is not clamped against the stored balance. A worker whose
  advance was recovered twice, or recovered against a stale balance,
  carries a negative balance until the next advance washes it out. The
  settlement engine treats a negative balance as zero when deducting.

SEE ALSO:
  - settlement/: Appends RECOVERED entries inside its finalize transaction
*/
package advance

import (
	"context"
	"fmt"
	"time"

	"github.com/rbstextile/piecework-engine/ledger"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger appends advance transactions and keeps the worker's stored
// balance consistent with the log.
type Ledger struct {
	store ledger.TxStore
	now   func() time.Time
}

func NewLedger(store ledger.TxStore) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Give records a cash advance to the worker and raises the stored balance,
// both in one transaction. Amount must be strictly positive.
func (l *Ledger) Give(ctx context.Context, workerID ledger.WorkerID, amount ledger.Money, date time.Time, note string) (*ledger.AdvanceTransaction, error) {
	return l.append(ctx, workerID, amount, date, ledger.AdvanceGiven, note)
}

// Recover records money taken back from the worker and lowers the stored
// balance. Not clamped: recovering more than the balance drives it
// negative rather than failing.
func (l *Ledger) Recover(ctx context.Context, workerID ledger.WorkerID, amount ledger.Money, date time.Time, note string) (*ledger.AdvanceTransaction, error) {
	return l.append(ctx, workerID, amount, date, ledger.AdvanceRecovered, note)
}

func (l *Ledger) append(ctx context.Context, workerID ledger.WorkerID, amount ledger.Money, date time.Time, txType ledger.AdvanceTxType, note string) (*ledger.AdvanceTransaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("advance amount %s: %w", amount, ledger.ErrInvalidAmount)
	}

	entry := ledger.AdvanceTransaction{
		ID:        ledger.NewAdvanceTxID(),
		WorkerID:  workerID,
		Amount:    amount,
		Date:      date,
		Type:      txType,
		Note:      note,
		CreatedAt: l.now().UTC(),
	}

	err := l.store.WithTx(ctx, func(s ledger.Store) error {
		worker, err := s.GetWorker(ctx, workerID)
		if err != nil {
			return err
		}
		if err := s.AddAdvanceTransaction(ctx, entry); err != nil {
			return err
		}
		worker.AdvanceBalance = worker.AdvanceBalance.Add(entry.Delta())
		return s.SaveWorker(ctx, *worker)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// History returns the worker's advance log in insertion order.
func (l *Ledger) History(ctx context.Context, workerID ledger.WorkerID) ([]ledger.AdvanceTransaction, error) {
	return l.store.AdvancesByWorker(ctx, workerID)
}

// =============================================================================
// DERIVATION AND RECONCILIATION
// =============================================================================

// BalanceFromLog derives the worker's balance purely from the transaction
// log: sum of GIVEN minus sum of RECOVERED.
func (l *Ledger) BalanceFromLog(ctx context.Context, workerID ledger.WorkerID) (ledger.Money, error) {
	entries, err := l.store.AdvancesByWorker(ctx, workerID)
	if err != nil {
		return ledger.ZeroMoney(), err
	}
	balance := ledger.ZeroMoney()
	for _, e := range entries {
		balance = balance.Add(e.Delta())
	}
	return balance, nil
}

// Reconcile checks the stored balance against the log-derived one and
// returns a BalanceMismatchError when they disagree. Read-only; fixing a
// drift is an operator decision, not an automatic one.
func (l *Ledger) Reconcile(ctx context.Context, workerID ledger.WorkerID) error {
	worker, err := l.store.GetWorker(ctx, workerID)
	if err != nil {
		return err
	}
	derived, err := l.BalanceFromLog(ctx, workerID)
	if err != nil {
		return err
	}
	if !worker.AdvanceBalance.Equal(derived) {
		return &ledger.BalanceMismatchError{
			WorkerID: workerID,
			Stored:   worker.AdvanceBalance,
			Derived:  derived,
		}
	}
	return nil
}
