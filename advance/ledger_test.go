package advance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rbstextile/piecework-engine/ledger"
	"github.com/rbstextile/piecework-engine/ledger/store"
)

var testClock = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*Ledger, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	require.NoError(t, mem.SaveWorker(context.Background(), ledger.Worker{
		ID:             "w1",
		Name:           "Ramesh",
		AdvanceBalance: ledger.ZeroMoney(),
		PaymentMethod:  ledger.MethodCash,
		Active:         true,
		CreatedAt:      testClock.Add(-time.Hour),
	}))
	return NewLedger(mem).WithClock(func() time.Time { return testClock }), mem
}

func TestGiveRaisesBalanceAndAppendsLog(t *testing.T) {
	// GIVEN a worker with no advance
	l, mem := newTestLedger(t)
	ctx := context.Background()

	// WHEN giving 500
	entry, err := l.Give(ctx, "w1", ledger.NewMoneyFromInt(500), testClock, "Festival advance")
	require.NoError(t, err)

	// THEN the log holds one GIVEN entry and the balance moved with it
	assert.Equal(t, ledger.AdvanceGiven, entry.Type)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "Festival advance", entry.Note)

	w, err := mem.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, w.AdvanceBalance.Equal(ledger.NewMoneyFromInt(500)))

	history, err := l.History(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entry.ID, history[0].ID)
}

func TestRecoverLowersBalance(t *testing.T) {
	l, mem := newTestLedger(t)
	ctx := context.Background()
	_, err := l.Give(ctx, "w1", ledger.NewMoneyFromInt(500), testClock, "")
	require.NoError(t, err)

	_, err = l.Recover(ctx, "w1", ledger.NewMoneyFromInt(200), testClock, "Partial repayment")
	require.NoError(t, err)

	w, err := mem.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, w.AdvanceBalance.Equal(ledger.NewMoneyFromInt(300)))
}

func TestRecoverBeyondBalanceGoesNegative(t *testing.T) {
	// GIVEN a worker holding 100
	l, mem := newTestLedger(t)
	ctx := context.Background()
	_, err := l.Give(ctx, "w1", ledger.NewMoneyFromInt(100), testClock, "")
	require.NoError(t, err)

	// WHEN recovering 150
	_, err = l.Recover(ctx, "w1", ledger.NewMoneyFromInt(150), testClock, "")
	require.NoError(t, err)

	// THEN the balance is -50, not an error and not clamped
	w, err := mem.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "-50.00", w.AdvanceBalance.Display())
}

func TestNonPositiveAmountsRejected(t *testing.T) {
	l, mem := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Give(ctx, "w1", ledger.ZeroMoney(), testClock, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = l.Recover(ctx, "w1", ledger.NewMoneyFromInt(-10), testClock, "")
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	// AND nothing was written
	history, err := l.History(ctx, "w1")
	require.NoError(t, err)
	assert.Empty(t, history)
	w, err := mem.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, w.AdvanceBalance.IsZero())
}

func TestUnknownWorkerRejectedAtomically(t *testing.T) {
	l, mem := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Give(ctx, "w-missing", ledger.NewMoneyFromInt(100), testClock, "")
	assert.ErrorIs(t, err, ledger.ErrWorkerNotFound)

	// AND no orphan log entry leaked
	entries, err := mem.ListAdvances(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBalanceFromLogMatchesStored(t *testing.T) {
	// GIVEN a sequence of gives and recoveries
	l, mem := newTestLedger(t)
	ctx := context.Background()
	_, err := l.Give(ctx, "w1", ledger.NewMoneyFromInt(500), testClock, "")
	require.NoError(t, err)
	_, err = l.Recover(ctx, "w1", ledger.MustParseMoney("150.50"), testClock, "")
	require.NoError(t, err)
	_, err = l.Give(ctx, "w1", ledger.MustParseMoney("75.25"), testClock, "")
	require.NoError(t, err)

	// WHEN deriving the balance from the log alone
	derived, err := l.BalanceFromLog(ctx, "w1")
	require.NoError(t, err)

	// THEN it equals the stored balance exactly
	assert.Equal(t, "424.75", derived.Display())
	w, err := mem.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, w.AdvanceBalance.Equal(derived))

	// AND reconciliation passes
	assert.NoError(t, l.Reconcile(ctx, "w1"))
}

func TestReconcileDetectsDrift(t *testing.T) {
	// GIVEN a stored balance that was edited outside the ledger
	l, mem := newTestLedger(t)
	ctx := context.Background()
	_, err := l.Give(ctx, "w1", ledger.NewMoneyFromInt(500), testClock, "")
	require.NoError(t, err)

	w, err := mem.GetWorker(ctx, "w1")
	require.NoError(t, err)
	w.AdvanceBalance = ledger.NewMoneyFromInt(999)
	require.NoError(t, mem.SaveWorker(ctx, *w))

	// WHEN reconciling
	err = l.Reconcile(ctx, "w1")

	// THEN the drift is reported with both figures
	var mismatch *ledger.BalanceMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "999.00", mismatch.Stored.Display())
	assert.Equal(t, "500.00", mismatch.Derived.Display())
}
