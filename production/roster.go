package production

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rbstextile/piecework-engine/ledger"
)

// =============================================================================
// ROSTER - Worker lifecycle
// =============================================================================

// Roster manages the worker list. Workers are soft-deactivated, never
// deleted: their JobWork and advance history must stay resolvable.
type Roster struct {
	store ledger.TxStore
	now   func() time.Time
}

func NewRoster(store ledger.TxStore) *Roster {
	return &Roster{store: store, now: time.Now}
}

func (r *Roster) WithClock(now func() time.Time) *Roster {
	r.now = now
	return r
}

// WorkerInput carries the editable fields of a worker.
type WorkerInput struct {
	Name          string
	Mobile        string
	Skill         string
	Rates         map[ledger.StageID]ledger.Money
	PaymentMethod ledger.PaymentMethod
	UPIID         string
}

func (in *WorkerInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("worker name: %w", ledger.ErrMissingField)
	}
	for stage, rate := range in.Rates {
		if rate.IsNegative() {
			return fmt.Errorf("override rate for stage %s is %s: %w",
				stage, rate, ledger.ErrInvalidAmount)
		}
	}
	switch in.PaymentMethod {
	case "", ledger.MethodCash, ledger.MethodUPI:
	default:
		return fmt.Errorf("payment method %q: %w", in.PaymentMethod, ledger.ErrMissingField)
	}
	return nil
}

// Add registers a new active worker with a zero advance balance.
func (r *Roster) Add(ctx context.Context, in WorkerInput) (*ledger.Worker, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	method := in.PaymentMethod
	if method == "" {
		method = ledger.MethodCash
	}
	w := ledger.Worker{
		ID:             ledger.WorkerID("w-" + uuid.NewString()),
		Name:           in.Name,
		Mobile:         in.Mobile,
		Skill:          in.Skill,
		Rates:          in.Rates,
		AdvanceBalance: ledger.ZeroMoney(),
		PaymentMethod:  method,
		UPIID:          in.UPIID,
		Active:         true,
		CreatedAt:      r.now().UTC(),
	}
	if err := r.store.SaveWorker(ctx, w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Update replaces the editable fields of a worker. The advance balance,
// active flag and creation time are owned elsewhere and never touched here.
func (r *Roster) Update(ctx context.Context, id ledger.WorkerID, in WorkerInput) (*ledger.Worker, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var updated *ledger.Worker
	err := r.store.WithTx(ctx, func(tx ledger.Store) error {
		w, err := tx.GetWorker(ctx, id)
		if err != nil {
			return err
		}
		w.Name = in.Name
		w.Mobile = in.Mobile
		w.Skill = in.Skill
		w.Rates = in.Rates
		if in.PaymentMethod != "" {
			w.PaymentMethod = in.PaymentMethod
		}
		w.UPIID = in.UPIID
		if err := tx.SaveWorker(ctx, *w); err != nil {
			return err
		}
		updated = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetActive toggles whether new work may be issued to the worker. History
// is unaffected either way.
func (r *Roster) SetActive(ctx context.Context, id ledger.WorkerID, active bool) (*ledger.Worker, error) {
	var updated *ledger.Worker
	err := r.store.WithTx(ctx, func(tx ledger.Store) error {
		w, err := tx.GetWorker(ctx, id)
		if err != nil {
			return err
		}
		w.Active = active
		if err := tx.SaveWorker(ctx, *w); err != nil {
			return err
		}
		updated = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
