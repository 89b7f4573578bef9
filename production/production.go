/*
Package production manages the factory floor: the stage catalog, lots, and
the issuance of piece-work to workers.

PURPOSE:
  A lot is a batch of garments moving through a fixed sequence of stitching
  stages. This package creates lots with frozen per-stage rates, tracks lot
  status, and issues work: (worker, lot, stage, quantity) tuples whose
  piece-rate is resolved and frozen at issuance.

RATE RESOLUTION AT ISSUANCE:
  1. Worker's per-stage override rate, if the worker has one for the stage
  2. Otherwise the lot's snapshot rate for the stage
  The resolved rate is written into the JobWork and never re-derived;
  later edits to worker or catalog rates leave history untouched.

SEE ALSO:
  - settlement/: Consumes the pending JobWork records issued here
*/
package production

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rbstextile/piecework-engine/ledger"
)

// =============================================================================
// STAGE CATALOG
// =============================================================================

// DefaultStages is the stage catalog a fresh installation starts with: the
// standard t-shirt stitching sequence with typical piece-rates in rupees.
func DefaultStages() []ledger.Stage {
	return []ledger.Stage{
		{ID: "stage-shoulder", Name: "Shoulder Stitching", BaseRate: ledger.MustParseMoney("2.5")},
		{ID: "stage-collar", Name: "Collar / Round Neck", BaseRate: ledger.MustParseMoney("4")},
		{ID: "stage-sleeve", Name: "Sleeve Attach", BaseRate: ledger.MustParseMoney("3.5")},
		{ID: "stage-side", Name: "Side Stitching", BaseRate: ledger.MustParseMoney("3")},
		{ID: "stage-hem", Name: "Bottom & Sleeve Hem", BaseRate: ledger.MustParseMoney("2.5")},
		{ID: "stage-thread", Name: "Thread Cutting", BaseRate: ledger.MustParseMoney("1")},
		{ID: "stage-finishing", Name: "Finishing", BaseRate: ledger.MustParseMoney("1.5")},
	}
}

// SeedStages writes the default catalog for any stage not already present.
// Existing entries are left alone so rate edits survive restarts.
func SeedStages(ctx context.Context, s ledger.Store) error {
	existing, err := s.ListStages(ctx)
	if err != nil {
		return err
	}
	have := make(map[ledger.StageID]bool, len(existing))
	for _, st := range existing {
		have[st.ID] = true
	}
	for _, st := range DefaultStages() {
		if have[st.ID] {
			continue
		}
		if err := s.SaveStage(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SERVICE
// =============================================================================

// Service creates lots and issues work against them.
type Service struct {
	store ledger.TxStore
	now   func() time.Time
}

func NewService(store ledger.TxStore) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// NewLotInput is everything needed to open a lot. StageRates may override
// catalog base rates per stage; stages absent from the map snapshot the
// catalog rate.
type NewLotInput struct {
	LotNumber     string
	Date          time.Time
	Design        string
	Color         string
	Description   string
	ExtraDetails  []ledger.LotExtraDetail
	TotalQuantity int64
	StageRates    map[ledger.StageID]ledger.Money
}

// CreateLot opens a RUNNING lot, snapshotting the current stage catalog
// (with any per-lot overrides) into the lot. The snapshot is frozen: later
// catalog edits never change this lot's rates.
func (s *Service) CreateLot(ctx context.Context, in NewLotInput) (*ledger.Lot, error) {
	if in.TotalQuantity <= 0 {
		return nil, fmt.Errorf("lot quantity %d: %w", in.TotalQuantity, ledger.ErrInvalidQuantity)
	}
	if strings.TrimSpace(in.LotNumber) == "" {
		return nil, fmt.Errorf("lot number: %w", ledger.ErrMissingField)
	}

	var lot *ledger.Lot
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		catalog, err := tx.ListStages(ctx)
		if err != nil {
			return err
		}
		snapshot := make([]ledger.LotStageRate, 0, len(catalog))
		for _, st := range catalog {
			rate := st.BaseRate
			if override, ok := in.StageRates[st.ID]; ok {
				rate = override
			}
			if rate.IsNegative() {
				return fmt.Errorf("stage %s rate %s: %w", st.ID, rate, ledger.ErrInvalidAmount)
			}
			snapshot = append(snapshot, ledger.LotStageRate{ID: st.ID, Name: st.Name, Rate: rate})
		}

		seq, err := tx.NextID(ctx, ledger.SeqLot)
		if err != nil {
			return err
		}
		date := in.Date
		if date.IsZero() {
			date = s.now().UTC().Truncate(24 * time.Hour)
		}
		l := ledger.Lot{
			ID:            ledger.FormatLotID(seq),
			LotNumber:     in.LotNumber,
			Date:          date,
			Design:        in.Design,
			Color:         in.Color,
			Description:   in.Description,
			ExtraDetails:  in.ExtraDetails,
			TotalQuantity: in.TotalQuantity,
			Status:        ledger.LotRunning,
			StageRates:    snapshot,
			CreatedAt:     s.now().UTC(),
		}
		if err := tx.SaveLot(ctx, l); err != nil {
			return err
		}
		lot = &l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lot, nil
}

// SetLotStatus moves a lot between RUNNING and COMPLETED. Completing a lot
// stops new issuance but never touches existing JobWork records.
func (s *Service) SetLotStatus(ctx context.Context, id ledger.LotID, status ledger.LotStatus) (*ledger.Lot, error) {
	lot, err := s.store.GetLot(ctx, id)
	if err != nil {
		return nil, err
	}
	lot.Status = status
	if err := s.store.SaveLot(ctx, *lot); err != nil {
		return nil, err
	}
	return lot, nil
}

// =============================================================================
// WORK ISSUANCE
// =============================================================================

// IssueInput describes one handover of work to a worker.
type IssueInput struct {
	WorkerID ledger.WorkerID
	LotID    ledger.LotID
	StageID  ledger.StageID
	Date     time.Time
	Qty      int64
}

// IssueWork hands Qty pieces of one stage to a worker and freezes the
// piece-rate into the record. Fails when the worker is inactive, the lot is
// not RUNNING, the stage is not in the lot's snapshot, or Qty is not
// positive.
func (s *Service) IssueWork(ctx context.Context, in IssueInput) (*ledger.JobWork, error) {
	if in.Qty <= 0 {
		return nil, fmt.Errorf("issue quantity %d: %w", in.Qty, ledger.ErrInvalidQuantity)
	}

	var job *ledger.JobWork
	err := s.store.WithTx(ctx, func(tx ledger.Store) error {
		worker, err := tx.GetWorker(ctx, in.WorkerID)
		if err != nil {
			return err
		}
		if !worker.Active {
			return fmt.Errorf("worker %s: %w", worker.ID, ledger.ErrWorkerInactive)
		}

		lot, err := tx.GetLot(ctx, in.LotID)
		if err != nil {
			return err
		}
		if lot.Status != ledger.LotRunning {
			return fmt.Errorf("lot %s is %s: %w", lot.ID, lot.Status, ledger.ErrLotNotRunning)
		}

		snap, ok := lot.StageRate(in.StageID)
		if !ok {
			return fmt.Errorf("stage %s not in lot %s: %w", in.StageID, lot.ID, ledger.ErrStageNotInLot)
		}

		rate := snap.Rate
		if override, ok := worker.Rates[in.StageID]; ok {
			rate = override
		}

		seq, err := tx.NextID(ctx, ledger.SeqJobWork)
		if err != nil {
			return err
		}
		date := in.Date
		if date.IsZero() {
			date = s.now().UTC().Truncate(24 * time.Hour)
		}
		j := ledger.JobWork{
			ID:         ledger.FormatJobWorkID(seq),
			WorkerID:   in.WorkerID,
			LotID:      in.LotID,
			StageID:    in.StageID,
			Date:       date,
			QtyGiven:   in.Qty,
			RateAtTime: rate,
			CreatedAt:  s.now().UTC(),
		}
		if err := tx.AddJobWork(ctx, j); err != nil {
			return err
		}
		job = &j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}
