/*
seed.go - Demo data for a fresh database

PURPOSE:
  Loads a small, realistic factory snapshot so the API is explorable
  immediately: three workers, one running lot, issued work across stages,
  and one outstanding advance. Used by `-seed` on the server binary and by
  handler tests.

IDEMPOTENCY:
  SeedDemo refuses to run against a database that already has workers.
  It is demo bootstrap, not a migration.
*/
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/rbstextile/piecework-engine/advance"
	"github.com/rbstextile/piecework-engine/ledger"
	"github.com/rbstextile/piecework-engine/production"
)

// SeedDemo populates an empty store with the demo factory snapshot.
func SeedDemo(ctx context.Context, store ledger.TxStore) error {
	existing, err := store.ListWorkers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("refusing to seed: store already has %d workers", len(existing))
	}

	if err := production.SeedStages(ctx, store); err != nil {
		return err
	}

	roster := production.NewRoster(store)
	prod := production.NewService(store)
	advances := advance.NewLedger(store)

	ramesh, err := roster.Add(ctx, production.WorkerInput{
		Name:          "Ramesh Kumar",
		Mobile:        "9876501234",
		Skill:         "Singer",
		PaymentMethod: ledger.MethodCash,
	})
	if err != nil {
		return err
	}
	lakshmi, err := roster.Add(ctx, production.WorkerInput{
		Name:          "Lakshmi Devi",
		Mobile:        "9876505678",
		Skill:         "Overlock",
		PaymentMethod: ledger.MethodUPI,
		UPIID:         "lakshmi@upi",
		Rates: map[ledger.StageID]ledger.Money{
			"stage-collar": ledger.MustParseMoney("4.5"),
		},
	})
	if err != nil {
		return err
	}
	murugan, err := roster.Add(ctx, production.WorkerInput{
		Name:          "Murugan S",
		Mobile:        "9876509012",
		Skill:         "Flatlock",
		PaymentMethod: ledger.MethodCash,
	})
	if err != nil {
		return err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	lot, err := prod.CreateLot(ctx, production.NewLotInput{
		LotNumber:     "RBS-2026-014",
		Date:          today,
		Design:        "Round Neck Tee 180gsm",
		Color:         "Navy",
		TotalQuantity: 600,
		ExtraDetails: []ledger.LotExtraDetail{
			{ID: "ed-1", Label: "Fabric", Value: "Combed cotton, Tirupur Mills"},
			{ID: "ed-2", Label: "Buyer Ref", Value: "PO-8841"},
		},
	})
	if err != nil {
		return err
	}

	issues := []production.IssueInput{
		{WorkerID: ramesh.ID, LotID: lot.ID, StageID: "stage-shoulder", Date: today, Qty: 200},
		{WorkerID: ramesh.ID, LotID: lot.ID, StageID: "stage-side", Date: today, Qty: 150},
		{WorkerID: lakshmi.ID, LotID: lot.ID, StageID: "stage-collar", Date: today, Qty: 180},
		{WorkerID: murugan.ID, LotID: lot.ID, StageID: "stage-hem", Date: today, Qty: 120},
	}
	for _, in := range issues {
		if _, err := prod.IssueWork(ctx, in); err != nil {
			return err
		}
	}

	_, err = advances.Give(ctx, ramesh.ID, ledger.NewMoneyFromInt(500), today, "Festival advance")
	return err
}
