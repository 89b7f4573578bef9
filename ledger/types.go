/*
Package ledger provides the core record types for the piecework engine.

PURPOSE:
  This package contains the domain types shared by every other package:
  workers, production lots, piece-rate stages, job work records, payments,
  and advance transactions. It also defines the persistence contracts
  (store.go) and the error taxonomy (errors.go).

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: An exact decimal amount (rupees) - never a float
  - Worker: A stitching worker with payout method and advance balance
  - Lot: A production batch with stage rates frozen at creation time
  - JobWork: The atomic unit of issued-and-tracked work
  - Payment: An immutable settlement event
  - AdvanceTransaction: A signed entry in a worker's advance ledger

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for all money - no floating point
  2. Frozen rates: JobWork carries the rate at issuance; Lot carries a
     snapshot of stage rates. Catalog changes never rewrite history.
  3. Immutability: Payments and AdvanceTransactions are never mutated
  4. Type Safety: Strong typing for IDs prevents mixing worker/lot IDs

SEE ALSO:
  - store.go: Persistence interfaces including atomic transactions
  - errors.go: Sentinel and structured error types
  - settlement/: Converts pending JobWork into Payments
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Exact decimal amount in rupees
// =============================================================================

type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money {
	return Money{Value: decimal.NewFromFloat(value)}
}

func NewMoneyFromInt(value int64) Money {
	return Money{Value: decimal.NewFromInt(value)}
}

// ParseMoney parses a decimal string ("4.50") into Money.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Value: decimal.Zero}, fmt.Errorf("parse money %q: %w", s, err)
	}
	return Money{Value: d}, nil
}

// MustParseMoney is ParseMoney for trusted literals; a bad string yields zero.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		return Money{Value: decimal.Zero}
	}
	return m
}

func ZeroMoney() Money { return Money{Value: decimal.Zero} }

func (m Money) Add(b Money) Money          { return Money{Value: m.Value.Add(b.Value)} }
func (m Money) Sub(b Money) Money          { return Money{Value: m.Value.Sub(b.Value)} }
func (m Money) MulQty(qty int64) Money     { return Money{Value: m.Value.Mul(decimal.NewFromInt(qty))} }
func (m Money) Neg() Money                 { return Money{Value: m.Value.Neg()} }
func (m Money) IsZero() bool               { return m.Value.IsZero() }
func (m Money) IsNegative() bool           { return m.Value.IsNegative() }
func (m Money) IsPositive() bool           { return m.Value.IsPositive() }
func (m Money) GreaterThan(b Money) bool   { return m.Value.GreaterThan(b.Value) }
func (m Money) LessThan(b Money) bool      { return m.Value.LessThan(b.Value) }
func (m Money) Equal(b Money) bool         { return m.Value.Equal(b.Value) }
func (m Money) Min(b Money) Money {
	if m.LessThan(b) {
		return m
	}
	return b
}

func (m Money) Max(b Money) Money {
	if m.GreaterThan(b) {
		return m
	}
	return b
}

// Display renders the amount with two decimals. Display formatting only;
// internal arithmetic is always exact.
func (m Money) Display() string { return m.Value.StringFixed(2) }

// String returns the exact value, used for storage round-trips.
func (m Money) String() string { return m.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WorkerID string
type LotID string
type StageID string
type JobWorkID string
type PaymentID string
type AdvanceTxID string

// =============================================================================
// ENUMS
// =============================================================================

// PaymentMethod is how a worker is paid out.
type PaymentMethod string

const (
	MethodCash PaymentMethod = "CASH"
	MethodUPI  PaymentMethod = "UPI"
)

// LotStatus tracks whether a lot is still on the floor.
type LotStatus string

const (
	LotRunning   LotStatus = "RUNNING"
	LotCompleted LotStatus = "COMPLETED"
)

// PaymentStatus marks a payment record. Settlements always produce PAID
// payments; PENDING exists for forward compatibility with scheduled payouts.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

// AdvanceTxType signs an advance ledger entry.
type AdvanceTxType string

const (
	// AdvanceGiven increases the worker's advance balance (debt to factory).
	AdvanceGiven AdvanceTxType = "GIVEN"
	// AdvanceRecovered decreases it, usually by deduction from a settlement.
	AdvanceRecovered AdvanceTxType = "RECOVERED"
)

// =============================================================================
// WORKER
// =============================================================================

// Worker is a stitching worker. Rates holds per-stage override piece-rates;
// a stage absent from the map falls back to the lot's snapshot rate at
// issuance time.
//
// AdvanceBalance is the stored running total of the advance ledger
// (positive = worker owes the factory). It is mutated only inside the same
// store transaction that appends an AdvanceTransaction, so the stored value
// and the transaction log always agree.
type Worker struct {
	ID             WorkerID
	Name           string
	Mobile         string
	Skill          string
	Rates          map[StageID]Money
	AdvanceBalance Money
	PaymentMethod  PaymentMethod
	UPIID          string
	Active         bool
	CreatedAt      time.Time
}

// =============================================================================
// STAGE CATALOG AND LOT
// =============================================================================

// Stage is a global catalog entry: one discrete production operation with a
// base piece-rate. Lots copy these into LotStageRate at creation.
type Stage struct {
	ID       StageID
	Name     string
	BaseRate Money
}

// LotStageRate is a lot-local copy of a stage with its own rate, frozen when
// the lot is created. Later changes to the catalog never affect it.
type LotStageRate struct {
	ID   StageID
	Name string
	Rate Money
}

// LotExtraDetail is a free-form label/value pair attached to a lot
// (fabric supplier, thread color, buyer reference, ...).
type LotExtraDetail struct {
	ID    string
	Label string
	Value string
}

// Lot is a production batch of garments sharing a design, processed through
// a sequence of piece-rate stages.
type Lot struct {
	ID            LotID
	LotNumber     string
	Date          time.Time
	Design        string
	Color         string
	Description   string
	ExtraDetails  []LotExtraDetail
	TotalQuantity int64
	Status        LotStatus
	StageRates    []LotStageRate
	CreatedAt     time.Time
}

// StageRate returns the lot's frozen rate entry for a stage, if present.
func (l *Lot) StageRate(id StageID) (LotStageRate, bool) {
	for _, sr := range l.StageRates {
		if sr.ID == id {
			return sr, true
		}
	}
	return LotStageRate{}, false
}

// =============================================================================
// JOB WORK - The atomic unit of assigned-and-tracked work
// =============================================================================

// JobWork records a quantity of one stage's work issued to a worker for a
// lot, and how much of it has been completed and paid.
//
// INVARIANTS:
//   - RateAtTime is frozen at issuance and never re-resolved.
//   - A record with PaymentID set is closed: QtyCompleted == QtyGiven and it
//     is never settled again.
//   - A record without PaymentID is outstanding floor work;
//     QtyGiven - QtyCompleted is its unpaid quantity.
//
// On settlement the record is rewritten in place to the paid shape and, if
// quantity remains, a sibling record carries the unpaid remainder forward.
type JobWork struct {
	ID           JobWorkID
	WorkerID     WorkerID
	LotID        LotID
	StageID      StageID
	Date         time.Time
	QtyGiven     int64
	QtyCompleted int64
	RateAtTime   Money
	PaymentID    PaymentID // empty until settled
	CreatedAt    time.Time
}

// Settled reports whether this record has been closed by a payment.
func (j *JobWork) Settled() bool { return j.PaymentID != "" }

// PendingQty is the unpaid quantity still on the floor.
func (j *JobWork) PendingQty() int64 { return j.QtyGiven - j.QtyCompleted }

// =============================================================================
// PAYMENT - Immutable settlement event
// =============================================================================

// Payment references the JobWork records it closed and records the wage
// arithmetic of one settlement. Once created it is never mutated.
type Payment struct {
	ID              PaymentID
	WorkerID        WorkerID
	JobWorkIDs      []JobWorkID
	TotalAmount     Money // gross wages for the settled quantities
	AdvanceDeducted Money
	NetPayable      Money
	Method          PaymentMethod
	Date            time.Time
	Status          PaymentStatus
	CreatedAt       time.Time
}

// =============================================================================
// ADVANCE TRANSACTION - Signed advance ledger entry
// =============================================================================

// AdvanceTransaction is an immutable entry in a worker's advance ledger.
// GIVEN entries add to the worker's balance, RECOVERED entries subtract.
type AdvanceTransaction struct {
	ID        AdvanceTxID
	WorkerID  WorkerID
	Amount    Money
	Date      time.Time
	Type      AdvanceTxType
	Note      string
	CreatedAt time.Time
}

// Delta is the signed effect of this entry on the worker's balance.
func (a *AdvanceTransaction) Delta() Money {
	if a.Type == AdvanceRecovered {
		return a.Amount.Neg()
	}
	return a.Amount
}
