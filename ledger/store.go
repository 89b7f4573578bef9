/*
store.go - Persistence interfaces for the piecework engine

PURPOSE:
  Defines the interface between domain logic and the database. Different
  implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  Store:   Record persistence for all six record types + sequence counter
  TxStore: Atomic multi-record mutations (settlement finalize, advances)

IMMUTABILITY CONTRACT:
  Payments and AdvanceTransactions are append-only: the interface exposes
  no update or delete for them. JobWork has UpdateJobWork because settlement
  rewrites the record in place to its paid shape; a record with PaymentID
  set must never be updated again.

ATOMICITY:
  Settlement finalize touches several records (JobWork rewrites, sibling
  inserts, one Payment, possibly one AdvanceTransaction, one Worker balance
  update). WithTx commits them together or not at all.

SEQUENCES:
  NextID hands out monotonically increasing numbers per kind, backing the
  human-readable JW-/PAY- identifiers used on the factory floor. A stored
  counter, not "parse the last id and add one".

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - ledger/store: In-memory for tests/dev
*/
package ledger

import "context"

// =============================================================================
// STORE - Record persistence
// =============================================================================

// Store persists all engine records. Reads return copies; callers never
// share memory with the store.
type Store interface {
	// Workers
	SaveWorker(ctx context.Context, w Worker) error
	GetWorker(ctx context.Context, id WorkerID) (*Worker, error)
	ListWorkers(ctx context.Context) ([]Worker, error)

	// Stage catalog
	SaveStage(ctx context.Context, s Stage) error
	ListStages(ctx context.Context) ([]Stage, error)

	// Lots
	SaveLot(ctx context.Context, l Lot) error
	GetLot(ctx context.Context, id LotID) (*Lot, error)
	ListLots(ctx context.Context) ([]Lot, error)

	// Job works
	AddJobWork(ctx context.Context, j JobWork) error
	UpdateJobWork(ctx context.Context, j JobWork) error
	GetJobWork(ctx context.Context, id JobWorkID) (*JobWork, error)
	ListJobWorks(ctx context.Context) ([]JobWork, error)
	// PendingJobWorks returns records with no PaymentID, ordered by
	// CreatedAt ascending (insertion order for history views).
	PendingJobWorks(ctx context.Context) ([]JobWork, error)

	// Payments (append-only)
	AddPayment(ctx context.Context, p Payment) error
	GetPayment(ctx context.Context, id PaymentID) (*Payment, error)
	ListPayments(ctx context.Context) ([]Payment, error)

	// Advance transactions (append-only)
	AddAdvanceTransaction(ctx context.Context, tx AdvanceTransaction) error
	AdvancesByWorker(ctx context.Context, id WorkerID) ([]AdvanceTransaction, error)
	ListAdvances(ctx context.Context) ([]AdvanceTransaction, error)

	// NextID returns the next number in the named sequence, starting from
	// the kind's seed. Never returns the same number twice.
	NextID(ctx context.Context, kind SequenceKind) (int64, error)
}

// =============================================================================
// TRANSACTIONAL STORE - Atomic multi-record mutations
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn against a transactional view of the store.
	// If fn returns an error the whole mutation set is rolled back;
	// otherwise it is committed as one unit.
	WithTx(ctx context.Context, fn func(Store) error) error
}
