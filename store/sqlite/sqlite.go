/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.Store and ledger.TxStore using SQLite, the on-device
  storage for a single-factory deployment.

KEY TABLES:
  workers:              Worker records (rates as JSON, balance as exact text)
  stages:               Global stage catalog
  lots:                 Production lots with frozen stage-rate snapshots
  job_works:            Issued piece-rate work (pending until payment_id set)
  payments:             Immutable settlement events (append-only)
  advance_transactions: Immutable advance ledger entries (append-only)
  sequences:            Monotonic counters backing JW-/PAY-/LOT- ids

MONEY REPRESENTATION:
  Amounts are stored as exact decimal text (shopspring/decimal round-trip),
  never as REAL. SQLite floats would silently corrupt piece-rate arithmetic.

APPEND-ONLY ENFORCEMENT:
  payments and advance_transactions have INSERT paths only. job_works has an
  UPDATE path because settlement rewrites a record in place to its paid
  shape; nothing else updates a job work that carries a payment_id.

ATOMICITY:
  WithTx wraps a mutation set in one database transaction. Settlement
  finalize relies on this: job rewrites, sibling inserts, the payment, the
  recovery entry and the worker balance all commit together or not at all.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety; single local writer is the deployment
  model. Opened with WAL for crash recovery.

USAGE:
  st, err := sqlite.New("./data/factory.db")
  if err != nil { ... }
  defer st.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rbstextile/piecework-engine/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ ledger.TxStore = (*Store)(nil)

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serializes writers, which SQLite wants anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		mobile TEXT,
		skill TEXT,
		rates_json TEXT NOT NULL DEFAULT '{}',
		advance_balance TEXT NOT NULL DEFAULT '0',
		payment_method TEXT NOT NULL DEFAULT 'CASH',
		upi_id TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stages (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		base_rate TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS lots (
		id TEXT PRIMARY KEY,
		lot_number TEXT NOT NULL,
		date TEXT NOT NULL,
		design TEXT,
		color TEXT,
		description TEXT,
		extra_details_json TEXT,
		total_quantity INTEGER NOT NULL,
		status TEXT NOT NULL,
		stage_rates_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS job_works (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		lot_id TEXT NOT NULL,
		stage_id TEXT NOT NULL,
		date TEXT NOT NULL,
		qty_given INTEGER NOT NULL,
		qty_completed INTEGER NOT NULL,
		rate_at_time TEXT NOT NULL,
		payment_id TEXT,
		created_at TEXT NOT NULL
	);

	-- Pending partition lookup (the settlement hot path)
	CREATE INDEX IF NOT EXISTS idx_job_works_pending
		ON job_works(worker_id) WHERE payment_id IS NULL;
	CREATE INDEX IF NOT EXISTS idx_job_works_worker
		ON job_works(worker_id);
	CREATE INDEX IF NOT EXISTS idx_job_works_lot
		ON job_works(lot_id);
	CREATE INDEX IF NOT EXISTS idx_job_works_payment
		ON job_works(payment_id) WHERE payment_id IS NOT NULL;

	-- Append-only settlement events
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		job_work_ids_json TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		advance_deducted TEXT NOT NULL,
		net_payable TEXT NOT NULL,
		method TEXT NOT NULL,
		date TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_worker
		ON payments(worker_id);

	-- Append-only advance ledger
	CREATE TABLE IF NOT EXISTS advance_transactions (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		type TEXT NOT NULL,
		note TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_advance_transactions_worker
		ON advance_transactions(worker_id);

	CREATE TABLE IF NOT EXISTS sequences (
		kind TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// timestampLayout keeps created_at fixed-width so the TEXT column sorts
// lexicographically in chronological order. time.RFC3339Nano trims trailing
// fractional zeros, and strings of different lengths break ORDER BY.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// querier is satisfied by both *sql.DB and *sql.Tx so every operation can
// run standalone or inside WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// WORKERS
// =============================================================================

func (s *Store) SaveWorker(ctx context.Context, w ledger.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveWorker(ctx, s.db, w)
}

func saveWorker(ctx context.Context, q querier, w ledger.Worker) error {
	rates := make(map[string]string, len(w.Rates))
	for id, rate := range w.Rates {
		rates[string(id)] = rate.String()
	}
	ratesJSON, _ := json.Marshal(rates)

	query := `
		INSERT INTO workers
		(id, name, mobile, skill, rates_json, advance_balance, payment_method, upi_id, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			mobile = excluded.mobile,
			skill = excluded.skill,
			rates_json = excluded.rates_json,
			advance_balance = excluded.advance_balance,
			payment_method = excluded.payment_method,
			upi_id = excluded.upi_id,
			active = excluded.active
	`
	_, err := q.ExecContext(ctx, query,
		w.ID, w.Name, w.Mobile, w.Skill, string(ratesJSON),
		w.AdvanceBalance.String(), w.PaymentMethod, nullString(w.UPIID),
		boolToInt(w.Active), w.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save worker: %w", err)
	}
	return nil
}

func (s *Store) GetWorker(ctx context.Context, id ledger.WorkerID) (*ledger.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getWorker(ctx, s.db, id)
}

func getWorker(ctx context.Context, q querier, id ledger.WorkerID) (*ledger.Worker, error) {
	workers, err := queryWorkers(ctx, q, workerSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(workers) == 0 {
		return nil, ledger.ErrWorkerNotFound
	}
	return &workers[0], nil
}

func (s *Store) ListWorkers(ctx context.Context) ([]ledger.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryWorkers(ctx, s.db, workerSelect+" ORDER BY created_at ASC, id ASC")
}

const workerSelect = `
	SELECT id, name, mobile, skill, rates_json, advance_balance,
	       payment_method, upi_id, active, created_at
	FROM workers`

func queryWorkers(ctx context.Context, q querier, query string, args ...any) ([]ledger.Worker, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workers: %w", err)
	}
	defer rows.Close()

	var workers []ledger.Worker
	for rows.Next() {
		var (
			w         ledger.Worker
			mobile    sql.NullString
			skill     sql.NullString
			ratesJSON string
			balance   string
			upiID     sql.NullString
			active    int
			createdAt string
		)
		if err := rows.Scan(&w.ID, &w.Name, &mobile, &skill, &ratesJSON,
			&balance, &w.PaymentMethod, &upiID, &active, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		w.Mobile = mobile.String
		w.Skill = skill.String
		w.UPIID = upiID.String
		w.Active = active != 0
		w.AdvanceBalance = ledger.MustParseMoney(balance)
		w.CreatedAt = parseTime(createdAt)

		var rates map[string]string
		if err := json.Unmarshal([]byte(ratesJSON), &rates); err == nil && len(rates) > 0 {
			w.Rates = make(map[ledger.StageID]ledger.Money, len(rates))
			for id, rate := range rates {
				w.Rates[ledger.StageID(id)] = ledger.MustParseMoney(rate)
			}
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

// =============================================================================
// STAGE CATALOG
// =============================================================================

func (s *Store) SaveStage(ctx context.Context, st ledger.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveStage(ctx, s.db, st)
}

func saveStage(ctx context.Context, q querier, st ledger.Stage) error {
	query := `
		INSERT INTO stages (id, name, base_rate) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			base_rate = excluded.base_rate
	`
	if _, err := q.ExecContext(ctx, query, st.ID, st.Name, st.BaseRate.String()); err != nil {
		return fmt.Errorf("failed to save stage: %w", err)
	}
	return nil
}

func (s *Store) ListStages(ctx context.Context) ([]ledger.Stage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listStages(ctx, s.db)
}

func listStages(ctx context.Context, q querier) ([]ledger.Stage, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, name, base_rate FROM stages ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query stages: %w", err)
	}
	defer rows.Close()

	var stages []ledger.Stage
	for rows.Next() {
		var st ledger.Stage
		var rate string
		if err := rows.Scan(&st.ID, &st.Name, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan stage: %w", err)
		}
		st.BaseRate = ledger.MustParseMoney(rate)
		stages = append(stages, st)
	}
	return stages, rows.Err()
}

// =============================================================================
// LOTS
// =============================================================================

type stageRateJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Rate string `json:"rate"`
}

type extraDetailJSON struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Value string `json:"value"`
}

func (s *Store) SaveLot(ctx context.Context, l ledger.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveLot(ctx, s.db, l)
}

func saveLot(ctx context.Context, q querier, l ledger.Lot) error {
	srs := make([]stageRateJSON, len(l.StageRates))
	for i, sr := range l.StageRates {
		srs[i] = stageRateJSON{ID: string(sr.ID), Name: sr.Name, Rate: sr.Rate.String()}
	}
	stageRates, _ := json.Marshal(srs)

	var extraDetails []byte
	if len(l.ExtraDetails) > 0 {
		eds := make([]extraDetailJSON, len(l.ExtraDetails))
		for i, ed := range l.ExtraDetails {
			eds[i] = extraDetailJSON(ed)
		}
		extraDetails, _ = json.Marshal(eds)
	}

	query := `
		INSERT INTO lots
		(id, lot_number, date, design, color, description, extra_details_json,
		 total_quantity, status, stage_rates_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			lot_number = excluded.lot_number,
			date = excluded.date,
			design = excluded.design,
			color = excluded.color,
			description = excluded.description,
			extra_details_json = excluded.extra_details_json,
			total_quantity = excluded.total_quantity,
			status = excluded.status,
			stage_rates_json = excluded.stage_rates_json
	`
	_, err := q.ExecContext(ctx, query,
		l.ID, l.LotNumber, l.Date.Format(time.DateOnly), l.Design, l.Color,
		nullString(l.Description), nullString(string(extraDetails)),
		l.TotalQuantity, l.Status, string(stageRates),
		l.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save lot: %w", err)
	}
	return nil
}

func (s *Store) GetLot(ctx context.Context, id ledger.LotID) (*ledger.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getLot(ctx, s.db, id)
}

func getLot(ctx context.Context, q querier, id ledger.LotID) (*ledger.Lot, error) {
	lots, err := queryLots(ctx, q, lotSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(lots) == 0 {
		return nil, ledger.ErrLotNotFound
	}
	return &lots[0], nil
}

func (s *Store) ListLots(ctx context.Context) ([]ledger.Lot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryLots(ctx, s.db, lotSelect+" ORDER BY created_at ASC, id ASC")
}

const lotSelect = `
	SELECT id, lot_number, date, design, color, description, extra_details_json,
	       total_quantity, status, stage_rates_json, created_at
	FROM lots`

func queryLots(ctx context.Context, q querier, query string, args ...any) ([]ledger.Lot, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	var lots []ledger.Lot
	for rows.Next() {
		var (
			l            ledger.Lot
			date         string
			design       sql.NullString
			color        sql.NullString
			description  sql.NullString
			extraDetails sql.NullString
			stageRates   string
			createdAt    string
		)
		if err := rows.Scan(&l.ID, &l.LotNumber, &date, &design, &color,
			&description, &extraDetails, &l.TotalQuantity, &l.Status,
			&stageRates, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}
		l.Date = parseDate(date)
		l.Design = design.String
		l.Color = color.String
		l.Description = description.String
		l.CreatedAt = parseTime(createdAt)

		var srs []stageRateJSON
		if err := json.Unmarshal([]byte(stageRates), &srs); err == nil {
			l.StageRates = make([]ledger.LotStageRate, len(srs))
			for i, sr := range srs {
				l.StageRates[i] = ledger.LotStageRate{
					ID:   ledger.StageID(sr.ID),
					Name: sr.Name,
					Rate: ledger.MustParseMoney(sr.Rate),
				}
			}
		}
		if extraDetails.Valid && extraDetails.String != "" {
			var eds []extraDetailJSON
			if err := json.Unmarshal([]byte(extraDetails.String), &eds); err == nil {
				l.ExtraDetails = make([]ledger.LotExtraDetail, len(eds))
				for i, ed := range eds {
					l.ExtraDetails[i] = ledger.LotExtraDetail(ed)
				}
			}
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

// =============================================================================
// JOB WORKS
// =============================================================================

func (s *Store) AddJobWork(ctx context.Context, j ledger.JobWork) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addJobWork(ctx, s.db, j)
}

func addJobWork(ctx context.Context, q querier, j ledger.JobWork) error {
	query := `
		INSERT INTO job_works
		(id, worker_id, lot_id, stage_id, date, qty_given, qty_completed,
		 rate_at_time, payment_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		j.ID, j.WorkerID, j.LotID, j.StageID, j.Date.Format(time.DateOnly),
		j.QtyGiven, j.QtyCompleted, j.RateAtTime.String(),
		nullString(string(j.PaymentID)), j.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateID
		}
		return fmt.Errorf("failed to add job work: %w", err)
	}
	return nil
}

func (s *Store) UpdateJobWork(ctx context.Context, j ledger.JobWork) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateJobWork(ctx, s.db, j)
}

func updateJobWork(ctx context.Context, q querier, j ledger.JobWork) error {
	query := `
		UPDATE job_works
		SET worker_id = ?, lot_id = ?, stage_id = ?, date = ?, qty_given = ?,
		    qty_completed = ?, rate_at_time = ?, payment_id = ?
		WHERE id = ?
	`
	res, err := q.ExecContext(ctx, query,
		j.WorkerID, j.LotID, j.StageID, j.Date.Format(time.DateOnly),
		j.QtyGiven, j.QtyCompleted, j.RateAtTime.String(),
		nullString(string(j.PaymentID)), j.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job work: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ledger.ErrJobWorkNotFound
	}
	return nil
}

func (s *Store) GetJobWork(ctx context.Context, id ledger.JobWorkID) (*ledger.JobWork, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getJobWork(ctx, s.db, id)
}

func getJobWork(ctx context.Context, q querier, id ledger.JobWorkID) (*ledger.JobWork, error) {
	jobs, err := queryJobWorks(ctx, q, jobWorkSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, ledger.ErrJobWorkNotFound
	}
	return &jobs[0], nil
}

func (s *Store) ListJobWorks(ctx context.Context) ([]ledger.JobWork, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryJobWorks(ctx, s.db, jobWorkSelect+" ORDER BY created_at ASC, id ASC")
}

func (s *Store) PendingJobWorks(ctx context.Context) ([]ledger.JobWork, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pendingJobWorks(ctx, s.db)
}

func pendingJobWorks(ctx context.Context, q querier) ([]ledger.JobWork, error) {
	return queryJobWorks(ctx, q,
		jobWorkSelect+" WHERE payment_id IS NULL ORDER BY created_at ASC, id ASC")
}

const jobWorkSelect = `
	SELECT id, worker_id, lot_id, stage_id, date, qty_given, qty_completed,
	       rate_at_time, payment_id, created_at
	FROM job_works`

func queryJobWorks(ctx context.Context, q querier, query string, args ...any) ([]ledger.JobWork, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query job works: %w", err)
	}
	defer rows.Close()

	var jobs []ledger.JobWork
	for rows.Next() {
		var (
			j         ledger.JobWork
			date      string
			rate      string
			paymentID sql.NullString
			createdAt string
		)
		if err := rows.Scan(&j.ID, &j.WorkerID, &j.LotID, &j.StageID, &date,
			&j.QtyGiven, &j.QtyCompleted, &rate, &paymentID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan job work: %w", err)
		}
		j.Date = parseDate(date)
		j.RateAtTime = ledger.MustParseMoney(rate)
		j.PaymentID = ledger.PaymentID(paymentID.String)
		j.CreatedAt = parseTime(createdAt)
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// =============================================================================
// PAYMENTS (append-only)
// =============================================================================

func (s *Store) AddPayment(ctx context.Context, p ledger.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addPayment(ctx, s.db, p)
}

func addPayment(ctx context.Context, q querier, p ledger.Payment) error {
	ids := make([]string, len(p.JobWorkIDs))
	for i, id := range p.JobWorkIDs {
		ids[i] = string(id)
	}
	idsJSON, _ := json.Marshal(ids)

	query := `
		INSERT INTO payments
		(id, worker_id, job_work_ids_json, total_amount, advance_deducted,
		 net_payable, method, date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		p.ID, p.WorkerID, string(idsJSON), p.TotalAmount.String(),
		p.AdvanceDeducted.String(), p.NetPayable.String(), p.Method,
		p.Date.Format(time.DateOnly), p.Status,
		p.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateID
		}
		return fmt.Errorf("failed to add payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPayment(ctx, s.db, id)
}

func getPayment(ctx context.Context, q querier, id ledger.PaymentID) (*ledger.Payment, error) {
	payments, err := queryPayments(ctx, q, paymentSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, ledger.ErrPaymentNotFound
	}
	return &payments[0], nil
}

func (s *Store) ListPayments(ctx context.Context) ([]ledger.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryPayments(ctx, s.db, paymentSelect+" ORDER BY created_at ASC, id ASC")
}

const paymentSelect = `
	SELECT id, worker_id, job_work_ids_json, total_amount, advance_deducted,
	       net_payable, method, date, status, created_at
	FROM payments`

func queryPayments(ctx context.Context, q querier, query string, args ...any) ([]ledger.Payment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []ledger.Payment
	for rows.Next() {
		var (
			p         ledger.Payment
			idsJSON   string
			total     string
			advance   string
			net       string
			date      string
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.WorkerID, &idsJSON, &total, &advance,
			&net, &p.Method, &date, &p.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		var ids []string
		if err := json.Unmarshal([]byte(idsJSON), &ids); err == nil {
			p.JobWorkIDs = make([]ledger.JobWorkID, len(ids))
			for i, id := range ids {
				p.JobWorkIDs[i] = ledger.JobWorkID(id)
			}
		}
		p.TotalAmount = ledger.MustParseMoney(total)
		p.AdvanceDeducted = ledger.MustParseMoney(advance)
		p.NetPayable = ledger.MustParseMoney(net)
		p.Date = parseDate(date)
		p.CreatedAt = parseTime(createdAt)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// =============================================================================
// ADVANCE TRANSACTIONS (append-only)
// =============================================================================

func (s *Store) AddAdvanceTransaction(ctx context.Context, tx ledger.AdvanceTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return addAdvanceTransaction(ctx, s.db, tx)
}

func addAdvanceTransaction(ctx context.Context, q querier, tx ledger.AdvanceTransaction) error {
	query := `
		INSERT INTO advance_transactions
		(id, worker_id, amount, date, type, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		tx.ID, tx.WorkerID, tx.Amount.String(), tx.Date.Format(time.DateOnly),
		tx.Type, nullString(tx.Note), tx.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateID
		}
		return fmt.Errorf("failed to add advance transaction: %w", err)
	}
	return nil
}

func (s *Store) AdvancesByWorker(ctx context.Context, id ledger.WorkerID) ([]ledger.AdvanceTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryAdvances(ctx, s.db,
		advanceSelect+" WHERE worker_id = ? ORDER BY created_at ASC, id ASC", id)
}

func (s *Store) ListAdvances(ctx context.Context) ([]ledger.AdvanceTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryAdvances(ctx, s.db, advanceSelect+" ORDER BY created_at ASC, id ASC")
}

const advanceSelect = `
	SELECT id, worker_id, amount, date, type, note, created_at
	FROM advance_transactions`

func queryAdvances(ctx context.Context, q querier, query string, args ...any) ([]ledger.AdvanceTransaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query advance transactions: %w", err)
	}
	defer rows.Close()

	var txs []ledger.AdvanceTransaction
	for rows.Next() {
		var (
			tx        ledger.AdvanceTransaction
			amount    string
			date      string
			note      sql.NullString
			createdAt string
		)
		if err := rows.Scan(&tx.ID, &tx.WorkerID, &amount, &date, &tx.Type,
			&note, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan advance transaction: %w", err)
		}
		tx.Amount = ledger.MustParseMoney(amount)
		tx.Date = parseDate(date)
		tx.Note = note.String
		tx.CreatedAt = parseTime(createdAt)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// =============================================================================
// SEQUENCES
// =============================================================================

func (s *Store) NextID(ctx context.Context, kind ledger.SequenceKind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nextID(ctx, s.db, kind)
}

func nextID(ctx context.Context, q querier, kind ledger.SequenceKind) (int64, error) {
	query := `
		INSERT INTO sequences (kind, value) VALUES (?, ?)
		ON CONFLICT(kind) DO UPDATE SET value = value + 1
	`
	if _, err := q.ExecContext(ctx, query, kind, ledger.SequenceSeed(kind)+1); err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", kind, err)
	}

	var value int64
	err := q.QueryRowContext(ctx, "SELECT value FROM sequences WHERE kind = ?", kind).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to read sequence %s: %w", kind, err)
	}
	return value, nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore runs every operation against the open transaction. The parent's
// mutex is held for the whole of WithTx, so no locking here.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveWorker(ctx context.Context, w ledger.Worker) error {
	return saveWorker(ctx, ts.tx, w)
}

func (ts *txStore) GetWorker(ctx context.Context, id ledger.WorkerID) (*ledger.Worker, error) {
	return getWorker(ctx, ts.tx, id)
}

func (ts *txStore) ListWorkers(ctx context.Context) ([]ledger.Worker, error) {
	return queryWorkers(ctx, ts.tx, workerSelect+" ORDER BY created_at ASC, id ASC")
}

func (ts *txStore) SaveStage(ctx context.Context, st ledger.Stage) error {
	return saveStage(ctx, ts.tx, st)
}

func (ts *txStore) ListStages(ctx context.Context) ([]ledger.Stage, error) {
	return listStages(ctx, ts.tx)
}

func (ts *txStore) SaveLot(ctx context.Context, l ledger.Lot) error {
	return saveLot(ctx, ts.tx, l)
}

func (ts *txStore) GetLot(ctx context.Context, id ledger.LotID) (*ledger.Lot, error) {
	return getLot(ctx, ts.tx, id)
}

func (ts *txStore) ListLots(ctx context.Context) ([]ledger.Lot, error) {
	return queryLots(ctx, ts.tx, lotSelect+" ORDER BY created_at ASC, id ASC")
}

func (ts *txStore) AddJobWork(ctx context.Context, j ledger.JobWork) error {
	return addJobWork(ctx, ts.tx, j)
}

func (ts *txStore) UpdateJobWork(ctx context.Context, j ledger.JobWork) error {
	return updateJobWork(ctx, ts.tx, j)
}

func (ts *txStore) GetJobWork(ctx context.Context, id ledger.JobWorkID) (*ledger.JobWork, error) {
	return getJobWork(ctx, ts.tx, id)
}

func (ts *txStore) ListJobWorks(ctx context.Context) ([]ledger.JobWork, error) {
	return queryJobWorks(ctx, ts.tx, jobWorkSelect+" ORDER BY created_at ASC, id ASC")
}

func (ts *txStore) PendingJobWorks(ctx context.Context) ([]ledger.JobWork, error) {
	return pendingJobWorks(ctx, ts.tx)
}

func (ts *txStore) AddPayment(ctx context.Context, p ledger.Payment) error {
	return addPayment(ctx, ts.tx, p)
}

func (ts *txStore) GetPayment(ctx context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	return getPayment(ctx, ts.tx, id)
}

func (ts *txStore) ListPayments(ctx context.Context) ([]ledger.Payment, error) {
	return queryPayments(ctx, ts.tx, paymentSelect+" ORDER BY created_at ASC, id ASC")
}

func (ts *txStore) AddAdvanceTransaction(ctx context.Context, tx ledger.AdvanceTransaction) error {
	return addAdvanceTransaction(ctx, ts.tx, tx)
}

func (ts *txStore) AdvancesByWorker(ctx context.Context, id ledger.WorkerID) ([]ledger.AdvanceTransaction, error) {
	return queryAdvances(ctx, ts.tx,
		advanceSelect+" WHERE worker_id = ? ORDER BY created_at ASC, id ASC", id)
}

func (ts *txStore) ListAdvances(ctx context.Context) ([]ledger.AdvanceTransaction, error) {
	return queryAdvances(ctx, ts.tx, advanceSelect+" ORDER BY created_at ASC, id ASC")
}

func (ts *txStore) NextID(ctx context.Context, kind ledger.SequenceKind) (int64, error) {
	return nextID(ctx, ts.tx, kind)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
