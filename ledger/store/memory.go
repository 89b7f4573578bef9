// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rbstextile/piecework-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	workers   []ledger.Worker
	stages    []ledger.Stage
	lots      []ledger.Lot
	jobWorks  []ledger.JobWork
	payments  []ledger.Payment
	advances  []ledger.AdvanceTransaction
	sequences map[ledger.SequenceKind]int64
}

func NewMemory() *Memory {
	return &Memory{sequences: make(map[ledger.SequenceKind]int64)}
}

// Compile-time interface checks.
var (
	_ ledger.Store   = (*Memory)(nil)
	_ ledger.TxStore = (*Memory)(nil)
)

// =============================================================================
// WORKERS
// =============================================================================

func (m *Memory) SaveWorker(_ context.Context, w ledger.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveWorkerLocked(w)
}

func (m *Memory) saveWorkerLocked(w ledger.Worker) error {
	w = cloneWorker(w)
	for i := range m.workers {
		if m.workers[i].ID == w.ID {
			m.workers[i] = w
			return nil
		}
	}
	m.workers = append(m.workers, w)
	return nil
}

func (m *Memory) GetWorker(_ context.Context, id ledger.WorkerID) (*ledger.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getWorkerLocked(id)
}

func (m *Memory) getWorkerLocked(id ledger.WorkerID) (*ledger.Worker, error) {
	for i := range m.workers {
		if m.workers[i].ID == id {
			w := cloneWorker(m.workers[i])
			return &w, nil
		}
	}
	return nil, ledger.ErrWorkerNotFound
}

func (m *Memory) ListWorkers(_ context.Context) ([]ledger.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Worker, len(m.workers))
	for i, w := range m.workers {
		out[i] = cloneWorker(w)
	}
	return out, nil
}

// =============================================================================
// STAGE CATALOG
// =============================================================================

func (m *Memory) SaveStage(_ context.Context, s ledger.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveStageLocked(s)
}

func (m *Memory) saveStageLocked(s ledger.Stage) error {
	for i := range m.stages {
		if m.stages[i].ID == s.ID {
			m.stages[i] = s
			return nil
		}
	}
	m.stages = append(m.stages, s)
	return nil
}

func (m *Memory) ListStages(_ context.Context) ([]ledger.Stage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Stage, len(m.stages))
	copy(out, m.stages)
	return out, nil
}

// =============================================================================
// LOTS
// =============================================================================

func (m *Memory) SaveLot(_ context.Context, l ledger.Lot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLotLocked(l)
}

func (m *Memory) saveLotLocked(l ledger.Lot) error {
	l = cloneLot(l)
	for i := range m.lots {
		if m.lots[i].ID == l.ID {
			m.lots[i] = l
			return nil
		}
	}
	m.lots = append(m.lots, l)
	return nil
}

func (m *Memory) GetLot(_ context.Context, id ledger.LotID) (*ledger.Lot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLotLocked(id)
}

func (m *Memory) getLotLocked(id ledger.LotID) (*ledger.Lot, error) {
	for i := range m.lots {
		if m.lots[i].ID == id {
			l := cloneLot(m.lots[i])
			return &l, nil
		}
	}
	return nil, ledger.ErrLotNotFound
}

func (m *Memory) ListLots(_ context.Context) ([]ledger.Lot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Lot, len(m.lots))
	for i, l := range m.lots {
		out[i] = cloneLot(l)
	}
	return out, nil
}

// =============================================================================
// JOB WORKS
// =============================================================================

func (m *Memory) AddJobWork(_ context.Context, j ledger.JobWork) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addJobWorkLocked(j)
}

func (m *Memory) addJobWorkLocked(j ledger.JobWork) error {
	for i := range m.jobWorks {
		if m.jobWorks[i].ID == j.ID {
			return ledger.ErrDuplicateID
		}
	}
	m.jobWorks = append(m.jobWorks, j)
	return nil
}

func (m *Memory) UpdateJobWork(_ context.Context, j ledger.JobWork) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateJobWorkLocked(j)
}

func (m *Memory) updateJobWorkLocked(j ledger.JobWork) error {
	for i := range m.jobWorks {
		if m.jobWorks[i].ID == j.ID {
			m.jobWorks[i] = j
			return nil
		}
	}
	return ledger.ErrJobWorkNotFound
}

func (m *Memory) GetJobWork(_ context.Context, id ledger.JobWorkID) (*ledger.JobWork, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.jobWorks {
		if m.jobWorks[i].ID == id {
			j := m.jobWorks[i]
			return &j, nil
		}
	}
	return nil, ledger.ErrJobWorkNotFound
}

func (m *Memory) ListJobWorks(_ context.Context) ([]ledger.JobWork, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.JobWork, len(m.jobWorks))
	copy(out, m.jobWorks)
	sortJobWorks(out)
	return out, nil
}

func (m *Memory) PendingJobWorks(_ context.Context) ([]ledger.JobWork, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pendingJobWorksLocked()
}

func (m *Memory) pendingJobWorksLocked() ([]ledger.JobWork, error) {
	var out []ledger.JobWork
	for _, j := range m.jobWorks {
		if !j.Settled() {
			out = append(out, j)
		}
	}
	sortJobWorks(out)
	return out, nil
}

func sortJobWorks(js []ledger.JobWork) {
	sort.SliceStable(js, func(i, k int) bool {
		return js[i].CreatedAt.Before(js[k].CreatedAt)
	})
}

// =============================================================================
// PAYMENTS (append-only)
// =============================================================================

func (m *Memory) AddPayment(_ context.Context, p ledger.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addPaymentLocked(p)
}

func (m *Memory) addPaymentLocked(p ledger.Payment) error {
	for i := range m.payments {
		if m.payments[i].ID == p.ID {
			return ledger.ErrDuplicateID
		}
	}
	m.payments = append(m.payments, clonePayment(p))
	return nil
}

func (m *Memory) GetPayment(_ context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.payments {
		if m.payments[i].ID == id {
			p := clonePayment(m.payments[i])
			return &p, nil
		}
	}
	return nil, ledger.ErrPaymentNotFound
}

func (m *Memory) ListPayments(_ context.Context) ([]ledger.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Payment, len(m.payments))
	for i, p := range m.payments {
		out[i] = clonePayment(p)
	}
	return out, nil
}

// =============================================================================
// ADVANCE TRANSACTIONS (append-only)
// =============================================================================

func (m *Memory) AddAdvanceTransaction(_ context.Context, tx ledger.AdvanceTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addAdvanceLocked(tx)
}

func (m *Memory) addAdvanceLocked(tx ledger.AdvanceTransaction) error {
	for i := range m.advances {
		if m.advances[i].ID == tx.ID {
			return ledger.ErrDuplicateID
		}
	}
	m.advances = append(m.advances, tx)
	return nil
}

func (m *Memory) AdvancesByWorker(_ context.Context, id ledger.WorkerID) ([]ledger.AdvanceTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ledger.AdvanceTransaction
	for _, tx := range m.advances {
		if tx.WorkerID == id {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *Memory) ListAdvances(_ context.Context) ([]ledger.AdvanceTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.AdvanceTransaction, len(m.advances))
	copy(out, m.advances)
	return out, nil
}

// =============================================================================
// SEQUENCES
// =============================================================================

func (m *Memory) NextID(_ context.Context, kind ledger.SequenceKind) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextIDLocked(kind)
}

func (m *Memory) nextIDLocked(kind ledger.SequenceKind) (int64, error) {
	cur, ok := m.sequences[kind]
	if !ok {
		cur = ledger.SequenceSeed(kind)
	}
	cur++
	m.sequences[kind] = cur
	return cur, nil
}

// =============================================================================
// TRANSACTIONS - snapshot + rollback on error
// =============================================================================

// WithTx executes fn against the store. For the memory store atomicity is
// simulated with a full snapshot restored on error.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	workers   []ledger.Worker
	stages    []ledger.Stage
	lots      []ledger.Lot
	jobWorks  []ledger.JobWork
	payments  []ledger.Payment
	advances  []ledger.AdvanceTransaction
	sequences map[ledger.SequenceKind]int64
}

func (m *Memory) snapshot() memorySnapshot {
	snap := memorySnapshot{
		workers:   make([]ledger.Worker, len(m.workers)),
		stages:    append([]ledger.Stage{}, m.stages...),
		lots:      make([]ledger.Lot, len(m.lots)),
		jobWorks:  append([]ledger.JobWork{}, m.jobWorks...),
		payments:  make([]ledger.Payment, len(m.payments)),
		advances:  append([]ledger.AdvanceTransaction{}, m.advances...),
		sequences: make(map[ledger.SequenceKind]int64, len(m.sequences)),
	}
	for i, w := range m.workers {
		snap.workers[i] = cloneWorker(w)
	}
	for i, l := range m.lots {
		snap.lots[i] = cloneLot(l)
	}
	for i, p := range m.payments {
		snap.payments[i] = clonePayment(p)
	}
	for k, v := range m.sequences {
		snap.sequences[k] = v
	}
	return snap
}

func (m *Memory) restore(s memorySnapshot) {
	m.workers = s.workers
	m.stages = s.stages
	m.lots = s.lots
	m.jobWorks = s.jobWorks
	m.payments = s.payments
	m.advances = s.advances
	m.sequences = s.sequences
}

// txMemoryView routes writes through the already-locked parent.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) SaveWorker(_ context.Context, w ledger.Worker) error {
	return tv.parent.saveWorkerLocked(w)
}

func (tv *txMemoryView) GetWorker(_ context.Context, id ledger.WorkerID) (*ledger.Worker, error) {
	return tv.parent.getWorkerLocked(id)
}

func (tv *txMemoryView) ListWorkers(_ context.Context) ([]ledger.Worker, error) {
	out := make([]ledger.Worker, len(tv.parent.workers))
	for i, w := range tv.parent.workers {
		out[i] = cloneWorker(w)
	}
	return out, nil
}

func (tv *txMemoryView) SaveStage(_ context.Context, s ledger.Stage) error {
	return tv.parent.saveStageLocked(s)
}

func (tv *txMemoryView) ListStages(_ context.Context) ([]ledger.Stage, error) {
	out := make([]ledger.Stage, len(tv.parent.stages))
	copy(out, tv.parent.stages)
	return out, nil
}

func (tv *txMemoryView) SaveLot(_ context.Context, l ledger.Lot) error {
	return tv.parent.saveLotLocked(l)
}

func (tv *txMemoryView) GetLot(_ context.Context, id ledger.LotID) (*ledger.Lot, error) {
	return tv.parent.getLotLocked(id)
}

func (tv *txMemoryView) ListLots(_ context.Context) ([]ledger.Lot, error) {
	out := make([]ledger.Lot, len(tv.parent.lots))
	for i, l := range tv.parent.lots {
		out[i] = cloneLot(l)
	}
	return out, nil
}

func (tv *txMemoryView) AddJobWork(_ context.Context, j ledger.JobWork) error {
	return tv.parent.addJobWorkLocked(j)
}

func (tv *txMemoryView) UpdateJobWork(_ context.Context, j ledger.JobWork) error {
	return tv.parent.updateJobWorkLocked(j)
}

func (tv *txMemoryView) GetJobWork(_ context.Context, id ledger.JobWorkID) (*ledger.JobWork, error) {
	for i := range tv.parent.jobWorks {
		if tv.parent.jobWorks[i].ID == id {
			j := tv.parent.jobWorks[i]
			return &j, nil
		}
	}
	return nil, ledger.ErrJobWorkNotFound
}

func (tv *txMemoryView) ListJobWorks(_ context.Context) ([]ledger.JobWork, error) {
	out := make([]ledger.JobWork, len(tv.parent.jobWorks))
	copy(out, tv.parent.jobWorks)
	sortJobWorks(out)
	return out, nil
}

func (tv *txMemoryView) PendingJobWorks(_ context.Context) ([]ledger.JobWork, error) {
	return tv.parent.pendingJobWorksLocked()
}

func (tv *txMemoryView) AddPayment(_ context.Context, p ledger.Payment) error {
	return tv.parent.addPaymentLocked(p)
}

func (tv *txMemoryView) GetPayment(_ context.Context, id ledger.PaymentID) (*ledger.Payment, error) {
	for i := range tv.parent.payments {
		if tv.parent.payments[i].ID == id {
			p := clonePayment(tv.parent.payments[i])
			return &p, nil
		}
	}
	return nil, ledger.ErrPaymentNotFound
}

func (tv *txMemoryView) ListPayments(_ context.Context) ([]ledger.Payment, error) {
	out := make([]ledger.Payment, len(tv.parent.payments))
	for i, p := range tv.parent.payments {
		out[i] = clonePayment(p)
	}
	return out, nil
}

func (tv *txMemoryView) AddAdvanceTransaction(_ context.Context, tx ledger.AdvanceTransaction) error {
	return tv.parent.addAdvanceLocked(tx)
}

func (tv *txMemoryView) AdvancesByWorker(_ context.Context, id ledger.WorkerID) ([]ledger.AdvanceTransaction, error) {
	var out []ledger.AdvanceTransaction
	for _, tx := range tv.parent.advances {
		if tx.WorkerID == id {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (tv *txMemoryView) ListAdvances(_ context.Context) ([]ledger.AdvanceTransaction, error) {
	out := make([]ledger.AdvanceTransaction, len(tv.parent.advances))
	copy(out, tv.parent.advances)
	return out, nil
}

func (tv *txMemoryView) NextID(_ context.Context, kind ledger.SequenceKind) (int64, error) {
	return tv.parent.nextIDLocked(kind)
}

// =============================================================================
// COPY HELPERS
// =============================================================================

func cloneWorker(w ledger.Worker) ledger.Worker {
	if w.Rates != nil {
		rates := make(map[ledger.StageID]ledger.Money, len(w.Rates))
		for k, v := range w.Rates {
			rates[k] = v
		}
		w.Rates = rates
	}
	return w
}

func cloneLot(l ledger.Lot) ledger.Lot {
	l.StageRates = append([]ledger.LotStageRate{}, l.StageRates...)
	if l.ExtraDetails != nil {
		l.ExtraDetails = append([]ledger.LotExtraDetail{}, l.ExtraDetails...)
	}
	return l
}

func clonePayment(p ledger.Payment) ledger.Payment {
	p.JobWorkIDs = append([]ledger.JobWorkID{}, p.JobWorkIDs...)
	return p
}
