/*
handlers.go - HTTP API handlers for the piecework engine

PURPOSE:
  Exposes the engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Workers:
    GET    /api/workers                    List workers
    POST   /api/workers                    Register worker
    GET    /api/workers/{id}               Get worker
    PUT    /api/workers/{id}               Update worker profile
    POST   /api/workers/{id}/active        Activate / deactivate
    GET    /api/workers/{id}/advances      Advance ledger history
    POST   /api/workers/{id}/advances      Record GIVEN / RECOVERED entry
    GET    /api/workers/{id}/advances/balance  Stored vs derived balance

  Stages:
    GET    /api/stages                     Stage catalog
    PUT    /api/stages/{id}                Edit name / base rate

  Lots:
    GET    /api/lots                       List lots
    POST   /api/lots                       Open lot (snapshots rates)
    GET    /api/lots/{id}                  Get lot
    POST   /api/lots/{id}/status           RUNNING <-> COMPLETED
    GET    /api/lots/{id}/progress         Per-stage progress

  Job works:
    GET    /api/jobworks                   List issued work
    POST   /api/jobworks                   Issue work to a worker

  Settlements:
    GET    /api/settlements/pending        Pending candidates by worker
    POST   /api/settlements/preview        Wage arithmetic, no mutation
    POST   /api/settlements/finalize       Atomic settlement commit

  Payments:
    GET    /api/payments                   Payment history
    GET    /api/payments/{id}              One payment

  Reports:
    GET    /api/reports/dashboard
    GET    /api/reports/labour?from=&to=
    GET    /api/reports/daily?date=

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, failed validation tags, domain validation
  - 404: Missing records
  - 422: Entered quantity exceeds the issued quantity
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/rbstextile/piecework-engine/advance"
	"github.com/rbstextile/piecework-engine/ledger"
	"github.com/rbstextile/piecework-engine/logger"
	"github.com/rbstextile/piecework-engine/production"
	"github.com/rbstextile/piecework-engine/reports"
	"github.com/rbstextile/piecework-engine/settlement"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      ledger.TxStore
	Settlement *settlement.Engine
	Advances   *advance.Ledger
	Production *production.Service
	Roster     *production.Roster
	Reports    *reports.Service
	Log        *logger.Logger
}

// NewHandler wires the domain services over one transactional store.
func NewHandler(store ledger.TxStore, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		Store:      store,
		Settlement: settlement.NewEngine(store),
		Advances:   advance.NewLedger(store),
		Production: production.NewService(store),
		Roster:     production.NewRoster(store),
		Reports:    reports.NewService(store),
		Log:        log.WithComponent("api"),
	}
}

var validate = validator.New()

// decodeValid decodes the JSON body into dst and runs its validation tags.
func decodeValid(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

// =============================================================================
// WORKER HANDLERS
// =============================================================================

// ListWorkers returns all workers, active and inactive.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Store.ListWorkers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list workers", err)
		return
	}
	dtos := make([]WorkerDTO, len(workers))
	for i := range workers {
		dtos[i] = workerDTO(&workers[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetWorker returns a single worker.
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	id := ledger.WorkerID(chi.URLParam(r, "id"))
	worker, err := h.Store.GetWorker(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get worker", err)
		return
	}
	writeJSON(w, http.StatusOK, workerDTO(worker))
}

// CreateWorker registers a new worker.
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req WorkerRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in, err := workerInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate", err)
		return
	}
	worker, err := h.Roster.Add(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to create worker", err)
		return
	}
	h.Log.Infow("worker registered", "worker_id", worker.ID, "name", worker.Name)
	writeJSON(w, http.StatusCreated, workerDTO(worker))
}

// UpdateWorker replaces a worker's profile fields.
func (h *Handler) UpdateWorker(w http.ResponseWriter, r *http.Request) {
	id := ledger.WorkerID(chi.URLParam(r, "id"))
	var req WorkerRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in, err := workerInput(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate", err)
		return
	}
	worker, err := h.Roster.Update(r.Context(), id, in)
	if err != nil {
		writeDomainError(w, "Failed to update worker", err)
		return
	}
	writeJSON(w, http.StatusOK, workerDTO(worker))
}

// SetWorkerActive toggles issuance eligibility.
func (h *Handler) SetWorkerActive(w http.ResponseWriter, r *http.Request) {
	id := ledger.WorkerID(chi.URLParam(r, "id"))
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	worker, err := h.Roster.SetActive(r.Context(), id, req.Active)
	if err != nil {
		writeDomainError(w, "Failed to update worker", err)
		return
	}
	writeJSON(w, http.StatusOK, workerDTO(worker))
}

func workerInput(req WorkerRequest) (production.WorkerInput, error) {
	in := production.WorkerInput{
		Name:          req.Name,
		Mobile:        req.Mobile,
		Skill:         req.Skill,
		PaymentMethod: ledger.PaymentMethod(req.PaymentMethod),
		UPIID:         req.UPIID,
	}
	if len(req.Rates) > 0 {
		in.Rates = make(map[ledger.StageID]ledger.Money, len(req.Rates))
		for stage, raw := range req.Rates {
			rate, err := ledger.ParseMoney(raw)
			if err != nil {
				return in, err
			}
			in.Rates[ledger.StageID(stage)] = rate
		}
	}
	return in, nil
}

// =============================================================================
// ADVANCE HANDLERS
// =============================================================================

// ListWorkerAdvances returns a worker's advance ledger in insertion order.
func (h *Handler) ListWorkerAdvances(w http.ResponseWriter, r *http.Request) {
	id := ledger.WorkerID(chi.URLParam(r, "id"))
	entries, err := h.Advances.History(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to list advances", err)
		return
	}
	dtos := make([]AdvanceTxDTO, len(entries))
	for i := range entries {
		dtos[i] = advanceTxDTO(&entries[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecordAdvance appends a GIVEN or RECOVERED entry and moves the stored
// balance in the same transaction.
func (h *Handler) RecordAdvance(w http.ResponseWriter, r *http.Request) {
	id := ledger.WorkerID(chi.URLParam(r, "id"))
	var req AdvanceRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	amount, err := ledger.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}
	date, err := parseDateOrToday(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	var entry *ledger.AdvanceTransaction
	if ledger.AdvanceTxType(req.Type) == ledger.AdvanceGiven {
		entry, err = h.Advances.Give(r.Context(), id, amount, date, req.Note)
	} else {
		entry, err = h.Advances.Recover(r.Context(), id, amount, date, req.Note)
	}
	if err != nil {
		writeDomainError(w, "Failed to record advance", err)
		return
	}
	h.Log.Infow("advance recorded",
		"worker_id", id, "type", entry.Type, "amount", entry.Amount.Display())
	writeJSON(w, http.StatusCreated, advanceTxDTO(entry))
}

// GetAdvanceBalance returns the stored balance next to the log-derived one.
func (h *Handler) GetAdvanceBalance(w http.ResponseWriter, r *http.Request) {
	id := ledger.WorkerID(chi.URLParam(r, "id"))
	worker, err := h.Store.GetWorker(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get worker", err)
		return
	}
	derived, err := h.Advances.BalanceFromLog(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to derive balance", err)
		return
	}
	writeJSON(w, http.StatusOK, AdvanceBalanceDTO{
		WorkerID: string(id),
		Stored:   worker.AdvanceBalance.Display(),
		Derived:  derived.Display(),
		InSync:   worker.AdvanceBalance.Equal(derived),
	})
}

// =============================================================================
// STAGE HANDLERS
// =============================================================================

// ListStages returns the stage catalog.
func (h *Handler) ListStages(w http.ResponseWriter, r *http.Request) {
	stages, err := h.Store.ListStages(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list stages", err)
		return
	}
	dtos := make([]StageDTO, len(stages))
	for i := range stages {
		dtos[i] = stageDTO(&stages[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateStage edits a catalog stage. Running lots keep their snapshots.
func (h *Handler) UpdateStage(w http.ResponseWriter, r *http.Request) {
	id := ledger.StageID(chi.URLParam(r, "id"))
	var req StageRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rate, err := ledger.ParseMoney(req.BaseRate)
	if err != nil || rate.IsNegative() {
		writeError(w, http.StatusBadRequest, "Invalid base rate", err)
		return
	}
	stage := ledger.Stage{ID: id, Name: req.Name, BaseRate: rate}
	if err := h.Store.SaveStage(r.Context(), stage); err != nil {
		writeDomainError(w, "Failed to save stage", err)
		return
	}
	writeJSON(w, http.StatusOK, stageDTO(&stage))
}

// =============================================================================
// LOT HANDLERS
// =============================================================================

// ListLots returns all lots.
func (h *Handler) ListLots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.Store.ListLots(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list lots", err)
		return
	}
	dtos := make([]LotDTO, len(lots))
	for i := range lots {
		dtos[i] = lotDTO(&lots[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLot returns a single lot with its frozen stage rates.
func (h *Handler) GetLot(w http.ResponseWriter, r *http.Request) {
	id := ledger.LotID(chi.URLParam(r, "id"))
	lot, err := h.Store.GetLot(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get lot", err)
		return
	}
	writeJSON(w, http.StatusOK, lotDTO(lot))
}

// CreateLot opens a lot, snapshotting the stage catalog.
func (h *Handler) CreateLot(w http.ResponseWriter, r *http.Request) {
	var req CreateLotRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := production.NewLotInput{
		LotNumber:     req.LotNumber,
		Design:        req.Design,
		Color:         req.Color,
		Description:   req.Description,
		TotalQuantity: req.TotalQuantity,
	}
	if req.Date != "" {
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
		in.Date = date
	}
	for _, ed := range req.ExtraDetails {
		in.ExtraDetails = append(in.ExtraDetails, ledger.LotExtraDetail{
			ID: ed.ID, Label: ed.Label, Value: ed.Value,
		})
	}
	if len(req.StageRates) > 0 {
		in.StageRates = make(map[ledger.StageID]ledger.Money, len(req.StageRates))
		for stage, raw := range req.StageRates {
			rate, err := ledger.ParseMoney(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid stage rate", err)
				return
			}
			in.StageRates[ledger.StageID(stage)] = rate
		}
	}

	lot, err := h.Production.CreateLot(r.Context(), in)
	if err != nil {
		writeDomainError(w, "Failed to create lot", err)
		return
	}
	h.Log.Infow("lot opened", "lot_id", lot.ID, "lot_number", lot.LotNumber,
		"quantity", lot.TotalQuantity)
	writeJSON(w, http.StatusCreated, lotDTO(lot))
}

// SetLotStatus moves a lot between RUNNING and COMPLETED.
func (h *Handler) SetLotStatus(w http.ResponseWriter, r *http.Request) {
	id := ledger.LotID(chi.URLParam(r, "id"))
	var req LotStatusRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	lot, err := h.Production.SetLotStatus(r.Context(), id, ledger.LotStatus(req.Status))
	if err != nil {
		writeDomainError(w, "Failed to update lot status", err)
		return
	}
	writeJSON(w, http.StatusOK, lotDTO(lot))
}

// GetLotProgress returns per-stage completion against potential work.
func (h *Handler) GetLotProgress(w http.ResponseWriter, r *http.Request) {
	id := ledger.LotID(chi.URLParam(r, "id"))
	progress, err := h.Reports.LotProgress(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to compute lot progress", err)
		return
	}
	writeJSON(w, http.StatusOK, lotProgressDTO(progress))
}

// =============================================================================
// JOB WORK HANDLERS
// =============================================================================

// ListJobWorks returns all issued work, enriched with display names.
func (h *Handler) ListJobWorks(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Store.ListJobWorks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list job works", err)
		return
	}
	names, err := h.displayNames(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve names", err)
		return
	}
	dtos := make([]JobWorkDTO, len(jobs))
	for i := range jobs {
		dtos[i] = names.enrich(jobWorkDTO(&jobs[i]), &jobs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// IssueWork hands work to a worker, freezing the piece-rate.
func (h *Handler) IssueWork(w http.ResponseWriter, r *http.Request) {
	var req IssueWorkRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := parseDateOrToday(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	job, err := h.Production.IssueWork(r.Context(), production.IssueInput{
		WorkerID: ledger.WorkerID(req.WorkerID),
		LotID:    ledger.LotID(req.LotID),
		StageID:  ledger.StageID(req.StageID),
		Date:     date,
		Qty:      req.Qty,
	})
	if err != nil {
		writeDomainError(w, "Failed to issue work", err)
		return
	}
	h.Log.Infow("work issued", "job_id", job.ID, "worker_id", job.WorkerID,
		"stage_id", job.StageID, "qty", job.QtyGiven, "rate", job.RateAtTime.Display())
	writeJSON(w, http.StatusCreated, jobWorkDTO(job))
}

// =============================================================================
// SETTLEMENT HANDLERS
// =============================================================================

// ListPendingSettlements returns the pending candidates grouped by worker.
func (h *Handler) ListPendingSettlements(w http.ResponseWriter, r *http.Request) {
	candidates, err := h.Settlement.PendingByWorker(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to group pending work", err)
		return
	}
	dtos := make([]CandidateDTO, len(candidates))
	for i := range candidates {
		dtos[i] = candidateDTO(&candidates[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PreviewSettlement runs the wage arithmetic without committing anything.
func (h *Handler) PreviewSettlement(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	candidate, err := h.Settlement.CandidateFor(r.Context(), ledger.WorkerID(req.WorkerID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load pending work", err)
		return
	}
	if candidate == nil {
		writeError(w, http.StatusNotFound, "No pending work for worker", nil)
		return
	}
	summary, err := settlement.Summarize(candidate, entered(req.Quantities))
	if err != nil {
		writeDomainError(w, "Failed to compute settlement", err)
		return
	}
	writeJSON(w, http.StatusOK, summaryDTO(summary))
}

// FinalizeSettlement commits a settlement atomically.
func (h *Handler) FinalizeSettlement(w http.ResponseWriter, r *http.Request) {
	var req SettleRequest
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	result, err := h.Settlement.Finalize(r.Context(),
		ledger.WorkerID(req.WorkerID), entered(req.Quantities))
	if err != nil {
		writeDomainError(w, "Failed to finalize settlement", err)
		return
	}

	h.Log.Infow("settlement finalized",
		"payment_id", result.Payment.ID,
		"worker_id", result.Payment.WorkerID,
		"gross", result.Payment.TotalAmount.Display(),
		"net", result.Payment.NetPayable.Display(),
		"jobs_paid", len(result.PaidJobs),
		"jobs_carried", len(result.BalanceJobs))

	dto := SettlementResultDTO{
		Payment: paymentDTO(&result.Payment),
		Summary: summaryDTO(result.Summary),
	}
	for i := range result.PaidJobs {
		dto.PaidJobs = append(dto.PaidJobs, jobWorkDTO(&result.PaidJobs[i]))
	}
	for i := range result.BalanceJobs {
		dto.BalanceJobs = append(dto.BalanceJobs, jobWorkDTO(&result.BalanceJobs[i]))
	}
	writeJSON(w, http.StatusCreated, dto)
}

func entered(quantities map[string]int64) settlement.Entered {
	e := make(settlement.Entered, len(quantities))
	for id, qty := range quantities {
		e[ledger.JobWorkID(id)] = qty
	}
	return e
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ListPayments returns payment history, newest last.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Store.ListPayments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	names, err := h.displayNames(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve names", err)
		return
	}
	dtos := make([]PaymentDTO, len(payments))
	for i := range payments {
		dtos[i] = paymentDTO(&payments[i])
		dtos[i].WorkerName = names.worker(payments[i].WorkerID)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPayment returns a single payment.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := ledger.PaymentID(chi.URLParam(r, "id"))
	payment, err := h.Store.GetPayment(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get payment", err)
		return
	}
	writeJSON(w, http.StatusOK, paymentDTO(payment))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetDashboard returns the headline factory view.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Reports.Dashboard(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, dashboardDTO(d))
}

// GetLabourReport aggregates earnings per worker over ?from=..&to=..
func (h *Handler) GetLabourReport(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse(dateLayout, r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return
	}
	to, err := time.Parse(dateLayout, r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return
	}
	rows, err := h.Reports.LabourReport(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute labour report", err)
		return
	}
	dtos := make([]WorkerEarningsDTO, len(rows))
	for i, row := range rows {
		dtos[i] = earningsDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDailySummary returns one day's activity, defaulting to today.
func (h *Handler) GetDailySummary(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
			return
		}
		day = parsed
	}
	summary, err := h.Reports.DailySummary(r.Context(), day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute daily summary", err)
		return
	}
	writeJSON(w, http.StatusOK, dailySummaryDTO(summary))
}

// =============================================================================
// HELPERS
// =============================================================================

// displayNameIndex resolves ids to human names for list enrichment.
// Dangling references display as "Unknown" rather than failing the list.
type displayNameIndex struct {
	workers map[ledger.WorkerID]string
	lots    map[ledger.LotID]string
	stages  map[ledger.StageID]string
}

func (h *Handler) displayNames(r *http.Request) (*displayNameIndex, error) {
	workers, err := h.Store.ListWorkers(r.Context())
	if err != nil {
		return nil, err
	}
	lots, err := h.Store.ListLots(r.Context())
	if err != nil {
		return nil, err
	}
	stages, err := h.Store.ListStages(r.Context())
	if err != nil {
		return nil, err
	}
	idx := &displayNameIndex{
		workers: make(map[ledger.WorkerID]string, len(workers)),
		lots:    make(map[ledger.LotID]string, len(lots)),
		stages:  make(map[ledger.StageID]string, len(stages)),
	}
	for _, w := range workers {
		idx.workers[w.ID] = w.Name
	}
	for _, l := range lots {
		idx.lots[l.ID] = l.LotNumber
	}
	for _, s := range stages {
		idx.stages[s.ID] = s.Name
	}
	return idx, nil
}

func (idx *displayNameIndex) worker(id ledger.WorkerID) string {
	if name, ok := idx.workers[id]; ok {
		return name
	}
	return "Unknown"
}

func (idx *displayNameIndex) enrich(dto JobWorkDTO, j *ledger.JobWork) JobWorkDTO {
	dto.WorkerName = idx.worker(j.WorkerID)
	if name, ok := idx.lots[j.LotID]; ok {
		dto.LotNumber = name
	} else {
		dto.LotNumber = "Unknown"
	}
	if name, ok := idx.stages[j.StageID]; ok {
		dto.StageName = name
	} else {
		dto.StageName = "Unknown"
	}
	return dto
}

func parseDateOrToday(raw string) (time.Time, error) {
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(dateLayout, raw)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain error classes onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, ledger.ErrQtyExceedsIssued):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case ledger.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
