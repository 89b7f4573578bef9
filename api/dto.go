/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND DATES:
  Money travels as a decimal string ("4.50") in both directions; the API
  never touches floats. Dates are YYYY-MM-DD, timestamps RFC3339.

VALIDATION:
  Request types carry go-playground/validator struct tags; decodeValid in
  handlers.go runs them. Domain rules (rates, quantities, statuses) are
  still enforced by the domain packages - the tags only gate shape.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/rbstextile/piecework-engine/ledger"
	"github.com/rbstextile/piecework-engine/reports"
	"github.com/rbstextile/piecework-engine/settlement"
)

// =============================================================================
// WORKER TYPES
// =============================================================================

// WorkerDTO represents a worker in API responses.
type WorkerDTO struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Mobile         string            `json:"mobile,omitempty"`
	Skill          string            `json:"skill,omitempty"`
	Rates          map[string]string `json:"rates,omitempty"`
	AdvanceBalance string            `json:"advance_balance"`
	PaymentMethod  string            `json:"payment_method"`
	UPIID          string            `json:"upi_id,omitempty"`
	Active         bool              `json:"active"`
	CreatedAt      string            `json:"created_at,omitempty"`
}

// WorkerRequest is the request to create or update a worker.
type WorkerRequest struct {
	Name          string            `json:"name" validate:"required,min=1,max=120"`
	Mobile        string            `json:"mobile" validate:"omitempty,max=20"`
	Skill         string            `json:"skill" validate:"omitempty,max=80"`
	Rates         map[string]string `json:"rates" validate:"omitempty,dive,keys,required,endkeys,required"`
	PaymentMethod string            `json:"payment_method" validate:"omitempty,oneof=CASH UPI"`
	UPIID         string            `json:"upi_id" validate:"omitempty,max=120"`
}

// =============================================================================
// STAGE AND LOT TYPES
// =============================================================================

// StageDTO represents a catalog stage.
type StageDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	BaseRate string `json:"base_rate"`
}

// StageRequest updates a catalog stage's name or base rate.
type StageRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=120"`
	BaseRate string `json:"base_rate" validate:"required"`
}

// LotStageRateDTO is a lot's frozen per-stage rate.
type LotStageRateDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Rate string `json:"rate"`
}

// ExtraDetailDTO is a free-form label/value pair on a lot.
type ExtraDetailDTO struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label" validate:"required,max=80"`
	Value string `json:"value" validate:"max=240"`
}

// LotDTO represents a lot in API responses.
type LotDTO struct {
	ID            string            `json:"id"`
	LotNumber     string            `json:"lot_number"`
	Date          string            `json:"date"`
	Design        string            `json:"design,omitempty"`
	Color         string            `json:"color,omitempty"`
	Description   string            `json:"description,omitempty"`
	ExtraDetails  []ExtraDetailDTO  `json:"extra_details,omitempty"`
	TotalQuantity int64             `json:"total_quantity"`
	Status        string            `json:"status"`
	StageRates    []LotStageRateDTO `json:"stage_rates"`
	CreatedAt     string            `json:"created_at,omitempty"`
}

// CreateLotRequest is the request to open a lot.
type CreateLotRequest struct {
	LotNumber     string            `json:"lot_number" validate:"required,min=1,max=60"`
	Date          string            `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Design        string            `json:"design" validate:"omitempty,max=120"`
	Color         string            `json:"color" validate:"omitempty,max=60"`
	Description   string            `json:"description" validate:"omitempty,max=500"`
	ExtraDetails  []ExtraDetailDTO  `json:"extra_details" validate:"omitempty,dive"`
	TotalQuantity int64             `json:"total_quantity" validate:"required,gt=0"`
	StageRates    map[string]string `json:"stage_rates" validate:"omitempty,dive,keys,required,endkeys,required"`
}

// LotStatusRequest moves a lot between RUNNING and COMPLETED.
type LotStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=RUNNING COMPLETED"`
}

// =============================================================================
// JOB WORK TYPES
// =============================================================================

// JobWorkDTO represents an issued piece of work.
type JobWorkDTO struct {
	ID           string `json:"id"`
	WorkerID     string `json:"worker_id"`
	WorkerName   string `json:"worker_name,omitempty"`
	LotID        string `json:"lot_id"`
	LotNumber    string `json:"lot_number,omitempty"`
	StageID      string `json:"stage_id"`
	StageName    string `json:"stage_name,omitempty"`
	Date         string `json:"date"`
	QtyGiven     int64  `json:"qty_given"`
	QtyCompleted int64  `json:"qty_completed"`
	RateAtTime   string `json:"rate_at_time"`
	Amount       string `json:"amount"` // qty_given x rate_at_time
	PaymentID    string `json:"payment_id,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// IssueWorkRequest hands work to a worker.
type IssueWorkRequest struct {
	WorkerID string `json:"worker_id" validate:"required"`
	LotID    string `json:"lot_id" validate:"required"`
	StageID  string `json:"stage_id" validate:"required"`
	Date     string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Qty      int64  `json:"qty" validate:"required,gt=0"`
}

// =============================================================================
// SETTLEMENT TYPES
// =============================================================================

// CandidateDTO is one worker's pending settlement.
type CandidateDTO struct {
	WorkerID       string       `json:"worker_id"`
	WorkerName     string       `json:"worker_name"`
	AdvanceBalance string       `json:"advance_balance"`
	PaymentMethod  string       `json:"payment_method"`
	UPIID          string       `json:"upi_id,omitempty"`
	PendingJobs    []JobWorkDTO `json:"pending_jobs"`
}

// SettleRequest previews or finalizes a settlement. Quantities maps job
// work id to the quantity finished now; jobs absent or zero are untouched.
type SettleRequest struct {
	WorkerID   string           `json:"worker_id" validate:"required"`
	Quantities map[string]int64 `json:"quantities" validate:"required,min=1"`
}

// SummaryDTO is the wage arithmetic of a settlement.
type SummaryDTO struct {
	Gross           string `json:"gross"`
	AdvanceDeducted string `json:"advance_deducted"`
	Net             string `json:"net"`
}

// SettlementResultDTO is a finalized settlement.
type SettlementResultDTO struct {
	Payment     PaymentDTO   `json:"payment"`
	PaidJobs    []JobWorkDTO `json:"paid_jobs"`
	BalanceJobs []JobWorkDTO `json:"balance_jobs,omitempty"`
	Summary     SummaryDTO   `json:"summary"`
}

// PaymentDTO represents a payment record.
type PaymentDTO struct {
	ID              string   `json:"id"`
	WorkerID        string   `json:"worker_id"`
	WorkerName      string   `json:"worker_name,omitempty"`
	JobWorkIDs      []string `json:"job_work_ids"`
	TotalAmount     string   `json:"total_amount"`
	AdvanceDeducted string   `json:"advance_deducted"`
	NetPayable      string   `json:"net_payable"`
	Method          string   `json:"method"`
	Date            string   `json:"date"`
	Status          string   `json:"status"`
	CreatedAt       string   `json:"created_at,omitempty"`
}

// =============================================================================
// ADVANCE TYPES
// =============================================================================

// AdvanceTxDTO represents one advance ledger entry.
type AdvanceTxDTO struct {
	ID        string `json:"id"`
	WorkerID  string `json:"worker_id"`
	Amount    string `json:"amount"`
	Date      string `json:"date"`
	Type      string `json:"type"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// AdvanceRequest records an advance given to or recovered from a worker.
type AdvanceRequest struct {
	Amount string `json:"amount" validate:"required"`
	Date   string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Type   string `json:"type" validate:"required,oneof=GIVEN RECOVERED"`
	Note   string `json:"note" validate:"omitempty,max=240"`
}

// AdvanceBalanceDTO reports the stored and log-derived balances side by
// side so drift is visible.
type AdvanceBalanceDTO struct {
	WorkerID string `json:"worker_id"`
	Stored   string `json:"stored"`
	Derived  string `json:"derived"`
	InSync   bool   `json:"in_sync"`
}

// =============================================================================
// REPORT TYPES
// =============================================================================

// DashboardDTO is the headline factory view.
type DashboardDTO struct {
	ActiveWorkers      int    `json:"active_workers"`
	RunningLots        int    `json:"running_lots"`
	PendingJobs        int    `json:"pending_jobs"`
	PendingQty         int64  `json:"pending_qty"`
	PendingAmount      string `json:"pending_amount"`
	AdvanceOutstanding string `json:"advance_outstanding"`
}

// StageProgressDTO is one stage's row in a lot progress report.
type StageProgressDTO struct {
	StageID   string `json:"stage_id"`
	StageName string `json:"stage_name"`
	Issued    int64  `json:"issued"`
	Completed int64  `json:"completed"`
	Wages     string `json:"wages"`
}

// LotProgressDTO measures a lot against its potential work.
type LotProgressDTO struct {
	LotID         string             `json:"lot_id"`
	LotNumber     string             `json:"lot_number"`
	Status        string             `json:"status"`
	TotalQuantity int64              `json:"total_quantity"`
	PotentialWork int64              `json:"potential_work"`
	CompletedWork int64              `json:"completed_work"`
	Percent       float64            `json:"percent"`
	Stages        []StageProgressDTO `json:"stages"`
}

// WorkerEarningsDTO is one row of the labour report.
type WorkerEarningsDTO struct {
	WorkerID       string `json:"worker_id"`
	WorkerName     string `json:"worker_name"`
	JobsSettled    int    `json:"jobs_settled"`
	PiecesSettled  int64  `json:"pieces_settled"`
	GrossEarned    string `json:"gross_earned"`
	AdvanceCut     string `json:"advance_cut"`
	NetPaid        string `json:"net_paid"`
	AdvanceBalance string `json:"advance_balance"`
}

// DailySummaryDTO is one day's activity.
type DailySummaryDTO struct {
	Date          string `json:"date"`
	PiecesIssued  int64  `json:"pieces_issued"`
	JobsIssued    int    `json:"jobs_issued"`
	PaymentsMade  int    `json:"payments_made"`
	GrossSettled  string `json:"gross_settled"`
	NetPaidOut    string `json:"net_paid_out"`
	AdvancesGiven string `json:"advances_given"`
	AdvancesTaken string `json:"advances_taken"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// DOMAIN -> DTO CONVERSION
// =============================================================================

const dateLayout = "2006-01-02"

func workerDTO(w *ledger.Worker) WorkerDTO {
	dto := WorkerDTO{
		ID:             string(w.ID),
		Name:           w.Name,
		Mobile:         w.Mobile,
		Skill:          w.Skill,
		AdvanceBalance: w.AdvanceBalance.Display(),
		PaymentMethod:  string(w.PaymentMethod),
		UPIID:          w.UPIID,
		Active:         w.Active,
		CreatedAt:      w.CreatedAt.Format(time.RFC3339),
	}
	if len(w.Rates) > 0 {
		dto.Rates = make(map[string]string, len(w.Rates))
		for stage, rate := range w.Rates {
			dto.Rates[string(stage)] = rate.Display()
		}
	}
	return dto
}

func stageDTO(s *ledger.Stage) StageDTO {
	return StageDTO{ID: string(s.ID), Name: s.Name, BaseRate: s.BaseRate.Display()}
}

func lotDTO(l *ledger.Lot) LotDTO {
	dto := LotDTO{
		ID:            string(l.ID),
		LotNumber:     l.LotNumber,
		Date:          l.Date.Format(dateLayout),
		Design:        l.Design,
		Color:         l.Color,
		Description:   l.Description,
		TotalQuantity: l.TotalQuantity,
		Status:        string(l.Status),
		CreatedAt:     l.CreatedAt.Format(time.RFC3339),
	}
	for _, sr := range l.StageRates {
		dto.StageRates = append(dto.StageRates, LotStageRateDTO{
			ID: string(sr.ID), Name: sr.Name, Rate: sr.Rate.Display(),
		})
	}
	for _, ed := range l.ExtraDetails {
		dto.ExtraDetails = append(dto.ExtraDetails, ExtraDetailDTO{
			ID: ed.ID, Label: ed.Label, Value: ed.Value,
		})
	}
	return dto
}

func jobWorkDTO(j *ledger.JobWork) JobWorkDTO {
	return JobWorkDTO{
		ID:           string(j.ID),
		WorkerID:     string(j.WorkerID),
		LotID:        string(j.LotID),
		StageID:      string(j.StageID),
		Date:         j.Date.Format(dateLayout),
		QtyGiven:     j.QtyGiven,
		QtyCompleted: j.QtyCompleted,
		RateAtTime:   j.RateAtTime.Display(),
		Amount:       j.RateAtTime.MulQty(j.QtyGiven).Display(),
		PaymentID:    string(j.PaymentID),
		CreatedAt:    j.CreatedAt.Format(time.RFC3339),
	}
}

func paymentDTO(p *ledger.Payment) PaymentDTO {
	ids := make([]string, len(p.JobWorkIDs))
	for i, id := range p.JobWorkIDs {
		ids[i] = string(id)
	}
	return PaymentDTO{
		ID:              string(p.ID),
		WorkerID:        string(p.WorkerID),
		JobWorkIDs:      ids,
		TotalAmount:     p.TotalAmount.Display(),
		AdvanceDeducted: p.AdvanceDeducted.Display(),
		NetPayable:      p.NetPayable.Display(),
		Method:          string(p.Method),
		Date:            p.Date.Format(dateLayout),
		Status:          string(p.Status),
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
	}
}

func advanceTxDTO(a *ledger.AdvanceTransaction) AdvanceTxDTO {
	return AdvanceTxDTO{
		ID:        string(a.ID),
		WorkerID:  string(a.WorkerID),
		Amount:    a.Amount.Display(),
		Date:      a.Date.Format(dateLayout),
		Type:      string(a.Type),
		Note:      a.Note,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

func candidateDTO(c *settlement.Candidate) CandidateDTO {
	dto := CandidateDTO{
		WorkerID:       string(c.WorkerID),
		WorkerName:     c.WorkerName,
		AdvanceBalance: c.AdvanceBalance.Display(),
		PaymentMethod:  string(c.PaymentMethod),
		UPIID:          c.UPIID,
		PendingJobs:    make([]JobWorkDTO, len(c.PendingJobs)),
	}
	for i := range c.PendingJobs {
		dto.PendingJobs[i] = jobWorkDTO(&c.PendingJobs[i])
	}
	return dto
}

func summaryDTO(s settlement.Summary) SummaryDTO {
	return SummaryDTO{
		Gross:           s.Gross.Display(),
		AdvanceDeducted: s.AdvanceDeducted.Display(),
		Net:             s.Net.Display(),
	}
}

func dashboardDTO(d *reports.Dashboard) DashboardDTO {
	return DashboardDTO{
		ActiveWorkers:      d.ActiveWorkers,
		RunningLots:        d.RunningLots,
		PendingJobs:        d.PendingJobs,
		PendingQty:         d.PendingQty,
		PendingAmount:      d.PendingAmount.Display(),
		AdvanceOutstanding: d.AdvanceOutstanding.Display(),
	}
}

func lotProgressDTO(p *reports.LotProgress) LotProgressDTO {
	dto := LotProgressDTO{
		LotID:         string(p.LotID),
		LotNumber:     p.LotNumber,
		Status:        string(p.Status),
		TotalQuantity: p.TotalQuantity,
		PotentialWork: p.PotentialWork,
		CompletedWork: p.CompletedWork,
		Percent:       p.Percent,
	}
	for _, sp := range p.Stages {
		dto.Stages = append(dto.Stages, StageProgressDTO{
			StageID:   string(sp.StageID),
			StageName: sp.StageName,
			Issued:    sp.Issued,
			Completed: sp.Completed,
			Wages:     sp.Wages.Display(),
		})
	}
	return dto
}

func earningsDTO(r reports.WorkerEarnings) WorkerEarningsDTO {
	return WorkerEarningsDTO{
		WorkerID:       string(r.WorkerID),
		WorkerName:     r.WorkerName,
		JobsSettled:    r.JobsSettled,
		PiecesSettled:  r.PiecesSettled,
		GrossEarned:    r.GrossEarned.Display(),
		AdvanceCut:     r.AdvanceCut.Display(),
		NetPaid:        r.NetPaid.Display(),
		AdvanceBalance: r.AdvanceBalance.Display(),
	}
}

func dailySummaryDTO(d *reports.DailySummary) DailySummaryDTO {
	return DailySummaryDTO{
		Date:          d.Date.Format(dateLayout),
		PiecesIssued:  d.PiecesIssued,
		JobsIssued:    d.JobsIssued,
		PaymentsMade:  d.PaymentsMade,
		GrossSettled:  d.GrossSettled.Display(),
		NetPaidOut:    d.NetPaidOut.Display(),
		AdvancesGiven: d.AdvancesGiven.Display(),
		AdvancesTaken: d.AdvancesTaken.Display(),
	}
}
