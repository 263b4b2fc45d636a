/*
handlers.go - HTTP API handlers for the TA allocation engine

PURPOSE:
  Exposes postings, offerings, duty descriptions and contracts via a REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  engine's ContractService.

ENDPOINTS:
  Postings:
    POST   /api/postings                          Create/replace posting from JSON
    GET    /api/postings/{id}                     Get posting JSON
    GET    /api/postings/{id}/allocations         Entitlement summary per offering
    GET    /api/postings/{id}/allocations.xlsx    Same, as a workbook
    GET    /api/postings/{id}/contracts           Contracts with compensation
    POST   /api/postings/{id}/contracts           Create contract
    POST   /api/postings/{id}/payroll             Export next payroll batch (CSV)

  Offerings and duty descriptions:
    POST   /api/offerings                         Create/replace offering
    GET    /api/offerings/{id}                    Get offering
    GET    /api/offerings/{id}/allocation         Allocation under the offering's posting
    GET    /api/postings/{id}/offerings/{offering}/allocation  One offering
    POST   /api/descriptions                      Create/replace description
    GET    /api/descriptions?unit=CMPT            List descriptions of a unit

  Contracts:
    GET    /api/contracts/{id}                    Contract with compensation
    POST   /api/contracts/{id}/transitions        Change status
    POST   /api/contracts/{id}/reopen             Administrative re-open
    PUT    /api/contracts/{id}/assignments        Replace course assignments
    GET    /api/contracts/{id}/letter             Offer letter values
    POST   /api/contracts/{id}/tug/{offering}     Validate a Time Use Guideline

  Demo data (scenarios.go):
    GET    /api/scenarios                         List scenarios
    POST   /api/scenarios/load                    Load a scenario

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 404: Posting, offering, contract or description not found
  - 409: Forbidden state transition, duplicate contract
  - 412: Posting misconfigured (rates, accounts, pay periods, descriptions)
  - 422: Validation errors, every violated field in details
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization here. Role checks belong to the gateway.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/ta-engine/engine"
	"github.com/warp/ta-engine/export"
	"github.com/warp/ta-engine/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store          engine.TxStore
	Service        *engine.ContractService
	Exporter       *export.Exporter
	PostingFactory *factory.PostingFactory
	Logger         *zap.Logger
}

// NewHandler creates a handler over a store and a contract service.
func NewHandler(store engine.TxStore, service *engine.ContractService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:          store,
		Service:        service,
		Exporter:       export.NewExporter(store, logger),
		PostingFactory: factory.NewPostingFactory(),
		Logger:         logger,
	}
}

// =============================================================================
// POSTING HANDLERS
// =============================================================================

// CreatePosting stores a posting parsed from its JSON form. The stores keep the
// export sequence of an existing posting.
func (h *Handler) CreatePosting(w http.ResponseWriter, r *http.Request) {
	var pj factory.PostingJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", err)
		return
	}
	p, err := h.PostingFactory.FromJSON(pj)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if err := h.Store.SavePosting(r.Context(), p); err != nil {
		h.writeEngineError(w, err)
		return
	}
	stored, err := h.Store.GetPosting(r.Context(), p.ID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.PostingFactory.ToJSON(stored))
}

// GetPosting returns a posting in its JSON form.
func (h *Handler) GetPosting(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetPosting(r.Context(), engine.PostingID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.PostingFactory.ToJSON(p))
}

// ListAllocations returns the entitlement summary of every offering.
func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	_, allocations, err := h.Service.PostingAllocations(r.Context(), engine.PostingID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	dtos := make([]AllocationDTO, len(allocations))
	for i, a := range allocations {
		dtos[i] = toAllocationDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AllocationReport returns the allocation summary as an .xlsx workbook.
func (h *Handler) AllocationReport(w http.ResponseWriter, r *http.Request) {
	p, allocations, err := h.Service.PostingAllocations(r.Context(), engine.PostingID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="allocations_%s.xlsx"`, p.ID))
	if err := export.WriteAllocationReport(w, p, allocations); err != nil {
		h.Logger.Error("allocation report failed", zap.String("posting_id", string(p.ID)), zap.Error(err))
	}
}

// GetOfferingAllocation returns the entitlement summary of one offering.
func (h *Handler) GetOfferingAllocation(w http.ResponseWriter, r *http.Request) {
	a, err := h.Service.OfferingAllocation(r.Context(),
		engine.PostingID(chi.URLParam(r, "id")), engine.OfferingID(chi.URLParam(r, "offering")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTO(a))
}

// GetAllocation returns the entitlement summary of an offering under the
// posting of its unit and semester.
func (h *Handler) GetAllocation(w http.ResponseWriter, r *http.Request) {
	a, err := h.Service.Allocation(r.Context(), engine.OfferingID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTO(a))
}

// ExportPayroll produces the next payroll batch of the posting as CSV.
func (h *Handler) ExportPayroll(w http.ResponseWriter, r *http.Request) {
	batch, err := h.Exporter.PayrollBatch(r.Context(), engine.PostingID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, batch.ID))
	w.Header().Set("X-Batch-ID", batch.ID)
	if err := batch.WriteCSV(w); err != nil {
		h.Logger.Error("payroll csv failed", zap.String("batch_id", batch.ID), zap.Error(err))
	}
}

// =============================================================================
// OFFERING AND DESCRIPTION HANDLERS
// =============================================================================

// SaveOffering creates or replaces an offering.
func (h *Handler) SaveOffering(w http.ResponseWriter, r *http.Request) {
	var req OfferingRequest
	if err := decode(r, &req); err != nil {
		h.writeEngineError(w, err)
		return
	}
	o := toOffering(req)
	if err := h.Store.SaveOffering(r.Context(), o); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOfferingDTO(o))
}

// GetOffering returns one offering.
func (h *Handler) GetOffering(w http.ResponseWriter, r *http.Request) {
	o, err := h.Store.GetOffering(r.Context(), engine.OfferingID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOfferingDTO(o))
}

// SaveDescription creates or replaces a duty description.
func (h *Handler) SaveDescription(w http.ResponseWriter, r *http.Request) {
	var req DescriptionRequest
	if err := decode(r, &req); err != nil {
		h.writeEngineError(w, err)
		return
	}
	d := engine.DutyDescription{
		ID:              engine.DescriptionID(req.ID),
		UnitLabel:       req.Unit,
		Description:     req.Description,
		IsLabOrTutorial: req.IsLabOrTutorial,
		Hidden:          req.Hidden,
	}
	if err := h.Store.SaveDescription(r.Context(), d); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDescriptionDTO(d))
}

// ListDescriptions returns the duty descriptions of a unit.
func (h *Handler) ListDescriptions(w http.ResponseWriter, r *http.Request) {
	unit := r.URL.Query().Get("unit")
	if unit == "" {
		writeError(w, http.StatusBadRequest, "unit query parameter is required", nil)
		return
	}
	descs, err := h.Store.ListDescriptions(r.Context(), unit)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	dtos := make([]DescriptionDTO, len(descs))
	for i, d := range descs {
		dtos[i] = toDescriptionDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CONTRACT HANDLERS
// =============================================================================

// ListContracts returns the contracts of a posting with their compensation.
func (h *Handler) ListContracts(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Service.PostingContracts(r.Context(), engine.PostingID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	dtos := make([]ContractDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = toContractDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateContract creates a NEW contract in a posting.
func (h *Handler) CreateContract(w http.ResponseWriter, r *http.Request) {
	var req CreateContractRequest
	if err := decode(r, &req); err != nil {
		h.writeEngineError(w, err)
		return
	}

	in := engine.NewContract{
		PostingID:     engine.PostingID(chi.URLParam(r, "id")),
		ApplicationID: engine.ApplicationID(req.ApplicationID),
		PersonID:      engine.PersonID(req.PersonID),
		EmployeeID:    req.EmployeeID,
		Name:          req.Name,
		Category:      engine.Category(req.Category),
		Comments:      req.Comments,
	}
	if req.Deadline != "" {
		deadline, _ := time.Parse(dateLayout, req.Deadline)
		in.Deadline = &deadline
	}

	c, err := h.Service.CreateContract(r.Context(), in)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeContract(w, r, http.StatusCreated, c.ID)
}

// GetContract returns a contract with its compensation.
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	h.writeContract(w, r, http.StatusOK, engine.ContractID(chi.URLParam(r, "id")))
}

// TransitionContract changes a contract's status.
func (h *Handler) TransitionContract(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := decode(r, &req); err != nil {
		h.writeEngineError(w, err)
		return
	}
	id := engine.ContractID(chi.URLParam(r, "id"))
	if _, err := h.Service.Transition(r.Context(), id, engine.Status(req.Status)); err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeContract(w, r, http.StatusOK, id)
}

// ReopenContract returns a contract to NEW.
func (h *Handler) ReopenContract(w http.ResponseWriter, r *http.Request) {
	id := engine.ContractID(chi.URLParam(r, "id"))
	if _, err := h.Service.Reopen(r.Context(), id); err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeContract(w, r, http.StatusOK, id)
}

// ReviseAssignments replaces a contract's course assignments.
func (h *Handler) ReviseAssignments(w http.ResponseWriter, r *http.Request) {
	var req ReviseAssignmentsRequest
	if err := decode(r, &req); err != nil {
		h.writeEngineError(w, err)
		return
	}
	inputs := make([]engine.AssignmentInput, len(req.Assignments))
	for i, a := range req.Assignments {
		inputs[i] = engine.AssignmentInput{
			OfferingID:    engine.OfferingID(a.OfferingID),
			BU:            a.BU,
			DescriptionID: engine.DescriptionID(a.DescriptionID),
		}
	}

	id := engine.ContractID(chi.URLParam(r, "id"))
	if _, err := h.Service.ReviseAssignments(r.Context(), id, inputs, req.Reopen); err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.writeContract(w, r, http.StatusOK, id)
}

// GetLetter returns the offer letter substitution values.
func (h *Handler) GetLetter(w http.ResponseWriter, r *http.Request) {
	values, err := h.Service.LetterValues(r.Context(), engine.ContractID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

// ValidateTUG checks a Time Use Guideline against the assignment's BU.
func (h *Handler) ValidateTUG(w http.ResponseWriter, r *http.Request) {
	var req TUGRequest
	if err := decode(r, &req); err != nil {
		h.writeEngineError(w, err)
		return
	}
	tug, err := h.Service.NewTUG(r.Context(),
		engine.ContractID(chi.URLParam(r, "id")), engine.OfferingID(chi.URLParam(r, "offering")))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	for duty, hours := range req.Hours {
		tug.Set(engine.Duty(duty), engine.DutyHours{Weekly: hours.Weekly, Total: hours.Total, Label: hours.Label})
	}
	if err := tug.Save(); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTUGDTO(tug))
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) writeContract(w http.ResponseWriter, r *http.Request, status int, id engine.ContractID) {
	s, err := h.Service.Summary(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, status, toContractDTO(s))
}

// writeEngineError maps the engine error taxonomy to HTTP statuses.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	var verr *engine.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: "validation failed", Code: "validation", Details: verr.Fields,
		})
	case engine.IsConfiguration(err):
		writeJSON(w, http.StatusPreconditionFailed, ErrorResponse{Error: err.Error(), Code: "configuration"})
	case errors.Is(err, engine.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "state"})
	case errors.Is(err, engine.ErrDuplicateContract):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "duplicate"})
	case engine.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	default:
		h.Logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
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
