/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	postings, offerings, duty descriptions and contracts. Each scenario shows
	one allocation regime or one part of the contract lifecycle.

AVAILABLE SCENARIOS:

	cmpt-current: CMPT 1234, rounded linear allocation, contracts in several states
	cmpt-legacy:  CMPT 1131, enrollment brackets by course level
	math-labs:    MATH 1234, no default allocation, lab bonus only

HOW SCENARIOS WORK:
 1. Parse the posting JSON via the factory and save it
 2. Save duty descriptions and offerings (upserts)
 3. Create contracts through the ContractService; applications that
    already have a contract are skipped
 4. Apply assignments and transitions

Loading a scenario twice leaves the data as it was after the first load.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "cmpt-current"}

USAGE VIA CLI:

	taengine seed cmpt-current

SEE ALSO:
  - handlers.go: Handler dependencies
  - factory/posting.go: Posting JSON
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/ta-engine/engine"
)

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PostingID   string `json:"posting_id"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "cmpt-current",
		Name:        "CMPT current rules",
		Description: "Rounded linear allocation with course and lab bonuses; offered, accepted and cancelled contracts",
		PostingID:   "cmpt-1234",
	},
	{
		ID:          "cmpt-legacy",
		Name:        "CMPT legacy brackets",
		Description: "Enrollment brackets per course level from the rate table",
		PostingID:   "cmpt-1131",
	},
	{
		ID:          "math-labs",
		Name:        "Non-CMPT unit",
		Description: "No default allocation; lab offerings earn the per-TA preparation bonus",
		PostingID:   "math-1234",
	},
}

// ErrUnknownScenario is returned by Seed for an unknown scenario ID.
var ErrUnknownScenario = errors.New("unknown scenario")

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decode(r, &req); err != nil {
		h.writeEngineError(w, err)
		return
	}

	if err := h.Seed(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, ErrUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
			return
		}
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// Seed loads a scenario by ID.
func (h *Handler) Seed(ctx context.Context, id string) error {
	var err error
	switch id {
	case "cmpt-current":
		err = h.loadCMPTCurrentScenario(ctx)
	case "cmpt-legacy":
		err = h.loadCMPTLegacyScenario(ctx)
	case "math-labs":
		err = h.loadMathLabsScenario(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownScenario, id)
	}
	if err != nil {
		return fmt.Errorf("failed to load scenario %s: %w", id, err)
	}
	h.Logger.Info("scenario loaded", zap.String("scenario", id))
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadCMPTCurrentScenario(ctx context.Context) error {
	if err := h.createPostingFromJSON(ctx, postingJSON("cmpt-1234", "CMPT", "1234", "2023-09-01", "2023-12-31", "")); err != nil {
		return err
	}
	if err := h.saveDescriptions(ctx, "CMPT"); err != nil {
		return err
	}
	offerings := []engine.Offering{
		{ID: "cmpt-1234-120-d100", Subject: "CMPT", Number: "120", Section: "D100", EnrollmentTotal: 312, EnrollmentCap: 350, HasLabs: true},
		{ID: "cmpt-1234-105w-d100", Subject: "CMPT", Number: "105W", Section: "D100", EnrollmentTotal: 48, EnrollmentCap: 50, IsWritingCourse: true},
		{ID: "cmpt-1234-354-d100", Subject: "CMPT", Number: "354", Section: "D100", EnrollmentTotal: 120, EnrollmentCap: 150, ExtraBU: decimal.NewFromInt(1)},
	}
	if err := h.saveOfferings(ctx, "CMPT", "1234", offerings); err != nil {
		return err
	}

	tas := []demoTA{
		{app: "app-1001", name: "Ada Lovelace", category: engine.CategoryGTA2,
			assignments: []engine.AssignmentInput{
				{OfferingID: "cmpt-1234-120-d100", BU: decimal.NewFromInt(4), DescriptionID: "cmpt-lab"},
				{OfferingID: "cmpt-1234-354-d100", BU: decimal.NewFromInt(1), DescriptionID: "cmpt-marking"},
			},
			path: []engine.Status{engine.StatusOffered, engine.StatusAccepted}},
		{app: "app-1002", name: "Alan Turing", category: engine.CategoryGTA1,
			assignments: []engine.AssignmentInput{
				{OfferingID: "cmpt-1234-105w-d100", BU: decimal.NewFromInt(3), DescriptionID: "cmpt-marking"},
			},
			path: []engine.Status{engine.StatusOffered}},
		{app: "app-1003", name: "Grace Hopper", category: engine.CategoryUTA,
			assignments: []engine.AssignmentInput{
				{OfferingID: "cmpt-1234-120-d100", BU: decimal.NewFromInt(2), DescriptionID: "cmpt-lab"},
			},
			path: []engine.Status{engine.StatusCancelled}},
	}
	return h.createContracts(ctx, "cmpt-1234", tas)
}

func (h *Handler) loadCMPTLegacyScenario(ctx context.Context) error {
	brackets := `"bu_brackets": {
		"100": [{"threshold": 0, "cumulative_bu": "0"}, {"threshold": 40, "cumulative_bu": "2"}, {"threshold": 80, "cumulative_bu": "4"}],
		"300": [{"threshold": 0, "cumulative_bu": "0"}, {"threshold": 30, "cumulative_bu": "2"}, {"threshold": 60, "cumulative_bu": "4"}]
	},`
	if err := h.createPostingFromJSON(ctx, postingJSON("cmpt-1131", "CMPT", "1131", "2013-01-01", "2013-04-30", brackets)); err != nil {
		return err
	}
	if err := h.saveDescriptions(ctx, "CMPT"); err != nil {
		return err
	}
	offerings := []engine.Offering{
		{ID: "cmpt-1131-354-d100", Subject: "CMPT", Number: "354", Section: "D100", EnrollmentTotal: 45, EnrollmentCap: 60},
		{ID: "cmpt-1131-125-d100", Subject: "CMPT", Number: "125", Section: "D100", EnrollmentTotal: 95, EnrollmentCap: 120, HasLabs: true},
		{ID: "cmpt-1131-470-d100", Subject: "CMPT", Number: "470", Section: "D100", EnrollmentTotal: 35, EnrollmentCap: 40},
	}
	if err := h.saveOfferings(ctx, "CMPT", "1131", offerings); err != nil {
		return err
	}

	tas := []demoTA{
		{app: "app-0901", name: "Edsger Dijkstra", category: engine.CategoryGTA2,
			assignments: []engine.AssignmentInput{
				{OfferingID: "cmpt-1131-125-d100", BU: decimal.NewFromInt(4), DescriptionID: "cmpt-lab"},
			},
			path: []engine.Status{engine.StatusOffered, engine.StatusAccepted, engine.StatusSigned}},
	}
	return h.createContracts(ctx, "cmpt-1131", tas)
}

func (h *Handler) loadMathLabsScenario(ctx context.Context) error {
	if err := h.createPostingFromJSON(ctx, postingJSON("math-1234", "MATH", "1234", "2023-09-01", "2023-12-31", "")); err != nil {
		return err
	}
	if err := h.saveDescriptions(ctx, "MATH"); err != nil {
		return err
	}
	offerings := []engine.Offering{
		{ID: "math-1234-150-d100", Subject: "MATH", Number: "150", Section: "D100", EnrollmentTotal: 400, EnrollmentCap: 420, HasLabs: true, ExtraBU: decimal.NewFromInt(8)},
	}
	if err := h.saveOfferings(ctx, "MATH", "1234", offerings); err != nil {
		return err
	}

	tas := []demoTA{
		{app: "app-2001", name: "Emmy Noether", category: engine.CategoryGTA2,
			assignments: []engine.AssignmentInput{
				{OfferingID: "math-1234-150-d100", BU: decimal.NewFromInt(4), DescriptionID: "math-lab"},
			},
			path: []engine.Status{engine.StatusOffered, engine.StatusRejected}},
		{app: "app-2002", name: "Srinivasa Ramanujan", category: engine.CategoryETA,
			assignments: []engine.AssignmentInput{
				{OfferingID: "math-1234-150-d100", BU: decimal.NewFromInt(4), DescriptionID: "math-lab"},
			},
			path: []engine.Status{engine.StatusOffered, engine.StatusAccepted}},
	}
	return h.createContracts(ctx, "math-1234", tas)
}

// =============================================================================
// HELPERS
// =============================================================================

type demoTA struct {
	app         engine.ApplicationID
	name        string
	category    engine.Category
	assignments []engine.AssignmentInput
	path        []engine.Status
}

func postingJSON(id, unit, semester, start, end, extra string) string {
	return fmt.Sprintf(`{
		"id": %q, "unit": %q, "semester": %q,
		"pay_periods": "8",
		"rates": [
			{"category": "GTA1", "salary_per_bu": "1226.34", "scholarship_per_bu": "125.00", "account_id": "%s-gta1"},
			{"category": "GTA2", "salary_per_bu": "1322.18", "scholarship_per_bu": "150.00", "account_id": "%s-gta2"},
			{"category": "UTA", "salary_per_bu": "982.12", "scholarship_per_bu": "0", "account_id": "%s-uta"},
			{"category": "ETA", "salary_per_bu": "982.12", "scholarship_per_bu": "0", "account_id": "%s-eta"}
		],
		%s
		"appointment_start": %q, "appointment_end": %q,
		"pay_start": %q, "pay_end": %q
	}`, id, unit, semester, unit, unit, unit, unit, extra, start, end, start, end)
}

func (h *Handler) createPostingFromJSON(ctx context.Context, jsonStr string) error {
	p, err := h.PostingFactory.ParsePosting(jsonStr)
	if err != nil {
		return err
	}
	return h.Store.SavePosting(ctx, p)
}

func (h *Handler) saveDescriptions(ctx context.Context, unit string) error {
	prefix := engine.DescriptionID(strings.ToLower(unit))
	descs := []engine.DutyDescription{
		{ID: prefix + "-lab", UnitLabel: unit, Description: "Lab/tutorial instruction and preparation", IsLabOrTutorial: true},
		{ID: prefix + "-marking", UnitLabel: unit, Description: "Marking, office hours and course support"},
	}
	for _, d := range descs {
		if err := h.Store.SaveDescription(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) saveOfferings(ctx context.Context, unit string, semester engine.SemesterCode, offerings []engine.Offering) error {
	for _, o := range offerings {
		o.UnitLabel = unit
		o.Semester = semester
		if err := h.Store.SaveOffering(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) createContracts(ctx context.Context, posting engine.PostingID, tas []demoTA) error {
	for _, ta := range tas {
		c, err := h.Service.CreateContract(ctx, engine.NewContract{
			PostingID:     posting,
			ApplicationID: ta.app,
			PersonID:      engine.PersonID("person-" + ta.app),
			Name:          ta.name,
			Category:      ta.category,
		})
		if errors.Is(err, engine.ErrDuplicateContract) {
			continue
		}
		if err != nil {
			return err
		}
		if _, err := h.Service.ReviseAssignments(ctx, c.ID, ta.assignments, false); err != nil {
			return err
		}
		for _, s := range ta.path {
			if _, err := h.Service.Transition(ctx, c.ID, s); err != nil {
				return err
			}
		}
	}
	return nil
}
