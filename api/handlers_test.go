/*
handlers_test.go - HTTP tests for the API handlers

Tests run the full router over an in-memory SQLite store:
- Posting, description and offering setup
- Contract lifecycle with computed compensation
- Error mapping (404, 409, 412, 422)
- Payroll CSV and Time Use Guideline validation
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/ta-engine/engine"
	"github.com/warp/ta-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func setupTestHandler(t *testing.T) *Handler {
	t.Helper()
	store, err := sqlite.New(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	service := engine.NewContractService(store, nil, nil, zap.NewNop())
	return NewHandler(store, service, zap.NewNop())
}

func setupRouter(t *testing.T) (*Handler, *chi.Mux) {
	h := setupTestHandler(t)
	return h, NewRouter(h, RouterOptions{})
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

const postingBody = `{
	"id": "cmpt-1234", "unit": "CMPT", "semester": "1234", "pay_periods": "7.5",
	"rates": [
		{"category": "GTA1", "salary_per_bu": "100", "scholarship_per_bu": "10", "account_id": "a1"},
		{"category": "GTA2", "salary_per_bu": "110", "scholarship_per_bu": "10", "account_id": "a2"},
		{"category": "UTA", "salary_per_bu": "90", "scholarship_per_bu": "0", "account_id": "a3"},
		{"category": "ETA", "salary_per_bu": "90", "scholarship_per_bu": "0", "account_id": "a4"}
	],
	"appointment_start": "2023-09-01", "appointment_end": "2023-12-31", "deadline": "2023-08-15"
}`

// setupPosting creates a configured CMPT 1234 posting with one lab offering.
func setupPosting(t *testing.T, router http.Handler) {
	t.Helper()
	require.Equal(t, http.StatusCreated, do(t, router, "POST", "/api/postings", postingBody).Code)
	for _, d := range []DescriptionRequest{
		{ID: "lab", Unit: "CMPT", Description: "Lab instruction", IsLabOrTutorial: true},
		{ID: "lec", Unit: "CMPT", Description: "Marking"},
	} {
		require.Equal(t, http.StatusCreated, do(t, router, "POST", "/api/descriptions", d).Code)
	}
	rec := do(t, router, "POST", "/api/offerings", map[string]any{
		"id": "cmpt120", "unit": "CMPT", "semester": "1234", "subject": "CMPT", "number": "120",
		"section": "D100", "enrollment_total": 50, "enrollment_cap": 100, "has_labs": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func createContract(t *testing.T, router http.Handler, app string) ContractDTO {
	t.Helper()
	rec := do(t, router, "POST", "/api/postings/cmpt-1234/contracts", CreateContractRequest{
		ApplicationID: app, PersonID: "person-" + app, Name: "TA " + app, Category: "GTA1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[ContractDTO](t, rec)
}

func assign(t *testing.T, router http.Handler, id string, bu string, reopen bool) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, router, "PUT", "/api/contracts/"+id+"/assignments", map[string]any{
		"assignments": []map[string]any{{"offering_id": "cmpt120", "bu": bu, "description_id": "lab"}},
		"reopen":      reopen,
	})
}

func transition(t *testing.T, router http.Handler, id, status string) *httptest.ResponseRecorder {
	t.Helper()
	return do(t, router, "POST", "/api/contracts/"+id+"/transitions", TransitionRequest{Status: status})
}

// =============================================================================
// POSTINGS
// =============================================================================

func TestCreatePosting_RoundTrip(t *testing.T) {
	_, router := setupRouter(t)

	rec := do(t, router, "POST", "/api/postings", postingBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, "GET", "/api/postings/cmpt-1234", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"semester":"1234"`)
	assert.Contains(t, body, `"account_id":"a3"`)
	assert.Contains(t, body, `"deadline":"2023-08-15"`)
}

func TestCreatePosting_Invalid(t *testing.T) {
	_, router := setupRouter(t)

	// Bad semester code: field validation
	rec := do(t, router, "POST", "/api/postings", strings.Replace(postingBody, `"semester": "1234"`, `"semester": "1235"`, 1))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Categories out of order: configuration
	swapped := strings.NewReplacer(`"category": "UTA"`, `"category": "ETA"`, `"category": "ETA"`, `"category": "UTA"`).Replace(postingBody)
	rec = do(t, router, "POST", "/api/postings", swapped)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "configuration", decodeBody[ErrorResponse](t, rec).Code)
}

func TestGetPosting_NotFound(t *testing.T) {
	_, router := setupRouter(t)

	rec := do(t, router, "GET", "/api/postings/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeBody[ErrorResponse](t, rec).Code)
}

// =============================================================================
// CONTRACT LIFECYCLE
// =============================================================================

func TestContractLifecycle(t *testing.T) {
	// GIVEN: a configured posting
	_, router := setupRouter(t)
	setupPosting(t, router)

	// WHEN: a contract is created and assigned 2 BU of lab work
	c := createContract(t, router, "app-1")
	assert.Equal(t, "NEW", c.Status)
	assert.Equal(t, "2023-08-15", c.Deadline)

	rec := assign(t, router, c.ID, "2", false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c = decodeBody[ContractDTO](t, rec)

	// THEN: totals include the prep bonus; a NEW contract earns no per-course pay
	require.Len(t, c.Assignments, 1)
	assert.Equal(t, "2.17", c.Assignments[0].TotalBU.String())
	assert.Equal(t, "0.00", c.Assignments[0].Pay)
	assert.Equal(t, "217.00", c.Compensation.TotalPay)
	assert.Equal(t, "20.00", c.Compensation.ScholarshipPay)

	// WHEN: offered and accepted
	require.Equal(t, http.StatusOK, transition(t, router, c.ID, "OPN").Code)
	rec = transition(t, router, c.ID, "ACC")
	require.Equal(t, http.StatusOK, rec.Code)
	c = decodeBody[ContractDTO](t, rec)
	assert.Equal(t, "ACC", c.Status)
	assert.Equal(t, "217.00", c.Assignments[0].Pay)

	// THEN: the offering shows the assignment
	rec = do(t, router, "GET", "/api/postings/cmpt-1234/offerings/cmpt120/allocation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	alloc := decodeBody[AllocationDTO](t, rec)
	assert.Equal(t, "5.17", alloc.RequiredBU.String())
	assert.Equal(t, "2.17", alloc.AssignedBU.String())
	assert.Equal(t, 1, alloc.ActiveTAs)

	rec = do(t, router, "GET", "/api/offerings/cmpt120/allocation", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	byOffering := decodeBody[AllocationDTO](t, rec)
	assert.Equal(t, "5.17", byOffering.RequiredBU.String())
	assert.Equal(t, "2.17", byOffering.AssignedBU.String())

	// WHEN: the BU is revised
	rec = assign(t, router, c.ID, "3", false)
	require.Equal(t, http.StatusOK, rec.Code)

	// THEN: the TA must confirm again
	assert.Equal(t, "NEW", decodeBody[ContractDTO](t, rec).Status)
}

func TestContract_ForbiddenTransitionAndReopen(t *testing.T) {
	// GIVEN: a signed contract
	_, router := setupRouter(t)
	setupPosting(t, router)
	c := createContract(t, router, "app-1")
	require.Equal(t, http.StatusOK, assign(t, router, c.ID, "2", false).Code)
	for _, s := range []string{"OPN", "ACC", "SGN"} {
		require.Equal(t, http.StatusOK, transition(t, router, c.ID, s).Code)
	}

	// THEN: it cannot go back to offered
	rec := transition(t, router, c.ID, "OPN")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "state", decodeBody[ErrorResponse](t, rec).Code)

	// AND: its assignments are locked until reopened
	assert.Equal(t, http.StatusConflict, assign(t, router, c.ID, "1", false).Code)
	rec = assign(t, router, c.ID, "1", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NEW", decodeBody[ContractDTO](t, rec).Status)
}

func TestCreateContract_Errors(t *testing.T) {
	_, router := setupRouter(t)
	require.Equal(t, http.StatusCreated, do(t, router, "POST", "/api/postings", postingBody).Code)

	// No duty descriptions yet: posting not ready
	rec := do(t, router, "POST", "/api/postings/cmpt-1234/contracts", CreateContractRequest{
		ApplicationID: "app-1", PersonID: "p1", Name: "TA", Category: "GTA1",
	})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	setupPosting(t, router)

	// Unknown category and missing name, reported by JSON field name
	rec = do(t, router, "POST", "/api/postings/cmpt-1234/contracts", map[string]string{
		"application_id": "app-1", "person_id": "p1", "category": "XTA",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"name"`)
	assert.Contains(t, rec.Body.String(), `"field":"category"`)

	// Duplicate application
	createContract(t, router, "app-1")
	rec = do(t, router, "POST", "/api/postings/cmpt-1234/contracts", CreateContractRequest{
		ApplicationID: "app-1", PersonID: "p1", Name: "TA", Category: "GTA1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate", decodeBody[ErrorResponse](t, rec).Code)
}

func TestReviseAssignments_UnknownCourse(t *testing.T) {
	_, router := setupRouter(t)
	setupPosting(t, router)
	c := createContract(t, router, "app-1")

	rec := do(t, router, "PUT", "/api/contracts/"+c.ID+"/assignments", map[string]any{
		"assignments": []map[string]any{{"offering_id": "nope", "bu": "1", "description_id": "lab"}},
	})

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"assignments[0].offering"`)
}

// =============================================================================
// EXPORTS AND TUGS
// =============================================================================

func TestExportPayroll(t *testing.T) {
	// GIVEN: one accepted and one new contract
	_, router := setupRouter(t)
	setupPosting(t, router)
	accepted := createContract(t, router, "app-1")
	require.Equal(t, http.StatusOK, assign(t, router, accepted.ID, "2", false).Code)
	require.Equal(t, http.StatusOK, transition(t, router, accepted.ID, "OPN").Code)
	require.Equal(t, http.StatusOK, transition(t, router, accepted.ID, "ACC").Code)
	createContract(t, router, "app-2")

	// WHEN: exporting twice
	first := do(t, router, "POST", "/api/postings/cmpt-1234/payroll", nil)
	second := do(t, router, "POST", "/api/postings/cmpt-1234/payroll", nil)

	// THEN: CSV with one data row, and distinct batch IDs
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	assert.Equal(t, "text/csv", first.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(first.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Batch ID,Employee ID,Name"))
	assert.True(t, strings.HasSuffix(first.Header().Get("X-Batch-ID"), "_01"))
	assert.True(t, strings.HasSuffix(second.Header().Get("X-Batch-ID"), "_02"))
}

func TestValidateTUG(t *testing.T) {
	// GIVEN: 2 lab BU, so 2.17 total BU and 91.14 hours
	_, router := setupRouter(t)
	setupPosting(t, router)
	c := createContract(t, router, "app-1")
	require.Equal(t, http.StatusOK, assign(t, router, c.ID, "2", false).Code)
	path := "/api/contracts/" + c.ID + "/tug/cmpt120"

	// WHEN: the guideline fits
	rec := do(t, router, "POST", path, map[string]any{"hours": map[string]any{
		"prep":    map[string]string{"weekly": "1", "total": "13"},
		"marking": map[string]string{"weekly": "5", "total": "70"},
	}})

	// THEN
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tug := decodeBody[TUGDTO](t, rec)
	assert.Equal(t, "91.14", tug.MaxHours.String())
	assert.Equal(t, "2.39", tug.Hours["holiday"].Total.String())

	// WHEN: too many hours, too little lab preparation
	rec = do(t, router, "POST", path, map[string]any{"hours": map[string]any{
		"prep":    map[string]string{"total": "12"},
		"marking": map[string]string{"total": "80"},
	}})

	// THEN: both reported
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"prep.total"`)
	assert.Contains(t, rec.Body.String(), `"field":"total"`)

	// Unknown duty names are rejected before any computation
	rec = do(t, router, "POST", path, map[string]any{"hours": map[string]any{"napping": map[string]string{"total": "1"}}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListDescriptions_RequiresUnit(t *testing.T) {
	_, router := setupRouter(t)

	assert.Equal(t, http.StatusBadRequest, do(t, router, "GET", "/api/descriptions", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, router, "GET", "/api/descriptions?unit=CMPT", nil).Code)
}
