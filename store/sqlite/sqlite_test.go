package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/warp/ta-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testPosting() engine.Posting {
	rt := engine.NewRateTable(dec("7.5"))
	for i, c := range engine.Categories {
		rt.Categories[i] = engine.CategoryRate{
			Category:         c,
			SalaryPerBU:      dec("1150.25"),
			ScholarshipPerBU: dec("125"),
			AccountID:        "10-" + string(c),
		}
	}
	rt.Brackets = map[string][]engine.Bracket{
		"300": {{Threshold: 0, CumulativeBU: dec("0")}, {Threshold: 30, CumulativeBU: dec("2")}},
	}
	bonus := dec("0.25")
	rt.LabBonusBU = &bonus
	return engine.Posting{
		ID:               "cmpt-1234",
		UnitLabel:        "CMPT",
		Semester:         "1234",
		Rates:            rt,
		AppointmentStart: time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC),
		Deadline:         time.Date(2023, 8, 15, 0, 0, 0, 0, time.UTC),
	}
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SavePosting(ctx, testPosting()))
	require.NoError(t, s.SaveDescription(ctx, engine.DutyDescription{ID: "lab", UnitLabel: "CMPT", Description: "Lab", IsLabOrTutorial: true}))
	require.NoError(t, s.SaveDescription(ctx, engine.DutyDescription{ID: "lec", UnitLabel: "CMPT", Description: "Marking"}))
	require.NoError(t, s.SaveOffering(ctx, engine.Offering{
		ID: "o1", UnitLabel: "CMPT", Semester: "1234", Subject: "CMPT", Number: "120", Section: "D100",
		EnrollmentTotal: 50, EnrollmentCap: 80, HasLabs: true, ExtraBU: dec("1.5"),
	}))
}

func testContract(id engine.ContractID, app engine.ApplicationID) engine.Contract {
	created := time.Date(2023, 8, 1, 9, 30, 0, 0, time.UTC)
	return engine.Contract{
		ID:               id,
		PostingID:        "cmpt-1234",
		ApplicationID:    app,
		PersonID:         "person-1",
		Name:             "Grace Hopper",
		Category:         engine.CategoryGTA2,
		Status:           engine.StatusNew,
		PayPerBU:         dec("1150.25"),
		ScholarshipPerBU: dec("125"),
		AccountID:        "10-GTA2",
		Deadline:         time.Date(2023, 8, 15, 0, 0, 0, 0, time.UTC),
		Assignments: []engine.CourseAssignment{
			{ID: "a1", ContractID: id, OfferingID: "o1", BU: dec("2.5"), Description: engine.DutyDescription{ID: "lab"}},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// =============================================================================
// POSTINGS AND FACTS
// =============================================================================

func TestPosting_RoundTrip(t *testing.T) {
	// GIVEN: a posting with brackets and a prep bonus
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SavePosting(ctx, testPosting()))

	// WHEN
	p, err := s.GetPosting(ctx, "cmpt-1234")
	require.NoError(t, err)

	// THEN: the typed rate table survives storage
	rate, ok := p.Rates.Rate(engine.CategoryUTA)
	require.True(t, ok)
	assert.True(t, dec("1150.25").Equal(rate.SalaryPerBU))
	assert.Equal(t, "10-UTA", rate.AccountID)
	assert.True(t, dec("7.5").Equal(p.Rates.PayPeriods))
	require.NotNil(t, p.Rates.LabBonusBU)
	assert.True(t, dec("0.25").Equal(*p.Rates.LabBonusBU))
	require.Len(t, p.Rates.BracketsFor("300"), 2)
	assert.Equal(t, time.Date(2023, 8, 15, 0, 0, 0, 0, time.UTC), p.Deadline)
	assert.True(t, p.PayStart.IsZero())

	byUnit, err := s.PostingFor(ctx, "CMPT", "1234")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byUnit.ID)
}

func TestPosting_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetPosting(context.Background(), "missing")
	assert.True(t, engine.IsNotFound(err))

	_, err = s.NextExportSequence(context.Background(), "missing")
	assert.True(t, engine.IsNotFound(err))
}

func TestNextExportSequence_SurvivesPostingSave(t *testing.T) {
	// GIVEN: a posting that already exported twice
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SavePosting(ctx, testPosting()))
	for want := 1; want <= 2; want++ {
		seq, err := s.NextExportSequence(ctx, "cmpt-1234")
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}

	// WHEN: the rates are edited with a stale posting value
	require.NoError(t, s.SavePosting(ctx, testPosting()))

	// THEN: the counter keeps going
	seq, err := s.NextExportSequence(ctx, "cmpt-1234")
	require.NoError(t, err)
	assert.Equal(t, 3, seq)
}

func TestOfferings_ListBySemester(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s)
	require.NoError(t, s.SaveOffering(ctx, engine.Offering{ID: "o0", UnitLabel: "CMPT", Semester: "1234", Subject: "CMPT", Number: "105W"}))
	require.NoError(t, s.SaveOffering(ctx, engine.Offering{ID: "old", UnitLabel: "CMPT", Semester: "1231", Subject: "CMPT", Number: "120"}))

	offerings, err := s.ListOfferings(ctx, "CMPT", "1234")
	require.NoError(t, err)

	require.Len(t, offerings, 2)
	assert.Equal(t, engine.OfferingID("o0"), offerings[0].ID)
	assert.True(t, offerings[1].HasLabs)
	assert.True(t, dec("1.5").Equal(offerings[1].ExtraBU))
}

func TestDescriptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s)

	descs, err := s.ListDescriptions(ctx, "CMPT")
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, engine.DescriptionID("lab"), descs[0].ID)
	assert.True(t, descs[0].IsLabOrTutorial)

	_, err = s.GetDescription(ctx, "missing")
	assert.True(t, engine.IsNotFound(err))
}

// =============================================================================
// CONTRACTS
// =============================================================================

func TestContract_CreateAndGet(t *testing.T) {
	// GIVEN
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s)

	// WHEN
	require.NoError(t, s.CreateContract(ctx, testContract("c1", "app-1")))
	c, err := s.GetContract(ctx, "c1")
	require.NoError(t, err)

	// THEN: captured rates, dates and the joined description come back
	assert.Equal(t, engine.CategoryGTA2, c.Category)
	assert.True(t, dec("1150.25").Equal(c.PayPerBU))
	assert.Equal(t, time.Date(2023, 8, 1, 9, 30, 0, 0, time.UTC), c.CreatedAt)
	require.Len(t, c.Assignments, 1)
	assert.True(t, dec("2.5").Equal(c.Assignments[0].BU))
	assert.True(t, c.Assignments[0].Description.IsLabOrTutorial)
	assert.Equal(t, "Lab", c.Assignments[0].Description.Description)
}

func TestContract_DuplicateApplication(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s)
	require.NoError(t, s.CreateContract(ctx, testContract("c1", "app-1")))

	err := s.CreateContract(ctx, testContract("c2", "app-1"))

	assert.ErrorIs(t, err, engine.ErrDuplicateContract)
}

func TestContract_UpdateReplacesAssignments(t *testing.T) {
	// GIVEN: a contract with one assignment
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s)
	require.NoError(t, s.SaveOffering(ctx, engine.Offering{ID: "o2", UnitLabel: "CMPT", Semester: "1234", Subject: "CMPT", Number: "354"}))
	c := testContract("c1", "app-1")
	require.NoError(t, s.CreateContract(ctx, c))

	// WHEN: the assignment set and status change together
	c.Status = engine.StatusOffered
	c.Assignments = []engine.CourseAssignment{
		{ID: "a2", OfferingID: "o2", BU: dec("3"), Description: engine.DutyDescription{ID: "lec"}},
		{ID: "a1", OfferingID: "o1", BU: dec("1"), Description: engine.DutyDescription{ID: "lab"}},
	}
	require.NoError(t, s.UpdateContract(ctx, c))

	// THEN: the old set is gone and insertion order is kept
	stored, err := s.GetContract(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusOffered, stored.Status)
	require.Len(t, stored.Assignments, 2)
	assert.Equal(t, engine.OfferingID("o2"), stored.Assignments[0].OfferingID)
	assert.True(t, dec("1").Equal(stored.Assignments[1].BU))
}

func TestContract_ListForPosting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s)
	second := testContract("c2", "app-2")
	second.CreatedAt = second.CreatedAt.Add(time.Hour)
	second.Assignments = nil
	require.NoError(t, s.CreateContract(ctx, second))
	require.NoError(t, s.CreateContract(ctx, testContract("c1", "app-1")))

	contracts, err := s.ListContracts(ctx, "cmpt-1234")
	require.NoError(t, err)

	require.Len(t, contracts, 2)
	assert.Equal(t, engine.ContractID("c1"), contracts[0].ID)
	assert.Len(t, contracts[0].Assignments, 1)
	assert.Empty(t, contracts[1].Assignments)

	none, err := s.ListContracts(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWithTx_Rollback(t *testing.T) {
	// GIVEN: a stored contract
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s)
	c := testContract("c1", "app-1")
	require.NoError(t, s.CreateContract(ctx, c))

	// WHEN: a transaction changes status and assignments and then fails
	boom := errors.New("boom")
	err := s.WithTx(ctx, func(st engine.Store) error {
		c.Status = engine.StatusCancelled
		c.Assignments = nil
		if err := st.UpdateContract(ctx, c); err != nil {
			return err
		}
		return boom
	})

	// THEN: the partial edit is not visible
	assert.ErrorIs(t, err, boom)
	stored, err := s.GetContract(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusNew, stored.Status)
	assert.Len(t, stored.Assignments, 1)
}

func TestUpdateContract_DuplicateOffering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s)
	c := testContract("c1", "app-1")
	require.NoError(t, s.CreateContract(ctx, c))

	c.Assignments = append(c.Assignments, engine.CourseAssignment{
		ID: "a9", OfferingID: "o1", BU: dec("1"), Description: engine.DutyDescription{ID: "lec"},
	})
	err := s.UpdateContract(ctx, c)

	assert.ErrorIs(t, err, engine.ErrValidation)
	stored, err := s.GetContract(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, stored.Assignments, 1)
}
