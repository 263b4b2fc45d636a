package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, d(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func testPosting(semester SemesterCode) Posting {
	rt := NewRateTable(d("7.5"))
	for i, c := range Categories {
		rt.Categories[i] = CategoryRate{
			Category:         c,
			SalaryPerBU:      d("100"),
			ScholarshipPerBU: d("10"),
			AccountID:        "acct-" + string(c),
		}
	}
	return Posting{ID: "post-" + PostingID(semester), UnitLabel: "CMPT", Semester: semester, Rates: rt}
}

var (
	labDuty     = DutyDescription{ID: "lab", UnitLabel: "CMPT", Description: "Lab instruction", IsLabOrTutorial: true}
	lectureDuty = DutyDescription{ID: "lec", UnitLabel: "CMPT", Description: "Marking and office hours"}
)

func assignment(offering OfferingID, bu string, desc DutyDescription) CourseAssignment {
	return CourseAssignment{ID: AssignmentID("a-" + offering), OfferingID: offering, BU: d(bu), Description: desc}
}

func contractWith(id ContractID, status Status, assignments ...CourseAssignment) Contract {
	return Contract{
		ID:               id,
		Category:         CategoryGTA1,
		Status:           status,
		PayPerBU:         d("100"),
		ScholarshipPerBU: d("10"),
		Assignments:      assignments,
		CreatedAt:        time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}
