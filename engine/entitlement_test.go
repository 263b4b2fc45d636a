package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func offering(id OfferingID, unit string, semester SemesterCode, enrollment int) Offering {
	return Offering{
		ID:              id,
		UnitLabel:       unit,
		Semester:        semester,
		Subject:         unit,
		Number:          "120",
		Section:         "D100",
		EnrollmentTotal: enrollment,
		EnrollmentCap:   enrollment * 2,
	}
}

func TestRequiredBU_CMPTFrom1231(t *testing.T) {
	// GIVEN: a CMPT writing course in 1234 with 1 extra BU, two active TAs and
	// one cancelled TA
	calc := NewEntitlementCalculator()
	p := testPosting("1234")
	o := offering("o1", "CMPT", "1234", 50)
	o.ExtraBU = d("1")
	o.IsWritingCourse = true
	contracts := []Contract{
		contractWith("c1", StatusAccepted, assignment("o1", "2", lectureDuty)),
		contractWith("c2", StatusOffered, assignment("o1", "1", lectureDuty)),
		contractWith("c3", StatusCancelled, assignment("o1", "3", lectureDuty)),
	}

	// WHEN: computing the required BU
	required := calc.RequiredBU(o, p, contracts, nil)

	// THEN: 4 default + 1 extra + 2 writing + 2 * 1.17
	assertDecimal(t, "9.34", required)
}

func TestRequiredBU_LabsOutsideCMPT(t *testing.T) {
	// GIVEN: a MATH offering with labs, no default allocation
	calc := NewEntitlementCalculator()
	o := offering("o1", "MATH", "1234", 300)
	o.HasLabs = true
	contracts := []Contract{
		contractWith("c1", StatusNew, assignment("o1", "2", labDuty)),
		contractWith("c2", StatusSigned, assignment("o1", "2", labDuty)),
	}

	// THEN: only the per-TA lab bonus
	assertDecimal(t, "0.34", calc.RequiredBU(o, testPosting("1234"), contracts, nil))
}

func TestRequiredBU_CMPTBefore1231(t *testing.T) {
	// GIVEN: CMPT in 1227 with labs and one TA
	calc := NewEntitlementCalculator()
	o := offering("o1", "CMPT", "1227", 50)
	o.HasLabs = true
	contracts := []Contract{contractWith("c1", StatusAccepted, assignment("o1", "4", labDuty))}

	// THEN: floor(50 * 0.08) + 0.17, no course allowance yet
	assertDecimal(t, "4.17", calc.RequiredBU(o, testPosting("1227"), contracts, nil))
}

func TestRequiredBU_CountOverride(t *testing.T) {
	calc := NewEntitlementCalculator()
	o := offering("o1", "CMPT", "1234", 50)
	count := 100

	assertDecimal(t, "8", calc.RequiredBU(o, testPosting("1234"), nil, &count))
	assertDecimal(t, "8", calc.RequiredAtCap(o, testPosting("1234"), nil))
}

func TestAssignedBU_ExcludesTerminalContracts(t *testing.T) {
	// GIVEN: a lab assignment of 2 BU on an accepted contract and 3 BU on a
	// cancelled one
	calc := NewEntitlementCalculator()
	p := testPosting("1231")
	o := offering("o1", "CMPT", "1231", 50)
	contracts := []Contract{
		contractWith("c1", StatusAccepted, assignment("o1", "2", labDuty)),
		contractWith("c2", StatusCancelled, assignment("o1", "3", labDuty)),
	}

	// WHEN: summarizing
	alloc := calc.Summarize(o, p, contracts)

	// THEN: only the accepted assignment counts, prep included
	assertDecimal(t, "2.17", alloc.AssignedBU)
	assert.Equal(t, 1, alloc.ActiveTAs)
	assertDecimal(t, "4", alloc.DefaultBU)
	assertDecimal(t, "5.17", alloc.RequiredBU) // 4 + 1 * 1.17
	assertDecimal(t, "3", alloc.Difference)
}

func TestSummarize_CancelZeroesContribution(t *testing.T) {
	// GIVEN: an offering with one accepted TA
	calc := NewEntitlementCalculator()
	p := testPosting("1234")
	o := offering("o1", "CMPT", "1234", 50)
	c := contractWith("c1", StatusAccepted, assignment("o1", "5", lectureDuty))

	before := calc.Summarize(o, p, []Contract{c})
	assertDecimal(t, "5", before.AssignedBU)

	// WHEN: the contract is cancelled
	require.NoError(t, c.Transition(StatusCancelled, c.CreatedAt))
	after := calc.Summarize(o, p, []Contract{c})

	// THEN: the assignment disappears from assigned BU, from the per-TA bonus
	// and from the contract's own total
	assert.True(t, after.AssignedBU.IsZero())
	assert.Equal(t, 0, after.ActiveTAs)
	assertDecimal(t, "4", after.RequiredBU)
	assert.True(t, c.TotalBU(p, c.Assignments[0]).IsZero())
	require.Len(t, c.Assignments, 1, "rows are kept")
}

func TestSummarize_Idempotent(t *testing.T) {
	calc := NewEntitlementCalculator()
	p := testPosting("1234")
	o := offering("o1", "CMPT", "1234", 73)
	o.HasLabs = true
	contracts := []Contract{
		contractWith("c1", StatusAccepted, assignment("o1", "2", labDuty)),
		contractWith("c2", StatusOffered, assignment("o1", "1.5", lectureDuty)),
	}

	first := calc.Summarize(o, p, contracts)
	second := calc.Summarize(o, p, contracts)

	assert.True(t, first.RequiredBU.Equal(second.RequiredBU))
	assert.True(t, first.AssignedBU.Equal(second.AssignedBU))
	assert.True(t, first.Difference.Equal(second.Difference))
}

func TestRequiredBU_PostingPrepBonusDoesNotChangeEntitlement(t *testing.T) {
	// GIVEN: a 1234 posting that configures a larger prep bonus
	calc := NewEntitlementCalculator()
	p := testPosting("1234")
	bonus := d("0.5")
	p.Rates.LabBonusBU = &bonus
	o := offering("o1", "ENSC", "1234", 0)
	o.HasLabs = true
	c := contractWith("c1", StatusAccepted, assignment("o1", "2", labDuty))

	// THEN: the entitlement keeps the fixed per-TA bonus, the assignment total
	// uses the posting's bonus
	assertDecimal(t, "0.17", calc.RequiredBU(o, p, []Contract{c}, nil))
	assertDecimal(t, "2.5", calc.AssignedBU(o, p, []Contract{c}))
}
