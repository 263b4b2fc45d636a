/*
entitlement.go - Required and assigned BU per course offering

PURPOSE:
  Combines the allocation strategy with the administrator's extra BU and the
  per-TA bonuses to produce the BU an offering is entitled to, and sums the BU
  actually assigned to it by active contracts.

FORMULA:
  count   = override or enrollment total
  default = strategy(unit, semester)(count)
  n       = active assignments on the offering within the posting

  CMPT from 1231:  default + extra + (2 if writing) + n * (1 + 0.17)
  labs/tutorials:  default + extra + n * 0.17
  otherwise:       default + extra

  Assigned = sum of TotalBU over active assignments. Both are pure functions of
  the rows passed in; callers recompute them on every read.

SEE ALSO:
  - strategy.go: default allocation
  - contract.go: TotalBU of one assignment
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// Offering holds the read-only facts of a course offering plus the
// administrator's extra BU.
type Offering struct {
	ID              OfferingID
	UnitLabel       string
	Semester        SemesterCode
	Subject         string
	Number          string
	Section         string
	EnrollmentTotal int
	EnrollmentCap   int
	HasLabs         bool
	IsWritingCourse bool
	ExtraBU         decimal.Decimal
}

// Level is the course level used by the legacy bracket table.
func (o Offering) Level() string { return CourseLevel(o.Number) }

// Name is the display name of the offering ("CMPT 120 D100").
func (o Offering) Name() string {
	name := o.Subject + " " + o.Number
	if o.Section != "" {
		name += " " + o.Section
	}
	return name
}

// OfferingAssignment is one contract's assignment on an offering.
type OfferingAssignment struct {
	Contract   Contract
	Assignment CourseAssignment
}

// ActiveOn returns the assignments of non-terminal contracts on the offering.
func ActiveOn(offering OfferingID, contracts []Contract) []OfferingAssignment {
	var result []OfferingAssignment
	for _, c := range contracts {
		if c.Status.Terminal() {
			continue
		}
		if a, ok := c.Assignment(offering); ok {
			result = append(result, OfferingAssignment{Contract: c, Assignment: a})
		}
	}
	return result
}

// EntitlementCalculator computes offering entitlements with a strategy table.
type EntitlementCalculator struct {
	Strategies StrategyTable
}

// NewEntitlementCalculator uses the department's allocation history.
func NewEntitlementCalculator() *EntitlementCalculator {
	return &EntitlementCalculator{Strategies: DefaultStrategies}
}

// DefaultBU is the strategy result for an enrollment count.
func (ec *EntitlementCalculator) DefaultBU(o Offering, p Posting, count int) decimal.Decimal {
	strategy := ec.Strategies.Select(o.UnitLabel, o.Semester)
	bu := strategy(AllocationInput{Rates: p.Rates, Level: o.Level(), Enrollment: count})
	if bu.IsNegative() {
		return decimal.Zero
	}
	return bu
}

// RequiredBU is the BU the offering is entitled to. countOverride, when not
// nil, replaces the enrollment total. contracts are the posting's contracts;
// only active assignments on the offering are counted.
func (ec *EntitlementCalculator) RequiredBU(o Offering, p Posting, contracts []Contract, countOverride *int) decimal.Decimal {
	count := o.EnrollmentTotal
	if countOverride != nil {
		count = *countOverride
	}
	n := decimal.NewFromInt(int64(len(ActiveOn(o.ID, contracts))))
	required := ec.DefaultBU(o, p, count).Add(o.ExtraBU)

	switch {
	case o.Semester.AtLeast("1231") && IsCMPTUnit(o.UnitLabel):
		if o.IsWritingCourse {
			required = required.Add(WritingCourseBU)
		}
		required = required.Add(n.Mul(CourseBU.Add(LabBonusBU)))
	case o.HasLabs:
		required = required.Add(n.Mul(LabBonusBU))
	}
	return required
}

// RequiredAtCap is RequiredBU as if the offering were full.
func (ec *EntitlementCalculator) RequiredAtCap(o Offering, p Posting, contracts []Contract) decimal.Decimal {
	capacity := o.EnrollmentCap
	return ec.RequiredBU(o, p, contracts, &capacity)
}

// AssignedBU sums TotalBU over the active assignments on the offering.
func (ec *EntitlementCalculator) AssignedBU(o Offering, p Posting, contracts []Contract) decimal.Decimal {
	total := decimal.Zero
	for _, oa := range ActiveOn(o.ID, contracts) {
		total = total.Add(oa.Contract.TotalBU(p, oa.Assignment))
	}
	return total
}

// Allocation is the entitlement summary of one offering.
type Allocation struct {
	Offering      Offering
	DefaultBU     decimal.Decimal
	RequiredBU    decimal.Decimal
	RequiredAtCap decimal.Decimal
	AssignedBU    decimal.Decimal
	Difference    decimal.Decimal // required - assigned
	ActiveTAs     int
}

// Summarize computes every entitlement figure of an offering.
func (ec *EntitlementCalculator) Summarize(o Offering, p Posting, contracts []Contract) Allocation {
	required := ec.RequiredBU(o, p, contracts, nil)
	assigned := ec.AssignedBU(o, p, contracts)
	return Allocation{
		Offering:      o,
		DefaultBU:     ec.DefaultBU(o, p, o.EnrollmentTotal),
		RequiredBU:    required,
		RequiredAtCap: ec.RequiredAtCap(o, p, contracts),
		AssignedBU:    assigned,
		Difference:    required.Sub(assigned),
		ActiveTAs:     len(ActiveOn(o.ID, contracts)),
	}
}
