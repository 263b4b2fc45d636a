/*
tug.go - Time Use Guideline validation

PURPOSE:
  A Time Use Guideline (TUG) is the instructor's breakdown of a TA's hours by
  duty. It is bounded by the BU the contract assigns: one BU is HoursPerBU
  hours of work, part of which is statutory holiday compensation.

RULES:
  - max hours     = BU * 42
  - holiday hours = BU * 1.1, pre-populated and not lowered below that value
  - lab/tutorial offerings need at least 13 hours of preparation
  - the sum of all totals must not exceed max hours
  - an "other" duty needs a label when it has hours and hours when it has a
    label
  - hours are never negative

  Weekly figures are informational: Total is authoritative and weekly values
  are not checked against it.

SEE ALSO:
  - compensation.go: TotalBU of a contract
*/
package engine

import (
	"strings"

	"github.com/shopspring/decimal"
)

// HoursPlaces is the rounding applied to hour figures on save.
const HoursPlaces = 2

// Duty identifies a TUG category.
type Duty string

const (
	DutyPrep      Duty = "prep"
	DutyMeetings  Duty = "meetings"
	DutyLectures  Duty = "lectures"
	DutyLabTut    Duty = "labtut"
	DutyOfficeHrs Duty = "office_hours"
	DutyMarking   Duty = "marking"
	DutyTestPrep  Duty = "test_prep"
	DutyHoliday   Duty = "holiday"
	DutyOther1    Duty = "other1"
	DutyOther2    Duty = "other2"
)

// Duties is the fixed order of TUG categories.
var Duties = []Duty{
	DutyPrep, DutyMeetings, DutyLectures, DutyLabTut, DutyOfficeHrs,
	DutyMarking, DutyTestPrep, DutyHoliday, DutyOther1, DutyOther2,
}

// IsOther reports whether the duty is a free-form labelled category.
func (d Duty) IsOther() bool { return d == DutyOther1 || d == DutyOther2 }

// DutyHours is the declared time for one category.
type DutyHours struct {
	Weekly decimal.Decimal
	Total  decimal.Decimal
	Label  string // other1/other2 only
}

// TUG is a Time Use Guideline for one contract's work on one offering.
type TUG struct {
	ContractID ContractID
	OfferingID OfferingID
	BU         decimal.Decimal
	HasLabs    bool
	Hours      map[Duty]DutyHours
}

// NewTUG starts a guideline with the holiday deduction pre-populated.
func NewTUG(contract ContractID, offering OfferingID, bu decimal.Decimal, hasLabs bool) *TUG {
	t := &TUG{
		ContractID: contract,
		OfferingID: offering,
		BU:         bu,
		HasLabs:    hasLabs,
		Hours:      make(map[Duty]DutyHours, len(Duties)),
	}
	t.Hours[DutyHoliday] = DutyHours{Weekly: decimal.Zero, Total: t.HolidayHours()}
	return t
}

// MaxHours is the number of hours the BU entitle the TA to.
func (t *TUG) MaxHours() decimal.Decimal { return t.BU.Mul(HoursPerBU) }

// HolidayHours is the statutory holiday compensation.
func (t *TUG) HolidayHours() decimal.Decimal { return t.BU.Mul(HolidayHoursPerBU) }

// TotalHours sums the authoritative totals of every category.
func (t *TUG) TotalHours() decimal.Decimal {
	total := decimal.Zero
	for _, d := range Duties {
		total = total.Add(t.Hours[d].Total)
	}
	return total
}

// Set records the hours of a duty.
func (t *TUG) Set(d Duty, h DutyHours) {
	if t.Hours == nil {
		t.Hours = make(map[Duty]DutyHours, len(Duties))
	}
	t.Hours[d] = h
}

// Normalize rounds every numeric field to HoursPlaces and trims labels.
func (t *TUG) Normalize() {
	for d, h := range t.Hours {
		h.Weekly = h.Weekly.Round(HoursPlaces)
		h.Total = h.Total.Round(HoursPlaces)
		h.Label = strings.TrimSpace(h.Label)
		t.Hours[d] = h
	}
}

// Validate checks every rule and reports all violated fields at once.
func (t *TUG) Validate() error {
	verr := &ValidationError{}

	for _, d := range Duties {
		h := t.Hours[d]
		if h.Weekly.IsNegative() {
			verr.Add(string(d)+".weekly", "hours cannot be negative")
		}
		if h.Total.IsNegative() {
			verr.Add(string(d)+".total", "hours cannot be negative")
		}
		if !d.IsOther() {
			continue
		}
		hasHours := h.Total.IsPositive()
		hasLabel := strings.TrimSpace(h.Label) != ""
		switch {
		case hasHours && !hasLabel:
			verr.Add(string(d)+".label", "a description is required when hours are entered")
		case hasLabel && !hasHours:
			verr.Add(string(d)+".total", "hours are required when a description is entered")
		}
	}

	if t.HasLabs && t.Hours[DutyPrep].Total.LessThan(LabPrepHours) {
		verr.Add(string(DutyPrep)+".total", "lab/tutorial assignments need at least %s hours of preparation", LabPrepHours)
	}

	if holiday := t.HolidayHours().Round(HoursPlaces); t.Hours[DutyHoliday].Total.LessThan(holiday) {
		verr.Add(string(DutyHoliday)+".total", "statutory holiday compensation must be at least %s hours", holiday)
	}

	if limit := t.MaxHours(); t.TotalHours().GreaterThan(limit) {
		verr.Add("total", "%s hours exceed the maximum of %s hours for %s BU", t.TotalHours(), limit, t.BU)
	}

	return verr.OrNil()
}

// Save normalizes and validates the guideline.
func (t *TUG) Save() error {
	t.Normalize()
	return t.Validate()
}
