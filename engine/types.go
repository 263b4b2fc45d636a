/*
Package engine provides the TA base-unit allocation and compensation engine.

PURPOSE:
  This package decides how many base units (BU) of TA support a course offering
  is entitled to, tracks the TA contracts assigned against that entitlement,
  computes pay and scholarship amounts, and validates Time Use Guidelines.
  Everything is computed from current rows; nothing is cached between calls.

KEY CONCEPTS IN THIS FILE (types.go):
  - BU helpers: base units are decimal.Decimal, never floats
  - SemesterCode: fixed-width 4 character code compared as a string
  - Category: the four positionally fixed TA categories of a posting
  - Identifiers: type-safe IDs for postings, offerings, contracts

DESIGN PRINCIPLES:
  1. Precision: BU and money use decimal.Decimal; only money is rounded, and only
     at display/export time
  2. Row-driven: entitlement and assigned sums are recomputed on every read
  3. Explicit history: allocation formulas live in an ordered table keyed by
     semester code ranges (strategy.go)

SEE ALSO:
  - strategy.go: Allocation formulas per semester range
  - entitlement.go: Required and assigned BU per offering
  - contract.go: Contract state machine and course assignments
  - compensation.go: Pay and scholarship totals
  - tug.go: Time Use Guideline validation
*/
package engine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONSTANTS
// =============================================================================

var (
	// LabBonusBU is the preparation bonus granted per TA on a lab/tutorial offering.
	LabBonusBU = decimal.RequireFromString("0.17")

	// CourseBU is the per-TA course allowance for CMPT offerings from 1231 on.
	CourseBU = decimal.NewFromInt(1)

	// WritingCourseBU is the flat allowance for CMPT writing-intensive offerings.
	WritingCourseBU = decimal.NewFromInt(2)

	// MinimumAllocationBU: linear formulas below this value allocate nothing.
	MinimumAllocationBU = decimal.NewFromInt(2)

	// HoursPerBU is the number of working hours one BU represents in a semester.
	HoursPerBU = decimal.NewFromInt(42)

	// HolidayHoursPerBU is the statutory holiday compensation per BU.
	HolidayHoursPerBU = decimal.RequireFromString("1.1")

	// LabPrepHours is the minimum preparation time for lab/tutorial assignments.
	LabPrepHours = decimal.NewFromInt(13)
)

// MoneyPlaces is the number of decimal places money is quantized to.
const MoneyPlaces = 2

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PostingID string
type OfferingID string
type ContractID string
type AssignmentID string
type DescriptionID string
type ApplicationID string
type PersonID string

// =============================================================================
// SEMESTER CODE
// =============================================================================

// SemesterCode is a 4 digit code such as "1234": century digit, two year digits,
// and the term month (1, 4 or 7). Codes are fixed width so string ordering is
// chronological ordering.
type SemesterCode string

// Valid reports whether the code has the fixed 4 digit format.
func (s SemesterCode) Valid() bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	switch s[3] {
	case '1', '4', '7':
		return true
	}
	return false
}

// Before reports s < other using string comparison.
func (s SemesterCode) Before(other SemesterCode) bool { return string(s) < string(other) }

// AtLeast reports s >= other using string comparison.
func (s SemesterCode) AtLeast(other SemesterCode) bool { return string(s) >= string(other) }

func (s SemesterCode) String() string { return string(s) }

// =============================================================================
// UNITS
// =============================================================================

// IsCMPTUnit reports whether a unit label is one of the computing science
// variants ("CMPT", "cmpt", "CMPT-GRAD", ...). Only those units have special
// allocation rules; every other unit gets the default strategy.
func IsCMPTUnit(label string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(label)), "CMPT")
}

// CourseLevel maps a course number ("354", "120W") to its level ("300", "100").
func CourseLevel(number string) string {
	number = strings.TrimSpace(number)
	if number == "" || number[0] < '0' || number[0] > '9' {
		return ""
	}
	return number[:1] + "00"
}

// =============================================================================
// CATEGORY - The four positionally fixed TA categories
// =============================================================================

type Category string

const (
	CategoryGTA1 Category = "GTA1" // Masters graduate TA
	CategoryGTA2 Category = "GTA2" // PhD graduate TA
	CategoryUTA  Category = "UTA"  // Undergraduate TA
	CategoryETA  Category = "ETA"  // External TA
)

// Categories is the fixed category order of every rate table.
var Categories = [4]Category{CategoryGTA1, CategoryGTA2, CategoryUTA, CategoryETA}

// Label returns the human readable category name used on letters and exports.
func (c Category) Label() string {
	switch c {
	case CategoryGTA1:
		return "Masters"
	case CategoryGTA2:
		return "PhD"
	case CategoryUTA:
		return "Undergrad"
	case CategoryETA:
		return "External"
	default:
		return string(c)
	}
}

// Index returns the fixed position of the category, or -1 if unknown.
func (c Category) Index() int {
	for i, cat := range Categories {
		if cat == c {
			return i
		}
	}
	return -1
}

// ParseCategory validates a category string.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if c.Index() < 0 {
		return "", fmt.Errorf("unknown TA category %q", s)
	}
	return c, nil
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

// Money quantizes an amount to cents. Use only for display and export.
func Money(d decimal.Decimal) decimal.Decimal { return d.Round(MoneyPlaces) }

// FormatMoney renders an amount with exactly two decimal places.
func FormatMoney(d decimal.Decimal) string { return d.StringFixed(MoneyPlaces) }

// SumBU adds base unit quantities without rounding.
func SumBU(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
