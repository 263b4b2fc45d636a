/*
strategy.go - Default BU allocation formulas selected by semester range

PURPOSE:
  The number of BU an offering earns from its enrollment has been defined
  differently over the years. Every historical formula must stay correct for
  the semesters it governed, so formulas are kept as rows of an ordered table
  keyed by semester code range rather than as conditionals.

SEMESTER RANGES (string comparison on the fixed-width code):
  ┌──────────────┬──────────────┬──────────────────────────────────────────┐
  │ from         │ until        │ formula (CMPT units only)                │
  ├──────────────┼──────────────┼──────────────────────────────────────────┤
  │ -            │ 1134         │ legacy bracket lookup by course level    │
  │ 1134         │ 1222         │ floor(n * 0.062), < 2 -> 0               │
  │ 1224         │ 1232         │ floor(n * 0.08),  < 2 -> 0               │
  │ 1234         │ -            │ round(n * 0.08, 2), < 2 -> 0             │
  └──────────────┴──────────────┴──────────────────────────────────────────┘
  "from" is inclusive, "until" is exclusive. The gaps (1222-1223, 1232-1233)
  hold no valid semester codes and fall through to the default strategy, as does
  every non-CMPT unit.

SEE ALSO:
  - entitlement.go: Adds extra, writing and lab adjustments on top
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// AllocationInput is everything a strategy may look at.
type AllocationInput struct {
	Rates      RateTable
	Level      string
	Enrollment int
}

// StrategyFunc computes the default BU of an offering. Results are never negative.
type StrategyFunc func(in AllocationInput) decimal.Decimal

// StrategyRule is one row of the strategy table.
type StrategyRule struct {
	Name  string
	From  SemesterCode // inclusive, "" = unbounded
	Until SemesterCode // exclusive, "" = unbounded
	Unit  func(label string) bool
	Func  StrategyFunc
}

// Covers reports whether the rule applies to the unit and semester.
func (r StrategyRule) Covers(unitLabel string, semester SemesterCode) bool {
	if r.From != "" && semester.Before(r.From) {
		return false
	}
	if r.Until != "" && semester.AtLeast(r.Until) {
		return false
	}
	return r.Unit == nil || r.Unit(unitLabel)
}

// StrategyTable is an ordered list of rules; the first covering rule wins.
type StrategyTable []StrategyRule

var (
	linearV1Coefficient = decimal.RequireFromString("0.062")
	linearV2Coefficient = decimal.RequireFromString("0.08")
)

// DefaultStrategies is the allocation history of the department.
var DefaultStrategies = StrategyTable{
	{Name: "legacy-brackets", Until: "1134", Unit: IsCMPTUnit, Func: LegacyBrackets},
	{Name: "linear-floor-v1", From: "1134", Until: "1222", Unit: IsCMPTUnit, Func: LinearFloor(linearV1Coefficient)},
	{Name: "linear-floor-v2", From: "1224", Until: "1232", Unit: IsCMPTUnit, Func: LinearFloor(linearV2Coefficient)},
	{Name: "linear-round", From: "1234", Unit: IsCMPTUnit, Func: LinearRound(linearV2Coefficient, 2)},
}

// Select returns the strategy for a unit and semester, or NoAllocation.
func (t StrategyTable) Select(unitLabel string, semester SemesterCode) StrategyFunc {
	if rule, ok := t.Rule(unitLabel, semester); ok {
		return rule.Func
	}
	return NoAllocation
}

// Rule returns the covering rule, if any.
func (t StrategyTable) Rule(unitLabel string, semester SemesterCode) (StrategyRule, bool) {
	for _, r := range t {
		if r.Covers(unitLabel, semester) {
			return r, true
		}
	}
	return StrategyRule{}, false
}

// =============================================================================
// STRATEGIES
// =============================================================================

// NoAllocation is the default strategy for units without a formula.
func NoAllocation(AllocationInput) decimal.Decimal { return decimal.Zero }

// LegacyBrackets returns the cumulative BU of the highest threshold reached by
// the enrollment. An unconfigured level, or an enrollment under every threshold,
// allocates nothing; enrollment above the top threshold gets the top bracket.
func LegacyBrackets(in AllocationInput) decimal.Decimal {
	result := decimal.Zero
	for _, b := range in.Rates.BracketsFor(in.Level) {
		if b.Threshold > in.Enrollment {
			break
		}
		result = b.CumulativeBU
	}
	if result.IsNegative() {
		return decimal.Zero
	}
	return result
}

// LinearFloor allocates floor(enrollment * coefficient) whole BU.
func LinearFloor(coefficient decimal.Decimal) StrategyFunc {
	return func(in AllocationInput) decimal.Decimal {
		return atLeastMinimum(decimal.NewFromInt(int64(in.Enrollment)).Mul(coefficient).Floor())
	}
}

// LinearRound allocates enrollment * coefficient rounded to the given places.
func LinearRound(coefficient decimal.Decimal, places int32) StrategyFunc {
	return func(in AllocationInput) decimal.Decimal {
		return atLeastMinimum(decimal.NewFromInt(int64(in.Enrollment)).Mul(coefficient).Round(places))
	}
}

// atLeastMinimum: an offering earns at least MinimumAllocationBU or nothing.
func atLeastMinimum(bu decimal.Decimal) decimal.Decimal {
	if bu.LessThan(MinimumAllocationBU) {
		return decimal.Zero
	}
	return bu
}
