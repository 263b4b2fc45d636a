/*
ratetable.go - Posting configuration: rates, accounts, pay periods, brackets

PURPOSE:
  A posting is one TA hiring cycle for one unit in one semester. Its RateTable
  carries, for each of the four positionally fixed categories, the salary and
  scholarship rate per BU and the payroll account; the number of pay periods
  used for amortization; and the historical bracket table used only by the
  legacy allocation strategy.

INVARIANTS:
  - Exactly four categories, in Categories order (GTA1, GTA2, UTA, ETA)
  - Every category resolves to an account before contracts can be created
  - PayPeriods > 0

SEE ALSO:
  - factory/posting.go: JSON form of a posting
  - strategy.go: Legacy bracket lookup
*/
package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Posting is a TA hiring cycle for one unit in one semester.
type Posting struct {
	ID        PostingID
	UnitLabel string
	Semester  SemesterCode
	Rates     RateTable

	// Defaults copied onto new contracts.
	AppointmentStart time.Time
	AppointmentEnd   time.Time
	PayStart         time.Time
	PayEnd           time.Time
	Deadline         time.Time

	// ExportSequence is the last payroll batch sequence handed out.
	ExportSequence int
}

// CategoryRate is the configuration of one TA category.
type CategoryRate struct {
	Category         Category
	SalaryPerBU      decimal.Decimal
	ScholarshipPerBU decimal.Decimal
	AccountID        string
}

// Bracket maps an enrollment threshold to the cumulative BU reached at it.
type Bracket struct {
	Threshold    int
	CumulativeBU decimal.Decimal
}

// RateTable is the typed rate configuration of a posting.
type RateTable struct {
	Categories [4]CategoryRate
	PayPeriods decimal.Decimal

	// Brackets: course level ("100", "300") -> thresholds, legacy strategy only.
	Brackets map[string][]Bracket

	// LabBonusBU overrides the preparation bonus from semester 1234 on.
	// Nil means LabBonusBU; an explicit zero disables the bonus.
	LabBonusBU *decimal.Decimal
}

// NewRateTable builds a rate table with the categories in their fixed order.
func NewRateTable(payPeriods decimal.Decimal) RateTable {
	var rt RateTable
	for i, c := range Categories {
		rt.Categories[i] = CategoryRate{Category: c}
	}
	rt.PayPeriods = payPeriods
	return rt
}

// Rate returns the configuration of a category.
func (rt RateTable) Rate(c Category) (CategoryRate, bool) {
	i := c.Index()
	if i < 0 {
		return CategoryRate{}, false
	}
	return rt.Categories[i], true
}

// SetRate stores a category configuration at its fixed position.
func (rt *RateTable) SetRate(r CategoryRate) error {
	i := r.Category.Index()
	if i < 0 {
		return fmt.Errorf("unknown TA category %q", r.Category)
	}
	rt.Categories[i] = r
	return nil
}

// BracketsFor returns the thresholds of a level sorted ascending.
func (rt RateTable) BracketsFor(level string) []Bracket {
	b := append([]Bracket(nil), rt.Brackets[level]...)
	sort.Slice(b, func(i, j int) bool { return b[i].Threshold < b[j].Threshold })
	return b
}

// PrepBonus is the lab/tutorial preparation bonus of the posting.
func (rt RateTable) PrepBonus() decimal.Decimal {
	if rt.LabBonusBU != nil {
		return *rt.LabBonusBU
	}
	return LabBonusBU
}

// Validate checks the invariants required before any contract can be created.
func (p Posting) Validate() error {
	for i, r := range p.Rates.Categories {
		if r.Category != Categories[i] {
			return &ConfigurationError{PostingID: p.ID,
				Missing: fmt.Sprintf("rate category %d must be %s", i+1, Categories[i])}
		}
		if r.AccountID == "" {
			return &ConfigurationError{PostingID: p.ID,
				Missing: fmt.Sprintf("account for category %s", r.Category)}
		}
		if r.SalaryPerBU.IsNegative() || r.ScholarshipPerBU.IsNegative() {
			return &ConfigurationError{PostingID: p.ID,
				Missing: fmt.Sprintf("non-negative rates for category %s", r.Category)}
		}
	}
	if !p.Rates.PayPeriods.IsPositive() {
		return &ConfigurationError{PostingID: p.ID, Missing: "pay periods greater than zero"}
	}
	return nil
}
