/*
compensation.go - Pay and scholarship amounts of contracts

PURPOSE:
  Derives money from BU quantities and the rates captured on the contract.

RULES:
  assignment pay = TotalBU * PayPerBU, zero unless the contract is TAing
                   (ACC, OPN or SGN)
  contract:
    TotalBU        = sum of TotalBU over assignments (zero when REJ/CAN)
    TotalPay       = TotalBU * PayPerBU
    Scholarship    = sum of raw BU * ScholarshipPerBU (prep never carries
                     scholarship)
    GrandTotal     = TotalPay + Scholarship
    Biweekly*      = amount / PayPeriods, PayPeriods must be > 0

ROUNDING:
  Nothing here is rounded. Money is quantized with Money() at display or export
  time so many small assignments never compound rounding error.
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// AssignmentPay is the pay earned by one assignment.
func AssignmentPay(c Contract, p Posting, a CourseAssignment) decimal.Decimal {
	if !c.Status.Taing() {
		return decimal.Zero
	}
	return c.TotalBU(p, a).Mul(c.PayPerBU)
}

// Compensation is the money summary of a contract.
type Compensation struct {
	BU                  decimal.Decimal // raw BU, scholarship bearing
	PrepBU              decimal.Decimal
	TotalBU             decimal.Decimal
	TotalPay            decimal.Decimal
	ScholarshipPay      decimal.Decimal
	GrandTotal          decimal.Decimal
	PayPeriods          decimal.Decimal
	BiweeklyPay         decimal.Decimal
	BiweeklyScholarship decimal.Decimal
}

// Compensate computes the contract totals. It fails only when the posting has
// no positive pay period count.
func Compensate(c Contract, p Posting) (Compensation, error) {
	if !p.Rates.PayPeriods.IsPositive() {
		return Compensation{}, &ConfigurationError{PostingID: p.ID, Missing: "pay periods greater than zero"}
	}

	comp := Compensation{
		BU:         decimal.Zero,
		PrepBU:     decimal.Zero,
		TotalBU:    decimal.Zero,
		PayPeriods: p.Rates.PayPeriods,
	}
	if !c.Status.Terminal() {
		for _, a := range c.Assignments {
			comp.BU = comp.BU.Add(a.BU)
			comp.PrepBU = comp.PrepBU.Add(a.PrepBU(p))
			comp.TotalBU = comp.TotalBU.Add(c.TotalBU(p, a))
		}
	}

	comp.TotalPay = comp.TotalBU.Mul(c.PayPerBU)
	comp.ScholarshipPay = comp.BU.Mul(c.ScholarshipPerBU)
	comp.GrandTotal = comp.TotalPay.Add(comp.ScholarshipPay)
	comp.BiweeklyPay = comp.TotalPay.Div(comp.PayPeriods)
	comp.BiweeklyScholarship = comp.ScholarshipPay.Div(comp.PayPeriods)
	return comp, nil
}
