/*
letters.go - Substitution values for offer letters

PURPOSE:
  The engine never lays out a letter. It hands DocumentGenerator and Notifier
  a flat map of formatted values (names, totals, course list, dates) and the
  template owns everything else.

FORMAT:
  money      2 decimal places (FormatMoney)
  BU         shortest exact decimal ("2.17", "5")
  dates      "January 2, 2006"
  courses    "CMPT 120 D100 (2 BU)", sorted, comma separated

SEE ALSO:
  - compensation.go: the totals being formatted
  - ports.go: DocumentGenerator and Notifier receive LetterValues
*/
package engine

import (
	"sort"
	"strings"
)

// LetterValues are the template substitutions of an offer letter.
type LetterValues map[string]string

const letterDate = "January 2, 2006"

// BuildLetterValues formats the computed totals of a contract. Money is
// rounded here and nowhere earlier.
func BuildLetterValues(c Contract, p Posting, comp Compensation, offerings map[OfferingID]Offering) LetterValues {
	courses := make([]string, 0, len(c.Assignments))
	for _, a := range c.Assignments {
		name := string(a.OfferingID)
		if o, ok := offerings[a.OfferingID]; ok {
			name = o.Name()
		}
		courses = append(courses, name+" ("+a.BU.String()+" BU)")
	}
	sort.Strings(courses)

	return LetterValues{
		"name":                 c.Name,
		"employee_id":          c.EmployeeID,
		"unit":                 p.UnitLabel,
		"semester":             p.Semester.String(),
		"category":             c.Category.Label(),
		"courses":              strings.Join(courses, ", "),
		"total_bu":             comp.TotalBU.String(),
		"prep_bu":              comp.PrepBU.String(),
		"pay_per_bu":           FormatMoney(c.PayPerBU),
		"scholarship_per_bu":   FormatMoney(c.ScholarshipPerBU),
		"total_pay":            FormatMoney(comp.TotalPay),
		"scholarship_pay":      FormatMoney(comp.ScholarshipPay),
		"grand_total":          FormatMoney(comp.GrandTotal),
		"biweekly_pay":         FormatMoney(comp.BiweeklyPay),
		"biweekly_scholarship": FormatMoney(comp.BiweeklyScholarship),
		"appointment_start":    c.AppointmentStart.Format(letterDate),
		"appointment_end":      c.AppointmentEnd.Format(letterDate),
		"deadline":             c.Deadline.Format(letterDate),
	}
}
