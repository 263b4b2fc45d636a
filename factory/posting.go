/*
Package factory provides JSON to Go posting conversion.

PURPOSE:
  Converts JSON posting definitions into engine.Posting with a typed RateTable.
  JSON is only the wire and storage form: the engine never reads a rate from a
  map, and malformed configuration is rejected here.

JSON SCHEMA:
  {
    "id": "cmpt-1234",
    "unit": "CMPT",
    "semester": "1234",
    "pay_periods": "7.5",
    "rates": [
      {"category": "GTA1", "salary_per_bu": "1150.00", "scholarship_per_bu": "125.00", "account_id": "10-1234"},
      {"category": "GTA2", ...},
      {"category": "UTA",  ...},
      {"category": "ETA",  ...}
    ],
    "bu_brackets": {"300": [{"threshold": 0, "cumulative_bu": "0"}, {"threshold": 30, "cumulative_bu": "2"}]},
    "lab_bonus_bu": "0.17",
    "appointment_start": "2023-09-01",
    "appointment_end": "2023-12-31",
    "pay_start": "2023-09-01",
    "pay_end": "2023-12-31",
    "deadline": "2023-08-15"
  }

RULES:
  - rates has exactly four entries in the fixed order GTA1, GTA2, UTA, ETA
  - decimals are accepted as strings or numbers
  - dates are YYYY-MM-DD, empty means unset
  - lab_bonus_bu applies from 1234 on; absent means 0.17, "0" means no bonus

SEE ALSO:
  - engine/ratetable.go: Posting and RateTable
  - store/sqlite: stores rates through EncodeRates/DecodeRates
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/ta-engine/engine"
)

// DateLayout is the wire format of posting dates.
const DateLayout = "2006-01-02"

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PostingJSON is the JSON representation of a posting.
type PostingJSON struct {
	ID               string `json:"id"`
	Unit             string `json:"unit"`
	Semester         string `json:"semester"`
	RatesJSON
	AppointmentStart string `json:"appointment_start,omitempty"`
	AppointmentEnd   string `json:"appointment_end,omitempty"`
	PayStart         string `json:"pay_start,omitempty"`
	PayEnd           string `json:"pay_end,omitempty"`
	Deadline         string `json:"deadline,omitempty"`
	ExportSequence   int    `json:"export_sequence,omitempty"`
}

// RatesJSON is the JSON representation of a rate table.
type RatesJSON struct {
	PayPeriods decimal.Decimal          `json:"pay_periods"`
	Rates      []RateJSON               `json:"rates"`
	Brackets   map[string][]BracketJSON `json:"bu_brackets,omitempty"`
	LabBonusBU *decimal.Decimal         `json:"lab_bonus_bu,omitempty"`
}

// RateJSON represents one category row.
type RateJSON struct {
	Category         string          `json:"category"`
	SalaryPerBU      decimal.Decimal `json:"salary_per_bu"`
	ScholarshipPerBU decimal.Decimal `json:"scholarship_per_bu"`
	AccountID        string          `json:"account_id"`
}

// BracketJSON represents one legacy enrollment bracket.
type BracketJSON struct {
	Threshold    int             `json:"threshold"`
	CumulativeBU decimal.Decimal `json:"cumulative_bu"`
}

// =============================================================================
// POSTING FACTORY
// =============================================================================

// PostingFactory converts JSON postings to Go structs.
type PostingFactory struct{}

// NewPostingFactory creates a new posting factory.
func NewPostingFactory() *PostingFactory {
	return &PostingFactory{}
}

// ParsePosting parses a JSON string into a Posting.
func (f *PostingFactory) ParsePosting(jsonStr string) (engine.Posting, error) {
	var pj PostingJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return engine.Posting{}, fmt.Errorf("failed to parse posting JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PostingJSON to engine.Posting.
func (f *PostingFactory) FromJSON(pj PostingJSON) (engine.Posting, error) {
	verr := &engine.ValidationError{}
	if pj.ID == "" {
		verr.Add("id", "posting id is required")
	}
	if pj.Unit == "" {
		verr.Add("unit", "unit label is required")
	}
	semester := engine.SemesterCode(pj.Semester)
	if !semester.Valid() {
		verr.Add("semester", "semester code %q must be 4 digits ending in 1, 4 or 7", pj.Semester)
	}

	p := engine.Posting{
		ID:             engine.PostingID(pj.ID),
		UnitLabel:      pj.Unit,
		Semester:       semester,
		ExportSequence: pj.ExportSequence,
	}
	dates := []struct {
		field string
		value string
		dst   *time.Time
	}{
		{"appointment_start", pj.AppointmentStart, &p.AppointmentStart},
		{"appointment_end", pj.AppointmentEnd, &p.AppointmentEnd},
		{"pay_start", pj.PayStart, &p.PayStart},
		{"pay_end", pj.PayEnd, &p.PayEnd},
		{"deadline", pj.Deadline, &p.Deadline},
	}
	for _, d := range dates {
		t, err := parseDate(d.value)
		if err != nil {
			verr.Add(d.field, "date %q must be YYYY-MM-DD", d.value)
			continue
		}
		*d.dst = t
	}
	if err := verr.OrNil(); err != nil {
		return engine.Posting{}, err
	}

	rates, err := f.RatesFromJSON(p.ID, pj.RatesJSON)
	if err != nil {
		return engine.Posting{}, err
	}
	p.Rates = rates
	return p, nil
}

// RatesFromJSON converts RatesJSON to a typed RateTable.
func (f *PostingFactory) RatesFromJSON(posting engine.PostingID, rj RatesJSON) (engine.RateTable, error) {
	if len(rj.Rates) != len(engine.Categories) {
		return engine.RateTable{}, &engine.ConfigurationError{PostingID: posting,
			Missing: fmt.Sprintf("exactly %d rate categories, got %d", len(engine.Categories), len(rj.Rates))}
	}

	rt := engine.NewRateTable(rj.PayPeriods)
	for i, r := range rj.Rates {
		category, err := engine.ParseCategory(r.Category)
		if err != nil || category != engine.Categories[i] {
			return engine.RateTable{}, &engine.ConfigurationError{PostingID: posting,
				Missing: fmt.Sprintf("rate category %d must be %s", i+1, engine.Categories[i])}
		}
		rt.Categories[i] = engine.CategoryRate{
			Category:         category,
			SalaryPerBU:      r.SalaryPerBU,
			ScholarshipPerBU: r.ScholarshipPerBU,
			AccountID:        r.AccountID,
		}
	}

	if len(rj.Brackets) > 0 {
		rt.Brackets = make(map[string][]engine.Bracket, len(rj.Brackets))
		for level, brackets := range rj.Brackets {
			for _, b := range brackets {
				rt.Brackets[level] = append(rt.Brackets[level], engine.Bracket{Threshold: b.Threshold, CumulativeBU: b.CumulativeBU})
			}
		}
	}
	if rj.LabBonusBU != nil {
		if rj.LabBonusBU.IsNegative() {
			return engine.RateTable{}, &engine.ConfigurationError{PostingID: posting, Missing: "a non-negative lab_bonus_bu"}
		}
		bonus := *rj.LabBonusBU
		rt.LabBonusBU = &bonus
	}
	return rt, nil
}

// ToJSON converts a Posting back to its JSON form.
func (f *PostingFactory) ToJSON(p engine.Posting) PostingJSON {
	return PostingJSON{
		ID:               string(p.ID),
		Unit:             p.UnitLabel,
		Semester:         string(p.Semester),
		RatesJSON:        f.RatesToJSON(p.Rates),
		AppointmentStart: formatDate(p.AppointmentStart),
		AppointmentEnd:   formatDate(p.AppointmentEnd),
		PayStart:         formatDate(p.PayStart),
		PayEnd:           formatDate(p.PayEnd),
		Deadline:         formatDate(p.Deadline),
		ExportSequence:   p.ExportSequence,
	}
}

// RatesToJSON converts a RateTable to its JSON form.
func (f *PostingFactory) RatesToJSON(rt engine.RateTable) RatesJSON {
	rj := RatesJSON{PayPeriods: rt.PayPeriods, Rates: make([]RateJSON, len(rt.Categories))}
	for i, r := range rt.Categories {
		rj.Rates[i] = RateJSON{
			Category:         string(r.Category),
			SalaryPerBU:      r.SalaryPerBU,
			ScholarshipPerBU: r.ScholarshipPerBU,
			AccountID:        r.AccountID,
		}
	}
	if len(rt.Brackets) > 0 {
		rj.Brackets = make(map[string][]BracketJSON, len(rt.Brackets))
		for level := range rt.Brackets {
			for _, b := range rt.BracketsFor(level) {
				rj.Brackets[level] = append(rj.Brackets[level], BracketJSON{Threshold: b.Threshold, CumulativeBU: b.CumulativeBU})
			}
		}
	}
	if rt.LabBonusBU != nil {
		bonus := *rt.LabBonusBU
		rj.LabBonusBU = &bonus
	}
	return rj
}

// EncodeRates serializes a rate table for storage.
func EncodeRates(rt engine.RateTable) ([]byte, error) {
	return json.Marshal(NewPostingFactory().RatesToJSON(rt))
}

// DecodeRates parses a stored rate table.
func DecodeRates(posting engine.PostingID, data []byte) (engine.RateTable, error) {
	var rj RatesJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return engine.RateTable{}, fmt.Errorf("failed to parse rates JSON: %w", err)
	}
	return NewPostingFactory().RatesFromJSON(posting, rj)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, s)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
