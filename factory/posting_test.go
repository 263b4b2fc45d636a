package factory

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ta-engine/engine"
)

const validPosting = `{
	"id": "cmpt-1131",
	"unit": "CMPT",
	"semester": "1131",
	"pay_periods": "7.5",
	"rates": [
		{"category": "GTA1", "salary_per_bu": "1150.00", "scholarship_per_bu": "125.00", "account_id": "10-1"},
		{"category": "GTA2", "salary_per_bu": 1200, "scholarship_per_bu": "150", "account_id": "10-2"},
		{"category": "UTA", "salary_per_bu": "900", "scholarship_per_bu": "0", "account_id": "10-3"},
		{"category": "ETA", "salary_per_bu": "900", "scholarship_per_bu": "0", "account_id": "10-4"}
	],
	"bu_brackets": {"300": [{"threshold": 60, "cumulative_bu": "4"}, {"threshold": 0, "cumulative_bu": "0"}, {"threshold": 30, "cumulative_bu": "2"}]},
	"appointment_start": "2013-01-01",
	"deadline": "2012-12-01"
}`

func TestParsePosting(t *testing.T) {
	// GIVEN: a complete legacy posting
	f := NewPostingFactory()

	// WHEN
	p, err := f.ParsePosting(validPosting)
	require.NoError(t, err)

	// THEN: typed rates in fixed order, numbers accepted as strings or numbers
	assert.Equal(t, engine.PostingID("cmpt-1131"), p.ID)
	assert.Equal(t, engine.SemesterCode("1131"), p.Semester)
	assert.Equal(t, engine.CategoryETA, p.Rates.Categories[3].Category)
	assert.Equal(t, "1200", p.Rates.Categories[1].SalaryPerBU.String())
	assert.Equal(t, "7.5", p.Rates.PayPeriods.String())
	assert.Equal(t, time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC), p.AppointmentStart)
	assert.True(t, p.PayEnd.IsZero())
	require.NoError(t, p.Validate())

	// The bracket table drives the legacy strategy
	bu := engine.LegacyBrackets(engine.AllocationInput{Rates: p.Rates, Level: "300", Enrollment: 45})
	assert.Equal(t, "2", bu.String())
}

func TestParsePosting_ValidationErrors(t *testing.T) {
	f := NewPostingFactory()
	input := strings.NewReplacer(`"cmpt-1131"`, `""`, `"1131"`, `"1132"`, `"2012-12-01"`, `"12/01/2012"`).Replace(validPosting)

	_, err := f.ParsePosting(input)

	var verr *engine.ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make([]string, len(verr.Fields))
	for i, fe := range verr.Fields {
		fields[i] = fe.Field
	}
	assert.Equal(t, []string{"id", "semester", "deadline"}, fields)
}

func TestRatesFromJSON_FixedCategoryOrder(t *testing.T) {
	f := NewPostingFactory()

	tests := []struct {
		name  string
		rates []RateJSON
	}{
		{"too few", []RateJSON{{Category: "GTA1"}, {Category: "GTA2"}, {Category: "UTA"}}},
		{"swapped", []RateJSON{{Category: "GTA2"}, {Category: "GTA1"}, {Category: "UTA"}, {Category: "ETA"}}},
		{"unknown", []RateJSON{{Category: "GTA1"}, {Category: "GTA2"}, {Category: "UTA"}, {Category: "XTA"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.RatesFromJSON("p1", RatesJSON{Rates: tt.rates})
			assert.True(t, engine.IsConfiguration(err), "got %v", err)
		})
	}
}

func TestEncodeDecodeRates(t *testing.T) {
	// GIVEN: a posting from 1234 with its own prep bonus
	f := NewPostingFactory()
	p, err := f.ParsePosting(strings.Replace(validPosting, `"pay_periods"`, `"lab_bonus_bu": "0.2", "pay_periods"`, 1))
	require.NoError(t, err)

	// WHEN: stored and read back
	data, err := EncodeRates(p.Rates)
	require.NoError(t, err)
	rt, err := DecodeRates(p.ID, data)
	require.NoError(t, err)

	// THEN
	assert.Equal(t, "0.2", rt.PrepBonus().String())
	for i, r := range rt.Categories {
		assert.Equal(t, p.Rates.Categories[i].Category, r.Category)
		assert.Equal(t, p.Rates.Categories[i].AccountID, r.AccountID)
		assert.True(t, p.Rates.Categories[i].SalaryPerBU.Equal(r.SalaryPerBU))
	}
	assert.Len(t, rt.BracketsFor("300"), 3)
	assert.Equal(t, 0, rt.BracketsFor("300")[0].Threshold)
}

func TestLabBonus_ExplicitZeroKept(t *testing.T) {
	f := NewPostingFactory()

	// Absent: the standard bonus
	p, err := f.ParsePosting(validPosting)
	require.NoError(t, err)
	assert.Nil(t, p.Rates.LabBonusBU)
	assert.Equal(t, "0.17", p.Rates.PrepBonus().String())

	// Explicit zero survives storage
	p, err = f.ParsePosting(strings.Replace(validPosting, `"pay_periods"`, `"lab_bonus_bu": "0", "pay_periods"`, 1))
	require.NoError(t, err)
	data, err := EncodeRates(p.Rates)
	require.NoError(t, err)
	rt, err := DecodeRates(p.ID, data)
	require.NoError(t, err)
	assert.True(t, rt.PrepBonus().IsZero())

	// Negative is a configuration error
	_, err = f.ParsePosting(strings.Replace(validPosting, `"pay_periods"`, `"lab_bonus_bu": "-0.1", "pay_periods"`, 1))
	assert.True(t, errors.Is(err, engine.ErrConfiguration))
}

func TestToJSON_Dates(t *testing.T) {
	f := NewPostingFactory()
	p, err := f.ParsePosting(validPosting)
	require.NoError(t, err)

	pj := f.ToJSON(p)

	assert.Equal(t, "2013-01-01", pj.AppointmentStart)
	assert.Equal(t, "", pj.PayStart)
	assert.Len(t, pj.Rates, 4)
}
