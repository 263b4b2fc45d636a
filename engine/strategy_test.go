package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func legacyRates() RateTable {
	rt := NewRateTable(d("7.5"))
	rt.Brackets = map[string][]Bracket{
		"300": {{Threshold: 60, CumulativeBU: d("4")}, {Threshold: 0, CumulativeBU: d("0")}, {Threshold: 30, CumulativeBU: d("2")}},
	}
	return rt
}

func defaultBU(unit string, semester SemesterCode, level string, enrollment int) string {
	f := DefaultStrategies.Select(unit, semester)
	return f(AllocationInput{Rates: legacyRates(), Level: level, Enrollment: enrollment}).String()
}

func TestStrategy_LinearFloorV1(t *testing.T) {
	// GIVEN: CMPT in 1141, enrollment 100
	// THEN: floor(100 * 0.062) = 6
	assert.Equal(t, "6", defaultBU("CMPT", "1141", "100", 100))

	// Enrollment 20: 1.24 is below the minimum, so nothing rather than 1.24
	assert.Equal(t, "0", defaultBU("CMPT", "1141", "100", 20))
}

func TestStrategy_LinearFloorV2(t *testing.T) {
	assert.Equal(t, "8", defaultBU("CMPT", "1224", "100", 100))
	assert.Equal(t, "3", defaultBU("CMPT", "1231", "100", 49)) // floor(3.92)
	assert.Equal(t, "0", defaultBU("CMPT", "1227", "100", 24)) // 1.92
}

func TestStrategy_LinearRound(t *testing.T) {
	// GIVEN: CMPT in 1234, enrollment 50
	// THEN: round(50 * 0.08, 2) = 4.00
	assertDecimal(t, "4.00", DefaultStrategies.Select("CMPT", "1234")(AllocationInput{Enrollment: 50}))

	assert.Equal(t, "3.92", defaultBU("CMPT", "1237", "100", 49))
	assert.Equal(t, "2", defaultBU("CMPT", "1241", "100", 25))
	assert.Equal(t, "0", defaultBU("CMPT", "1241", "100", 24)) // 1.92
}

func TestStrategy_LegacyBrackets(t *testing.T) {
	// GIVEN: brackets {"300": [(0,0), (30,2), (60,4)]}, stored out of order

	// THEN: highest threshold reached wins
	assert.Equal(t, "2", defaultBU("CMPT", "1131", "300", 45))
	assert.Equal(t, "4", defaultBU("CMPT", "1131", "300", 60))
	assert.Equal(t, "0", defaultBU("CMPT", "1131", "300", 29))

	// No extrapolation above the top bracket
	assert.Equal(t, "4", defaultBU("CMPT", "1131", "300", 500))

	// Unconfigured level allocates nothing
	assert.Equal(t, "0", defaultBU("CMPT", "1131", "100", 45))
}

func TestStrategy_DefaultForOtherUnitsAndGaps(t *testing.T) {
	assert.Equal(t, "0", defaultBU("MATH", "1234", "100", 300))
	assert.Equal(t, "0", defaultBU("ENSC", "1141", "100", 300))

	// Codes between the historical ranges
	assert.Equal(t, "0", defaultBU("CMPT", "1222", "100", 300))
	assert.Equal(t, "0", defaultBU("CMPT", "1232", "100", 300))
}

func TestStrategy_RuleBoundaries(t *testing.T) {
	tests := []struct {
		semester SemesterCode
		rule     string
	}{
		{"1131", "legacy-brackets"},
		{"1134", "linear-floor-v1"},
		{"1221", "linear-floor-v1"},
		{"1224", "linear-floor-v2"},
		{"1231", "linear-floor-v2"},
		{"1234", "linear-round"},
		{"1247", "linear-round"},
	}
	for _, tt := range tests {
		rule, ok := DefaultStrategies.Rule("CMPT", tt.semester)
		if assert.True(t, ok, tt.semester) {
			assert.Equal(t, tt.rule, rule.Name, tt.semester)
		}
	}

	_, ok := DefaultStrategies.Rule("cmpt-grad", "1234")
	assert.True(t, ok, "CMPT variants share the CMPT rules")
}

func TestStrategy_NeverNegative(t *testing.T) {
	semesters := []SemesterCode{"1001", "1131", "1134", "1197", "1221", "1222", "1224", "1231", "1234", "1301"}
	for _, s := range semesters {
		for n := 0; n <= 400; n += 7 {
			bu := DefaultStrategies.Select("CMPT", s)(AllocationInput{Rates: legacyRates(), Level: "300", Enrollment: n})
			assert.False(t, bu.IsNegative(), "semester %s enrollment %d", s, n)
			if rule, ok := DefaultStrategies.Rule("CMPT", s); ok && rule.Name != "legacy-brackets" && bu.IsPositive() {
				assert.True(t, bu.GreaterThanOrEqual(MinimumAllocationBU), "semester %s enrollment %d gave %s", s, n, bu)
			}
		}
	}
}
