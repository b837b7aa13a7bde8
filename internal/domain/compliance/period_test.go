package compliance

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"employeehub/internal/platform/sentinel"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2024-02")
	require.NoError(t, err)
	assert.Equal(t, Period{Year: 2024, Month: time.February}, p)
	assert.Equal(t, "2024-02", p.String())
	assert.Equal(t, day(2024, time.February, 1), p.Start())
	assert.Equal(t, day(2024, time.February, 29), p.End())

	for _, bad := range []string{"2024-2", "24-02", "2024/02", "2024-13", "2024-00", "2024-02-01", ""} {
		_, err := ParsePeriod(bad)
		assert.ErrorIs(t, err, sentinel.ErrValidation, bad)
	}
}

func TestPeriodArithmetic(t *testing.T) {
	p := MustParsePeriod("2024-11")
	assert.Equal(t, "2025-02", p.AddMonths(3).String())
	assert.Equal(t, "2023-12", p.AddMonths(-11).String())
	assert.True(t, p.Before(MustParsePeriod("2025-01")))
	assert.True(t, p.After(MustParsePeriod("2024-10")))

	r := PeriodRange(MustParsePeriod("2024-11"), MustParsePeriod("2025-02"))
	require.Len(t, r, 4)
	assert.Equal(t, "2025-01", r[2].String())
	assert.Nil(t, PeriodRange(MustParsePeriod("2025-02"), MustParsePeriod("2024-11")))
}

func TestPeriodJSONAndScan(t *testing.T) {
	var payload struct {
		Period Period `json:"period"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"period":"2024-06"}`), &payload))
	assert.Equal(t, "2024-06", payload.Period.String())

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"period":"2024-06"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"period":"June"}`), &payload))

	var scanned Period
	require.NoError(t, scanned.Scan("2023-01"))
	assert.Equal(t, "2023-01", scanned.String())
	v, err := scanned.Value()
	require.NoError(t, err)
	assert.Equal(t, "2023-01", v)
}

func TestMonthsBetween(t *testing.T) {
	assert.Equal(t, 0, MonthsBetween(MustParsePeriod("2025-03"), MustParsePeriod("2025-03")))
	assert.Equal(t, 14, MonthsBetween(MustParsePeriod("2024-11"), MustParsePeriod("2026-01")))
	assert.Equal(t, -2, MonthsBetween(MustParsePeriod("2025-03"), MustParsePeriod("2025-01")))
}
