package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Shanghai", loc.String())

	// 空串回退 UTC
	loc, err = LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Mars/Olympus")
	assert.Error(t, err)
}

func TestSameClockOnDay(t *testing.T) {
	loc := time.UTC
	src := time.Date(2026, 8, 25, 20, 15, 0, 0, loc)
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, loc)

	moved := SameClockOnDay(src, day)
	assert.Equal(t, 2, moved.Day())
	assert.Equal(t, 20, moved.Hour())
	assert.Equal(t, 15, moved.Minute())
}

func TestSameClockOnDayAcrossDSTChange(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2026-11-01 美东夏令时结束，本地钟点保持不变
	src := time.Date(2026, 10, 25, 9, 0, 0, 0, loc)
	day := time.Date(2026, 11, 8, 0, 0, 0, 0, loc)

	moved := SameClockOnDay(src, day)
	assert.Equal(t, 9, moved.In(loc).Hour())
	assert.Equal(t, 8, moved.In(loc).Day())
}
