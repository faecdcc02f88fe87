package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StillStudying/internal/model"
)

func oneOffSchedule(start time.Time, offsets ...int) *model.Schedule {
	return &model.Schedule{
		BaseModel:              model.BaseModel{ID: 1},
		PublicID:               100,
		OwnerID:                7,
		Title:                  "algebra review",
		StartTime:              start,
		DurationMinutes:        60,
		ReminderOffsetsMinutes: model.IntList(offsets),
		CheckInIntervalMinutes: 15,
		Timezone:               "UTC",
		IsActive:               true,
		Status:                 model.ScheduleStatusScheduled,
	}
}

func TestComputeFiringsOneOff(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	start := now.Add(2 * time.Hour)

	plans := ComputeFirings(oneOffSchedule(start, 30, 5), now, 7*24*time.Hour)

	require.Len(t, plans, 2)
	assert.Equal(t, start.Add(-30*time.Minute), plans[0].FireAt)
	assert.Equal(t, 30, plans[0].OffsetMinutes)
	assert.Equal(t, start.Add(-5*time.Minute), plans[1].FireAt)
	assert.Equal(t, 5, plans[1].OffsetMinutes)
	assert.Equal(t, start, plans[0].OccurrenceStart)
	assert.Equal(t, start, plans[1].OccurrenceStart)
}

func TestComputeFiringsSkipsElapsedOffsets(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	// 开始前 10 分钟：30 分钟偏移已经过点，只剩 5 分钟那条
	start := now.Add(10 * time.Minute)

	plans := ComputeFirings(oneOffSchedule(start, 30, 5), now, 7*24*time.Hour)

	require.Len(t, plans, 1)
	assert.Equal(t, 5, plans[0].OffsetMinutes)
	assert.True(t, plans[0].FireAt.After(now))
}

func TestComputeFiringsElapsedOccurrence(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	start := now.Add(-time.Minute)

	plans := ComputeFirings(oneOffSchedule(start, 30, 5), now, 7*24*time.Hour)
	assert.Empty(t, plans)
}

func TestComputeFiringsInactiveSchedule(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	s := oneOffSchedule(now.Add(2*time.Hour), 30)
	s.IsActive = false

	assert.Empty(t, ComputeFirings(s, now, 7*24*time.Hour))
}

func TestComputeFiringsDefaultOffsets(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	s := oneOffSchedule(now.Add(2 * time.Hour))

	plans := ComputeFirings(s, now, 7*24*time.Hour)

	require.Len(t, plans, 2)
	assert.Equal(t, 30, plans[0].OffsetMinutes)
	assert.Equal(t, 5, plans[1].OffsetMinutes)
}

func TestComputeFiringsDeduplicatesOffsets(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	s := oneOffSchedule(now.Add(2*time.Hour), 30, 30, 5)

	plans := ComputeFirings(s, now, 7*24*time.Hour)
	assert.Len(t, plans, 2)
}

func TestComputeFiringsWeeklyRecurring(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	// 2026-08-28 是周五；锚点下周一 20:00，重复周一和周三
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, loc)
	anchor := time.Date(2026, 8, 31, 20, 0, 0, 0, loc)

	s := oneOffSchedule(anchor, 30)
	s.IsRecurring = true
	s.RecurringDaysOfWeek = model.IntList{1, 3} // 周一、周三
	s.Timezone = "Asia/Shanghai"

	plans := ComputeFirings(s, now, 14*24*time.Hour)

	// 两周窗口内：8/31(一) 9/2(三) 9/7(一) 9/9(三)
	require.Len(t, plans, 4)
	wantOccurrences := []time.Time{
		time.Date(2026, 8, 31, 20, 0, 0, 0, loc),
		time.Date(2026, 9, 2, 20, 0, 0, 0, loc),
		time.Date(2026, 9, 7, 20, 0, 0, 0, loc),
		time.Date(2026, 9, 9, 20, 0, 0, 0, loc),
	}
	for i, want := range wantOccurrences {
		assert.True(t, plans[i].OccurrenceStart.Equal(want),
			"occurrence %d: want %v got %v", i, want, plans[i].OccurrenceStart)
		assert.True(t, plans[i].FireAt.Equal(want.Add(-30*time.Minute)))
	}
}

func TestComputeFiringsRecurringBeforeAnchor(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, loc)
	// 锚点在一周后，更早的同周几不应产生轮次
	anchor := time.Date(2026, 9, 4, 20, 0, 0, 0, loc) // 周五

	s := oneOffSchedule(anchor, 30)
	s.IsRecurring = true
	s.RecurringDaysOfWeek = model.IntList{5}

	plans := ComputeFirings(s, now, 14*24*time.Hour)

	require.NotEmpty(t, plans)
	assert.True(t, plans[0].OccurrenceStart.Equal(anchor))
	for _, p := range plans {
		assert.False(t, p.OccurrenceStart.Before(anchor))
	}
}

func TestComputeFiringsHorizonBound(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	horizon := 14 * 24 * time.Hour

	s := oneOffSchedule(now.Add(2*time.Hour), 30)
	s.IsRecurring = true
	s.RecurringDaysOfWeek = model.IntList{0, 1, 2, 3, 4, 5, 6}

	plans := ComputeFirings(s, now, horizon)
	limit := now.Add(horizon)

	require.NotEmpty(t, plans)
	for _, p := range plans {
		assert.True(t, p.OccurrenceStart.Before(limit))
		assert.True(t, p.FireAt.After(now), "firing must never be in the past")
	}
}

func TestComputeFiringsSortedByFireAt(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	s := oneOffSchedule(now.Add(2*time.Hour), 5, 60, 30)
	plans := ComputeFirings(s, now, 7*24*time.Hour)

	require.Len(t, plans, 3)
	for i := 1; i < len(plans); i++ {
		assert.False(t, plans[i].FireAt.Before(plans[i-1].FireAt))
	}
}

func TestOccurrencesCivilCalendarAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 2026-11-01 美东夏令时结束；周日 09:00 的轮次在切换前后都应落在本地 09:00
	now := time.Date(2026, 10, 28, 12, 0, 0, 0, loc)
	anchor := time.Date(2026, 11, 1, 9, 0, 0, 0, loc)

	s := oneOffSchedule(anchor, 30)
	s.IsRecurring = true
	s.RecurringDaysOfWeek = model.IntList{0}
	s.Timezone = "America/New_York"

	occs := Occurrences(s, now, now.Add(14*24*time.Hour))

	require.Len(t, occs, 2)
	for _, occ := range occs {
		local := occ.In(loc)
		assert.Equal(t, 9, local.Hour())
		assert.Equal(t, time.Sunday, local.Weekday())
	}
}
