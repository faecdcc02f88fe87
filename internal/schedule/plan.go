package schedule

import (
	"sort"
	"time"

	"StillStudying/internal/model"
	"StillStudying/utils"
)

// FiringPlan 一条应当存在的提醒触发计划，纯计算结果
type FiringPlan struct {
	OccurrenceStart time.Time
	OffsetMinutes   int
	FireAt          time.Time
}

// ComputeFirings 计算 [now, now+horizon) 内应当存在的全部触发计划
// 纯函数：不读库不看钟，结果按 FireAt 升序、同刻按 OffsetMinutes 降序
//   - 一次性日程：至多一个轮次（StartTime 本身）
//   - 周重复日程：按所有者时区的民用日历逐天展开周几集合
//   - 过去的触发点一律丢弃，轮次已开始的也不再补发
func ComputeFirings(s *model.Schedule, now time.Time, horizon time.Duration) []FiringPlan {
	if !s.IsActive {
		return nil
	}

	offsets := s.ReminderOffsetsMinutes
	if len(offsets) == 0 {
		offsets = model.DefaultReminderOffsets
	}

	occurrences := Occurrences(s, now, now.Add(horizon))

	type firingKey struct {
		occurrence int64
		offset     int
	}

	plans := make([]FiringPlan, 0, len(occurrences)*len(offsets))
	seen := make(map[firingKey]struct{})

	for _, occ := range occurrences {
		for _, offset := range offsets {
			if offset <= 0 {
				continue
			}
			fireAt := occ.Add(-time.Duration(offset) * time.Minute)
			if !fireAt.After(now) {
				continue
			}

			key := firingKey{occurrence: occ.Unix(), offset: offset}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			plans = append(plans, FiringPlan{
				OccurrenceStart: occ,
				OffsetMinutes:   offset,
				FireAt:          fireAt,
			})
		}
	}

	sort.Slice(plans, func(i, j int) bool {
		if !plans[i].FireAt.Equal(plans[j].FireAt) {
			return plans[i].FireAt.Before(plans[j].FireAt)
		}
		return plans[i].OffsetMinutes > plans[j].OffsetMinutes
	})
	return plans
}

// Occurrences 展开 [from, until) 内的轮次开始时刻
// 周几集合按所有者时区的民用日历判定，锚点之前不产生轮次
func Occurrences(s *model.Schedule, from, until time.Time) []time.Time {
	if !s.IsRecurring {
		if s.StartTime.After(from) && s.StartTime.Before(until) {
			return []time.Time{s.StartTime}
		}
		return nil
	}

	if len(s.RecurringDaysOfWeek) == 0 {
		return nil
	}

	loc, err := utils.LoadLocation(s.Timezone)
	if err != nil {
		return nil
	}

	anchor := s.StartTime.In(loc)
	start := from
	if s.StartTime.After(start) {
		start = s.StartTime
	}

	var occurrences []time.Time
	// 逐天推进而不是按周跳，DST 切换日上同刻时间的 UTC 偏移会变
	day := start.In(loc)
	for !day.After(until.In(loc)) {
		if s.RecurringDaysOfWeek.Contains(int(day.Weekday())) {
			occ := utils.SameClockOnDay(anchor, day)
			if occ.After(from) && occ.Before(until) && !occ.Before(s.StartTime) {
				occurrences = append(occurrences, occ)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return occurrences
}
