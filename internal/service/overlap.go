package service

import (
	"time"

	"StillStudying/internal/model"
	"StillStudying/internal/schedule"
)

// intervalsOverlap 半开区间 [aStart, aEnd) 与 [bStart, bEnd) 是否相交
// 边界相接（前一个的结束 == 后一个的开始）不算重叠
func intervalsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// schedulesOverlap 在 [now, now+window) 内把两个日程各自展开成轮次区间后逐对比较
// 已在进行中的轮次也要算上，所以对端的展开窗口向前多拉一个时长
func schedulesOverlap(candidate, existing *model.Schedule, now time.Time, window time.Duration) bool {
	until := now.Add(window)

	candidateOccs := schedule.Occurrences(candidate, now, until)
	existingOccs := schedule.Occurrences(existing, now.Add(-existing.Duration()), until)

	for _, cOcc := range candidateOccs {
		cEnd := cOcc.Add(candidate.Duration())
		for _, eOcc := range existingOccs {
			if intervalsOverlap(cOcc, cEnd, eOcc, eOcc.Add(existing.Duration())) {
				return true
			}
		}
	}
	return false
}
