package utils

import (
	"time"
)

// TimeFormat 消息体中时间字段的统一序列化格式
const TimeFormat = time.RFC3339

// LoadLocation 加载 IANA 时区，空串回退 UTC
// 周几的判断必须统一用户本地民用日历，避免 DST 边界上差一天
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// SameClockOnDay 把 src 的时分秒搬到 day 所在日期（同一时区）
func SameClockOnDay(src, day time.Time) time.Time {
	return time.Date(
		day.Year(), day.Month(), day.Day(),
		src.Hour(), src.Minute(), src.Second(), src.Nanosecond(),
		day.Location(),
	)
}
