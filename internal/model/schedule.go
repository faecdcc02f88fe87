package model

import "time"

// ScheduleStatus 当前轮次的生命周期状态
type ScheduleStatus string

const (
	ScheduleStatusScheduled  ScheduleStatus = "scheduled"
	ScheduleStatusInProgress ScheduleStatus = "in_progress"
	ScheduleStatusCompleted  ScheduleStatus = "completed"
	ScheduleStatusMissed     ScheduleStatus = "missed"
)

const (
	MinDurationMinutes = 1
	MaxDurationMinutes = 1440

	MaxReminderOffsets = 5

	MinCheckInIntervalMinutes = 5
	MaxCheckInIntervalMinutes = 60
)

// DefaultReminderOffsets 默认提醒偏移：开始前 30 分钟和 5 分钟
var DefaultReminderOffsets = IntList{30, 5}

// Schedule 学习日程（可按周几重复）
type Schedule struct {
	BaseModel
	PublicID               int64          `gorm:"uniqueIndex;not null" json:"public_id"`
	OwnerID                int64          `gorm:"not null;index:idx_schedules_owner_active" json:"owner_id"`
	Title                  string         `gorm:"type:varchar(128);not null" json:"title"`
	StartTime              time.Time      `gorm:"type:timestamptz;not null" json:"start_time"`
	DurationMinutes        int            `gorm:"not null" json:"duration_minutes"`
	IsRecurring            bool           `gorm:"not null;default:false" json:"is_recurring"`
	RecurringDaysOfWeek    IntList        `gorm:"type:jsonb" json:"recurring_days_of_week,omitempty"` // 0=周日 .. 6=周六
	ReminderOffsetsMinutes IntList        `gorm:"type:jsonb" json:"reminder_offsets_minutes"`
	CheckInIntervalMinutes int            `gorm:"not null" json:"check_in_interval_minutes"`
	Timezone               string         `gorm:"type:varchar(64);not null;default:'UTC'" json:"timezone"`
	IsActive               bool           `gorm:"not null;default:true;index:idx_schedules_owner_active" json:"is_active"`
	Status                 ScheduleStatus `gorm:"type:varchar(16);not null;default:'scheduled'" json:"status"`
	CompletionCount        int            `gorm:"not null;default:0" json:"completion_count"`
	Version                int64          `gorm:"not null;default:1" json:"version"` // 乐观锁
}

// TableName 指定表名
func (Schedule) TableName() string {
	return "schedules"
}

// EndTime 当前轮次的结束时间
func (s *Schedule) EndTime() time.Time {
	return s.StartTime.Add(s.Duration())
}

func (s *Schedule) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Startable 当前是否可以开始一次学习会话
func (s *Schedule) Startable() bool {
	return s.IsActive && s.Status == ScheduleStatusScheduled
}
