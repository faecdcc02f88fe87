package model

import "time"

// FiringStatus 提醒触发记录状态，pending 为唯一非终态
type FiringStatus string

const (
	FiringStatusPending   FiringStatus = "pending"
	FiringStatusFired     FiringStatus = "fired"
	FiringStatusCancelled FiringStatus = "cancelled"
)

// ReminderFiring 一条具体的提醒触发计划：(日程, 轮次开始时刻, 偏移) 唯一
// 由提醒调度器独占持有，永不直接暴露给客户端
type ReminderFiring struct {
	BaseModel
	ScheduleID      int64        `gorm:"not null;index:idx_reminder_firings_schedule;uniqueIndex:uq_firing_key,priority:1" json:"schedule_id"`
	OwnerID         int64        `gorm:"not null" json:"owner_id"`
	ScheduleTitle   string       `gorm:"type:varchar(128);not null" json:"schedule_title"`
	OccurrenceStart time.Time    `gorm:"type:timestamptz;not null;uniqueIndex:uq_firing_key,priority:2" json:"occurrence_start"`
	OffsetMinutes   int          `gorm:"not null;uniqueIndex:uq_firing_key,priority:3" json:"offset_minutes"`
	DurationMinutes int          `gorm:"not null;default:0" json:"duration_minutes"`
	FireAt          time.Time    `gorm:"type:timestamptz;not null;index:idx_reminder_firings_due" json:"fire_at"`
	Status          FiringStatus `gorm:"type:varchar(16);not null;default:'pending';index:idx_reminder_firings_due" json:"status"`
	Attempts        int          `gorm:"not null;default:0" json:"attempts"`
	FiredAt         *time.Time   `gorm:"type:timestamptz" json:"fired_at,omitempty"`
}

// OccurrenceEnd 对应轮次的计划结束时刻
func (f *ReminderFiring) OccurrenceEnd() time.Time {
	return f.OccurrenceStart.Add(time.Duration(f.DurationMinutes) * time.Minute)
}

// TableName 指定表名
func (ReminderFiring) TableName() string {
	return "reminder_firings"
}
