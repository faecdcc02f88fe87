package model

import "time"

// SessionStatus 学习会话状态，completed/interrupted 均为终态
type SessionStatus string

const (
	SessionStatusActive      SessionStatus = "active"
	SessionStatusCompleted   SessionStatus = "completed"
	SessionStatusInterrupted SessionStatus = "interrupted"
)

// StudySession 一次日程轮次的实际执行记录
// 不变式：active 期间 LastCheckIn 必有值且单调不减；终态后不可变
type StudySession struct {
	BaseModel
	PublicID              int64         `gorm:"uniqueIndex;not null" json:"public_id"`
	ScheduleID            int64         `gorm:"not null;index" json:"schedule_id"`
	UserID                int64         `gorm:"not null;index:idx_study_sessions_user_status" json:"user_id"`
	StartTime             time.Time     `gorm:"type:timestamptz;not null" json:"start_time"`
	EndTime               *time.Time    `gorm:"type:timestamptz" json:"end_time,omitempty"`
	LastCheckIn           time.Time     `gorm:"type:timestamptz;not null" json:"last_check_in"`
	ActualDurationMinutes int           `gorm:"not null;default:0" json:"actual_duration_minutes"`
	MissedCheckIns        int           `gorm:"not null;default:0" json:"missed_check_ins"` // 连续未响应计数
	Status                SessionStatus `gorm:"type:varchar(16);not null;default:'active';index:idx_study_sessions_user_status" json:"status"`
	Version               int64         `gorm:"not null;default:1" json:"version"`
}

// TableName 指定表名
func (StudySession) TableName() string {
	return "study_sessions"
}

func (s *StudySession) Terminal() bool {
	return s.Status != SessionStatusActive
}
