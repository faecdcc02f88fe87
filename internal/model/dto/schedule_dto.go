package dto

import "time"

// CreateScheduleRequest 表示创建日程的请求体。
type CreateScheduleRequest struct {
	Title                  string    `json:"title"`
	StartTime              time.Time `json:"start_time"`
	DurationMinutes        int       `json:"duration_minutes"`
	IsRecurring            bool      `json:"is_recurring"`
	RecurringDaysOfWeek    []int     `json:"recurring_days_of_week,omitempty"`
	ReminderOffsetsMinutes []int     `json:"reminder_offsets_minutes,omitempty"`
	CheckInIntervalMinutes int       `json:"check_in_interval_minutes,omitempty"`
	Timezone               string    `json:"timezone,omitempty"`
}

// UpdateScheduleRequest 表示更新日程的请求体，nil 字段不修改。
type UpdateScheduleRequest struct {
	Title                  *string    `json:"title,omitempty"`
	StartTime              *time.Time `json:"start_time,omitempty"`
	DurationMinutes        *int       `json:"duration_minutes,omitempty"`
	IsRecurring            *bool      `json:"is_recurring,omitempty"`
	RecurringDaysOfWeek    []int      `json:"recurring_days_of_week,omitempty"`
	ReminderOffsetsMinutes []int      `json:"reminder_offsets_minutes,omitempty"`
	CheckInIntervalMinutes *int       `json:"check_in_interval_minutes,omitempty"`
	Timezone               *string    `json:"timezone,omitempty"`
}

// ScheduleItem 表示日程的基础信息。
type ScheduleItem struct {
	ID                     string    `json:"id"`
	Title                  string    `json:"title"`
	StartTime              time.Time `json:"start_time"`
	DurationMinutes        int       `json:"duration_minutes"`
	IsRecurring            bool      `json:"is_recurring"`
	RecurringDaysOfWeek    []int     `json:"recurring_days_of_week,omitempty"`
	ReminderOffsetsMinutes []int     `json:"reminder_offsets_minutes"`
	CheckInIntervalMinutes int       `json:"check_in_interval_minutes"`
	Timezone               string    `json:"timezone"`
	IsActive               bool      `json:"is_active"`
	Status                 string    `json:"status"`
	CompletionCount        int       `json:"completion_count"`
	CreatedAt              time.Time `json:"created_at"`
}
