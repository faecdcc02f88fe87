package dto

import "time"

// StartSessionRequest 开始学习会话。
type StartSessionRequest struct {
	ScheduleID string `json:"schedule_id"`
}

// CheckInResponseRequest 响应一次在学确认。
type CheckInResponseRequest struct {
	ChallengeID   string `json:"challenge_id"`
	StillStudying bool   `json:"still_studying"`
}

// SessionStarted 会话已开始。
type SessionStarted struct {
	SessionID       string    `json:"session_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

// SessionResumed 重连后的会话快照。
type SessionResumed struct {
	SessionID        string              `json:"session_id"`
	RemainingSeconds int                 `json:"remaining_seconds"`
	LastCheckIn      time.Time           `json:"last_check_in"`
	Challenge        *CheckInRequestData `json:"challenge,omitempty"`
}

// CheckInRequestData 在学确认挑战。
type CheckInRequestData struct {
	ChallengeID string    `json:"challenge_id"`
	Message     string    `json:"message"`
	IssuedAt    time.Time `json:"issued_at"`
	Deadline    time.Time `json:"deadline"`
}

// CheckInConfirmed 在学确认已记录。
type CheckInConfirmed struct {
	LastCheckIn time.Time `json:"last_check_in"`
}

// SessionEnded 会话终止。
type SessionEnded struct {
	SessionID             string `json:"session_id"`
	Status                string `json:"status"`
	ActualDurationMinutes int    `json:"actual_duration_minutes"`
}
