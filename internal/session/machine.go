package session

import (
	"math"
	"time"

	"github.com/google/uuid"

	"StillStudying/internal/model"
)

// Challenge 一次"还在学吗"确认挑战，只存在于内存，进程重启即重置节奏
type Challenge struct {
	ID       string
	IssuedAt time.Time
	Deadline time.Time
}

func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.Deadline)
}

// Machine 单个学习会话的状态机，不做持久化也不加锁，由协调器独占驱动
type Machine struct {
	Session   *model.StudySession
	Schedule  *model.Schedule
	Challenge *Challenge // 未响应的挑战，无则 nil
}

func NewMachine(session *model.StudySession, schedule *model.Schedule) *Machine {
	return &Machine{Session: session, Schedule: schedule}
}

// Active 会话是否仍在进行
func (m *Machine) Active() bool {
	return m.Session.Status == model.SessionStatusActive
}

// NaturalEnd 计划内的自然结束时刻
func (m *Machine) NaturalEnd() time.Time {
	return m.Session.StartTime.Add(m.Schedule.Duration())
}

// RemainingSeconds 距自然结束还剩多少秒，不为负
func (m *Machine) RemainingSeconds(now time.Time) int {
	remaining := m.NaturalEnd().Sub(now)
	if remaining < 0 {
		return 0
	}
	return int(remaining / time.Second)
}

// IssueChallenge 签发一次确认挑战
// 已有未响应挑战时返回 nil，节奏由协调器控制
func (m *Machine) IssueChallenge(now time.Time, window time.Duration) *Challenge {
	if !m.Active() || m.Challenge != nil {
		return nil
	}
	m.Challenge = &Challenge{
		ID:       uuid.New().String(),
		IssuedAt: now,
		Deadline: now.Add(window),
	}
	return m.Challenge
}

// RespondResult 一次挑战响应的处理结论
type RespondResult int

const (
	RespondIgnored     RespondResult = iota // 过期/重复/ID 不匹配，静默丢弃
	RespondConfirmed                        // 确认在学，节奏重置
	RespondInterrupted                      // 用户明确表示不在学了
)

// Respond 处理挑战响应；确认在学会刷新 LastCheckIn 并清零连续未响应计数
func (m *Machine) Respond(challengeID string, stillStudying bool, now time.Time) RespondResult {
	if !m.Active() || m.Challenge == nil || m.Challenge.ID != challengeID {
		return RespondIgnored
	}
	if m.Challenge.Expired(now) {
		return RespondIgnored
	}

	m.Challenge = nil
	if !stillStudying {
		return RespondInterrupted
	}

	m.Session.LastCheckIn = now
	m.Session.MissedCheckIns = 0
	return RespondConfirmed
}

// ExpireChallenge 挑战到期未响应
// 返回是否计为一次 miss，以及连续 miss 是否已达上限
func (m *Machine) ExpireChallenge(challengeID string, limit int) (missed, exceeded bool) {
	if !m.Active() || m.Challenge == nil || m.Challenge.ID != challengeID {
		return false, false
	}
	m.Challenge = nil
	m.Session.MissedCheckIns++
	return true, m.Session.MissedCheckIns >= limit
}

// Complete 会话走满全程自然结束
func (m *Machine) Complete(now time.Time) {
	if !m.Active() {
		return
	}
	m.finish(model.SessionStatusCompleted, now)
}

// Interrupt 会话中断（用户主动结束、明确否认在学或连续未响应）
func (m *Machine) Interrupt(now time.Time) {
	if !m.Active() {
		return
	}
	m.finish(model.SessionStatusInterrupted, now)
}

func (m *Machine) finish(status model.SessionStatus, now time.Time) {
	end := now
	if natural := m.NaturalEnd(); end.After(natural) {
		end = natural
	}
	m.Challenge = nil
	m.Session.Status = status
	m.Session.EndTime = &end
	// 实际时长四舍五入到分钟
	m.Session.ActualDurationMinutes = int(math.Round(end.Sub(m.Session.StartTime).Minutes()))
}
