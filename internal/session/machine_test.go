package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StillStudying/internal/model"
)

func testMachine(now time.Time) *Machine {
	sched := &model.Schedule{
		BaseModel:              model.BaseModel{ID: 1},
		PublicID:               100,
		OwnerID:                7,
		Title:                  "kanji drill",
		StartTime:              now,
		DurationMinutes:        120,
		CheckInIntervalMinutes: 15,
		Timezone:               "UTC",
		IsActive:               true,
		Status:                 model.ScheduleStatusInProgress,
	}
	sess := &model.StudySession{
		BaseModel:   model.BaseModel{ID: 10},
		PublicID:    1000,
		ScheduleID:  1,
		UserID:      7,
		StartTime:   now,
		LastCheckIn: now,
		Status:      model.SessionStatusActive,
		Version:     1,
	}
	return NewMachine(sess, sched)
}

func TestIssueChallengeOnlyOneOutstanding(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	m := testMachine(now)

	ch := m.IssueChallenge(now, 2*time.Minute)
	require.NotNil(t, ch)
	assert.NotEmpty(t, ch.ID)
	assert.Equal(t, now.Add(2*time.Minute), ch.Deadline)

	// 已有未响应挑战时不再签发
	assert.Nil(t, m.IssueChallenge(now.Add(time.Second), 2*time.Minute))
}

func TestRespondConfirmedResetsCadence(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	m := testMachine(now)
	m.Session.MissedCheckIns = 1

	ch := m.IssueChallenge(now.Add(15*time.Minute), 2*time.Minute)
	require.NotNil(t, ch)

	answeredAt := now.Add(16 * time.Minute)
	result := m.Respond(ch.ID, true, answeredAt)

	assert.Equal(t, RespondConfirmed, result)
	assert.Nil(t, m.Challenge)
	assert.Equal(t, answeredAt, m.Session.LastCheckIn)
	assert.Zero(t, m.Session.MissedCheckIns)
}

func TestRespondNotStudyingInterrupts(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	m := testMachine(now)

	ch := m.IssueChallenge(now.Add(15*time.Minute), 2*time.Minute)
	require.NotNil(t, ch)

	assert.Equal(t, RespondInterrupted, m.Respond(ch.ID, false, now.Add(16*time.Minute)))
	assert.Nil(t, m.Challenge)
}

func TestRespondStaleAndDuplicateIgnored(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	m := testMachine(now)

	ch := m.IssueChallenge(now, 2*time.Minute)
	require.NotNil(t, ch)

	// ID 不匹配
	assert.Equal(t, RespondIgnored, m.Respond("bogus", true, now.Add(time.Minute)))

	// 过了截止时间
	assert.Equal(t, RespondIgnored, m.Respond(ch.ID, true, now.Add(3*time.Minute)))
	// 超时后的挑战仍挂着，等 ExpireChallenge 收走
	require.NotNil(t, m.Challenge)

	// 正常确认后重复提交被丢弃
	ch2 := &Challenge{ID: ch.ID, IssuedAt: now, Deadline: now.Add(10 * time.Minute)}
	m.Challenge = ch2
	assert.Equal(t, RespondConfirmed, m.Respond(ch2.ID, true, now.Add(4*time.Minute)))
	assert.Equal(t, RespondIgnored, m.Respond(ch2.ID, true, now.Add(4*time.Minute)))
}

func TestExpireChallengeCountsConsecutiveMisses(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	m := testMachine(now)

	ch := m.IssueChallenge(now, 2*time.Minute)
	require.NotNil(t, ch)

	missed, exceeded := m.ExpireChallenge(ch.ID, 2)
	assert.True(t, missed)
	assert.False(t, exceeded, "single miss keeps the session alive")
	assert.Equal(t, 1, m.Session.MissedCheckIns)

	// 第二次连续 miss 达到上限
	ch2 := m.IssueChallenge(now.Add(15*time.Minute), 2*time.Minute)
	require.NotNil(t, ch2)
	missed, exceeded = m.ExpireChallenge(ch2.ID, 2)
	assert.True(t, missed)
	assert.True(t, exceeded)
	assert.Equal(t, 2, m.Session.MissedCheckIns)
}

func TestExpireChallengeMismatchNoop(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	m := testMachine(now)

	m.IssueChallenge(now, 2*time.Minute)
	missed, exceeded := m.ExpireChallenge("bogus", 2)
	assert.False(t, missed)
	assert.False(t, exceeded)
	assert.Zero(t, m.Session.MissedCheckIns)
}

func TestMissThenConfirmResetsCounter(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	m := testMachine(now)

	ch := m.IssueChallenge(now, 2*time.Minute)
	m.ExpireChallenge(ch.ID, 2)
	require.Equal(t, 1, m.Session.MissedCheckIns)

	// miss 后确认在学，计数归零，后续 miss 重新从 1 开始
	ch2 := m.IssueChallenge(now.Add(15*time.Minute), 2*time.Minute)
	require.Equal(t, RespondConfirmed, m.Respond(ch2.ID, true, now.Add(16*time.Minute)))
	assert.Zero(t, m.Session.MissedCheckIns)

	ch3 := m.IssueChallenge(now.Add(30*time.Minute), 2*time.Minute)
	_, exceeded := m.ExpireChallenge(ch3.ID, 2)
	assert.False(t, exceeded)
}

func TestCompleteClampsToNaturalEnd(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	m := testMachine(now)

	// 比自然结束晚一分钟收尾，时长按计划时长封顶
	m.Complete(now.Add(121 * time.Minute))

	assert.Equal(t, model.SessionStatusCompleted, m.Session.Status)
	require.NotNil(t, m.Session.EndTime)
	assert.Equal(t, now.Add(120*time.Minute), *m.Session.EndTime)
	assert.Equal(t, 120, m.Session.ActualDurationMinutes)
}

func TestInterruptRecordsActualDuration(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	m := testMachine(now)

	m.Interrupt(now.Add(45 * time.Minute))

	assert.Equal(t, model.SessionStatusInterrupted, m.Session.Status)
	assert.Equal(t, 45, m.Session.ActualDurationMinutes)
	assert.True(t, m.Session.Terminal())
}

func TestActualDurationRoundsToNearestMinute(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	// 14m59s 进位到 15，14m29s 舍到 14
	m := testMachine(now)
	m.Interrupt(now.Add(14*time.Minute + 59*time.Second))
	assert.Equal(t, 15, m.Session.ActualDurationMinutes)

	m = testMachine(now)
	m.Interrupt(now.Add(14*time.Minute + 29*time.Second))
	assert.Equal(t, 14, m.Session.ActualDurationMinutes)
}

func TestTerminalMachineRejectsFurtherTransitions(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	m := testMachine(now)
	m.Interrupt(now.Add(10 * time.Minute))

	assert.Nil(t, m.IssueChallenge(now.Add(20*time.Minute), 2*time.Minute))
	assert.Equal(t, RespondIgnored, m.Respond("x", true, now.Add(20*time.Minute)))

	// 终态不可再变
	m.Complete(now.Add(30 * time.Minute))
	assert.Equal(t, model.SessionStatusInterrupted, m.Session.Status)
	assert.Equal(t, 10, m.Session.ActualDurationMinutes)
}
