package session

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StillStudying/internal/model"
	"StillStudying/internal/model/dto"
	"StillStudying/internal/repository"
	bizerr "StillStudying/pkg/errors"
	"StillStudying/pkg/snowflake"
)

func TestMain(m *testing.M) {
	if err := snowflake.Init(1, 1); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// ---- 假钟 ----

type fakeTimer struct {
	clock    *fakeClock
	deadline time.Time
	fn       func()
	stopped  bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped
	t.stopped = true
	return active
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped
	t.stopped = false
	t.deadline = t.clock.now.Add(d)
	return active
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, deadline: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance 推进假钟并按顺序触发到期定时器
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.stopped || t.deadline.After(target) {
				continue
			}
			if next == nil || t.deadline.Before(next.deadline) {
				next = t
			}
		}
		if next == nil {
			break
		}
		c.now = next.deadline
		next.stopped = true
		fn := next.fn
		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// ---- 内存仓库 ----

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[int64]*model.StudySession
	nextID   int64
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[int64]*model.StudySession)}
}

func (r *memSessionRepo) Create(ctx context.Context, s *model.StudySession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s.ID = r.nextID
	clone := *s
	r.sessions[s.ID] = &clone
	return nil
}

func (r *memSessionRepo) GetByPublicID(ctx context.Context, publicID int64) (*model.StudySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.PublicID == publicID {
			clone := *s
			return &clone, nil
		}
	}
	return nil, bizerr.SessionNotFound
}

func (r *memSessionRepo) GetActiveByUser(ctx context.Context, userID int64) (*model.StudySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID && s.Status == model.SessionStatusActive {
			clone := *s
			return &clone, nil
		}
	}
	return nil, bizerr.SessionNotFound
}

func (r *memSessionRepo) ListActive(ctx context.Context) ([]*model.StudySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.StudySession
	for _, s := range r.sessions {
		if s.Status == model.SessionStatusActive {
			clone := *s
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memSessionRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.StudySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.StudySession
	for _, s := range r.sessions {
		if s.UserID == userID {
			clone := *s
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *memSessionRepo) UpdateVersioned(ctx context.Context, s *model.StudySession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.sessions[s.ID]
	if !ok {
		return bizerr.SessionNotFound
	}
	if existing.Version != s.Version {
		return bizerr.VersionConflict
	}
	s.Version++
	clone := *s
	r.sessions[s.ID] = &clone
	return nil
}

type memSchedRepo struct {
	mu             sync.Mutex
	schedules      map[int64]*model.Schedule
	failNextUpdate bool
}

func newMemSchedRepo() *memSchedRepo {
	return &memSchedRepo{schedules: make(map[int64]*model.Schedule)}
}

func (r *memSchedRepo) put(s *model.Schedule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *s
	r.schedules[s.ID] = &clone
}

func (r *memSchedRepo) Create(ctx context.Context, s *model.Schedule) error {
	r.put(s)
	return nil
}

func (r *memSchedRepo) GetByPublicID(ctx context.Context, publicID int64) (*model.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.schedules {
		if s.PublicID == publicID {
			clone := *s
			return &clone, nil
		}
	}
	return nil, bizerr.ScheduleNotFound
}

func (r *memSchedRepo) GetByID(ctx context.Context, id int64) (*model.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.schedules[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, bizerr.ScheduleNotFound
}

func (r *memSchedRepo) ListByOwner(ctx context.Context, ownerID int64, activeOnly bool) ([]*model.Schedule, error) {
	return nil, nil
}

func (r *memSchedRepo) ListActiveByOwner(ctx context.Context, ownerID int64) ([]*model.Schedule, error) {
	return nil, nil
}

func (r *memSchedRepo) ListAllActive(ctx context.Context) ([]*model.Schedule, error) {
	return nil, nil
}

func (r *memSchedRepo) UpdateVersioned(ctx context.Context, s *model.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNextUpdate {
		r.failNextUpdate = false
		return bizerr.VersionConflict
	}
	existing, ok := r.schedules[s.ID]
	if !ok {
		return bizerr.ScheduleNotFound
	}
	if existing.Version != s.Version {
		return bizerr.VersionConflict
	}
	s.Version++
	clone := *s
	r.schedules[s.ID] = &clone
	return nil
}

// ---- 出站记录器 ----

type sentEvent struct {
	userID int64
	event  string
	data   interface{}
}

type sendRecorder struct {
	mu     sync.Mutex
	events []sentEvent
}

func (r *sendRecorder) Send(userID int64, event string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, sentEvent{userID: userID, event: event, data: data})
}

func (r *sendRecorder) byEvent(name string) []sentEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentEvent
	for _, e := range r.events {
		if e.event == name {
			out = append(out, e)
		}
	}
	return out
}

// ---- 测试装配 ----

type coordFixture struct {
	coord     *Coordinator
	clock     *fakeClock
	sessions  *memSessionRepo
	schedules *memSchedRepo
	sender    *sendRecorder
	eventKeys []string
	eventMu   sync.Mutex
}

func newCoordFixture(t *testing.T, now time.Time) *coordFixture {
	t.Helper()

	fx := &coordFixture{
		clock:     newFakeClock(now),
		sessions:  newMemSessionRepo(),
		schedules: newMemSchedRepo(),
		sender:    &sendRecorder{},
	}

	repos := &repository.Repositories{
		Schedule: fx.schedules,
		Session:  fx.sessions,
	}
	fx.coord = NewCoordinator(repos,
		WithCoordClock(fx.clock),
		WithCadence(15*time.Minute, 2*time.Minute, 2),
		WithEventPublisher(func(eventKey, eventType string, payload map[string]interface{}) error {
			fx.eventMu.Lock()
			defer fx.eventMu.Unlock()
			fx.eventKeys = append(fx.eventKeys, eventKey)
			return nil
		}),
	)
	fx.coord.AttachSender(fx.sender)
	return fx
}

func (fx *coordFixture) addSchedule(now time.Time, recurring bool) *model.Schedule {
	s := &model.Schedule{
		BaseModel:              model.BaseModel{ID: 1},
		PublicID:               100,
		OwnerID:                7,
		Title:                  "kanji drill",
		StartTime:              now.Add(time.Minute),
		DurationMinutes:        120,
		IsRecurring:            recurring,
		CheckInIntervalMinutes: 15,
		Timezone:               "UTC",
		IsActive:               true,
		Status:                 model.ScheduleStatusScheduled,
		Version:                1,
	}
	if recurring {
		s.RecurringDaysOfWeek = model.IntList{0, 1, 2, 3, 4, 5, 6}
	}
	fx.schedules.put(s)
	return s
}

func TestStartSessionRejectsDuplicate(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	fx := newCoordFixture(t, now)
	fx.addSchedule(now, false)
	ctx := context.Background()

	started, err := fx.coord.StartSession(ctx, 7, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, started.SessionID)
	assert.Equal(t, 120, started.DurationMinutes)

	// 日程翻转为进行中
	sched, err := fx.schedules.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusInProgress, sched.Status)

	// 同一用户第二个会话被拒
	_, err = fx.coord.StartSession(ctx, 7, 100)
	assert.True(t, bizerr.Is(err, bizerr.SessionAlreadyActive))
}

func TestStartSessionRollsBackOnScheduleConflict(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	fx := newCoordFixture(t, now)
	fx.addSchedule(now, false)
	ctx := context.Background()

	// 并发编辑抢了日程版本，翻转进行中失败
	fx.schedules.failNextUpdate = true
	_, err := fx.coord.StartSession(ctx, 7, 100)
	require.Error(t, err)

	// 刚建的会话被回收，不留活跃孤儿
	_, err = fx.sessions.GetActiveByUser(ctx, 7)
	assert.True(t, bizerr.Is(err, bizerr.SessionNotFound))
	assert.Empty(t, fx.coord.entries)

	// 冲突消退后可以正常开始
	started, err := fx.coord.StartSession(ctx, 7, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, started.SessionID)
}

func TestStartSessionRequiresStartableSchedule(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	fx := newCoordFixture(t, now)
	s := fx.addSchedule(now, false)
	s.Status = model.ScheduleStatusCompleted
	fx.schedules.put(s)

	_, err := fx.coord.StartSession(context.Background(), 7, 100)
	assert.True(t, bizerr.Is(err, bizerr.ScheduleNotStartable))
}

func TestCheckInCadence(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	fx := newCoordFixture(t, now)
	fx.addSchedule(now, false)
	ctx := context.Background()

	_, err := fx.coord.StartSession(ctx, 7, 100)
	require.NoError(t, err)

	// 间隔未到，无挑战
	fx.clock.Advance(14 * time.Minute)
	assert.Empty(t, fx.sender.byEvent(EventCheckInRequest))

	// 到点签发
	fx.clock.Advance(time.Minute)
	requests := fx.sender.byEvent(EventCheckInRequest)
	require.Len(t, requests, 1)

	challenge, ok := requests[0].data.(dto.CheckInRequestData)
	require.True(t, ok)
	assert.NotEmpty(t, challenge.ChallengeID)
	assert.Equal(t, fx.clock.Now().Add(2*time.Minute), challenge.Deadline)
}

func TestRespondWithinWindowConfirms(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	fx := newCoordFixture(t, now)
	fx.addSchedule(now, false)
	ctx := context.Background()

	_, err := fx.coord.StartSession(ctx, 7, 100)
	require.NoError(t, err)

	fx.clock.Advance(15 * time.Minute)
	requests := fx.sender.byEvent(EventCheckInRequest)
	require.Len(t, requests, 1)
	challengeID := fx.coord.entries[mustSessionID(t, fx)].machine.Challenge.ID

	fx.clock.Advance(time.Minute)
	confirmed, ended, err := fx.coord.RespondCheckIn(ctx, 7, challengeID, true)
	require.NoError(t, err)
	assert.Nil(t, ended)
	require.NotNil(t, confirmed)
	assert.Equal(t, fx.clock.Now(), confirmed.LastCheckIn)

	// 确认后节奏重置：再过 15 分钟出现第二个挑战
	fx.clock.Advance(15 * time.Minute)
	assert.Len(t, fx.sender.byEvent(EventCheckInRequest), 2)
}

func TestRespondNotStudyingEndsSession(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	fx := newCoordFixture(t, now)
	fx.addSchedule(now, false)
	ctx := context.Background()

	_, err := fx.coord.StartSession(ctx, 7, 100)
	require.NoError(t, err)

	fx.clock.Advance(15 * time.Minute)
	challengeID := fx.coord.entries[mustSessionID(t, fx)].machine.Challenge.ID

	_, ended, err := fx.coord.RespondCheckIn(ctx, 7, challengeID, false)
	require.NoError(t, err)
	require.NotNil(t, ended)
	assert.Equal(t, string(model.SessionStatusInterrupted), ended.Status)

	// 主动否认在学 → 轮次退回可开始
	sched, err := fx.schedules.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusScheduled, sched.Status)
}

func TestConsecutiveMissesInterrupt(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	fx := newCoordFixture(t, now)
	fx.addSchedule(now, false)
	ctx := context.Background()

	started, err := fx.coord.StartSession(ctx, 7, 100)
	require.NoError(t, err)
	publicID, err := strconv.ParseInt(started.SessionID, 10, 64)
	require.NoError(t, err)

	// 第一个挑战超时：会话还活着
	fx.clock.Advance(15 * time.Minute)
	fx.clock.Advance(2 * time.Minute)
	assert.Empty(t, fx.sender.byEvent(EventSessionEnded))

	// 第二个挑战也超时：中断
	fx.clock.Advance(15 * time.Minute)
	fx.clock.Advance(2 * time.Minute)

	endedEvents := fx.sender.byEvent(EventSessionEnded)
	require.Len(t, endedEvents, 1)

	persisted, err := fx.sessions.GetByPublicID(ctx, publicID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusInterrupted, persisted.Status)
	assert.Equal(t, 2, persisted.MissedCheckIns)

	// 一次性日程失约后停用
	sched, err := fx.schedules.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusMissed, sched.Status)
	assert.False(t, sched.IsActive)

	assert.Contains(t, fx.eventKeys, "session.interrupted")
}

func TestSingleMissRestartsCadence(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	fx := newCoordFixture(t, now)
	fx.addSchedule(now, false)
	ctx := context.Background()

	_, err := fx.coord.StartSession(ctx, 7, 100)
	require.NoError(t, err)

	fx.clock.Advance(15 * time.Minute)
	fx.clock.Advance(2 * time.Minute) // miss 1

	// miss 后 15 分钟出现新的挑战
	fx.clock.Advance(15 * time.Minute)
	assert.Len(t, fx.sender.byEvent(EventCheckInRequest), 2)
	assert.Empty(t, fx.sender.byEvent(EventSessionEnded))
}

func TestNaturalExpiryCompletes(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	fx := newCoordFixture(t, now)
	fx.addSchedule(now, true)
	ctx := context.Background()

	_, err := fx.coord.StartSession(ctx, 7, 100)
	require.NoError(t, err)
	sessionID := mustSessionID(t, fx)

	// 每次挑战都按时响应，直到时长走满
	for i := 0; i < 7; i++ {
		fx.clock.Advance(15 * time.Minute)
		e, ok := fx.coord.entries[sessionID]
		if !ok {
			break
		}
		if e.machine.Challenge != nil {
			_, _, err := fx.coord.RespondCheckIn(ctx, 7, e.machine.Challenge.ID, true)
			require.NoError(t, err)
		}
	}
	fx.clock.Advance(16 * time.Minute)

	endedEvents := fx.sender.byEvent(EventSessionEnded)
	require.Len(t, endedEvents, 1)

	_, err = fx.sessions.GetActiveByUser(ctx, 7)
	assert.True(t, bizerr.Is(err, bizerr.SessionNotFound))

	// 周重复日程完成后回到可开始，完成计数 +1
	sched, err := fx.schedules.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusScheduled, sched.Status)
	assert.Equal(t, 1, sched.CompletionCount)
	assert.True(t, sched.IsActive)
	assert.Contains(t, fx.eventKeys, "session.completed")
}

func TestEndSessionEarlyInterrupts(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	fx := newCoordFixture(t, now)
	fx.addSchedule(now, false)
	ctx := context.Background()

	_, err := fx.coord.StartSession(ctx, 7, 100)
	require.NoError(t, err)

	fx.clock.Advance(30 * time.Minute)
	ended, err := fx.coord.EndSession(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, string(model.SessionStatusInterrupted), ended.Status)
	assert.Equal(t, 30, ended.ActualDurationMinutes)

	// 提前结束 → 轮次退回可开始
	sched, err := fx.schedules.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusScheduled, sched.Status)
	assert.True(t, sched.IsActive)
}

func TestResumeReturnsSnapshotWithChallenge(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	fx := newCoordFixture(t, now)
	fx.addSchedule(now, false)
	ctx := context.Background()

	started, err := fx.coord.StartSession(ctx, 7, 100)
	require.NoError(t, err)

	fx.clock.Advance(15 * time.Minute)

	resumed, err := fx.coord.Resume(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, started.SessionID, resumed.SessionID)
	assert.Equal(t, (120-15)*60, resumed.RemainingSeconds)
	require.NotNil(t, resumed.Challenge, "outstanding challenge must survive reconnect")

	// 用快照里的挑战 ID 响应成功
	_, _, err = fx.coord.RespondCheckIn(ctx, 7, resumed.Challenge.ChallengeID, true)
	require.NoError(t, err)
}

func TestRestoreRebuildsCadenceFromLastCheckIn(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	fx := newCoordFixture(t, now)
	fx.addSchedule(now, false)
	ctx := context.Background()

	// 直接落库一个活跃会话，模拟进程重启前的状态
	sess := &model.StudySession{
		PublicID:    9001,
		ScheduleID:  1,
		UserID:      7,
		StartTime:   now.Add(-30 * time.Minute),
		LastCheckIn: now.Add(-10 * time.Minute),
		Status:      model.SessionStatusActive,
		Version:     1,
	}
	require.NoError(t, fx.sessions.Create(ctx, sess))

	require.NoError(t, fx.coord.Restore(ctx))

	// 节奏从 LastCheckIn 续算：还差 5 分钟到下一次挑战
	fx.clock.Advance(4 * time.Minute)
	assert.Empty(t, fx.sender.byEvent(EventCheckInRequest))

	fx.clock.Advance(time.Minute)
	assert.Len(t, fx.sender.byEvent(EventCheckInRequest), 1)
}

func TestRestoreCompletesOverdueSession(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	fx := newCoordFixture(t, now)
	fx.addSchedule(now, false)
	ctx := context.Background()

	sess := &model.StudySession{
		PublicID:    9002,
		ScheduleID:  1,
		UserID:      7,
		StartTime:   now.Add(-3 * time.Hour),
		LastCheckIn: now.Add(-3 * time.Hour),
		Status:      model.SessionStatusActive,
		Version:     1,
	}
	require.NoError(t, fx.sessions.Create(ctx, sess))

	require.NoError(t, fx.coord.Restore(ctx))

	persisted, err := fx.sessions.GetByPublicID(ctx, 9002)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCompleted, persisted.Status)
	assert.Equal(t, 120, persisted.ActualDurationMinutes)
}

func mustSessionID(t *testing.T, fx *coordFixture) int64 {
	t.Helper()
	for id := range fx.coord.entries {
		return id
	}
	t.Fatal("no registered session")
	return 0
}
