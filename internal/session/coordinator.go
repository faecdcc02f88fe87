package session

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"StillStudying/config"
	"StillStudying/internal/model"
	"StillStudying/internal/model/dto"
	"StillStudying/internal/queue"
	"StillStudying/internal/repository"
	bizerr "StillStudying/pkg/errors"
	"StillStudying/pkg/logger"
	"StillStudying/pkg/snowflake"
)

// 出站事件名，WebSocket 信封里的 event 字段
const (
	EventSessionStarted   = "session_started"
	EventSessionResumed   = "session_resumed"
	EventCheckInRequest   = "check_in_request"
	EventCheckInConfirmed = "check_in_confirmed"
	EventSessionEnded     = "session_ended"
)

const checkInMessage = "Are you still studying?"

// Sender 出站投递抽象，WebSocket 层实现；用户不在线时投递静默丢弃
type Sender interface {
	Send(userID int64, event string, data interface{})
}

type entry struct {
	machine       *Machine
	tickTimer     Timer
	deadlineTimer Timer
	expiryTimer   Timer
}

// Coordinator 学习会话活性协调器
// 注册表按会话 ID 组织，用户索引只做路由；断线不销毁状态机
type Coordinator struct {
	mu      sync.Mutex
	entries map[int64]*entry // 会话 PublicID -> 状态机
	byUser  map[int64]int64  // 用户ID -> 会话 PublicID

	sessions  repository.SessionRepository
	schedules repository.ScheduleRepository

	clock           Clock
	sender          Sender
	checkInInterval time.Duration // schedule 未配置时的兜底间隔
	responseWindow  time.Duration
	missedLimit     int
	publishEvent    func(eventKey, eventType string, payload map[string]interface{}) error
}

// CoordOption 协调器可选配置
type CoordOption func(*Coordinator)

func WithCoordClock(clock Clock) CoordOption {
	return func(c *Coordinator) { c.clock = clock }
}

func WithCadence(interval, window time.Duration, missedLimit int) CoordOption {
	return func(c *Coordinator) {
		c.checkInInterval = interval
		c.responseWindow = window
		c.missedLimit = missedLimit
	}
}

func WithEventPublisher(publish func(eventKey, eventType string, payload map[string]interface{}) error) CoordOption {
	return func(c *Coordinator) { c.publishEvent = publish }
}

func NewCoordinator(repos *repository.Repositories, opts ...CoordOption) *Coordinator {
	c := &Coordinator{
		entries:         make(map[int64]*entry),
		byUser:          make(map[int64]int64),
		sessions:        repos.Session,
		schedules:       repos.Schedule,
		clock:           NewClock(),
		checkInInterval: config.Cfg.CheckInInterval(),
		responseWindow:  config.Cfg.ResponseWindow(),
		missedLimit:     config.Cfg.MissedCheckInLimit,
		publishEvent:    queue.PublishEvent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AttachSender 绑定出站通道，WebSocket 层起来后调用
func (c *Coordinator) AttachSender(sender Sender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sender = sender
}

func (c *Coordinator) send(userID int64, event string, data interface{}) {
	if c.sender == nil {
		return
	}
	c.sender.Send(userID, event, data)
}

func (c *Coordinator) intervalFor(sched *model.Schedule) time.Duration {
	if sched.CheckInIntervalMinutes > 0 {
		return time.Duration(sched.CheckInIntervalMinutes) * time.Minute
	}
	return c.checkInInterval
}

// StartSession 开始一次学习会话
// 同一用户同一时刻至多一个活跃会话；日程必须处于可开始状态
func (c *Coordinator) StartSession(ctx context.Context, userID, schedulePublicID int64) (*dto.SessionStarted, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.byUser[userID]; busy {
		return nil, bizerr.SessionAlreadyActive
	}
	// 兜底查库，防止协调器重启后内存索引丢失
	if existing, err := c.sessions.GetActiveByUser(ctx, userID); err == nil && existing != nil {
		return nil, bizerr.SessionAlreadyActive
	}

	sched, err := c.schedules.GetByPublicID(ctx, schedulePublicID)
	if err != nil {
		return nil, err
	}
	if sched.OwnerID != userID {
		return nil, bizerr.ScheduleNotFound
	}
	if !sched.Startable() {
		return nil, bizerr.ScheduleNotStartable
	}

	publicID, err := snowflake.NextID()
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	session := &model.StudySession{
		PublicID:    publicID,
		ScheduleID:  sched.ID,
		UserID:      userID,
		StartTime:   now,
		LastCheckIn: now,
		Status:      model.SessionStatusActive,
		Version:     1,
	}
	if err := c.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	sched.Status = model.ScheduleStatusInProgress
	if err := c.schedules.UpdateVersioned(ctx, sched); err != nil {
		// 日程翻转失败（如并发编辑抢了版本）时回收刚建的会话
		// 不能留下孤儿 active 行挡住用户下一次开始
		session.Status = model.SessionStatusInterrupted
		session.EndTime = &now
		if rbErr := c.sessions.UpdateVersioned(ctx, session); rbErr != nil {
			logger.Logger.Error("Failed to roll back session after schedule update failure",
				zap.Int64("session_id", session.PublicID),
				zap.Error(rbErr),
			)
		}
		return nil, err
	}

	machine := NewMachine(session, sched)
	c.register(machine, c.intervalFor(sched), machine.Schedule.Duration())

	started := &dto.SessionStarted{
		SessionID:       strconv.FormatInt(session.PublicID, 10),
		StartTime:       session.StartTime,
		DurationMinutes: sched.DurationMinutes,
	}
	c.send(userID, EventSessionStarted, started)

	logger.Logger.Info("Study session started",
		zap.Int64("session_id", session.PublicID),
		zap.Int64("schedule_id", sched.PublicID),
		zap.Int64("user_id", userID),
	)
	return started, nil
}

// register 登记状态机并布置节奏定时器，调用方必须已持锁
func (c *Coordinator) register(machine *Machine, interval, untilExpiry time.Duration) {
	sessionID := machine.Session.PublicID
	e := &entry{machine: machine}
	c.entries[sessionID] = e
	c.byUser[machine.Session.UserID] = sessionID

	e.tickTimer = c.clock.AfterFunc(interval, func() {
		c.onCheckInTick(sessionID)
	})
	e.expiryTimer = c.clock.AfterFunc(untilExpiry, func() {
		c.onNaturalExpiry(sessionID)
	})
}

// onCheckInTick 间隔到点，签发确认挑战
func (c *Coordinator) onCheckInTick(sessionID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[sessionID]
	if !ok || !e.machine.Active() {
		return
	}

	now := c.clock.Now()
	challenge := e.machine.IssueChallenge(now, c.responseWindow)
	if challenge == nil {
		return
	}

	challengeID := challenge.ID
	e.deadlineTimer = c.clock.AfterFunc(c.responseWindow, func() {
		c.onChallengeDeadline(sessionID, challengeID)
	})

	c.send(e.machine.Session.UserID, EventCheckInRequest, dto.CheckInRequestData{
		ChallengeID: challenge.ID,
		Message:     checkInMessage,
		IssuedAt:    challenge.IssuedAt,
		Deadline:    challenge.Deadline,
	})
}

// onChallengeDeadline 挑战超时未响应
func (c *Coordinator) onChallengeDeadline(sessionID int64, challengeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[sessionID]
	if !ok {
		return
	}

	missed, exceeded := e.machine.ExpireChallenge(challengeID, c.missedLimit)
	if !missed {
		return
	}

	logger.Logger.Warn("Check-in challenge missed",
		zap.Int64("session_id", sessionID),
		zap.Int("consecutive_misses", e.machine.Session.MissedCheckIns),
	)

	if exceeded {
		c.finalize(context.Background(), e, false, scheduleOutcomeMissed)
		return
	}

	// 单次 miss 不终止，立刻开始下一轮节奏
	c.persistSession(context.Background(), e.machine.Session)
	interval := c.intervalFor(e.machine.Schedule)
	e.tickTimer = c.clock.AfterFunc(interval, func() {
		c.onCheckInTick(sessionID)
	})
}

// onNaturalExpiry 计划时长走满，自然完成
func (c *Coordinator) onNaturalExpiry(sessionID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[sessionID]
	if !ok || !e.machine.Active() {
		return
	}
	c.finalize(context.Background(), e, true, scheduleOutcomeCompleted)
}

// RespondCheckIn 处理确认响应
// 陈旧/重复响应返回 ChallengeNotOutstanding，WebSocket 层静默丢弃，REST 层回给客户端
func (c *Coordinator) RespondCheckIn(ctx context.Context, userID int64, challengeID string, stillStudying bool) (*dto.CheckInConfirmed, *dto.SessionEnded, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entryByUser(userID)
	if !ok {
		return nil, nil, bizerr.SessionNotActive
	}

	now := c.clock.Now()
	switch e.machine.Respond(challengeID, stillStudying, now) {
	case RespondConfirmed:
		if e.deadlineTimer != nil {
			e.deadlineTimer.Stop()
			e.deadlineTimer = nil
		}
		if err := c.persistSession(ctx, e.machine.Session); err != nil {
			return nil, nil, err
		}

		sessionID := e.machine.Session.PublicID
		interval := c.intervalFor(e.machine.Schedule)
		if e.tickTimer == nil || !e.tickTimer.Reset(interval) {
			e.tickTimer = c.clock.AfterFunc(interval, func() {
				c.onCheckInTick(sessionID)
			})
		}

		confirmed := &dto.CheckInConfirmed{LastCheckIn: e.machine.Session.LastCheckIn}
		c.send(userID, EventCheckInConfirmed, confirmed)
		return confirmed, nil, nil

	case RespondInterrupted:
		ended := c.finalize(ctx, e, false, scheduleOutcomeReverted)
		return nil, ended, nil

	default:
		return nil, nil, bizerr.ChallengeNotOutstanding
	}
}

// EndSession 用户主动结束会话；时长已走满按完成计，否则按中断计
func (c *Coordinator) EndSession(ctx context.Context, userID int64) (*dto.SessionEnded, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entryByUser(userID)
	if !ok {
		return nil, bizerr.SessionNotActive
	}

	now := c.clock.Now()
	if !now.Before(e.machine.NaturalEnd()) {
		return c.finalize(ctx, e, true, scheduleOutcomeCompleted), nil
	}
	return c.finalize(ctx, e, false, scheduleOutcomeReverted), nil
}

// Resume 重连后的会话快照，不打断任何在途定时器
func (c *Coordinator) Resume(ctx context.Context, userID int64) (*dto.SessionResumed, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entryByUser(userID)
	if !ok {
		return nil, bizerr.SessionNotActive
	}

	now := c.clock.Now()
	resumed := &dto.SessionResumed{
		SessionID:        strconv.FormatInt(e.machine.Session.PublicID, 10),
		RemainingSeconds: e.machine.RemainingSeconds(now),
		LastCheckIn:      e.machine.Session.LastCheckIn,
	}
	if ch := e.machine.Challenge; ch != nil && !ch.Expired(now) {
		resumed.Challenge = &dto.CheckInRequestData{
			ChallengeID: ch.ID,
			Message:     checkInMessage,
			IssuedAt:    ch.IssuedAt,
			Deadline:    ch.Deadline,
		}
	}

	c.send(userID, EventSessionResumed, resumed)
	return resumed, nil
}

// Restore 进程启动时从库里恢复活跃会话
// 节奏从 LastCheckIn 重新起算，过期的直接按自然完成/超时处理，不自动判中断
func (c *Coordinator) Restore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	active, err := c.sessions.ListActive(ctx)
	if err != nil {
		return err
	}

	now := c.clock.Now()
	restored := 0
	for _, sess := range active {
		sched, err := c.schedules.GetByID(ctx, sess.ScheduleID)
		if err != nil {
			logger.Logger.Error("Failed to load schedule for active session",
				zap.Int64("session_id", sess.PublicID),
				zap.Int64("schedule_id", sess.ScheduleID),
				zap.Error(err),
			)
			continue
		}

		machine := NewMachine(sess, sched)

		untilExpiry := machine.NaturalEnd().Sub(now)
		if untilExpiry <= 0 {
			// 停机期间已走满，直接补记完成
			e := &entry{machine: machine}
			c.entries[sess.PublicID] = e
			c.byUser[sess.UserID] = sess.PublicID
			c.finalize(ctx, e, true, scheduleOutcomeCompleted)
			continue
		}

		interval := c.intervalFor(sched)
		untilTick := sess.LastCheckIn.Add(interval).Sub(now)
		if untilTick <= 0 {
			untilTick = time.Second
		}
		c.register(machine, untilTick, untilExpiry)
		restored++
	}

	logger.Logger.Info("Active sessions restored",
		zap.Int("restored", restored),
		zap.Int("total_active", len(active)),
	)
	return nil
}

func (c *Coordinator) entryByUser(userID int64) (*entry, bool) {
	sessionID, ok := c.byUser[userID]
	if !ok {
		return nil, false
	}
	e, ok := c.entries[sessionID]
	return e, ok
}

type scheduleOutcome int

const (
	scheduleOutcomeCompleted scheduleOutcome = iota // 轮次完成
	scheduleOutcomeMissed                           // 连续未响应判失约
	scheduleOutcomeReverted                         // 提前结束，轮次退回可开始
)

// finalize 终结会话并落库，调用方必须已持锁
func (c *Coordinator) finalize(ctx context.Context, e *entry, completed bool, outcome scheduleOutcome) *dto.SessionEnded {
	if e.tickTimer != nil {
		e.tickTimer.Stop()
	}
	if e.deadlineTimer != nil {
		e.deadlineTimer.Stop()
	}
	if e.expiryTimer != nil {
		e.expiryTimer.Stop()
	}

	now := c.clock.Now()
	if completed {
		e.machine.Complete(now)
	} else {
		e.machine.Interrupt(now)
	}

	sess := e.machine.Session
	if err := c.persistSession(ctx, sess); err != nil {
		logger.Logger.Error("Failed to persist finished session",
			zap.Int64("session_id", sess.PublicID),
			zap.Error(err),
		)
	}
	if err := c.applyScheduleOutcome(ctx, e.machine.Schedule.ID, outcome); err != nil {
		logger.Logger.Error("Failed to update schedule after session end",
			zap.Int64("schedule_id", e.machine.Schedule.ID),
			zap.Error(err),
		)
	}

	delete(c.entries, sess.PublicID)
	delete(c.byUser, sess.UserID)

	ended := &dto.SessionEnded{
		SessionID:             strconv.FormatInt(sess.PublicID, 10),
		Status:                string(sess.Status),
		ActualDurationMinutes: sess.ActualDurationMinutes,
	}
	c.send(sess.UserID, EventSessionEnded, ended)

	eventKey := "session.completed"
	if sess.Status == model.SessionStatusInterrupted {
		eventKey = "session.interrupted"
	}
	if err := c.publishEvent(eventKey, "session", map[string]interface{}{
		"session_id":              sess.PublicID,
		"schedule_id":             e.machine.Schedule.PublicID,
		"user_id":                 sess.UserID,
		"actual_duration_minutes": sess.ActualDurationMinutes,
	}); err != nil {
		logger.Logger.Error("Failed to publish session event",
			zap.Int64("session_id", sess.PublicID),
			zap.Error(err),
		)
	}

	logger.Logger.Info("Study session ended",
		zap.Int64("session_id", sess.PublicID),
		zap.String("status", string(sess.Status)),
		zap.Int("actual_duration_minutes", sess.ActualDurationMinutes),
	)
	return ended
}

// persistSession 乐观锁写回，冲突时如对端已终结则放弃本次写入
func (c *Coordinator) persistSession(ctx context.Context, sess *model.StudySession) error {
	err := c.sessions.UpdateVersioned(ctx, sess)
	if err == nil {
		return nil
	}
	if !bizerr.Is(err, bizerr.VersionConflict) {
		return err
	}

	fresh, getErr := c.sessions.GetByPublicID(ctx, sess.PublicID)
	if getErr != nil {
		return err
	}
	if fresh.Terminal() {
		// 扫尾任务抢先终结了，以库内状态为准
		*sess = *fresh
		return nil
	}
	sess.Version = fresh.Version
	return c.sessions.UpdateVersioned(ctx, sess)
}

// applyScheduleOutcome 会话终结后回写日程状态
func (c *Coordinator) applyScheduleOutcome(ctx context.Context, scheduleID int64, outcome scheduleOutcome) error {
	for attempt := 0; attempt < 3; attempt++ {
		sched, err := c.schedules.GetByID(ctx, scheduleID)
		if err != nil {
			return err
		}

		switch outcome {
		case scheduleOutcomeCompleted:
			sched.CompletionCount++
			if sched.IsRecurring {
				sched.Status = model.ScheduleStatusScheduled
			} else {
				sched.Status = model.ScheduleStatusCompleted
				sched.IsActive = false
			}
		case scheduleOutcomeMissed:
			if sched.IsRecurring {
				sched.Status = model.ScheduleStatusScheduled
			} else {
				sched.Status = model.ScheduleStatusMissed
				sched.IsActive = false
			}
		case scheduleOutcomeReverted:
			sched.Status = model.ScheduleStatusScheduled
		}

		err = c.schedules.UpdateVersioned(ctx, sched)
		if err == nil {
			return nil
		}
		if !bizerr.Is(err, bizerr.VersionConflict) {
			return err
		}
	}
	return bizerr.VersionConflict
}
