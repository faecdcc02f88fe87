package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"

	"StillStudying/config"
	"StillStudying/internal/model"
	"StillStudying/internal/queue"
	"StillStudying/internal/repository"
	"StillStudying/pkg/logger"
)

// PublishDueFunc 投递到点消息，可注入替身
type PublishDueFunc func(*model.ReminderFiring) error

// PublishEventFunc 投递领域事件
type PublishEventFunc func(eventKey, eventType string, payload map[string]interface{}) error

// SchedulerService 提醒调度器
// 持久化触发账本 + 周期 tick 对账，显式实例注入依赖，无包级单例
type SchedulerService struct {
	firings   repository.FiringRepository
	schedules repository.ScheduleRepository

	horizon      time.Duration
	maxAttempts  int
	retention    time.Duration
	tickBatch    int
	now          func() time.Time
	publishDue   PublishDueFunc
	publishEvent PublishEventFunc
}

// Option 调度器可选配置
type Option func(*SchedulerService)

func WithClock(now func() time.Time) Option {
	return func(s *SchedulerService) { s.now = now }
}

func WithHorizon(d time.Duration) Option {
	return func(s *SchedulerService) { s.horizon = d }
}

func WithMaxAttempts(n int) Option {
	return func(s *SchedulerService) { s.maxAttempts = n }
}

func WithRetention(d time.Duration) Option {
	return func(s *SchedulerService) { s.retention = d }
}

func WithPublishers(due PublishDueFunc, event PublishEventFunc) Option {
	return func(s *SchedulerService) {
		s.publishDue = due
		s.publishEvent = event
	}
}

func NewSchedulerService(repos *repository.Repositories, opts ...Option) *SchedulerService {
	s := &SchedulerService{
		firings:      repos.Firing,
		schedules:    repos.Schedule,
		horizon:      config.Cfg.RecurrenceHorizon(),
		maxAttempts:  config.Cfg.ReminderMaxAttempts,
		retention:    config.Cfg.FiringRetention(),
		tickBatch:    200,
		now:          time.Now,
		publishDue:   queue.PublishReminderDue,
		publishEvent: queue.PublishEvent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnScheduleSaved 日程新建或编辑后全量重算触发账本
// 先作废当前 pending，再按最新定义 upsert 回来，幂等键保证不重复
func (s *SchedulerService) OnScheduleSaved(ctx context.Context, sched *model.Schedule) error {
	if _, err := s.firings.CancelPendingBySchedule(ctx, sched.ID); err != nil {
		return err
	}
	if !sched.IsActive {
		return nil
	}

	now := s.now()
	plans := ComputeFirings(sched, now, s.horizon)
	for _, plan := range plans {
		firing := &model.ReminderFiring{
			ScheduleID:      sched.ID,
			OwnerID:         sched.OwnerID,
			ScheduleTitle:   sched.Title,
			OccurrenceStart: plan.OccurrenceStart,
			OffsetMinutes:   plan.OffsetMinutes,
			DurationMinutes: sched.DurationMinutes,
			FireAt:          plan.FireAt,
			Status:          model.FiringStatusPending,
		}
		if err := s.firings.Upsert(ctx, firing); err != nil {
			return err
		}
	}

	logger.Logger.Info("Reminder firings recomputed",
		zap.Int64("schedule_id", sched.ID),
		zap.Int("firings", len(plans)),
	)
	return nil
}

// OnScheduleDeactivated 删除/停用后作废全部 pending，已 fired 的不动
func (s *SchedulerService) OnScheduleDeactivated(ctx context.Context, scheduleID int64) error {
	cancelled, err := s.firings.CancelPendingBySchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	logger.Logger.Info("Pending firings cancelled",
		zap.Int64("schedule_id", scheduleID),
		zap.Int64("cancelled", cancelled),
	)
	return nil
}

// Tick 扫描到点的 pending 触发并逐条投递
// 认领（pending -> fired CAS）成功后才发消息，发失败回滚并累加 attempts
// attempts 耗尽的直接作废并广播 reminder.abandoned
// 轮次已整段结束的（停机追赶场景）静默作废，不投递也不广播
func (s *SchedulerService) Tick(ctx context.Context) error {
	now := s.now()

	due, err := s.firings.ListDuePending(ctx, now, s.tickBatch)
	if err != nil {
		return err
	}

	for _, firing := range due {
		if firing.OccurrenceEnd().Before(now) {
			s.discardElapsed(ctx, firing)
			continue
		}
		if firing.Attempts >= s.maxAttempts {
			s.abandon(ctx, firing)
			continue
		}

		claimed, err := s.firings.ClaimFired(ctx, firing.ID, now)
		if err != nil {
			logger.Logger.Error("Failed to claim firing",
				zap.Int64("firing_id", firing.ID),
				zap.Error(err),
			)
			continue
		}
		if !claimed {
			// 另一个实例抢到了
			continue
		}

		if err := s.publishDue(firing); err != nil {
			logger.Logger.Error("Failed to publish reminder, releasing claim",
				zap.Int64("firing_id", firing.ID),
				zap.Int("attempts", firing.Attempts+1),
				zap.Error(err),
			)
			if relErr := s.firings.ReleaseClaim(ctx, firing.ID); relErr != nil {
				logger.Logger.Error("Failed to release firing claim",
					zap.Int64("firing_id", firing.ID),
					zap.Error(relErr),
				)
			}
		}
	}

	return nil
}

// discardElapsed 轮次结束后才轮到的提醒没有意义，作废但不发 abandoned 事件
func (s *SchedulerService) discardElapsed(ctx context.Context, firing *model.ReminderFiring) {
	ok, err := s.firings.Abandon(ctx, firing.ID)
	if err != nil {
		logger.Logger.Error("Failed to discard elapsed firing",
			zap.Int64("firing_id", firing.ID),
			zap.Error(err),
		)
		return
	}
	if ok {
		logger.Logger.Info("Discarded reminder for already-ended occurrence",
			zap.Int64("firing_id", firing.ID),
			zap.Int64("schedule_id", firing.ScheduleID),
			zap.Time("occurrence_start", firing.OccurrenceStart),
		)
	}
}

func (s *SchedulerService) abandon(ctx context.Context, firing *model.ReminderFiring) {
	ok, err := s.firings.Abandon(ctx, firing.ID)
	if err != nil {
		logger.Logger.Error("Failed to abandon firing",
			zap.Int64("firing_id", firing.ID),
			zap.Error(err),
		)
		return
	}
	if !ok {
		return
	}

	logger.Logger.Warn("Firing abandoned after max attempts",
		zap.Int64("firing_id", firing.ID),
		zap.Int64("schedule_id", firing.ScheduleID),
		zap.Int("attempts", firing.Attempts),
	)

	if err := s.publishEvent("reminder.abandoned", "reminder", map[string]interface{}{
		"firing_id":   firing.ID,
		"schedule_id": firing.ScheduleID,
		"owner_id":    firing.OwnerID,
		"attempts":    firing.Attempts,
	}); err != nil {
		logger.Logger.Error("Failed to publish abandoned event",
			zap.Int64("firing_id", firing.ID),
			zap.Error(err),
		)
	}
}

// AdvanceHorizon 滚动展开所有活跃周重复日程的滑动窗口
// 随时间推移窗口前沿出现的新轮次靠它补进账本
func (s *SchedulerService) AdvanceHorizon(ctx context.Context) error {
	schedules, err := s.schedules.ListAllActive(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	added := 0
	for _, sched := range schedules {
		if !sched.IsRecurring {
			continue
		}
		plans := ComputeFirings(sched, now, s.horizon)
		for _, plan := range plans {
			firing := &model.ReminderFiring{
				ScheduleID:      sched.ID,
				OwnerID:         sched.OwnerID,
				ScheduleTitle:   sched.Title,
				OccurrenceStart: plan.OccurrenceStart,
				OffsetMinutes:   plan.OffsetMinutes,
				FireAt:          plan.FireAt,
				Status:          model.FiringStatusPending,
			}
			if err := s.firings.Upsert(ctx, firing); err != nil {
				return err
			}
			added++
		}
	}

	logger.Logger.Info("Recurrence horizon advanced",
		zap.Int("schedules", len(schedules)),
		zap.Int("firings_upserted", added),
	)
	return nil
}

// Cleanup 清理超过保留期的终态触发记录
func (s *SchedulerService) Cleanup(ctx context.Context) error {
	cutoff := s.now().Add(-s.retention)
	deleted, err := s.firings.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logger.Logger.Info("Cleaned up terminal firings",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
	return nil
}
