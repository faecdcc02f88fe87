package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"StillStudying/internal/model"
	"StillStudying/internal/repository"
	bizerr "StillStudying/pkg/errors"
	"StillStudying/pkg/logger"
)

// Sweeper 离线兜底：协调器进程挂掉时，把早已走满时长的活跃会话补记完成
// 只处理明显超期的，刚到点的留给协调器自己的定时器
type Sweeper struct {
	sessions  repository.SessionRepository
	schedules repository.ScheduleRepository
	grace     time.Duration
	now       func() time.Time
}

func NewSweeper(repos *repository.Repositories, grace time.Duration) *Sweeper {
	return &Sweeper{
		sessions:  repos.Session,
		schedules: repos.Schedule,
		grace:     grace,
		now:       time.Now,
	}
}

func (s *Sweeper) Sweep(ctx context.Context) error {
	active, err := s.sessions.ListActive(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	swept := 0
	for _, sess := range active {
		sched, err := s.schedules.GetByID(ctx, sess.ScheduleID)
		if err != nil {
			logger.Logger.Error("Failed to load schedule for sweep",
				zap.Int64("session_id", sess.PublicID),
				zap.Error(err),
			)
			continue
		}

		naturalEnd := sess.StartTime.Add(sched.Duration())
		if now.Before(naturalEnd.Add(s.grace)) {
			continue
		}

		sess.Status = model.SessionStatusCompleted
		sess.EndTime = &naturalEnd
		sess.ActualDurationMinutes = sched.DurationMinutes
		if err := s.sessions.UpdateVersioned(ctx, sess); err != nil {
			if bizerr.Is(err, bizerr.VersionConflict) {
				// 协调器还活着并抢先处理了
				continue
			}
			logger.Logger.Error("Failed to sweep overdue session",
				zap.Int64("session_id", sess.PublicID),
				zap.Error(err),
			)
			continue
		}

		s.completeSchedule(ctx, sched)
		swept++

		logger.Logger.Info("Overdue session swept to completed",
			zap.Int64("session_id", sess.PublicID),
			zap.Int64("schedule_id", sched.PublicID),
		)
	}

	if swept > 0 {
		logger.Logger.Info("Session sweep finished", zap.Int("swept", swept))
	}
	return nil
}

func (s *Sweeper) completeSchedule(ctx context.Context, sched *model.Schedule) {
	for attempt := 0; attempt < 3; attempt++ {
		sched.CompletionCount++
		if sched.IsRecurring {
			sched.Status = model.ScheduleStatusScheduled
		} else {
			sched.Status = model.ScheduleStatusCompleted
			sched.IsActive = false
		}

		err := s.schedules.UpdateVersioned(ctx, sched)
		if err == nil {
			return
		}
		if !bizerr.Is(err, bizerr.VersionConflict) {
			logger.Logger.Error("Failed to complete schedule in sweep",
				zap.Int64("schedule_id", sched.ID),
				zap.Error(err),
			)
			return
		}

		fresh, getErr := s.schedules.GetByID(ctx, sched.ID)
		if getErr != nil {
			return
		}
		sched = fresh
	}
}
