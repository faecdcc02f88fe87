package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"StillStudying/internal/model"
)

// ScheduleRepository 日程读写
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *model.Schedule) error
	GetByPublicID(ctx context.Context, publicID int64) (*model.Schedule, error)
	GetByID(ctx context.Context, id int64) (*model.Schedule, error)
	ListByOwner(ctx context.Context, ownerID int64, activeOnly bool) ([]*model.Schedule, error)
	ListActiveByOwner(ctx context.Context, ownerID int64) ([]*model.Schedule, error)
	ListAllActive(ctx context.Context) ([]*model.Schedule, error)
	// UpdateVersioned 带乐观锁版本校验的整体更新，版本不匹配返回 ErrVersionConflict
	UpdateVersioned(ctx context.Context, schedule *model.Schedule) error
}

// FiringRepository 提醒触发记录读写，status 变更全部走 CAS
type FiringRepository interface {
	Upsert(ctx context.Context, firing *model.ReminderFiring) error
	ListDuePending(ctx context.Context, now time.Time, limit int) ([]*model.ReminderFiring, error)
	ListPendingBySchedule(ctx context.Context, scheduleID int64) ([]*model.ReminderFiring, error)
	// ClaimFired pending -> fired 的 CAS 认领，返回 false 表示已被别人抢走
	ClaimFired(ctx context.Context, firingID int64, firedAt time.Time) (bool, error)
	// ReleaseClaim 投递失败后 fired -> pending 回滚并累加 Attempts
	ReleaseClaim(ctx context.Context, firingID int64) error
	// Abandon pending -> cancelled，重试耗尽时的终态
	Abandon(ctx context.Context, firingID int64) (bool, error)
	CancelPendingBySchedule(ctx context.Context, scheduleID int64) (int64, error)
	CancelPendingByOccurrence(ctx context.Context, scheduleID int64, occurrenceStart time.Time) (int64, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionRepository 学习会话读写
type SessionRepository interface {
	Create(ctx context.Context, session *model.StudySession) error
	GetByPublicID(ctx context.Context, publicID int64) (*model.StudySession, error)
	GetActiveByUser(ctx context.Context, userID int64) (*model.StudySession, error)
	ListActive(ctx context.Context) ([]*model.StudySession, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*model.StudySession, error)
	UpdateVersioned(ctx context.Context, session *model.StudySession) error
}

// Repositories 聚合，供 service 层注入
type Repositories struct {
	Schedule ScheduleRepository
	Firing   FiringRepository
	Session  SessionRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Schedule: NewScheduleRepository(db),
		Firing:   NewFiringRepository(db),
		Session:  NewSessionRepository(db),
	}
}
