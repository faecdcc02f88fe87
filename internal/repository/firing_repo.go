package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"StillStudying/internal/model"
)

type firingRepository struct {
	db *gorm.DB
}

func NewFiringRepository(db *gorm.DB) FiringRepository {
	return &firingRepository{db: db}
}

// Upsert 以 (schedule_id, occurrence_start, offset_minutes) 为幂等键
// 已存在时刷新 fire_at 与标题；cancelled 可以拉回 pending（编辑后重新需要），fired 永不回退
func (r *firingRepository) Upsert(ctx context.Context, firing *model.ReminderFiring) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "schedule_id"},
				{Name: "occurrence_start"},
				{Name: "offset_minutes"},
			},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"fire_at":          firing.FireAt,
				"schedule_title":   firing.ScheduleTitle,
				"duration_minutes": firing.DurationMinutes,
				"status": gorm.Expr(
					"CASE WHEN reminder_firings.status = ? THEN reminder_firings.status ELSE ? END",
					model.FiringStatusFired, model.FiringStatusPending,
				),
				"updated_at": time.Now(),
			}),
		}).
		Create(firing).Error
}

func (r *firingRepository) ListDuePending(ctx context.Context, now time.Time, limit int) ([]*model.ReminderFiring, error) {
	var firings []*model.ReminderFiring
	query := r.db.WithContext(ctx).
		Where("status = ? AND fire_at <= ?", model.FiringStatusPending, now).
		Order("fire_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&firings).Error
	return firings, err
}

func (r *firingRepository) ListPendingBySchedule(ctx context.Context, scheduleID int64) ([]*model.ReminderFiring, error) {
	var firings []*model.ReminderFiring
	err := r.db.WithContext(ctx).
		Where("schedule_id = ? AND status = ?", scheduleID, model.FiringStatusPending).
		Order("fire_at ASC").
		Find(&firings).Error
	return firings, err
}

// ClaimFired CAS 认领：仅当仍为 pending 时置 fired
func (r *firingRepository) ClaimFired(ctx context.Context, firingID int64, firedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ReminderFiring{}).
		Where("id = ? AND status = ?", firingID, model.FiringStatusPending).
		Updates(map[string]interface{}{
			"status":   model.FiringStatusFired,
			"fired_at": firedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReleaseClaim 投递失败回滚：fired -> pending，attempts + 1
func (r *firingRepository) ReleaseClaim(ctx context.Context, firingID int64) error {
	return r.db.WithContext(ctx).
		Model(&model.ReminderFiring{}).
		Where("id = ? AND status = ?", firingID, model.FiringStatusFired).
		Updates(map[string]interface{}{
			"status":   model.FiringStatusPending,
			"fired_at": nil,
			"attempts": gorm.Expr("attempts + 1"),
		}).Error
}

func (r *firingRepository) Abandon(ctx context.Context, firingID int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ReminderFiring{}).
		Where("id = ? AND status = ?", firingID, model.FiringStatusPending).
		Update("status", model.FiringStatusCancelled)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *firingRepository) CancelPendingBySchedule(ctx context.Context, scheduleID int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ReminderFiring{}).
		Where("schedule_id = ? AND status = ?", scheduleID, model.FiringStatusPending).
		Update("status", model.FiringStatusCancelled)
	return result.RowsAffected, result.Error
}

func (r *firingRepository) CancelPendingByOccurrence(ctx context.Context, scheduleID int64, occurrenceStart time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.ReminderFiring{}).
		Where("schedule_id = ? AND occurrence_start = ? AND status = ?",
			scheduleID, occurrenceStart, model.FiringStatusPending).
		Update("status", model.FiringStatusCancelled)
	return result.RowsAffected, result.Error
}

// DeleteTerminalBefore 清理早于 cutoff 的终态记录
func (r *firingRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status IN ? AND fire_at < ?",
			[]model.FiringStatus{model.FiringStatusFired, model.FiringStatusCancelled}, cutoff).
		Delete(&model.ReminderFiring{})
	return result.RowsAffected, result.Error
}
