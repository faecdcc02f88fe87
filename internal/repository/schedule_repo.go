package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"StillStudying/internal/model"
	bizerr "StillStudying/pkg/errors"
)

type scheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) Create(ctx context.Context, schedule *model.Schedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *scheduleRepository) GetByPublicID(ctx context.Context, publicID int64) (*model.Schedule, error) {
	var schedule model.Schedule
	err := r.db.WithContext(ctx).
		Where("public_id = ?", publicID).
		First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, bizerr.ScheduleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepository) GetByID(ctx context.Context, id int64) (*model.Schedule, error) {
	var schedule model.Schedule
	err := r.db.WithContext(ctx).First(&schedule, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, bizerr.ScheduleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepository) ListByOwner(ctx context.Context, ownerID int64, activeOnly bool) ([]*model.Schedule, error) {
	var schedules []*model.Schedule
	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("start_time ASC").Find(&schedules).Error
	return schedules, err
}

func (r *scheduleRepository) ListActiveByOwner(ctx context.Context, ownerID int64) ([]*model.Schedule, error) {
	return r.ListByOwner(ctx, ownerID, true)
}

func (r *scheduleRepository) ListAllActive(ctx context.Context) ([]*model.Schedule, error) {
	var schedules []*model.Schedule
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&schedules).Error
	return schedules, err
}

// UpdateVersioned 乐观锁更新：WHERE version = 旧值，命中则 version + 1
func (r *scheduleRepository) UpdateVersioned(ctx context.Context, schedule *model.Schedule) error {
	oldVersion := schedule.Version
	schedule.Version = oldVersion + 1
	schedule.UpdatedAt = time.Now()

	result := r.db.WithContext(ctx).
		Model(&model.Schedule{}).
		Where("id = ? AND version = ?", schedule.ID, oldVersion).
		Select("*").
		Omit("id", "created_at", "deleted_at").
		Updates(schedule)
	if result.Error != nil {
		schedule.Version = oldVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		schedule.Version = oldVersion
		return bizerr.VersionConflict
	}
	return nil
}
