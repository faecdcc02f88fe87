package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"StillStudying/internal/model"
	bizerr "StillStudying/pkg/errors"
)

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *model.StudySession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepository) GetByPublicID(ctx context.Context, publicID int64) (*model.StudySession, error) {
	var session model.StudySession
	err := r.db.WithContext(ctx).
		Where("public_id = ?", publicID).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, bizerr.SessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetActiveByUser 一个用户同一时刻至多一个 active 会话
func (r *sessionRepository) GetActiveByUser(ctx context.Context, userID int64) (*model.StudySession, error) {
	var session model.StudySession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.SessionStatusActive).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, bizerr.SessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) ListActive(ctx context.Context) ([]*model.StudySession, error) {
	var sessions []*model.StudySession
	err := r.db.WithContext(ctx).
		Where("status = ?", model.SessionStatusActive).
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.StudySession, error) {
	var sessions []*model.StudySession
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepository) UpdateVersioned(ctx context.Context, session *model.StudySession) error {
	oldVersion := session.Version
	session.Version = oldVersion + 1
	session.UpdatedAt = time.Now()

	result := r.db.WithContext(ctx).
		Model(&model.StudySession{}).
		Where("id = ? AND version = ?", session.ID, oldVersion).
		Select("*").
		Omit("id", "created_at", "deleted_at").
		Updates(session)
	if result.Error != nil {
		session.Version = oldVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		session.Version = oldVersion
		return bizerr.VersionConflict
	}
	return nil
}
