package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"StillStudying/config"
	"StillStudying/internal/model"
	"StillStudying/internal/model/dto"
	"StillStudying/internal/repository"
	"StillStudying/internal/schedule"
	bizerr "StillStudying/pkg/errors"
	"StillStudying/pkg/logger"
	"StillStudying/pkg/snowflake"
	"StillStudying/utils"
)

const maxTitleLength = 128

// ScheduleService 日程管理：校验、重叠检查、增删改查，变更后同步提醒账本
type ScheduleService struct {
	schedules repository.ScheduleRepository
	scheduler *schedule.SchedulerService
	window    time.Duration // 重叠检查的展开窗口
	now       func() time.Time
}

func NewScheduleService(repos *repository.Repositories, scheduler *schedule.SchedulerService) *ScheduleService {
	return &ScheduleService{
		schedules: repos.Schedule,
		scheduler: scheduler,
		window:    config.Cfg.RecurrenceHorizon(),
		now:       time.Now,
	}
}

// Create 创建日程
func (s *ScheduleService) Create(ctx context.Context, ownerID int64, req *dto.CreateScheduleRequest) (*dto.ScheduleItem, error) {
	publicID, err := snowflake.NextID()
	if err != nil {
		return nil, err
	}

	sched := &model.Schedule{
		PublicID:               publicID,
		OwnerID:                ownerID,
		Title:                  strings.TrimSpace(req.Title),
		StartTime:              req.StartTime,
		DurationMinutes:        req.DurationMinutes,
		IsRecurring:            req.IsRecurring,
		RecurringDaysOfWeek:    model.IntList(req.RecurringDaysOfWeek),
		ReminderOffsetsMinutes: model.IntList(req.ReminderOffsetsMinutes),
		CheckInIntervalMinutes: req.CheckInIntervalMinutes,
		Timezone:               req.Timezone,
		IsActive:               true,
		Status:                 model.ScheduleStatusScheduled,
		Version:                1,
	}
	s.applyDefaults(sched)

	if err := s.validate(sched); err != nil {
		return nil, err
	}
	if err := s.checkOverlap(ctx, sched, 0); err != nil {
		return nil, err
	}

	if err := s.schedules.Create(ctx, sched); err != nil {
		return nil, err
	}
	if err := s.scheduler.OnScheduleSaved(ctx, sched); err != nil {
		logger.Logger.Error("Failed to compute firings for new schedule",
			zap.Int64("schedule_id", sched.PublicID),
			zap.Error(err),
		)
	}

	logger.Logger.Info("Schedule created",
		zap.Int64("schedule_id", sched.PublicID),
		zap.Int64("owner_id", ownerID),
		zap.Bool("is_recurring", sched.IsRecurring),
	)
	return toScheduleItem(sched), nil
}

// Update 编辑日程，nil 字段不改；成功后重算提醒账本
func (s *ScheduleService) Update(ctx context.Context, ownerID, publicID int64, req *dto.UpdateScheduleRequest) (*dto.ScheduleItem, error) {
	sched, err := s.getOwned(ctx, ownerID, publicID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		sched.Title = strings.TrimSpace(*req.Title)
	}
	if req.StartTime != nil {
		sched.StartTime = *req.StartTime
	}
	if req.DurationMinutes != nil {
		sched.DurationMinutes = *req.DurationMinutes
	}
	if req.IsRecurring != nil {
		sched.IsRecurring = *req.IsRecurring
	}
	if req.RecurringDaysOfWeek != nil {
		sched.RecurringDaysOfWeek = model.IntList(req.RecurringDaysOfWeek)
	}
	if req.ReminderOffsetsMinutes != nil {
		sched.ReminderOffsetsMinutes = model.IntList(req.ReminderOffsetsMinutes)
	}
	if req.CheckInIntervalMinutes != nil {
		sched.CheckInIntervalMinutes = *req.CheckInIntervalMinutes
	}
	if req.Timezone != nil {
		sched.Timezone = *req.Timezone
	}
	s.applyDefaults(sched)

	if err := s.validate(sched); err != nil {
		return nil, err
	}
	if err := s.checkOverlap(ctx, sched, sched.ID); err != nil {
		return nil, err
	}

	if err := s.schedules.UpdateVersioned(ctx, sched); err != nil {
		return nil, err
	}
	if err := s.scheduler.OnScheduleSaved(ctx, sched); err != nil {
		logger.Logger.Error("Failed to recompute firings after edit",
			zap.Int64("schedule_id", sched.PublicID),
			zap.Error(err),
		)
	}

	logger.Logger.Info("Schedule updated",
		zap.Int64("schedule_id", sched.PublicID),
		zap.Int64("owner_id", ownerID),
	)
	return toScheduleItem(sched), nil
}

// Deactivate 停用日程（软删除语义），pending 提醒全部作废
func (s *ScheduleService) Deactivate(ctx context.Context, ownerID, publicID int64) error {
	sched, err := s.getOwned(ctx, ownerID, publicID)
	if err != nil {
		return err
	}
	if !sched.IsActive {
		return nil
	}

	sched.IsActive = false
	if err := s.schedules.UpdateVersioned(ctx, sched); err != nil {
		return err
	}
	if err := s.scheduler.OnScheduleDeactivated(ctx, sched.ID); err != nil {
		logger.Logger.Error("Failed to cancel firings after deactivate",
			zap.Int64("schedule_id", sched.PublicID),
			zap.Error(err),
		)
	}

	logger.Logger.Info("Schedule deactivated",
		zap.Int64("schedule_id", sched.PublicID),
		zap.Int64("owner_id", ownerID),
	)
	return nil
}

// Get 查询单个日程
func (s *ScheduleService) Get(ctx context.Context, ownerID, publicID int64) (*dto.ScheduleItem, error) {
	sched, err := s.getOwned(ctx, ownerID, publicID)
	if err != nil {
		return nil, err
	}
	return toScheduleItem(sched), nil
}

// List 查询用户的日程列表
func (s *ScheduleService) List(ctx context.Context, ownerID int64, activeOnly bool) ([]*dto.ScheduleItem, error) {
	schedules, err := s.schedules.ListByOwner(ctx, ownerID, activeOnly)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.ScheduleItem, 0, len(schedules))
	for _, sched := range schedules {
		items = append(items, toScheduleItem(sched))
	}
	return items, nil
}

// getOwned 按公开 ID 取日程并校验归属，他人的日程按不存在处理
func (s *ScheduleService) getOwned(ctx context.Context, ownerID, publicID int64) (*model.Schedule, error) {
	sched, err := s.schedules.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if sched.OwnerID != ownerID {
		return nil, bizerr.ScheduleNotFound
	}
	return sched, nil
}

func (s *ScheduleService) applyDefaults(sched *model.Schedule) {
	if sched.Timezone == "" {
		sched.Timezone = "UTC"
	}
	if len(sched.ReminderOffsetsMinutes) == 0 {
		sched.ReminderOffsetsMinutes = append(model.IntList(nil), model.DefaultReminderOffsets...)
	}
	if sched.CheckInIntervalMinutes == 0 {
		sched.CheckInIntervalMinutes = config.Cfg.CheckInIntervalMinutes
	}
	if !sched.IsRecurring {
		sched.RecurringDaysOfWeek = nil
	}
}

func (s *ScheduleService) validate(sched *model.Schedule) error {
	if sched.Title == "" || len(sched.Title) > maxTitleLength {
		return bizerr.ValidationFailed
	}
	if !sched.StartTime.After(s.now()) {
		return bizerr.StartTimeInPast
	}
	if sched.DurationMinutes < model.MinDurationMinutes || sched.DurationMinutes > model.MaxDurationMinutes {
		return bizerr.DurationInvalid
	}

	if sched.IsRecurring {
		if len(sched.RecurringDaysOfWeek) == 0 || len(sched.RecurringDaysOfWeek) > 7 {
			return bizerr.RecurrenceDaysInvalid
		}
		seen := make(map[int]struct{}, len(sched.RecurringDaysOfWeek))
		for _, day := range sched.RecurringDaysOfWeek {
			if day < 0 || day > 6 {
				return bizerr.RecurrenceDaysInvalid
			}
			if _, dup := seen[day]; dup {
				return bizerr.RecurrenceDaysInvalid
			}
			seen[day] = struct{}{}
		}
	}

	if len(sched.ReminderOffsetsMinutes) > model.MaxReminderOffsets {
		return bizerr.OffsetsInvalid
	}
	for _, offset := range sched.ReminderOffsetsMinutes {
		if offset <= 0 {
			return bizerr.OffsetsInvalid
		}
	}

	if sched.CheckInIntervalMinutes < model.MinCheckInIntervalMinutes ||
		sched.CheckInIntervalMinutes > model.MaxCheckInIntervalMinutes {
		return bizerr.ValidationFailed
	}

	if _, err := utils.LoadLocation(sched.Timezone); err != nil {
		return bizerr.TimezoneInvalid
	}
	return nil
}

// checkOverlap 与同一用户的其他活跃日程做轮次区间重叠检查
func (s *ScheduleService) checkOverlap(ctx context.Context, candidate *model.Schedule, excludeID int64) error {
	existing, err := s.schedules.ListActiveByOwner(ctx, candidate.OwnerID)
	if err != nil {
		return err
	}

	now := s.now()
	for _, other := range existing {
		if other.ID == excludeID {
			continue
		}
		if schedulesOverlap(candidate, other, now, s.window) {
			return bizerr.ScheduleOverlap
		}
	}
	return nil
}

func toScheduleItem(sched *model.Schedule) *dto.ScheduleItem {
	return &dto.ScheduleItem{
		ID:                     formatID(sched.PublicID),
		Title:                  sched.Title,
		StartTime:              sched.StartTime,
		DurationMinutes:        sched.DurationMinutes,
		IsRecurring:            sched.IsRecurring,
		RecurringDaysOfWeek:    sched.RecurringDaysOfWeek,
		ReminderOffsetsMinutes: sched.ReminderOffsetsMinutes,
		CheckInIntervalMinutes: sched.CheckInIntervalMinutes,
		Timezone:               sched.Timezone,
		IsActive:               sched.IsActive,
		Status:                 string(sched.Status),
		CompletionCount:        sched.CompletionCount,
		CreatedAt:              sched.CreatedAt,
	}
}
