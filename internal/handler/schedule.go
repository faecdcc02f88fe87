package handler

import (
	"context"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app"

	"StillStudying/internal/middleware"
	"StillStudying/internal/model/dto"
	"StillStudying/internal/service"
	"StillStudying/pkg/response"
)

// CreateSchedule 创建学习日程
// POST /v1/schedules
func CreateSchedule(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, fmt.Errorf("user ID not found in context"))
		return
	}

	var req dto.CreateScheduleRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := scheduleService.Create(ctx, userID, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// ListSchedules 查询日程列表
// GET /v1/schedules?active_only=true
func ListSchedules(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, fmt.Errorf("user ID not found in context"))
		return
	}

	activeOnly := string(c.Query("active_only")) == "true"

	result, err := scheduleService.List(ctx, userID, activeOnly)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.SuccessWithMeta(ctx, c, result, map[string]interface{}{
		"count": len(result),
	})
}

// GetSchedule 查询单个日程
// GET /v1/schedules/:schedule_id
func GetSchedule(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, fmt.Errorf("user ID not found in context"))
		return
	}

	scheduleID, err := service.ParseID(c.Param("schedule_id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	result, err := scheduleService.Get(ctx, userID, scheduleID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// UpdateSchedule 编辑日程
// PATCH /v1/schedules/:schedule_id
func UpdateSchedule(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, fmt.Errorf("user ID not found in context"))
		return
	}

	scheduleID, err := service.ParseID(c.Param("schedule_id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	var req dto.UpdateScheduleRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	result, err := scheduleService.Update(ctx, userID, scheduleID, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// DeactivateSchedule 停用日程
// DELETE /v1/schedules/:schedule_id
func DeactivateSchedule(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, fmt.Errorf("user ID not found in context"))
		return
	}

	scheduleID, err := service.ParseID(c.Param("schedule_id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	if err := scheduleService.Deactivate(ctx, userID, scheduleID); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.NoContent(ctx, c)
}
