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

// WebSocket 之外的 REST 兜底接口，语义与 WS 事件一一对应

// StartSession 开始学习会话
// POST /v1/sessions
func StartSession(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, fmt.Errorf("user ID not found in context"))
		return
	}

	var req dto.StartSessionRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	scheduleID, err := service.ParseID(req.ScheduleID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	result, err := coordinator.StartSession(ctx, userID, scheduleID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// RespondCheckIn 响应在学确认挑战
// POST /v1/sessions/check-in
func RespondCheckIn(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, fmt.Errorf("user ID not found in context"))
		return
	}

	var req dto.CheckInResponseRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	confirmed, ended, err := coordinator.RespondCheckIn(ctx, userID, req.ChallengeID, req.StillStudying)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	if ended != nil {
		response.Success(ctx, c, ended)
		return
	}

	response.Success(ctx, c, confirmed)
}

// EndSession 主动结束会话
// POST /v1/sessions/end
func EndSession(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, fmt.Errorf("user ID not found in context"))
		return
	}

	result, err := coordinator.EndSession(ctx, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// ResumeSession 查询当前活跃会话快照（重连恢复）
// GET /v1/sessions/current
func ResumeSession(ctx context.Context, c *app.RequestContext) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, fmt.Errorf("user ID not found in context"))
		return
	}

	result, err := coordinator.Resume(ctx, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}
