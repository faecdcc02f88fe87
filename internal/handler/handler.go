package handler

import (
	"StillStudying/internal/service"
	"StillStudying/internal/session"
)

var (
	scheduleService *service.ScheduleService
	coordinator     *session.Coordinator
)

// Init 注入依赖，路由注册前调用；WebSocket Hub 同时挂为协调器的出站通道
func Init(schedules *service.ScheduleService, coord *session.Coordinator) {
	scheduleService = schedules
	coordinator = coord
	coordinator.AttachSender(hub)
}
