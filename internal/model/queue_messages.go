package model

// ReminderDueMessage 提醒到点消息，由调度器 tick 投递、worker 消费
type ReminderDueMessage struct {
	MessageID       string `json:"message_id"` // 消息唯一ID，用于幂等性检查
	FiringID        int64  `json:"firing_id"`
	ScheduleID      int64  `json:"schedule_id"`
	OwnerID         int64  `json:"owner_id"`
	ScheduleTitle   string `json:"schedule_title"`
	OccurrenceStart string `json:"occurrence_start"`
	OffsetMinutes   int    `json:"offset_minutes"`
	ScheduledAt     string `json:"scheduled_at"`
}

// EventMessage 事件消息（用于事件总线）
type EventMessage struct {
	Payload    map[string]interface{} `json:"payload"`
	EventKey   string                 `json:"event_key"`
	EventType  string                 `json:"event_type"`
	OccurredAt string                 `json:"occurred_at"`
}
