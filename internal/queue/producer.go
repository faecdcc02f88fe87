package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"StillStudying/internal/model"
	"StillStudying/pkg/logger"
	"StillStudying/storage/mq"
	"StillStudying/utils"
)

// PublishReminderDue 发送提醒到点消息给 worker
func PublishReminderDue(firing *model.ReminderFiring) error {
	msg := model.ReminderDueMessage{
		MessageID:       uuid.New().String(),
		FiringID:        firing.ID,
		ScheduleID:      firing.ScheduleID,
		OwnerID:         firing.OwnerID,
		ScheduleTitle:   firing.ScheduleTitle,
		OccurrenceStart: firing.OccurrenceStart.UTC().Format(utils.TimeFormat),
		OffsetMinutes:   firing.OffsetMinutes,
		ScheduledAt:     time.Now().UTC().Format(utils.TimeFormat),
	}

	if err := mq.PublishMessage(mq.NotifyExchange, mq.ReminderDueRoutingKey, msg); err != nil {
		return fmt.Errorf("failed to publish reminder due message: %w", err)
	}

	logger.Logger.Info("Published reminder due message",
		zap.String("message_id", msg.MessageID),
		zap.Int64("firing_id", firing.ID),
		zap.Int64("schedule_id", firing.ScheduleID),
		zap.Int("offset_minutes", firing.OffsetMinutes),
	)
	return nil
}

// PublishEvent 往事件总线发一条领域事件
// eventKey 形如 session.completed / reminder.abandoned
func PublishEvent(eventKey, eventType string, payload map[string]interface{}) error {
	msg := model.EventMessage{
		EventKey:   eventKey,
		EventType:  eventType,
		Payload:    payload,
		OccurredAt: time.Now().UTC().Format(utils.TimeFormat),
	}

	if err := mq.PublishMessage(mq.EventsExchange, eventKey, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", eventKey, err)
	}

	logger.Logger.Info("Published event",
		zap.String("event_key", eventKey),
		zap.String("event_type", eventType),
	)
	return nil
}
