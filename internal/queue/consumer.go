package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"StillStudying/internal/cache"
	"StillStudying/internal/model"
	bizerr "StillStudying/pkg/errors"
	"StillStudying/pkg/logger"
	"StillStudying/pkg/notifier"
	"StillStudying/storage/mq"
)

// handleReminderDue 处理提醒到点消息：幂等检查 -> 调通知客户端
func handleReminderDue(body []byte) error {
	var msg model.ReminderDueMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return &bizerr.SkipMessageError{Reason: fmt.Sprintf("invalid message body: %v", err)}
	}

	if msg.MessageID == "" {
		return &bizerr.SkipMessageError{Reason: "empty message_id"}
	}

	ctx := context.Background()

	ok, err := cache.TryMarkMessageProcessing(ctx, msg.MessageID)
	if err != nil {
		return fmt.Errorf("failed to check message idempotency: %w", err)
	}
	if !ok {
		return &bizerr.SkipMessageError{Reason: "message already processed or in flight"}
	}

	if err := notifier.NotifyReminderDue(ctx, msg.OwnerID, msg.ScheduleTitle, msg.OffsetMinutes); err != nil {
		// 释放占位让重投后还能再试
		if unmarkErr := cache.UnmarkMessageProcessing(ctx, msg.MessageID); unmarkErr != nil {
			logger.Logger.Error("Failed to unmark message processing",
				zap.String("message_id", msg.MessageID),
				zap.Error(unmarkErr),
			)
		}
		return fmt.Errorf("failed to deliver reminder: %w", err)
	}

	if err := cache.MarkMessageProcessed(ctx, msg.MessageID); err != nil {
		logger.Logger.Error("Failed to mark message processed",
			zap.String("message_id", msg.MessageID),
			zap.Error(err),
		)
	}

	logger.Logger.Info("Reminder delivered",
		zap.String("message_id", msg.MessageID),
		zap.Int64("owner_id", msg.OwnerID),
		zap.Int64("schedule_id", msg.ScheduleID),
		zap.Int("offset_minutes", msg.OffsetMinutes),
	)
	return nil
}

// wrapSkip 把幂等跳过降级为 ack 而不是 nack 重投
func wrapSkip(handler mq.MessageHandler) mq.MessageHandler {
	return func(body []byte) error {
		err := handler(body)
		if err == nil {
			return nil
		}
		if bizerr.IsSkipMessageError(err) {
			logger.Logger.Warn("Skipping message", zap.Error(err))
			return nil
		}
		return err
	}
}

// StartReminderDueConsumer 阻塞消费提醒到点队列
func StartReminderDueConsumer() error {
	return mq.Consume(mq.ConsumeOptions{
		Queue:         mq.ReminderDueQueue,
		ConsumerTag:   "reminder-due-worker",
		PrefetchCount: 10,
		Handler:       wrapSkip(handleReminderDue),
	})
}

// StartAllConsumers 启动全部消费者，任一退出即返回错误
func StartAllConsumers() error {
	errChan := make(chan error, 1)

	go func() {
		if err := StartReminderDueConsumer(); err != nil {
			errChan <- fmt.Errorf("reminder due consumer exited: %w", err)
		}
	}()

	return <-errChan
}
