package notifier

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"StillStudying/config"
	"StillStudying/pkg/logger"
)

// Client 提醒投递客户端接口，具体渠道（推送/短信/邮件）由外部服务承担
type Client interface {
	// NotifyReminderDue 向用户投递一条"日程即将开始"提醒
	// offsetMinutes: 距开始还有多少分钟
	NotifyReminderDue(ctx context.Context, userID int64, scheduleTitle string, offsetMinutes int) error
}

var (
	client     Client
	clientOnce sync.Once
	clientErr  error
)

// Init 初始化通知客户端
func Init() error {
	clientOnce.Do(func() {
		cfg := config.Cfg

		switch cfg.NotifierProvider {
		case "mock":
			client = NewMockClient()
		default:
			clientErr = fmt.Errorf("unsupported notifier provider: %s", cfg.NotifierProvider)
		}

		if clientErr != nil {
			logger.Logger.Error("Failed to initialize notifier client", zap.Error(clientErr))
			return
		}

		logger.Logger.Info("Notifier client initialized successfully",
			zap.String("provider", cfg.NotifierProvider),
		)
	})

	return clientErr
}

func GetClient() Client {
	if client == nil {
		panic("notifier client not initialized, call notifier.Init() first")
	}
	return client
}

func NotifyReminderDue(ctx context.Context, userID int64, scheduleTitle string, offsetMinutes int) error {
	return GetClient().NotifyReminderDue(ctx, userID, scheduleTitle, offsetMinutes)
}
