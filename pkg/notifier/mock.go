package notifier

import (
	"context"
	"errors"
	"sync"
)

type MockCall struct {
	UserID        int64
	ScheduleTitle string
	OffsetMinutes int
}

// MockClient 可配置的通知客户端 mock，实现 Client 接口
type MockClient struct {
	mu    sync.Mutex
	Calls []MockCall

	// FailNext 置为 true 时，下一次调用返回 mock 错误并自动复位
	FailNext bool
}

func NewMockClient() *MockClient {
	return &MockClient{
		Calls: make([]MockCall, 0),
	}
}

func (m *MockClient) NotifyReminderDue(ctx context.Context, userID int64, scheduleTitle string, offsetMinutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{
		UserID:        userID,
		ScheduleTitle: scheduleTitle,
		OffsetMinutes: offsetMinutes,
	})

	if m.FailNext {
		m.FailNext = false
		return errors.New("mock notify failure")
	}

	return nil
}
