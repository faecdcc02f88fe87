package session

import "time"

// Timer 可停止/重置的定时器
type Timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// Clock 时间源，测试里用假钟压缩时间
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// NewClock 返回系统时钟
func NewClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
