package errors

import "errors"

// SkipMessageError 消费者侧幂等跳过：消息已处理或不再适用，直接 Ack 不重试
type SkipMessageError struct {
	Reason string
}

func (e *SkipMessageError) Error() string {
	return "message skipped: " + e.Reason
}

func IsSkipMessageError(err error) bool {
	var skip *SkipMessageError
	return errors.As(err, &skip)
}
