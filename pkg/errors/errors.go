package errors

// Kind 错误类别，决定传播策略和 HTTP 状态码映射
type Kind string

const (
	KindValidation   Kind = "validation"    // 入参形状/范围错误，不重试
	KindConflict     Kind = "conflict"      // 重叠/版本冲突/重复活跃会话，调用方决定是否重试
	KindInvalidState Kind = "invalid_state" // 当前状态下不允许的操作
	KindNotFound     Kind = "not_found"
	KindTransient    Kind = "transient" // 下游投递失败，内部有限重试
	KindFatal        Kind = "fatal"     // 存储不可用等，操作中止且无部分写入
)

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
	Kind    Kind
}

// 日程模块错误。
var (
	ValidationFailed      = Definition{Code: "VALIDATION_FAILED", Message: "Request validation failed", Kind: KindValidation}
	StartTimeInPast       = Definition{Code: "START_TIME_IN_PAST", Message: "Start time must be in the future", Kind: KindValidation}
	DurationInvalid       = Definition{Code: "DURATION_INVALID", Message: "Duration must be between 1 and 1440 minutes", Kind: KindValidation}
	RecurrenceDaysInvalid = Definition{Code: "RECURRENCE_DAYS_INVALID", Message: "Recurring days must be a non-empty set of 0..6", Kind: KindValidation}
	OffsetsInvalid        = Definition{Code: "REMINDER_OFFSETS_INVALID", Message: "Reminder offsets must be at most 5 positive minutes", Kind: KindValidation}
	TimezoneInvalid       = Definition{Code: "TIMEZONE_INVALID", Message: "Unknown IANA timezone", Kind: KindValidation}
	ScheduleOverlap       = Definition{Code: "SCHEDULE_OVERLAP", Message: "Schedule overlaps an existing active schedule", Kind: KindConflict}
	VersionConflict       = Definition{Code: "VERSION_CONFLICT", Message: "Record was modified concurrently, retry", Kind: KindConflict}
	ScheduleNotFound      = Definition{Code: "SCHEDULE_NOT_FOUND", Message: "Schedule not found", Kind: KindNotFound}
)

// 学习会话模块错误。
var (
	ScheduleNotStartable    = Definition{Code: "SCHEDULE_NOT_STARTABLE", Message: "Schedule is not in a startable state", Kind: KindInvalidState}
	SessionAlreadyActive    = Definition{Code: "SESSION_ALREADY_ACTIVE", Message: "User already has an active session", Kind: KindConflict}
	SessionNotActive        = Definition{Code: "SESSION_NOT_ACTIVE", Message: "Session is not active", Kind: KindInvalidState}
	SessionNotFound         = Definition{Code: "SESSION_NOT_FOUND", Message: "Session not found", Kind: KindNotFound}
	ChallengeNotOutstanding = Definition{Code: "CHALLENGE_NOT_OUTSTANDING", Message: "No matching outstanding check-in challenge", Kind: KindInvalidState}
)

// 投递/存储错误。
var (
	DeliveryFailed   = Definition{Code: "DELIVERY_FAILED", Message: "Downstream notification delivery failed", Kind: KindTransient}
	StoreUnavailable = Definition{Code: "STORE_UNAVAILABLE", Message: "Durable store unavailable", Kind: KindFatal}
)

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	ValidationFailed.Code:        ValidationFailed,
	StartTimeInPast.Code:         StartTimeInPast,
	DurationInvalid.Code:         DurationInvalid,
	RecurrenceDaysInvalid.Code:   RecurrenceDaysInvalid,
	OffsetsInvalid.Code:          OffsetsInvalid,
	TimezoneInvalid.Code:         TimezoneInvalid,
	ScheduleOverlap.Code:         ScheduleOverlap,
	VersionConflict.Code:         VersionConflict,
	ScheduleNotFound.Code:        ScheduleNotFound,
	ScheduleNotStartable.Code:    ScheduleNotStartable,
	SessionAlreadyActive.Code:    SessionAlreadyActive,
	SessionNotActive.Code:        SessionNotActive,
	SessionNotFound.Code:         SessionNotFound,
	ChallengeNotOutstanding.Code: ChallengeNotOutstanding,
	DeliveryFailed.Code:          DeliveryFailed,
	StoreUnavailable.Code:        StoreUnavailable,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error", Kind: KindFatal}
}

// KindOf 返回任意 error 的类别，非 Definition 一律按 fatal 处理。
func KindOf(err error) Kind {
	if def, ok := err.(Definition); ok {
		return def.Kind
	}
	return KindFatal
}

// Is 判断 err 是否为指定的业务错误。
func Is(err error, def Definition) bool {
	d, ok := err.(Definition)
	return ok && d.Code == def.Code
}
