package mq

// 交换机与队列命名，生产者和消费者共用
const (
	NotifyExchange = "notify.topic"
	EventsExchange = "events.topic"

	ReminderDueQueue    = "notify.reminder.due"
	SessionEventsQueue  = "events.session"
	ReminderEventsQueue = "events.reminder"

	ReminderDueRoutingKey = "notify.reminder.due"
)
