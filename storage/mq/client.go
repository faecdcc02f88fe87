package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"StillStudying/config"
)

var (
	conn    *amqp.Connection
	connMu  sync.RWMutex
	initErr error
	once    sync.Once
)

func Init() error {
	once.Do(func() {
		url := config.Cfg.GetRabbitMQURL()

		var c *amqp.Connection
		c, initErr = amqp.Dial(url)
		if initErr != nil {
			return
		}

		connMu.Lock()
		conn = c
		connMu.Unlock()

		initErr = declareTopology()
	})

	return initErr
}

func Connection() *amqp.Connection {
	connMu.RLock()
	defer connMu.RUnlock()
	return conn
}

// declareTopology 声明交换机与队列，幂等
func declareTopology() error {
	c := Connection()
	if c == nil {
		return fmt.Errorf("RabbitMQ connection is nil")
	}

	ch, err := c.Channel()
	if err != nil {
		return fmt.Errorf("failed to open topology channel: %w", err)
	}
	defer ch.Close()

	exchanges := []string{NotifyExchange, EventsExchange}
	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(ex, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", ex, err)
		}
	}

	bindings := []struct {
		queue      string
		exchange   string
		routingKey string
	}{
		{ReminderDueQueue, NotifyExchange, ReminderDueRoutingKey},
		{SessionEventsQueue, EventsExchange, "session.*"},
		{ReminderEventsQueue, EventsExchange, "reminder.*"},
	}

	for _, b := range bindings {
		if _, err := ch.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", b.queue, err)
		}
		if err := ch.QueueBind(b.queue, b.routingKey, b.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", b.queue, err)
		}
	}

	return nil
}

func Close(ctx context.Context) error {
	connMu.Lock()
	defer connMu.Unlock()

	if conn == nil {
		return nil
	}

	err := conn.Close()
	conn = nil
	return err
}
