package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServerPort  string `env:"SERVER_PORT" envDefault:"8888"`
	ServerHost  string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName string `env:"SERVICE_NAME" envDefault:"stillstudying"`

	// PostgreSQL 配置
	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"stillstudying"`
	PostgreSQLSchema   string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"30"`
	PostgreSQLMaxOpen  int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"200"`

	// Redis 配置
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"stst"`

	// RabbitMQ 配置
	RabbitMQAddr     string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort     string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost    string `env:"RABBITMQ_VHOST" envDefault:"/"`

	// 学习会话配置
	CheckInIntervalMinutes int `env:"CHECK_IN_INTERVAL_MINUTES" envDefault:"15"` // 5~60
	ResponseWindowSeconds  int `env:"RESPONSE_WINDOW_SECONDS" envDefault:"120"`
	MissedCheckInLimit     int `env:"MISSED_CHECKIN_LIMIT" envDefault:"2"` // 连续未响应达到此数即中断会话

	// 提醒调度配置
	ReminderTickPeriodSeconds int `env:"REMINDER_TICK_PERIOD_SECONDS" envDefault:"60"`
	RecurrenceHorizonWeeks    int `env:"RECURRENCE_HORIZON_WEEKS" envDefault:"5"`
	ReminderMaxAttempts       int `env:"REMINDER_MAX_ATTEMPTS" envDefault:"3"`
	FiringRetentionDays       int `env:"FIRING_RETENTION_DAYS" envDefault:"30"`

	// 通知服务配置
	NotifierProvider string `env:"NOTIFIER_PROVIDER" envDefault:"mock"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 速率限制配置, 配置在中间件内
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"100"` // 每秒请求数
}

func init() {

	if err := godotenv.Load(); err != nil {

		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}

	validateConfig()
}

func validateConfig() {
	if Cfg.CheckInIntervalMinutes < 5 || Cfg.CheckInIntervalMinutes > 60 {
		log.Fatal("CHECK_IN_INTERVAL_MINUTES must be between 5 and 60")
	}

	if Cfg.ResponseWindowSeconds <= 0 {
		log.Fatal("RESPONSE_WINDOW_SECONDS must be positive")
	}

	if Cfg.MissedCheckInLimit < 1 {
		log.Fatal("MISSED_CHECKIN_LIMIT must be at least 1")
	}

	if Cfg.ReminderTickPeriodSeconds < 1 {
		log.Fatal("REMINDER_TICK_PERIOD_SECONDS must be positive")
	}

	if Cfg.RecurrenceHorizonWeeks < 1 {
		log.Fatal("RECURRENCE_HORIZON_WEEKS must be at least 1")
	}

	if Cfg.ReminderMaxAttempts < 1 {
		log.Fatal("REMINDER_MAX_ATTEMPTS must be at least 1")
	}
}

func (c *Config) GetDSN() string {
	return "host=" + c.PostgreSQLHost +
		" port=" + c.PostgreSQLPort +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

func (c *Config) CheckInInterval() time.Duration {
	return time.Duration(c.CheckInIntervalMinutes) * time.Minute
}

func (c *Config) ResponseWindow() time.Duration {
	return time.Duration(c.ResponseWindowSeconds) * time.Second
}

func (c *Config) ReminderTickPeriod() time.Duration {
	return time.Duration(c.ReminderTickPeriodSeconds) * time.Second
}

func (c *Config) RecurrenceHorizon() time.Duration {
	return time.Duration(c.RecurrenceHorizonWeeks) * 7 * 24 * time.Hour
}

func (c *Config) FiringRetention() time.Duration {
	return time.Duration(c.FiringRetentionDays) * 24 * time.Hour
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
