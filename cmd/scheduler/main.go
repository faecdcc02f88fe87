package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"StillStudying/config"
	"StillStudying/internal/cache"
	"StillStudying/internal/repository"
	"StillStudying/internal/schedule"
	"StillStudying/internal/session"
	"StillStudying/pkg/logger"
	"StillStudying/storage"
	"StillStudying/storage/database"
)

// 扫尾只处理超出自然结束 5 分钟以上的会话，刚到点的留给协调器
const sweepGrace = 5 * time.Minute

func main() {

	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Logger.Info("Scheduler received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage for scheduler", zap.Error(err))
	}
	defer storage.Close()

	repos := repository.New(database.DB())
	scheduler := schedule.NewSchedulerService(repos)
	sweeper := session.NewSweeper(repos, sweepGrace)

	logger.Logger.Info("Scheduler service starting",
		zap.String("service", config.Cfg.ServiceName+"-scheduler"),
		zap.String("environment", config.Cfg.Environment),
	)

	go runReminderTickLoop(ctx, scheduler)
	go runHorizonLoop(ctx, scheduler)
	go runSessionSweepLoop(ctx, sweeper)
	go runCleanupLoop(ctx, scheduler)

	<-ctx.Done()

	logger.Logger.Info("Scheduler service shutting down gracefully")
}

// runJob 带 Redis 分布式锁执行一个 job，多实例部署时同一 job 只跑一份
func runJob(ctx context.Context, name string, ttl time.Duration, job func(context.Context) error) {
	ok, err := cache.TryLock(ctx, name, ttl)
	if err != nil {
		logger.Logger.Error("Failed to acquire job lock",
			zap.String("job", name),
			zap.Error(err),
		)
		return
	}
	if !ok {
		return
	}
	defer func() {
		if err := cache.Unlock(ctx, name); err != nil {
			logger.Logger.Error("Failed to release job lock",
				zap.String("job", name),
				zap.Error(err),
			)
		}
	}()

	if err := job(ctx); err != nil {
		logger.Logger.Error("Job failed",
			zap.String("job", name),
			zap.Error(err),
		)
	}
}

// runReminderTickLoop 周期扫描到点的提醒并投递
func runReminderTickLoop(ctx context.Context, scheduler *schedule.SchedulerService) {
	period := config.Cfg.ReminderTickPeriod()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	logger.Logger.Info("Reminder tick loop started", zap.Duration("period", period))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runJob(ctx, "reminder_tick", period, scheduler.Tick)
		}
	}
}

// runHorizonLoop 每小时滚动展开周重复日程的滑动窗口
func runHorizonLoop(ctx context.Context, scheduler *schedule.SchedulerService) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	// 启动先补一轮，停机期间窗口可能已经落后
	runJob(ctx, "advance_horizon", 10*time.Minute, scheduler.AdvanceHorizon)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runJob(ctx, "advance_horizon", 10*time.Minute, scheduler.AdvanceHorizon)
		}
	}
}

// runSessionSweepLoop 兜底补记协调器没能收尾的超期会话
func runSessionSweepLoop(ctx context.Context, sweeper *session.Sweeper) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runJob(ctx, "session_sweep", time.Minute, sweeper.Sweep)
		}
	}
}

// runCleanupLoop 每天清理一次超过保留期的终态触发记录
func runCleanupLoop(ctx context.Context, scheduler *schedule.SchedulerService) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runJob(ctx, "firing_cleanup", time.Hour, scheduler.Cleanup)
		}
	}
}
