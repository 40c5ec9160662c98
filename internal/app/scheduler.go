package app

import (
	"context"
	"lms_backend/internal/service"
	"lms_backend/pkg/logger"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// maintenanceTimeout 单次维护任务的超时
const maintenanceTimeout = 5 * time.Minute

// newScheduler 注册夜间维护任务：关闭过期申诉、清零中断的连续学习天数
func newScheduler(spec string, progression *service.ProgressionService, achievements *service.AchievementService) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{})))
	_, err := c.AddFunc(spec, func() {
		runMaintenance(progression, achievements)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func runMaintenance(progression *service.ProgressionService, achievements *service.AchievementService) {
	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()

	start := time.Now()
	closed, _ := progression.CloseExpiredAppeals(ctx)
	reset, _ := achievements.ResetBrokenStreaks(ctx)
	logger.Log.Info("Maintenance finished",
		zap.Int64("appealsClosed", closed),
		zap.Int64("streaksReset", reset),
		zap.Duration("took", time.Since(start)))
}

// cronLogger 把 cron 的日志转到 zap
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Log.Sugar().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
