// 手动触发夜间维护任务：关闭过期申诉、清零中断的连续学习天数
//
// 主应用已按 progression.maintenance_schedule 定时执行。
// 此脚本用于手动补跑，例如调整申诉期限后。
//
// 用法: go run scripts/maintenance.go

package main

import (
	"context"
	"lms_backend/internal/config"
	"lms_backend/internal/service"
	"lms_backend/pkg/database"
	"lms_backend/pkg/logger"
	"log"
	"time"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	progression := service.NewProgressionService(db, cfg.Progression.Policy(), nil, nil)
	closed, err := progression.CloseExpiredAppeals(ctx)
	if err != nil {
		log.Fatalf("Failed to close expired appeals: %v", err)
	}

	achievements := service.NewAchievementService(db, cfg.Gamification, nil)
	reset, err := achievements.ResetBrokenStreaks(ctx)
	if err != nil {
		log.Fatalf("Failed to reset streaks: %v", err)
	}

	logger.Log.Info("Maintenance finished",
		zap.Int64("appealsClosed", closed),
		zap.Int64("streaksReset", reset))
}
