package database

import (
	"fmt"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models 需要迁移的全部表
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Course{},
		&model.Module{},
		&model.Lesson{},
		&model.Enrollment{},
		&model.Quiz{},
		&model.QuizQuestion{},
		&model.QuizAttempt{},
		&model.Assignment{},
		&model.AssignmentSubmission{},
		&model.LessonCompletion{},
		&model.ModuleProgress{},
		&model.StudentSuspension{},
		&model.Achievement{},
		&model.UserAchievement{},
		&model.LearningStreak{},
		&model.PointsLedger{},
	}
}

func dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.DBName,
			cfg.SSLMode,
		)
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")
	return db, nil
}

// Migrate 建表并写入默认徽章
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	log.Println("Database migration completed")

	return SeedAchievements(db)
}

// SeedAchievements 按 code 补齐内置徽章
func SeedAchievements(db *gorm.DB) error {
	defaults := []model.Achievement{
		{Code: model.BadgeFirstLesson, Name: "First Steps", Description: "Completed your first lesson", Icon: "footprints", Points: 10},
		{Code: model.BadgeTenLessons, Name: "Dedicated Learner", Description: "Completed ten lessons", Icon: "books", Points: 50},
		{Code: model.BadgeFirstModule, Name: "Module Master", Description: "Completed your first module", Icon: "medal", Points: 100},
		{Code: model.BadgePerfectLesson, Name: "Perfectionist", Description: "Scored 100 on a lesson", Icon: "star", Points: 25},
		{Code: model.BadgeWeekStreak, Name: "On Fire", Description: "Learned seven days in a row", Icon: "flame", Points: 70},
		{Code: model.BadgeCourseFinisher, Name: "Graduate", Description: "Completed every module of a course", Icon: "trophy", Points: 200},
	}
	for _, a := range defaults {
		a := a
		if err := db.Where(model.Achievement{Code: a.Code}).FirstOrCreate(&a).Error; err != nil {
			return err
		}
	}
	return nil
}
