package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	BadgeFirstLesson    = "first_lesson"
	BadgeTenLessons     = "ten_lessons"
	BadgeFirstModule    = "first_module"
	BadgePerfectLesson  = "perfect_lesson"
	BadgeWeekStreak     = "week_streak"
	BadgeCourseFinisher = "course_finisher"
)

// Achievement 徽章定义
type Achievement struct {
	BaseModel
	Code        string `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"size:255" json:"description"`
	Icon        string `gorm:"size:255" json:"icon,omitempty"`
	Points      int    `gorm:"default:0" json:"points"`
}

func (Achievement) TableName() string {
	return "achievements"
}

type UserAchievement struct {
	RecordBase
	UserID        uint         `gorm:"uniqueIndex:idx_user_achievement;not null" json:"userId"`
	AchievementID uint         `gorm:"uniqueIndex:idx_user_achievement;not null" json:"achievementId"`
	Achievement   *Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
	EarnedAt      time.Time    `json:"earnedAt"`
}

func (UserAchievement) TableName() string {
	return "user_achievements"
}

// LearningStreak 连续学习天数
type LearningStreak struct {
	RecordBase
	UserID           uint      `gorm:"uniqueIndex;not null" json:"userId"`
	CurrentStreak    int       `gorm:"default:0" json:"currentStreak"`
	LongestStreak    int       `gorm:"default:0" json:"longestStreak"`
	LastActivityDate time.Time `json:"lastActivityDate"`
}

func (LearningStreak) TableName() string {
	return "learning_streaks"
}

type PointsLedger struct {
	RecordBase
	UserID   uint           `gorm:"index;not null" json:"userId"`
	Points   int            `json:"points"`
	Reason   string         `gorm:"size:100" json:"reason"`
	Metadata datatypes.JSON `json:"metadata,omitempty"`
}

func (PointsLedger) TableName() string {
	return "points_ledger"
}
