package repository

import (
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementRepository struct {
	DB *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{DB: db}
}

func (r *AchievementRepository) WithTx(tx *gorm.DB) *AchievementRepository {
	return &AchievementRepository{DB: tx}
}

func (r *AchievementRepository) FindByCode(code string) (*model.Achievement, error) {
	var a model.Achievement
	err := r.DB.Where("code = ?", code).First(&a).Error
	return &a, err
}

func (r *AchievementRepository) FindByUserID(userID uint) ([]model.UserAchievement, error) {
	var list []model.UserAchievement
	err := r.DB.Preload("Achievement").
		Where("user_id = ?", userID).
		Order("earned_at ASC").
		Find(&list).Error
	return list, err
}

// Award 授予徽章，已拥有时返回 false。冲突时不报错，避免中断外层事务
func (r *AchievementRepository) Award(userID, achievementID uint, at time.Time) (bool, error) {
	ua := &model.UserAchievement{UserID: userID, AchievementID: achievementID, EarnedAt: at}
	res := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(ua)
	if res.Error != nil {
		if util.IsUniqueViolation(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *AchievementRepository) AddPoints(entry *model.PointsLedger) error {
	return r.DB.Create(entry).Error
}

func (r *AchievementRepository) SumPoints(userID uint) (int64, error) {
	var total int64
	err := r.DB.Model(&model.PointsLedger{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	return total, err
}

// FindStreak 没有记录时返回 nil
func (r *AchievementRepository) FindStreak(userID uint) (*model.LearningStreak, error) {
	var list []model.LearningStreak
	err := r.DB.Where("user_id = ?", userID).Limit(1).Find(&list).Error
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (r *AchievementRepository) SaveStreak(s *model.LearningStreak) error {
	return r.DB.Save(s).Error
}

// ResetBrokenStreaks 最后活跃日早于 before 的连续天数清零
func (r *AchievementRepository) ResetBrokenStreaks(before time.Time) (int64, error) {
	res := r.DB.Model(&model.LearningStreak{}).
		Where("current_streak > 0 AND last_activity_date < ?", before).
		Update("current_streak", 0)
	return res.RowsAffected, res.Error
}
