package service

import (
	"context"
	"encoding/json"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/pkg/database"
	"lms_backend/pkg/logger"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	xpPerLevel          = 200
	weekStreakDays      = 7
	tenLessonsMilestone = 10
)

type AchievementService struct {
	DB              *gorm.DB
	AchievementRepo *repository.AchievementRepository
	UserRepo        *repository.UserRepository
	ProgressRepo    *repository.ProgressRepository
	Redis           *redis.Client // 可为空，为空时排行榜直接查库

	cfg config.GamificationConfig
	now func() time.Time
}

func NewAchievementService(db *gorm.DB, cfg config.GamificationConfig, rdb *redis.Client) *AchievementService {
	return &AchievementService{
		DB:              db,
		AchievementRepo: repository.NewAchievementRepository(db),
		UserRepo:        repository.NewUserRepository(db),
		ProgressRepo:    repository.NewProgressRepository(db),
		Redis:           rdb,
		cfg:             cfg,
		now:             time.Now,
	}
}

// SetClock 测试中固定时间
func (s *AchievementService) SetClock(now func() time.Time) {
	s.now = now
}

type UserAchievements struct {
	TotalXP       int                     `json:"totalXp"`
	CurrentLevel  int                     `json:"currentLevel"`
	NextLevelXP   int                     `json:"nextLevelXp"`
	CurrentStreak int                     `json:"currentStreak"`
	LongestStreak int                     `json:"longestStreak"`
	Badges        []model.UserAchievement `json:"badges"`
}

type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID uint   `json:"userId"`
	User   string `json:"user"`
	XP     int    `json:"xp"`
}

// HandleCompletion 完成事件入账：积分、连续学习天数、徽章。失败只记日志。
func (s *AchievementService) HandleCompletion(ctx context.Context, ev CompletionEvent) {
	var gained int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		gained, err = s.apply(tx, ev)
		return err
	})
	if err != nil {
		logger.Log.Error("Failed to record completion rewards",
			zap.String("kind", string(ev.Kind)),
			zap.Uint("studentId", ev.StudentID),
			zap.Error(err))
		return
	}
	if gained > 0 && s.Redis != nil {
		member := strconv.FormatUint(uint64(ev.StudentID), 10)
		if err := s.Redis.ZIncrBy(ctx, database.LeaderboardKey, float64(gained), member).Err(); err != nil {
			logger.Log.Warn("Failed to update leaderboard cache", zap.Error(err))
		}
	}
}

func (s *AchievementService) apply(tx *gorm.DB, ev CompletionEvent) (int, error) {
	achievements := s.AchievementRepo.WithTx(tx)
	users := s.UserRepo.WithTx(tx)
	at := ev.At
	if at.IsZero() {
		at = s.now()
	}

	points := 0
	var badges []string
	switch ev.Kind {
	case LessonCompletedEvent:
		points = s.cfg.LessonPoints
		n, err := s.ProgressRepo.WithTx(tx).CountCompletedLessons(ev.StudentID)
		if err != nil {
			return 0, err
		}
		if n >= 1 {
			badges = append(badges, model.BadgeFirstLesson)
		}
		if n >= tenLessonsMilestone {
			badges = append(badges, model.BadgeTenLessons)
		}
		if ev.Score >= 100 {
			badges = append(badges, model.BadgePerfectLesson)
		}
	case ModuleCompletedEvent:
		points = s.cfg.ModulePoints
		badges = append(badges, model.BadgeFirstModule)
	case CourseCompletedEvent:
		badges = append(badges, model.BadgeCourseFinisher)
	}

	streak, err := s.touchStreak(achievements, ev.StudentID, at)
	if err != nil {
		return 0, err
	}
	if streak >= weekStreakDays {
		badges = append(badges, model.BadgeWeekStreak)
	}

	total := 0
	if points > 0 {
		if err := s.addPoints(achievements, ev, points, string(ev.Kind)); err != nil {
			return 0, err
		}
		total += points
	}

	for _, code := range badges {
		badge, err := achievements.FindByCode(code)
		if err != nil {
			// 徽章未初始化时跳过
			logger.Log.Warn("Badge definition missing", zap.String("code", code))
			continue
		}
		awarded, err := achievements.Award(ev.StudentID, badge.ID, at)
		if err != nil {
			return 0, err
		}
		if !awarded {
			continue
		}
		logger.Log.Info("Badge awarded",
			zap.Uint("studentId", ev.StudentID),
			zap.String("badge", code))
		if badge.Points > 0 {
			if err := s.addPoints(achievements, ev, badge.Points, "badge:"+code); err != nil {
				return 0, err
			}
			total += badge.Points
		}
	}

	if total > 0 {
		if err := users.UpdateXP(ev.StudentID, total); err != nil {
			return 0, err
		}
	}
	return total, nil
}

func (s *AchievementService) addPoints(repo *repository.AchievementRepository, ev CompletionEvent, points int, reason string) error {
	meta, _ := json.Marshal(map[string]interface{}{
		"courseId": ev.CourseID,
		"moduleId": ev.ModuleID,
		"lessonId": ev.LessonID,
		"score":    ev.Score,
	})
	return repo.AddPoints(&model.PointsLedger{
		UserID:   ev.StudentID,
		Points:   points,
		Reason:   reason,
		Metadata: meta,
	})
}

// touchStreak 同一天只计一次，隔天中断则从 1 重新计数
func (s *AchievementService) touchStreak(repo *repository.AchievementRepository, userID uint, at time.Time) (int, error) {
	today := truncateDay(at)
	streak, err := repo.FindStreak(userID)
	if err != nil {
		return 0, err
	}
	if streak == nil {
		streak = &model.LearningStreak{UserID: userID}
	}

	last := truncateDay(streak.LastActivityDate)
	switch {
	case streak.CurrentStreak > 0 && last.Equal(today):
		return streak.CurrentStreak, nil
	case streak.CurrentStreak > 0 && last.AddDate(0, 0, 1).Equal(today):
		streak.CurrentStreak++
	default:
		streak.CurrentStreak = 1
	}
	if streak.CurrentStreak > streak.LongestStreak {
		streak.LongestStreak = streak.CurrentStreak
	}
	streak.LastActivityDate = today
	return streak.CurrentStreak, repo.SaveStreak(streak)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (s *AchievementService) GetUserAchievements(ctx context.Context, userID uint) (*UserAchievements, error) {
	db := s.DB.WithContext(ctx)
	user, err := s.UserRepo.WithTx(db).FindByID(userID)
	if err != nil {
		return nil, notFound(err)
	}
	badges, err := s.AchievementRepo.WithTx(db).FindByUserID(userID)
	if err != nil {
		return nil, err
	}
	streak, err := s.AchievementRepo.WithTx(db).FindStreak(userID)
	if err != nil {
		return nil, err
	}

	level, next := calculateLevel(user.XP)
	out := &UserAchievements{
		TotalXP:      user.XP,
		CurrentLevel: level,
		NextLevelXP:  next,
		Badges:       badges,
	}
	if streak != nil {
		out.CurrentStreak = streak.CurrentStreak
		out.LongestStreak = streak.LongestStreak
	}
	return out, nil
}

// GetLeaderboard 优先读 Redis，缓存不可用时查库
func (s *AchievementService) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = s.cfg.LeaderboardTop
	}
	if s.Redis != nil {
		entries, err := s.cachedLeaderboard(ctx, limit)
		if err == nil && len(entries) > 0 {
			return entries, nil
		}
		if err != nil {
			logger.Log.Warn("Leaderboard cache unavailable, falling back to database", zap.Error(err))
		}
	}

	users, err := s.UserRepo.WithTx(s.DB.WithContext(ctx)).FindTopByXP(limit)
	if err != nil {
		return nil, err
	}
	board := make([]LeaderboardEntry, len(users))
	for i, u := range users {
		board[i] = LeaderboardEntry{Rank: i + 1, UserID: u.ID, User: u.Name, XP: u.XP}
	}
	return board, nil
}

func (s *AchievementService) cachedLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	zs, err := s.Redis.ZRevRangeWithScores(ctx, database.LeaderboardKey, 0, int64(limit-1)).Result()
	if err != nil || len(zs) == 0 {
		return nil, err
	}

	ids := make([]uint, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		id, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, uint(id))
	}
	users, err := s.UserRepo.WithTx(s.DB.WithContext(ctx)).FindByIDs(ids)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	board := make([]LeaderboardEntry, 0, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		id, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			continue
		}
		board = append(board, LeaderboardEntry{
			Rank:   i + 1,
			UserID: uint(id),
			User:   names[uint(id)],
			XP:     int(z.Score),
		})
	}
	return board, nil
}

// ResetBrokenStreaks 昨天及之前都没有学习记录的连续天数清零，由定时任务调用
func (s *AchievementService) ResetBrokenStreaks(ctx context.Context) (int64, error) {
	yesterday := truncateDay(s.now()).AddDate(0, 0, -1)
	n, err := s.AchievementRepo.WithTx(s.DB.WithContext(ctx)).ResetBrokenStreaks(yesterday)
	if err != nil {
		logger.Log.Error("Failed to reset broken streaks", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		logger.Log.Info("Reset broken learning streaks", zap.Int64("count", n))
	}
	return n, nil
}

func calculateLevel(xp int) (int, int) {
	// 每 200 XP 升一级
	level := xp / xpPerLevel
	return level, (level + 1) * xpPerLevel
}
