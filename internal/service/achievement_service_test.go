package service

import (
	"context"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/scoring"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGamification = config.GamificationConfig{LessonPoints: 10, ModulePoints: 50, LeaderboardTop: 10}

func badgeCodes(badges []model.UserAchievement) []string {
	codes := make([]string, 0, len(badges))
	for _, b := range badges {
		if b.Achievement != nil {
			codes = append(codes, b.Achievement.Code)
		}
	}
	return codes
}

func TestCalculateLevel(t *testing.T) {
	tests := []struct {
		xp    int
		level int
		next  int
	}{
		{0, 0, 200},
		{199, 0, 200},
		{200, 1, 400},
		{950, 4, 1000},
	}
	for _, tt := range tests {
		level, next := calculateLevel(tt.xp)
		assert.Equal(t, tt.level, level, "xp=%d", tt.xp)
		assert.Equal(t, tt.next, next, "xp=%d", tt.xp)
	}
}

func TestLessonCompletionAwardsFirstLesson(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	achievements := NewAchievementService(db, testGamification, nil)
	achievements.SetClock(func() time.Time { return testNow })
	p := NewProgressionService(db, scoring.DefaultPolicy(), achievements, nil)
	p.SetClock(func() time.Time { return testNow })

	student := createUser(t, db, model.Student)
	f := createCourse(t, db, 1, 2)
	lessonID := f.lessons[0][0].ID
	_, err := p.Enroll(ctx, student.ID, f.course.ID)
	require.NoError(t, err)

	_, err = p.RecordLessonProgress(ctx, student.ID, lessonID,
		LessonProgressUpdate{ReadingProgress: pct(95), EngagementScore: pct(70)})
	require.NoError(t, err)
	res, err := p.AttemptLessonCompletion(ctx, student.ID, lessonID, false)
	require.NoError(t, err)
	require.True(t, res.Completed)

	got, err := achievements.GetUserAchievements(ctx, student.ID)
	require.NoError(t, err)
	// 课时 10 + first_lesson 10
	assert.Equal(t, 20, got.TotalXP)
	assert.Equal(t, 0, got.CurrentLevel)
	assert.Equal(t, 200, got.NextLevelXP)
	assert.Equal(t, 1, got.CurrentStreak)
	assert.Equal(t, []string{model.BadgeFirstLesson}, badgeCodes(got.Badges))

	// 重复完成不再发放
	again, err := p.AttemptLessonCompletion(ctx, student.ID, lessonID, false)
	require.NoError(t, err)
	assert.True(t, again.AlreadyCompleted)
	got, err = achievements.GetUserAchievements(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.TotalXP)
}

func TestWeekStreakBadge(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewAchievementService(db, testGamification, nil)
	student := createUser(t, db, model.Student)

	for day := 0; day < 7; day++ {
		at := testNow.AddDate(0, 0, day)
		s.HandleCompletion(ctx, CompletionEvent{
			Kind:      LessonCompletedEvent,
			StudentID: student.ID,
			Score:     50,
			At:        at,
		})
		// 同一天再次完成不增加连续天数
		s.HandleCompletion(ctx, CompletionEvent{
			Kind:      LessonCompletedEvent,
			StudentID: student.ID,
			Score:     50,
			At:        at.Add(time.Hour),
		})
	}

	got, err := s.GetUserAchievements(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.CurrentStreak)
	assert.Equal(t, 7, got.LongestStreak)
	// 14 次课时积分 + week_streak 70
	assert.Equal(t, 14*10+70, got.TotalXP)
	assert.Equal(t, []string{model.BadgeWeekStreak}, badgeCodes(got.Badges))

	// 中断一天后重新计数
	s.HandleCompletion(ctx, CompletionEvent{
		Kind:      LessonCompletedEvent,
		StudentID: student.ID,
		At:        testNow.AddDate(0, 0, 9),
	})
	got, err = s.GetUserAchievements(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentStreak)
	assert.Equal(t, 7, got.LongestStreak)
}

func TestGetLeaderboard_Database(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewAchievementService(db, testGamification, nil)

	low := createUser(t, db, model.Student)
	high := createUser(t, db, model.Student)
	createUser(t, db, model.Instructor)
	s.HandleCompletion(ctx, CompletionEvent{Kind: LessonCompletedEvent, StudentID: low.ID, At: testNow})
	s.HandleCompletion(ctx, CompletionEvent{Kind: ModuleCompletedEvent, StudentID: high.ID, At: testNow})

	board, err := s.GetLeaderboard(ctx, 0)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, high.ID, board[0].UserID)
	assert.Equal(t, high.Name, board[0].User)
	// 章节 50 + first_module 100
	assert.Equal(t, 150, board[0].XP)
	assert.Equal(t, low.ID, board[1].UserID)
	assert.Equal(t, 10, board[1].XP)

	top, err := s.GetLeaderboard(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestResetBrokenStreaks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewAchievementService(db, testGamification, nil)
	s.SetClock(func() time.Time { return testNow })

	active := createUser(t, db, model.Student)
	lapsed := createUser(t, db, model.Student)
	s.HandleCompletion(ctx, CompletionEvent{Kind: LessonCompletedEvent, StudentID: active.ID, At: testNow.AddDate(0, 0, -1)})
	s.HandleCompletion(ctx, CompletionEvent{Kind: LessonCompletedEvent, StudentID: lapsed.ID, At: testNow.AddDate(0, 0, -3)})

	n, err := s.ResetBrokenStreaks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetUserAchievements(ctx, lapsed.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CurrentStreak)
	assert.Equal(t, 1, got.LongestStreak)

	got, err = s.GetUserAchievements(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentStreak)
}
