package service

import (
	"context"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/scoring"
	"lms_backend/pkg/database"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// newTestDB 每个测试独立的内存库，单连接保证事务串行
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func createUser(t *testing.T, db *gorm.DB, role model.UserRole) *model.User {
	t.Helper()
	u := &model.User{
		Name:     string(role) + "-" + uuid.NewString()[:8],
		Email:    uuid.NewString() + "@example.com",
		Password: "x",
		Role:     role,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// courseFixture 已发布课程，每个章节若干课时
type courseFixture struct {
	course  *model.Course
	modules []model.Module
	lessons [][]model.Lesson
}

func createCourse(t *testing.T, db *gorm.DB, moduleCount, lessonsPerModule int) *courseFixture {
	t.Helper()
	f := &courseFixture{course: &model.Course{Title: "Go Fundamentals", IsPublished: true}}
	require.NoError(t, db.Create(f.course).Error)

	for i := 0; i < moduleCount; i++ {
		m := model.Module{CourseID: f.course.ID, Title: fmt.Sprintf("Module %d", i+1), Order: i + 1, MaxAttempts: 3}
		require.NoError(t, db.Create(&m).Error)
		f.modules = append(f.modules, m)

		var lessons []model.Lesson
		for j := 0; j < lessonsPerModule; j++ {
			l := model.Lesson{ModuleID: m.ID, Title: fmt.Sprintf("Lesson %d.%d", i+1, j+1), Order: j + 1}
			require.NoError(t, db.Create(&l).Error)
			lessons = append(lessons, l)
		}
		f.lessons = append(f.lessons, lessons)
	}
	return f
}

func newTestProgression(db *gorm.DB) *ProgressionService {
	s := NewProgressionService(db, scoring.DefaultPolicy(), nil, nil)
	s.SetClock(func() time.Time { return testNow })
	return s
}

// createQuiz 单选题测验，每题正确答案为 0
func createQuiz(t *testing.T, db *gorm.DB, lessonID, moduleID *uint, questions, maxAttempts int) *model.Quiz {
	t.Helper()
	req := QuizRequest{
		LessonID:     lessonID,
		ModuleID:     moduleID,
		Title:        "Checkpoint",
		PassingScore: 70,
		MaxAttempts:  maxAttempts,
		IsPublished:  true,
	}
	for i := 0; i < questions; i++ {
		req.Questions = append(req.Questions, QuestionRequest{
			Prompt:        fmt.Sprintf("Question %d", i+1),
			Options:       []string{"right", "wrong"},
			CorrectOption: 0,
			Points:        1,
		})
	}
	quiz, err := NewContentService(db, nil).CreateQuiz(context.Background(), req)
	require.NoError(t, err)
	return quiz
}

// answers 前 correct 题答对，其余答错
func answers(quiz *model.Quiz, correct int) QuizSubmission {
	sub := QuizSubmission{Answers: map[uint]int{}}
	for i, q := range quiz.Questions {
		if i < correct {
			sub.Answers[q.ID] = 0
		} else {
			sub.Answers[q.ID] = 1
		}
	}
	return sub
}

func pct(v float64) *float64 {
	return &v
}

// fakeMailer 记录发出的邮件
type fakeMailer struct {
	mu   sync.Mutex
	sent []Mail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, mail Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
	return m.err
}

func (m *fakeMailer) Sent() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mail(nil), m.sent...)
}
