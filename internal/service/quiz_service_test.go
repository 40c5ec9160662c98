package service

import (
	"context"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradeQuiz(t *testing.T) {
	questions := []model.QuizQuestion{
		{BaseModel: model.BaseModel{ID: 1}, CorrectOption: 0, Points: 2},
		{BaseModel: model.BaseModel{ID: 2}, CorrectOption: 1, Points: 0},
		{BaseModel: model.BaseModel{ID: 3}, CorrectOption: 2, Points: 1},
	}
	score, total := gradeQuiz(questions, map[uint]int{1: 0, 2: 1, 3: 0})
	assert.Equal(t, 3, score)
	assert.Equal(t, 4, total)
}

func TestSubmitQuiz_FailedQuizBlocksLesson(t *testing.T) {
	db := newTestDB(t)
	s := newTestProgression(db)
	qs := NewQuizService(s)
	ctx := context.Background()
	student := createUser(t, db, model.Student)
	f := createCourse(t, db, 1, 1)
	lessonID := f.lessons[0][0].ID
	quiz := createQuiz(t, db, &lessonID, nil, 2, 0)
	_, err := s.Enroll(ctx, student.ID, f.course.ID)
	require.NoError(t, err)

	_, err = s.RecordLessonProgress(ctx, student.ID, lessonID,
		LessonProgressUpdate{ReadingProgress: pct(100), EngagementScore: pct(100)})
	require.NoError(t, err)

	res, err := qs.SubmitQuiz(ctx, student.ID, quiz.ID, answers(quiz, 1))
	require.NoError(t, err)
	assert.Equal(t, 50.0, res.Attempt.Percentage)
	assert.False(t, res.Attempt.Passed)
	assert.Nil(t, res.RemainingAttempts)
	require.NotNil(t, res.LessonScore)
	assert.Zero(t, res.LessonScore.QuizComponent)
	assert.LessOrEqual(t, res.LessonScore.Score, 65.0)

	blocked, err := s.AttemptLessonCompletion(ctx, student.ID, lessonID, false)
	require.NoError(t, err)
	assert.False(t, blocked.Completed)
	assert.Contains(t, blocked.Gate.Unmet(), "quiz")
	assert.Contains(t, blocked.Gate.Reason, "Quiz not passed")

	res, err = qs.SubmitQuiz(ctx, student.ID, quiz.ID, answers(quiz, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempt.AttemptNumber)
	assert.Equal(t, 100.0, res.BestPercentage)
	assert.Equal(t, 100.0, res.LessonScore.Score)

	done, err := s.AttemptLessonCompletion(ctx, student.ID, lessonID, false)
	require.NoError(t, err)
	assert.True(t, done.Completed)

	attempts, err := qs.ListAttempts(ctx, student.ID, quiz.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 2)
}

func TestSubmitQuiz_AttemptLimit(t *testing.T) {
	db := newTestDB(t)
	s := newTestProgression(db)
	qs := NewQuizService(s)
	ctx := context.Background()
	student := createUser(t, db, model.Student)
	f := createCourse(t, db, 1, 1)
	lessonID := f.lessons[0][0].ID
	quiz := createQuiz(t, db, &lessonID, nil, 1, 1)
	_, err := s.Enroll(ctx, student.ID, f.course.ID)
	require.NoError(t, err)

	res, err := qs.SubmitQuiz(ctx, student.ID, quiz.ID, answers(quiz, 0))
	require.NoError(t, err)
	require.NotNil(t, res.RemainingAttempts)
	assert.Equal(t, 0, *res.RemainingAttempts)

	_, err = qs.SubmitQuiz(ctx, student.ID, quiz.ID, answers(quiz, 1))
	assert.ErrorIs(t, err, util.ErrQuizAttemptsLimit)
}

func TestSubmitQuiz_Unpublished(t *testing.T) {
	db := newTestDB(t)
	s := newTestProgression(db)
	ctx := context.Background()
	student := createUser(t, db, model.Student)
	f := createCourse(t, db, 1, 1)
	lessonID := f.lessons[0][0].ID
	quiz := createQuiz(t, db, &lessonID, nil, 1, 0)
	require.NoError(t, NewContentService(db, nil).PublishQuiz(ctx, quiz.ID, false))
	_, err := s.Enroll(ctx, student.ID, f.course.ID)
	require.NoError(t, err)

	_, err = NewQuizService(s).SubmitQuiz(ctx, student.ID, quiz.ID, answers(quiz, 1))
	assert.ErrorIs(t, err, util.ErrQuizNotPublished)

	// 未发布的测验不参与课时评分
	score, err := s.CalculateLessonScore(ctx, student.ID, lessonID)
	require.NoError(t, err)
	assert.False(t, score.Profile.HasQuiz)
}
