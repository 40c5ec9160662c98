package service

import (
	"context"
	"encoding/json"
	"lms_backend/internal/model"
	"lms_backend/internal/scoring"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/tracing"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// QuizSubmission 题目 ID -> 选项下标
type QuizSubmission struct {
	Answers map[uint]int `json:"answers" binding:"required"`
}

// QuizResult 作答结果
type QuizResult struct {
	Attempt           *model.QuizAttempt   `json:"attempt"`
	BestPercentage    float64              `json:"bestPercentage"`
	PassingScore      float64              `json:"passingScore"`
	RemainingAttempts *int                 `json:"remainingAttempts,omitempty"` // 不限次数时为空
	LessonScore       *scoring.LessonScore `json:"lessonScore,omitempty"`
	FinalAssessment   bool                 `json:"finalAssessment"`
}

type QuizService struct {
	Progression *ProgressionService
}

func NewQuizService(progression *ProgressionService) *QuizService {
	return &QuizService{Progression: progression}
}

// gradeQuiz 按题目分值计分
func gradeQuiz(questions []model.QuizQuestion, answers map[uint]int) (score, total int) {
	for _, q := range questions {
		points := q.Points
		if points <= 0 {
			points = 1
		}
		total += points
		if chosen, ok := answers[q.ID]; ok && chosen == q.CorrectOption {
			score += points
		}
	}
	return score, total
}

// SubmitQuiz 评分、记录作答，并在同一事务内刷新课时分
func (s *QuizService) SubmitQuiz(ctx context.Context, studentID, quizID uint, sub QuizSubmission) (*QuizResult, error) {
	ctx, span := tracing.StartSpan(ctx, "quiz.Submit",
		attribute.Int64("student.id", int64(studentID)),
		attribute.Int64("quiz.id", int64(quizID)))
	p := s.Progression
	var result *QuizResult
	err := p.inTx(ctx, func(r repos, box *outbox) error {
		quiz, err := r.quiz.FindWithQuestions(quizID)
		if err != nil {
			return notFound(err)
		}
		if !quiz.IsPublished {
			return util.ErrQuizNotPublished
		}

		var lesson *model.Lesson
		var scope *lessonScope
		switch {
		case quiz.LessonID != nil:
			scope, err = p.lessonScope(r, studentID, *quiz.LessonID)
			if err == nil {
				lesson = scope.lesson
			}
		case quiz.ModuleID != nil:
			scope, err = p.moduleScope(r, studentID, *quiz.ModuleID)
		default:
			return util.ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := p.requireActive(r, scope); err != nil {
			return err
		}
		if p.startModule(scope.progress, box) {
			if err := r.progress.SaveModuleProgress(scope.progress); err != nil {
				return err
			}
		}

		used, err := r.quiz.CountAttempts(studentID, quizID)
		if err != nil {
			return err
		}
		if quiz.MaxAttempts > 0 && int(used) >= quiz.MaxAttempts {
			return util.ErrQuizAttemptsLimit
		}

		score, total := gradeQuiz(quiz.Questions, sub.Answers)
		pct := 0.0
		if total > 0 {
			pct = math.Round(float64(score)/float64(total)*10000) / 100
		}
		passing := quiz.PassingScore
		if passing <= 0 {
			passing = scoring.DefaultQuizPassingScore
		}
		answers, err := json.Marshal(sub.Answers)
		if err != nil {
			return err
		}

		attempt := &model.QuizAttempt{
			StudentID:     studentID,
			QuizID:        quizID,
			ModuleID:      scope.module.ID,
			Answers:       datatypes.JSON(answers),
			Score:         score,
			Total:         total,
			Percentage:    pct,
			Passed:        pct >= passing,
			AttemptNumber: int(used) + 1,
			SubmittedAt:   p.now(),
		}
		if err := r.quiz.CreateAttempt(attempt); err != nil {
			return err
		}

		best, err := r.quiz.BestAttempt(studentID, quizID)
		if err != nil {
			return err
		}
		result = &QuizResult{
			Attempt:         attempt,
			BestPercentage:  best.Percentage,
			PassingScore:    passing,
			FinalAssessment: quiz.IsFinalAssessment(),
		}
		if quiz.MaxAttempts > 0 {
			remaining := quiz.MaxAttempts - attempt.AttemptNumber
			result.RemainingAttempts = &remaining
		}

		if lesson != nil {
			_, ls, err := p.refreshLessonScore(r, studentID, lesson)
			if err != nil {
				return err
			}
			result.LessonScore = &ls
		}
		return nil
	})
	tracing.End(span, err)
	logTxError("SubmitQuiz", studentID, err)
	if err == nil {
		logger.Log.Debug("Quiz submitted",
			zap.Uint("studentId", studentID),
			zap.Uint("quizId", quizID),
			zap.Float64("percentage", result.Attempt.Percentage))
	}
	return result, err
}

// ListAttempts 学生在某测验上的全部作答
func (s *QuizService) ListAttempts(ctx context.Context, studentID, quizID uint) ([]model.QuizAttempt, error) {
	return s.Progression.QuizRepo.WithTx(s.Progression.DB.WithContext(ctx)).ListAttempts(studentID, quizID)
}
