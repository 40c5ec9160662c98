package service

import (
	"context"
	"lms_backend/internal/model"
	"lms_backend/internal/scoring"
	"lms_backend/pkg/monitoring"
	"lms_backend/pkg/tracing"
	"math"

	"go.opentelemetry.io/otel/attribute"
)

// LessonProgressUpdate 前端上报的学习进度，字段为空表示不变
type LessonProgressUpdate struct {
	ReadingProgress *float64 `json:"readingProgress"`
	EngagementScore *float64 `json:"engagementScore"`
	VideoProgress   *float64 `json:"videoProgress"`
	ScrollProgress  *float64 `json:"scrollProgress"`
	TimeSpent       int      `json:"timeSpent"` // 本次新增秒数
}

// LessonProgressResult 上报后的课时状态
type LessonProgressResult struct {
	Completion *model.LessonCompletion `json:"completion"`
	Score      scoring.LessonScore     `json:"score"`
}

// LessonCompletionResult 尝试完成课时的结果
type LessonCompletionResult struct {
	Completed        bool                    `json:"completed"`
	AlreadyCompleted bool                    `json:"alreadyCompleted"`
	Forced           bool                    `json:"forced"`
	Gate             scoring.GateResult      `json:"gate"`
	Completion       *model.LessonCompletion `json:"completion"`
}

// 进度只增不减
func raise(current float64, update *float64) float64 {
	if update == nil || math.IsNaN(*update) {
		return current
	}
	v := math.Max(0, math.Min(100, *update))
	return math.Max(current, v)
}

// RecordLessonProgress 记录一次进度上报并重算课时分
func (s *ProgressionService) RecordLessonProgress(ctx context.Context, studentID, lessonID uint, update LessonProgressUpdate) (*LessonProgressResult, error) {
	ctx, span := tracing.StartSpan(ctx, "progression.RecordLessonProgress",
		attribute.Int64("student.id", int64(studentID)),
		attribute.Int64("lesson.id", int64(lessonID)))
	var result *LessonProgressResult
	err := s.inTx(ctx, func(r repos, box *outbox) error {
		scope, err := s.lessonScope(r, studentID, lessonID)
		if err != nil {
			return err
		}
		if err := s.requireActive(r, scope); err != nil {
			return err
		}

		if s.startModule(scope.progress, box) {
			if err := r.progress.SaveModuleProgress(scope.progress); err != nil {
				return err
			}
		}

		lc, err := r.progress.GetOrCreateLessonCompletion(studentID, lessonID, scope.lesson.ModuleID)
		if err != nil {
			return err
		}
		lc.ReadingProgress = raise(lc.ReadingProgress, update.ReadingProgress)
		lc.EngagementScore = raise(lc.EngagementScore, update.EngagementScore)
		lc.VideoProgress = raise(lc.VideoProgress, update.VideoProgress)
		lc.ScrollProgress = raise(lc.ScrollProgress, update.ScrollProgress)
		if update.TimeSpent > 0 {
			lc.TimeSpent += update.TimeSpent
		}

		_, score, err := s.storeComponentScores(r, studentID, scope.lesson, lc)
		if err != nil {
			return err
		}
		result = &LessonProgressResult{Completion: lc, Score: score}
		return nil
	})
	tracing.End(span, err)
	logTxError("RecordLessonProgress", studentID, err)
	return result, err
}

// CalculateLessonScore 只读计算，不写库
func (s *ProgressionService) CalculateLessonScore(ctx context.Context, studentID, lessonID uint) (*scoring.LessonScore, error) {
	r := s.bind(s.DB.WithContext(ctx))
	lesson, err := s.readableLesson(r, studentID, lessonID)
	if err != nil {
		return nil, err
	}
	lc, err := r.progress.FindLessonCompletion(studentID, lessonID)
	if err != nil {
		return nil, err
	}
	in, err := s.lessonInput(r, studentID, lesson, lc)
	if err != nil {
		return nil, err
	}
	score := scoring.CalculateLessonScore(in)
	return &score, nil
}

// CalculateAndStoreComponentScores 重算并保存课时分项。
// 还没有课时记录时只返回计算结果，不创建记录。
func (s *ProgressionService) CalculateAndStoreComponentScores(ctx context.Context, studentID, lessonID uint) (*LessonProgressResult, error) {
	var result *LessonProgressResult
	err := s.inTx(ctx, func(r repos, box *outbox) error {
		scope, err := s.lessonScope(r, studentID, lessonID)
		if err != nil {
			return err
		}
		if err := s.requireActive(r, scope); err != nil {
			return err
		}

		lc, err := r.progress.FindLessonCompletion(studentID, lessonID)
		if err != nil {
			return err
		}
		if lc == nil {
			in, err := s.lessonInput(r, studentID, scope.lesson, nil)
			if err != nil {
				return err
			}
			result = &LessonProgressResult{Score: scoring.CalculateLessonScore(in)}
			return nil
		}
		_, score, err := s.storeComponentScores(r, studentID, scope.lesson, lc)
		if err != nil {
			return err
		}
		result = &LessonProgressResult{Completion: lc, Score: score}
		return nil
	})
	logTxError("CalculateAndStoreComponentScores", studentID, err)
	return result, err
}

// CanCompleteLesson 检查课时四项完成条件
func (s *ProgressionService) CanCompleteLesson(ctx context.Context, studentID, lessonID uint) (*scoring.GateResult, error) {
	r := s.bind(s.DB.WithContext(ctx))
	lesson, err := s.readableLesson(r, studentID, lessonID)
	if err != nil {
		return nil, err
	}
	lc, err := r.progress.FindLessonCompletion(studentID, lessonID)
	if err != nil {
		return nil, err
	}
	in, err := s.lessonInput(r, studentID, lesson, lc)
	if err != nil {
		return nil, err
	}
	gate := scoring.EvaluateLessonGate(in, scoring.CalculateLessonScore(in), s.Policy().LessonPassingScore)
	return &gate, nil
}

// AttemptLessonCompletion 满足条件时标记课时完成。
// force 跳过条件检查，但阅读与参与度至少补到 90 / 60。
// 条件不满足时仍保存重算后的分数，Completed 为 false。
func (s *ProgressionService) AttemptLessonCompletion(ctx context.Context, studentID, lessonID uint, force bool) (*LessonCompletionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "progression.AttemptLessonCompletion",
		attribute.Int64("student.id", int64(studentID)),
		attribute.Int64("lesson.id", int64(lessonID)),
		attribute.Bool("force", force))
	var result *LessonCompletionResult
	err := s.inTx(ctx, func(r repos, box *outbox) error {
		scope, err := s.lessonScope(r, studentID, lessonID)
		if err != nil {
			return err
		}
		if !force {
			if err := s.requireActive(r, scope); err != nil {
				return err
			}
		}

		lc, err := r.progress.GetOrCreateLessonCompletion(studentID, lessonID, scope.lesson.ModuleID)
		if err != nil {
			return err
		}

		policy := s.Policy()
		if lc.Completed {
			in, err := s.lessonInput(r, studentID, scope.lesson, lc)
			if err != nil {
				return err
			}
			gate := scoring.EvaluateLessonGate(in, scoring.CalculateLessonScore(in), policy.LessonPassingScore)
			result = &LessonCompletionResult{Completed: true, AlreadyCompleted: true, Gate: gate, Completion: lc}
			return nil
		}

		if force {
			lc.ReadingProgress = math.Max(lc.ReadingProgress, scoring.ReadingThreshold)
			lc.EngagementScore = math.Max(lc.EngagementScore, scoring.EngagementThreshold)
		}

		in, err := s.lessonInput(r, studentID, scope.lesson, lc)
		if err != nil {
			return err
		}
		score := scoring.CalculateLessonScore(in)
		gate := scoring.EvaluateLessonGate(in, score, policy.LessonPassingScore)
		s.applyScore(lc, score)

		result = &LessonCompletionResult{Forced: force, Gate: gate, Completion: lc}
		if gate.CanComplete || force {
			now := s.now()
			lc.Completed = true
			lc.CompletedAt = &now
			result.Completed = true

			if s.startModule(scope.progress, box) {
				if err := r.progress.SaveModuleProgress(scope.progress); err != nil {
					return err
				}
			}
			box.events = append(box.events, CompletionEvent{
				Kind:      LessonCompletedEvent,
				StudentID: studentID,
				CourseID:  scope.module.CourseID,
				ModuleID:  scope.module.ID,
				LessonID:  lessonID,
				Score:     score.Score,
				TimeSpent: lc.TimeSpent,
				At:        now,
			})
		}
		return r.progress.SaveLessonCompletion(lc)
	})
	tracing.End(span, err)
	logTxError("AttemptLessonCompletion", studentID, err)
	if err == nil {
		monitoring.LessonCompletions.WithLabelValues(completionOutcome(result)).Inc()
	}
	return result, err
}

func completionOutcome(r *LessonCompletionResult) string {
	switch {
	case r.AlreadyCompleted:
		return "already_completed"
	case r.Completed:
		return "completed"
	default:
		return "blocked"
	}
}
