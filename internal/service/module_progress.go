package service

import (
	"context"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/scoring"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/tracing"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// LessonScoreEntry 分数明细中的单个课时
type LessonScoreEntry struct {
	LessonID     uint                  `json:"lessonId"`
	Title        string                `json:"title"`
	Order        int                   `json:"order"`
	Score        float64               `json:"score"`
	Completed    bool                  `json:"completed"`
	CanComplete  bool                  `json:"canComplete"`
	Requirements []scoring.Requirement `json:"requirements,omitempty"`
}

// ModuleScoreBreakdown 章节得分明细，score-breakdown 接口原样返回
type ModuleScoreBreakdown struct {
	ModuleID    uint               `json:"moduleId"`
	Status      model.ModuleStatus `json:"status"`
	LessonCount int                `json:"lessonCount"`
	Frozen      bool               `json:"frozen"` // 已完成章节沿用已保存的分数
	scoring.ModuleScore
	Lessons []LessonScoreEntry `json:"lessons"`
}

// ModuleProgressView 章节进度概览
type ModuleProgressView struct {
	Progress          *model.ModuleProgress `json:"progress"`
	Accessible        bool                  `json:"accessible"`
	RemainingAttempts int                   `json:"remainingAttempts"`
	LessonsCompleted  int                   `json:"lessonsCompleted"`
	LessonsTotal      int                   `json:"lessonsTotal"`
}

type ModuleOutcome string

const (
	ModuleOutcomeCompleted        ModuleOutcome = "completed"
	ModuleOutcomeAlreadyCompleted ModuleOutcome = "already_completed"
	ModuleOutcomeBlocked          ModuleOutcome = "blocked"
	ModuleOutcomeFailed           ModuleOutcome = "failed"
	ModuleOutcomeSuspended        ModuleOutcome = "suspended"
)

// BlockedLesson 未通过的课时及其缺失条件
type BlockedLesson struct {
	LessonID    uint                  `json:"lessonId"`
	Title       string                `json:"title"`
	LessonScore float64               `json:"lessonScore"`
	Unmet       []scoring.Requirement `json:"unmet"`
}

// ModuleCompletionResult 章节完成检查结果
type ModuleCompletionResult struct {
	Outcome           ModuleOutcome            `json:"outcome"`
	Message           string                   `json:"message"`
	Progress          *model.ModuleProgress    `json:"progress"`
	Score             *ModuleScoreBreakdown    `json:"score,omitempty"`
	BlockedLessons    []BlockedLesson          `json:"blockedLessons,omitempty"`
	RemainingAttempts int                      `json:"remainingAttempts"`
	NextModuleID      *uint                    `json:"nextModuleId,omitempty"`
	CourseCompleted   bool                     `json:"courseCompleted"`
	Suspension        *model.StudentSuspension `json:"suspension,omitempty"`
}

// RetakeResult 重修后的章节状态
type RetakeResult struct {
	Progress           *model.ModuleProgress `json:"progress"`
	AttemptNumber      int                   `json:"attemptNumber"`
	RemainingAttempts  int                   `json:"remainingAttempts"`
	DeletedCompletions int64                 `json:"deletedCompletions"`
	DeletedQuizzes     int64                 `json:"deletedQuizAttempts"`
	DeletedSubmissions int64                 `json:"deletedSubmissions"`
}

type lessonEvaluation struct {
	lesson model.Lesson
	lc     *model.LessonCompletion
	score  scoring.LessonScore
	gate   scoring.GateResult
}

// evaluateLessons 对章节内每个课时计算分数并做完成检查
func (s *ProgressionService) evaluateLessons(r repos, studentID uint, moduleID uint, minLessonScore float64) ([]lessonEvaluation, error) {
	lessons, err := r.course.ListLessons(moduleID)
	if err != nil {
		return nil, err
	}
	completions, err := r.progress.ListLessonCompletionsByModule(studentID, moduleID)
	if err != nil {
		return nil, err
	}
	byLesson := make(map[uint]*model.LessonCompletion, len(completions))
	for i := range completions {
		byLesson[completions[i].LessonID] = &completions[i]
	}

	evals := make([]lessonEvaluation, 0, len(lessons))
	for i := range lessons {
		lc := byLesson[lessons[i].ID]
		in, err := s.lessonInput(r, studentID, &lessons[i], lc)
		if err != nil {
			return nil, err
		}
		score := scoring.CalculateLessonScore(in)
		evals = append(evals, lessonEvaluation{
			lesson: lessons[i],
			lc:     lc,
			score:  score,
			gate:   scoring.EvaluateLessonGate(in, score, minLessonScore),
		})
	}
	return evals, nil
}

// assessmentScores 章节内测验、作业、期末测验的得分，未作答按 0 计
func (s *ProgressionService) assessmentScores(r repos, studentID, moduleID uint) (scoring.ModuleScoreInput, error) {
	in := scoring.ModuleScoreInput{}

	quizzes, err := r.quiz.ListLessonQuizzesByModule(moduleID)
	if err != nil {
		return in, err
	}
	if len(quizzes) > 0 {
		in.Profile.HasQuizzes = true
		var sum float64
		for _, q := range quizzes {
			best, err := r.quiz.BestAttempt(studentID, q.ID)
			if err != nil {
				return in, err
			}
			if best != nil {
				sum += best.Percentage
			}
		}
		in.QuizScore = sum / float64(len(quizzes))
	}

	assignments, err := r.assignment.ListByModule(moduleID)
	if err != nil {
		return in, err
	}
	if len(assignments) > 0 {
		in.Profile.HasAssignments = true
		var sum float64
		for _, a := range assignments {
			best, err := r.assignment.BestGradedSubmission(studentID, a.ID)
			if err != nil {
				return in, err
			}
			if best != nil {
				sum += best.Percentage(a.PointsPossible)
			}
		}
		in.AssignmentScore = sum / float64(len(assignments))
	}

	final, err := r.quiz.FindFinalByModule(moduleID)
	if err != nil {
		return in, err
	}
	if final != nil {
		in.Profile.HasFinalAssessment = true
		best, err := r.quiz.BestAttempt(studentID, final.ID)
		if err != nil {
			return in, err
		}
		if best != nil {
			in.FinalAssessmentScore = best.Percentage
		}
	}
	return in, nil
}

// buildBreakdown 计算章节得分。已完成章节使用保存的分数，其余取历史最好值。
func (s *ProgressionService) buildBreakdown(r repos, studentID uint, p *model.ModuleProgress, evals []lessonEvaluation) (*ModuleScoreBreakdown, error) {
	in, err := s.assessmentScores(r, studentID, p.ModuleID)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, 0, len(evals))
	entries := make([]LessonScoreEntry, 0, len(evals))
	for _, ev := range evals {
		scores = append(scores, ev.score.Score)
		entry := LessonScoreEntry{
			LessonID:    ev.lesson.ID,
			Title:       ev.lesson.Title,
			Order:       ev.lesson.Order,
			Score:       ev.score.Score,
			Completed:   ev.lc != nil && ev.lc.Completed,
			CanComplete: ev.gate.CanComplete,
		}
		for _, req := range ev.gate.Requirements {
			if !req.Met {
				entry.Requirements = append(entry.Requirements, req)
			}
		}
		entries = append(entries, entry)
	}
	in.CourseContribution = scoring.CourseContribution(scores, len(evals))

	frozen := p.Status == model.ModuleCompleted
	if frozen {
		in.CourseContribution = p.CourseContributionScore
		in.QuizScore = p.QuizScore
		in.AssignmentScore = p.AssignmentScore
		in.FinalAssessmentScore = p.FinalAssessmentScore
	} else {
		in.CourseContribution = math.Max(in.CourseContribution, p.CourseContributionScore)
		in.QuizScore = math.Max(in.QuizScore, p.QuizScore)
		in.AssignmentScore = math.Max(in.AssignmentScore, p.AssignmentScore)
		in.FinalAssessmentScore = math.Max(in.FinalAssessmentScore, p.FinalAssessmentScore)
	}

	ms := scoring.CalculateModuleScore(in, s.Policy().ModulePassingScore)
	if frozen {
		ms.CumulativeScore = p.CumulativeScore
		ms.Passed = true
	}
	return &ModuleScoreBreakdown{
		ModuleID:    p.ModuleID,
		Status:      p.Status,
		LessonCount: len(evals),
		Frozen:      frozen,
		ModuleScore: ms,
		Lessons:     entries,
	}, nil
}

// persistScores 未完成章节把最新得分写回进度
func persistScores(p *model.ModuleProgress, b *ModuleScoreBreakdown) bool {
	if p.Status == model.ModuleCompleted {
		return false
	}
	c := b.Components
	changed := p.CourseContributionScore != c.CourseContribution.Score ||
		p.QuizScore != c.Quiz.Score ||
		p.AssignmentScore != c.Assignment.Score ||
		p.FinalAssessmentScore != c.FinalAssessment.Score ||
		p.CumulativeScore != b.CumulativeScore
	p.CourseContributionScore = c.CourseContribution.Score
	p.QuizScore = c.Quiz.Score
	p.AssignmentScore = c.Assignment.Score
	p.FinalAssessmentScore = c.FinalAssessment.Score
	p.CumulativeScore = b.CumulativeScore
	return changed
}

// GetModuleProgress 章节进度，首次访问时初始化
func (s *ProgressionService) GetModuleProgress(ctx context.Context, studentID, moduleID uint) (*ModuleProgressView, error) {
	var view *ModuleProgressView
	err := s.inTx(ctx, func(r repos, box *outbox) error {
		scope, err := s.moduleScope(r, studentID, moduleID)
		if err != nil {
			return err
		}
		lessons, err := r.course.CountLessons(moduleID)
		if err != nil {
			return err
		}
		completions, err := r.progress.ListLessonCompletionsByModule(studentID, moduleID)
		if err != nil {
			return err
		}
		done := 0
		for _, lc := range completions {
			if lc.Completed {
				done++
			}
		}
		view = &ModuleProgressView{
			Progress:          scope.progress,
			Accessible:        scope.progress.IsAccessible(),
			RemainingAttempts: scope.progress.RemainingAttempts(),
			LessonsCompleted:  done,
			LessonsTotal:      int(lessons),
		}
		return nil
	})
	logTxError("GetModuleProgress", studentID, err)
	return view, err
}

// CalculateModuleScore 计算章节加权得分并保存到进度
func (s *ProgressionService) CalculateModuleScore(ctx context.Context, studentID, moduleID uint) (*ModuleScoreBreakdown, error) {
	var breakdown *ModuleScoreBreakdown
	err := s.inTx(ctx, func(r repos, box *outbox) error {
		scope, err := s.moduleScope(r, studentID, moduleID)
		if err != nil {
			return err
		}
		evals, err := s.evaluateLessons(r, studentID, moduleID, s.Policy().LessonPassingScore)
		if err != nil {
			return err
		}
		breakdown, err = s.buildBreakdown(r, studentID, scope.progress, evals)
		if err != nil {
			return err
		}
		if persistScores(scope.progress, breakdown) {
			return r.progress.SaveModuleProgress(scope.progress)
		}
		return nil
	})
	logTxError("CalculateModuleScore", studentID, err)
	return breakdown, err
}

// CheckModuleCompletion 章节完成判定。
// 每个课时都必须通过完成检查且课时分达标，之后章节加权分达标才算完成；
// 完成后解锁下一章节，分数不足时记失败，次数用尽则停学。
// 有课时未达标时章节状态不变，只有在最后一次尝试且所有课时都已标记完成时才判定失败并停学；
// 仍有未标记完成的课时说明学生还在学习，不按失败处理。
func (s *ProgressionService) CheckModuleCompletion(ctx context.Context, studentID, moduleID uint) (*ModuleCompletionResult, error) {
	ctx, span := tracing.StartSpan(ctx, "progression.CheckModuleCompletion",
		attribute.Int64("student.id", int64(studentID)),
		attribute.Int64("module.id", int64(moduleID)))
	var result *ModuleCompletionResult
	err := s.inTx(ctx, func(r repos, box *outbox) error {
		scope, err := s.moduleScope(r, studentID, moduleID)
		if err != nil {
			return err
		}
		p := scope.progress
		policy := s.Policy()

		evals, err := s.evaluateLessons(r, studentID, moduleID, policy.LessonPassingScore)
		if err != nil {
			return err
		}

		if p.Status == model.ModuleCompleted {
			breakdown, err := s.buildBreakdown(r, studentID, p, evals)
			if err != nil {
				return err
			}
			result = &ModuleCompletionResult{
				Outcome:  ModuleOutcomeAlreadyCompleted,
				Message:  "Module already completed",
				Progress: p,
				Score:    breakdown,
			}
			return nil
		}
		if err := s.requireActive(r, scope); err != nil {
			return err
		}

		s.startModule(p, box)

		blocked, allMarked := blockedLessons(evals, policy.LessonPassingScore)
		if len(blocked) > 0 {
			result = &ModuleCompletionResult{
				Outcome:        ModuleOutcomeBlocked,
				Message:        fmt.Sprintf("%d lesson(s) do not meet completion requirements", len(blocked)),
				Progress:       p,
				BlockedLessons: blocked,
			}
			// 最后一次机会且课时都已标记完成时，直接判定失败
			if p.AttemptsCount >= p.MaxAttempts && allMarked {
				if err := s.failModule(r, box, scope, result); err != nil {
					return err
				}
			}
			result.RemainingAttempts = p.RemainingAttempts()
			return r.progress.SaveModuleProgress(p)
		}

		breakdown, err := s.buildBreakdown(r, studentID, p, evals)
		if err != nil {
			return err
		}
		persistScores(p, breakdown)

		if !breakdown.Passed {
			result = &ModuleCompletionResult{
				Outcome:  ModuleOutcomeFailed,
				Message:  fmt.Sprintf("Module score %.2f is below the passing score %.0f", breakdown.CumulativeScore, breakdown.PassingScore),
				Progress: p,
				Score:    breakdown,
			}
			if err := s.failModule(r, box, scope, result); err != nil {
				return err
			}
			result.RemainingAttempts = p.RemainingAttempts()
			return r.progress.SaveModuleProgress(p)
		}

		now := s.now()
		p.Status = model.ModuleCompleted
		p.CompletedAt = &now
		p.FailedAt = nil
		breakdown.Status = p.Status
		if err := r.progress.SaveModuleProgress(p); err != nil {
			return err
		}
		box.transition(model.ModuleCompleted)
		box.events = append(box.events, CompletionEvent{
			Kind:      ModuleCompletedEvent,
			StudentID: studentID,
			CourseID:  scope.module.CourseID,
			ModuleID:  moduleID,
			Score:     breakdown.CumulativeScore,
			At:        now,
		})

		result = &ModuleCompletionResult{
			Outcome:           ModuleOutcomeCompleted,
			Message:           "Module completed",
			Progress:          p,
			Score:             breakdown,
			RemainingAttempts: p.RemainingAttempts(),
		}

		next, err := s.unlockNext(r, box, studentID, scope)
		if err != nil {
			return err
		}
		if next != nil {
			result.NextModuleID = &next.ID
			return nil
		}

		scope.enrollment.Status = model.EnrollmentCompleted
		scope.enrollment.CompletedAt = &now
		if err := r.enrollment.Save(scope.enrollment); err != nil {
			return err
		}
		result.CourseCompleted = true
		box.events = append(box.events, CompletionEvent{
			Kind:      CourseCompletedEvent,
			StudentID: studentID,
			CourseID:  scope.module.CourseID,
			ModuleID:  moduleID,
			Score:     breakdown.CumulativeScore,
			At:        now,
		})
		return nil
	})
	tracing.End(span, err)
	logTxError("CheckModuleCompletion", studentID, err)
	return result, err
}

func blockedLessons(evals []lessonEvaluation, minLessonScore float64) ([]BlockedLesson, bool) {
	var blocked []BlockedLesson
	allMarked := true
	for _, ev := range evals {
		if ev.lc == nil || !ev.lc.Completed {
			allMarked = false
		}
		if ev.gate.CanComplete && ev.score.Score >= minLessonScore {
			continue
		}
		b := BlockedLesson{LessonID: ev.lesson.ID, Title: ev.lesson.Title, LessonScore: ev.score.Score}
		for _, req := range ev.gate.Requirements {
			if !req.Met {
				b.Unmet = append(b.Unmet, req)
			}
		}
		blocked = append(blocked, b)
	}
	return blocked, allMarked
}

// failModule 标记失败；次数用尽时创建停学记录
func (s *ProgressionService) failModule(r repos, box *outbox, scope *lessonScope, result *ModuleCompletionResult) error {
	p := scope.progress
	now := s.now()
	p.Status = model.ModuleFailed
	p.FailedAt = &now
	box.transition(model.ModuleFailed)

	if p.AttemptsCount < p.MaxAttempts {
		result.Outcome = ModuleOutcomeFailed
		return nil
	}

	reason := fmt.Sprintf("Failed module %q after %d of %d attempts", scope.module.Title, p.AttemptsCount, p.MaxAttempts)
	sus, err := s.createSuspension(r, box, scope, p.AttemptsCount, reason)
	if err != nil {
		return err
	}
	result.Outcome = ModuleOutcomeSuspended
	result.Message = reason
	result.Suspension = sus
	return nil
}

// unlockNext 解锁课程中的下一个章节，没有下一章节返回 nil
func (s *ProgressionService) unlockNext(r repos, box *outbox, studentID uint, scope *lessonScope) (*model.Module, error) {
	next, err := r.course.NextModule(scope.module)
	if err != nil || next == nil {
		return nil, err
	}

	p, err := r.progress.FindModuleProgress(studentID, next.ID, scope.enrollment.ID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		// 上一章节已完成，初始化时会直接解锁
		if _, err := s.ensureModuleProgress(r, studentID, next, scope.enrollment); err != nil {
			return nil, err
		}
		box.transition(model.ModuleUnlocked)
		return next, nil
	}
	if p.Status != model.ModuleLocked {
		return next, nil
	}
	now := s.now()
	p.Status = model.ModuleUnlocked
	p.UnlockedAt = &now
	if err := r.progress.SaveModuleProgress(p); err != nil {
		return nil, err
	}
	box.transition(model.ModuleUnlocked)
	return next, nil
}

// AttemptModuleRetake 失败章节重修：次数加一，清空分数，
// 删除该章节下的课时记录、测验作答与作业提交。
func (s *ProgressionService) AttemptModuleRetake(ctx context.Context, studentID, moduleID uint) (*RetakeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "progression.AttemptModuleRetake",
		attribute.Int64("student.id", int64(studentID)),
		attribute.Int64("module.id", int64(moduleID)))
	var result *RetakeResult
	err := s.inTx(ctx, func(r repos, box *outbox) error {
		scope, err := s.moduleScope(r, studentID, moduleID)
		if err != nil {
			return err
		}
		p := scope.progress
		if p.Status != model.ModuleFailed {
			return util.ErrNotFailed
		}
		if scope.enrollment.Status == model.EnrollmentSuspended {
			return util.ErrStudentSuspended
		}
		if p.AttemptsCount >= p.MaxAttempts {
			return util.ErrMaxAttemptsReached
		}

		res := &RetakeResult{}
		if res.DeletedCompletions, err = r.progress.DeleteLessonCompletionsForModule(studentID, moduleID); err != nil {
			return err
		}
		if res.DeletedQuizzes, err = r.quiz.DeleteAttemptsForModule(studentID, moduleID); err != nil {
			return err
		}
		if res.DeletedSubmissions, err = r.assignment.DeleteSubmissionsForModule(studentID, moduleID); err != nil {
			return err
		}

		now := s.now()
		p.AttemptsCount++
		p.Status = model.ModuleUnlocked
		p.UnlockedAt = &now
		p.StartedAt = nil
		p.FailedAt = nil
		p.CompletedAt = nil
		p.ResetScores()
		if err := r.progress.SaveModuleProgress(p); err != nil {
			return err
		}
		box.retakes++

		res.Progress = p
		res.AttemptNumber = p.AttemptsCount
		res.RemainingAttempts = p.RemainingAttempts()
		result = res
		return nil
	})
	tracing.End(span, err)
	logTxError("AttemptModuleRetake", studentID, err)
	if err == nil {
		logger.Log.Info("Module retake started",
			zap.Uint("studentId", studentID),
			zap.Uint("moduleId", moduleID),
			zap.Int("attempt", result.AttemptNumber))
	}
	return result, err
}
