package service

import (
	"context"
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/scoring"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CompletionKind string

const (
	LessonCompletedEvent CompletionKind = "lesson_completed"
	ModuleCompletedEvent CompletionKind = "module_completed"
	CourseCompletedEvent CompletionKind = "course_completed"
)

// CompletionEvent 事务提交后交给成就服务
type CompletionEvent struct {
	Kind      CompletionKind
	StudentID uint
	CourseID  uint
	ModuleID  uint
	LessonID  uint
	Score     float64
	TimeSpent int
	At        time.Time
}

type CompletionSink interface {
	HandleCompletion(ctx context.Context, ev CompletionEvent)
}

// ProgressionService 课时评分、完成判定、章节解锁、重修与停学
type ProgressionService struct {
	DB             *gorm.DB
	CourseRepo     *repository.CourseRepository
	QuizRepo       *repository.QuizRepository
	AssignmentRepo *repository.AssignmentRepository
	ProgressRepo   *repository.ProgressRepository
	EnrollmentRepo *repository.EnrollmentRepository
	SuspensionRepo *repository.SuspensionRepository

	Events   CompletionSink
	Notifier *NotificationService

	mu     sync.RWMutex
	policy scoring.Policy
	now    func() time.Time
}

func NewProgressionService(db *gorm.DB, policy scoring.Policy, events CompletionSink, notifier *NotificationService) *ProgressionService {
	return &ProgressionService{
		DB:             db,
		CourseRepo:     repository.NewCourseRepository(db),
		QuizRepo:       repository.NewQuizRepository(db),
		AssignmentRepo: repository.NewAssignmentRepository(db),
		ProgressRepo:   repository.NewProgressRepository(db),
		EnrollmentRepo: repository.NewEnrollmentRepository(db),
		SuspensionRepo: repository.NewSuspensionRepository(db),
		Events:         events,
		Notifier:       notifier,
		policy:         policy.Normalize(),
		now:            time.Now,
	}
}

func (s *ProgressionService) Policy() scoring.Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// UpdatePolicy 配置热加载时调用
func (s *ProgressionService) UpdatePolicy(p scoring.Policy) {
	p = p.Normalize()
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
	logger.Log.Info("Progression policy updated",
		zap.Float64("modulePassingScore", p.ModulePassingScore),
		zap.Float64("lessonPassingScore", p.LessonPassingScore),
		zap.Int("defaultMaxAttempts", p.DefaultMaxAttempts),
		zap.Duration("appealWindow", p.AppealWindow))
}

// SetClock 测试中固定时间
func (s *ProgressionService) SetClock(now func() time.Time) {
	s.now = now
}

// repos 同一事务内使用的仓储
type repos struct {
	course     *repository.CourseRepository
	quiz       *repository.QuizRepository
	assignment *repository.AssignmentRepository
	progress   *repository.ProgressRepository
	enrollment *repository.EnrollmentRepository
	suspension *repository.SuspensionRepository
}

func (s *ProgressionService) bind(tx *gorm.DB) repos {
	return repos{
		course:     s.CourseRepo.WithTx(tx),
		quiz:       s.QuizRepo.WithTx(tx),
		assignment: s.AssignmentRepo.WithTx(tx),
		progress:   s.ProgressRepo.WithTx(tx),
		enrollment: s.EnrollmentRepo.WithTx(tx),
		suspension: s.SuspensionRepo.WithTx(tx),
	}
}

// outbox 事务内收集、提交后处理的副作用
type outbox struct {
	events      []CompletionEvent
	transitions []model.ModuleStatus
	suspensions []*model.StudentSuspension
	retakes     int
}

func (o *outbox) transition(status model.ModuleStatus) {
	o.transitions = append(o.transitions, status)
}

// inTx 在单个事务内执行 fn，提交成功后派发事件
func (s *ProgressionService) inTx(ctx context.Context, fn func(r repos, box *outbox) error) error {
	box := &outbox{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.bind(tx), box)
	})
	if err != nil {
		return err
	}
	s.flush(ctx, box)
	return nil
}

func (s *ProgressionService) flush(ctx context.Context, box *outbox) {
	for _, st := range box.transitions {
		monitoring.ModuleTransitions.WithLabelValues(string(st)).Inc()
	}
	for _, sus := range box.suspensions {
		monitoring.Suspensions.Inc()
		if s.Notifier != nil {
			s.Notifier.NotifySuspension(sus)
		}
	}
	if box.retakes > 0 {
		monitoring.ModuleTransitions.WithLabelValues("retake").Add(float64(box.retakes))
	}
	for _, ev := range box.events {
		if ev.Kind == LessonCompletedEvent {
			monitoring.LessonScores.Observe(ev.Score)
		}
		if s.Events != nil {
			s.Events.HandleCompletion(ctx, ev)
		}
	}
}

// lessonScope 课时及其所在章节、选课、章节进度
type lessonScope struct {
	lesson     *model.Lesson
	module     *model.Module
	enrollment *model.Enrollment
	progress   *model.ModuleProgress
}

func notFound(err error) error {
	if util.IsNotFound(err) {
		return util.ErrNotFound
	}
	return err
}

// moduleScope 加载章节、选课并惰性初始化章节进度
func (s *ProgressionService) moduleScope(r repos, studentID, moduleID uint) (*lessonScope, error) {
	module, err := r.course.FindModule(moduleID)
	if err != nil {
		return nil, notFound(err)
	}
	enrollment, err := r.enrollment.FindByStudentCourse(studentID, module.CourseID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, util.ErrNotEnrolled
	}
	progress, err := s.ensureModuleProgress(r, studentID, module, enrollment)
	if err != nil {
		return nil, err
	}
	return &lessonScope{module: module, enrollment: enrollment, progress: progress}, nil
}

func (s *ProgressionService) lessonScope(r repos, studentID, lessonID uint) (*lessonScope, error) {
	lesson, err := r.course.FindLesson(lessonID)
	if err != nil {
		return nil, notFound(err)
	}
	scope, err := s.moduleScope(r, studentID, lesson.ModuleID)
	if err != nil {
		return nil, err
	}
	scope.lesson = lesson
	return scope, nil
}

// readableLesson 只读接口使用：校验选课且章节已解锁，不创建任何记录
func (s *ProgressionService) readableLesson(r repos, studentID, lessonID uint) (*model.Lesson, error) {
	lesson, err := r.course.FindLesson(lessonID)
	if err != nil {
		return nil, notFound(err)
	}
	module, err := r.course.FindModule(lesson.ModuleID)
	if err != nil {
		return nil, notFound(err)
	}
	enrollment, err := r.enrollment.FindByStudentCourse(studentID, module.CourseID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, util.ErrNotEnrolled
	}

	progress, err := r.progress.FindModuleProgress(studentID, module.ID, enrollment.ID)
	if err != nil {
		return nil, err
	}
	var unlocked bool
	if progress != nil {
		unlocked = progress.Status != model.ModuleLocked
	} else if unlocked, err = s.initiallyUnlocked(r, studentID, module, enrollment); err != nil {
		return nil, err
	}
	if !unlocked {
		return nil, util.ErrModuleLocked
	}
	return lesson, nil
}

// requireActive 停学中或章节不可学习时拒绝
func (s *ProgressionService) requireActive(r repos, scope *lessonScope) error {
	if scope.enrollment.Status == model.EnrollmentSuspended {
		return util.ErrStudentSuspended
	}
	active, err := r.suspension.FindActive(scope.enrollment.StudentID, scope.enrollment.CourseID, scope.enrollment.ID)
	if err != nil {
		return err
	}
	if active != nil {
		return util.ErrStudentSuspended
	}
	switch scope.progress.Status {
	case model.ModuleLocked:
		return util.ErrModuleLocked
	case model.ModuleFailed:
		return util.ErrModuleFailed
	}
	return nil
}

// ensureModuleProgress 首次访问时创建章节进度。
// 第一个章节直接解锁；其余章节在已有课时记录或上一章节已完成时解锁。
func (s *ProgressionService) ensureModuleProgress(r repos, studentID uint, module *model.Module, enrollment *model.Enrollment) (*model.ModuleProgress, error) {
	existing, err := r.progress.FindModuleProgress(studentID, module.ID, enrollment.ID)
	if err != nil || existing != nil {
		return existing, err
	}

	unlocked, err := s.initiallyUnlocked(r, studentID, module, enrollment)
	if err != nil {
		return nil, err
	}

	policy := s.Policy()
	p := &model.ModuleProgress{
		StudentID:    studentID,
		ModuleID:     module.ID,
		EnrollmentID: enrollment.ID,
		Status:       model.ModuleLocked,
		MaxAttempts:  module.MaxAttempts,
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = policy.DefaultMaxAttempts
	}
	if unlocked {
		now := s.now()
		p.Status = model.ModuleUnlocked
		p.UnlockedAt = &now
	}
	return r.progress.CreateModuleProgress(p)
}

func (s *ProgressionService) initiallyUnlocked(r repos, studentID uint, module *model.Module, enrollment *model.Enrollment) (bool, error) {
	prev, err := r.course.PreviousModule(module)
	if err != nil {
		return false, err
	}
	if prev == nil {
		return true, nil
	}

	n, err := r.progress.CountLessonCompletionsByModule(studentID, module.ID)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	prevProgress, err := r.progress.FindModuleProgress(studentID, prev.ID, enrollment.ID)
	if err != nil {
		return false, err
	}
	return prevProgress != nil && prevProgress.Status == model.ModuleCompleted, nil
}

// startModule unlocked → in_progress，首次进入时记为第 1 次尝试
func (s *ProgressionService) startModule(p *model.ModuleProgress, box *outbox) bool {
	if p.Status != model.ModuleUnlocked {
		return false
	}
	now := s.now()
	p.Status = model.ModuleInProgress
	p.StartedAt = &now
	if p.AttemptsCount < 1 {
		p.AttemptsCount = 1
	}
	box.transition(model.ModuleInProgress)
	return true
}

// lessonInput 读取课时测验、作业的最好成绩
func (s *ProgressionService) lessonInput(r repos, studentID uint, lesson *model.Lesson, lc *model.LessonCompletion) (scoring.LessonInput, error) {
	in := scoring.LessonInput{}
	if lc != nil {
		in.Reading = lc.ReadingProgress
		in.Engagement = lc.EngagementScore
	}

	quiz, err := r.quiz.FindPublishedByLesson(lesson.ID)
	if err != nil {
		return in, err
	}
	if quiz != nil {
		outcome := &scoring.QuizOutcome{PassingScore: quiz.PassingScore}
		best, err := r.quiz.BestAttempt(studentID, quiz.ID)
		if err != nil {
			return in, err
		}
		if best != nil {
			outcome.Attempted = true
			outcome.BestPercentage = best.Percentage
		}
		in.Quiz = outcome
	}

	assignment, err := r.assignment.FindByLesson(lesson.ID)
	if err != nil {
		return in, err
	}
	if assignment != nil {
		outcome := &scoring.AssignmentOutcome{PassingScore: s.Policy().AssignmentPassingScore}
		best, err := r.assignment.BestGradedSubmission(studentID, assignment.ID)
		if err != nil {
			return in, err
		}
		if best != nil {
			outcome.Submitted = true
			outcome.Graded = true
			outcome.Percentage = best.Percentage(assignment.PointsPossible)
		} else {
			latest, err := r.assignment.LatestSubmission(studentID, assignment.ID)
			if err != nil {
				return in, err
			}
			outcome.Submitted = latest != nil
		}
		in.Assignment = outcome
	}
	return in, nil
}

// applyScore 把计算结果写回课时记录（不落库）
func (s *ProgressionService) applyScore(lc *model.LessonCompletion, score scoring.LessonScore) {
	now := s.now()
	lc.ReadingComponent = score.ReadingComponent
	lc.EngagementComponent = score.EngagementComponent
	lc.QuizComponent = score.QuizComponent
	lc.AssignmentComponent = score.AssignmentComponent
	lc.LessonScore = score.Score
	lc.ScoreLastUpdated = &now
}

// storeComponentScores 重新计算并保存课时分项
func (s *ProgressionService) storeComponentScores(r repos, studentID uint, lesson *model.Lesson, lc *model.LessonCompletion) (scoring.LessonInput, scoring.LessonScore, error) {
	in, err := s.lessonInput(r, studentID, lesson, lc)
	if err != nil {
		return in, scoring.LessonScore{}, err
	}
	score := scoring.CalculateLessonScore(in)
	s.applyScore(lc, score)
	if err := r.progress.SaveLessonCompletion(lc); err != nil {
		return in, score, err
	}
	return in, score, nil
}

// refreshLessonScore 测验评分、作业评分后调用，课时记录不存在时创建
func (s *ProgressionService) refreshLessonScore(r repos, studentID uint, lesson *model.Lesson) (*model.LessonCompletion, scoring.LessonScore, error) {
	lc, err := r.progress.GetOrCreateLessonCompletion(studentID, lesson.ID, lesson.ModuleID)
	if err != nil {
		return nil, scoring.LessonScore{}, err
	}
	_, score, err := s.storeComponentScores(r, studentID, lesson, lc)
	return lc, score, err
}

func logTxError(op string, studentID uint, err error) {
	if err == nil || isBusinessError(err) {
		return
	}
	logger.Log.Error("Progression operation failed",
		zap.String("op", op),
		zap.Uint("studentId", studentID),
		zap.Error(err))
}

var businessErrors = []error{
	util.ErrNotFound,
	util.ErrNotEnrolled,
	util.ErrAlreadyEnrolled,
	util.ErrModuleLocked,
	util.ErrModuleFailed,
	util.ErrStudentSuspended,
	util.ErrNotFailed,
	util.ErrMaxAttemptsReached,
	util.ErrAlreadySuspended,
	util.ErrQuizNotPublished,
	util.ErrQuizAttemptsLimit,
	util.ErrInvalidGrade,
	util.ErrEmptySubmission,
	util.ErrAppealNotAllowed,
	util.ErrAppealNotPending,
	util.ErrConcurrentUpdate,
	util.ErrPermissionDenied,
	util.ErrInvalidFileType,
	util.ErrFileTooLarge,
}

func isBusinessError(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
