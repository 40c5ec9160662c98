package service

import (
	"context"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"

	"go.uber.org/zap"
)

// ModuleSummary 课程进度中的单个章节
type ModuleSummary struct {
	ModuleID          uint               `json:"moduleId"`
	Title             string             `json:"title"`
	Order             int                `json:"order"`
	Status            model.ModuleStatus `json:"status"`
	CumulativeScore   float64            `json:"cumulativeScore"`
	AttemptsCount     int                `json:"attemptsCount"`
	MaxAttempts       int                `json:"maxAttempts"`
	RemainingAttempts int                `json:"remainingAttempts"`
}

// CourseProgress 课程整体进度
type CourseProgress struct {
	Enrollment       *model.Enrollment `json:"enrollment"`
	Modules          []ModuleSummary   `json:"modules"`
	CompletedModules int               `json:"completedModules"`
	TotalModules     int               `json:"totalModules"`
	Percent          float64           `json:"percent"`
	Suspended        bool              `json:"suspended"`
}

// Enroll 选课并初始化第一个章节
func (s *ProgressionService) Enroll(ctx context.Context, studentID, courseID uint) (*model.Enrollment, error) {
	var enrollment *model.Enrollment
	err := s.inTx(ctx, func(r repos, box *outbox) error {
		course, err := r.course.FindCourse(courseID)
		if err != nil {
			return notFound(err)
		}
		if !course.IsPublished {
			return util.ErrNotFound
		}
		existing, err := r.enrollment.FindByStudentCourse(studentID, courseID)
		if err != nil {
			return err
		}
		if existing != nil {
			return util.ErrAlreadyEnrolled
		}

		enrollment = &model.Enrollment{
			StudentID:  studentID,
			CourseID:   courseID,
			Status:     model.EnrollmentActive,
			EnrolledAt: s.now(),
		}
		if err := r.enrollment.Create(enrollment); err != nil {
			if util.IsUniqueViolation(err) {
				return util.ErrAlreadyEnrolled
			}
			return err
		}

		modules, err := r.course.ListModules(courseID)
		if err != nil {
			return err
		}
		if len(modules) > 0 {
			if _, err := s.ensureModuleProgress(r, studentID, &modules[0], enrollment); err != nil {
				return err
			}
		}
		return nil
	})
	logTxError("Enroll", studentID, err)
	if err == nil {
		logger.Log.Info("Student enrolled",
			zap.Uint("studentId", studentID),
			zap.Uint("courseId", courseID))
	}
	return enrollment, err
}

// GetCourseProgress 课程下所有章节的状态，未访问过的章节同时初始化
func (s *ProgressionService) GetCourseProgress(ctx context.Context, studentID, courseID uint) (*CourseProgress, error) {
	var progress *CourseProgress
	err := s.inTx(ctx, func(r repos, box *outbox) error {
		enrollment, err := r.enrollment.FindByStudentCourse(studentID, courseID)
		if err != nil {
			return err
		}
		if enrollment == nil {
			return util.ErrNotEnrolled
		}
		modules, err := r.course.ListModules(courseID)
		if err != nil {
			return err
		}

		progress = &CourseProgress{
			Enrollment:   enrollment,
			TotalModules: len(modules),
			Modules:      make([]ModuleSummary, 0, len(modules)),
			Suspended:    enrollment.Status == model.EnrollmentSuspended,
		}
		for i := range modules {
			p, err := s.ensureModuleProgress(r, studentID, &modules[i], enrollment)
			if err != nil {
				return err
			}
			if p.Status == model.ModuleCompleted {
				progress.CompletedModules++
			}
			progress.Modules = append(progress.Modules, ModuleSummary{
				ModuleID:          modules[i].ID,
				Title:             modules[i].Title,
				Order:             modules[i].Order,
				Status:            p.Status,
				CumulativeScore:   p.CumulativeScore,
				AttemptsCount:     p.AttemptsCount,
				MaxAttempts:       p.MaxAttempts,
				RemainingAttempts: p.RemainingAttempts(),
			})
		}
		if progress.TotalModules > 0 {
			progress.Percent = float64(progress.CompletedModules) / float64(progress.TotalModules) * 100
		}
		return nil
	})
	logTxError("GetCourseProgress", studentID, err)
	return progress, err
}
