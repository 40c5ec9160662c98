package service

import (
	"context"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"strings"

	"go.uber.org/zap"
)

// SuspensionView 停学记录及当前能否申诉
type SuspensionView struct {
	Suspension      *model.StudentSuspension `json:"suspension"`
	CanSubmitAppeal bool                     `json:"canSubmitAppeal"`
}

// AppealReview 教师/管理员的审核决定
type AppealReview struct {
	Approve            bool   `json:"approve"`
	Notes              string `json:"notes"`
	AdditionalAttempts int    `json:"additionalAttempts"`
}

// createSuspension 同一选课只允许一条有效停学记录，重复调用返回 ErrAlreadySuspended
func (s *ProgressionService) createSuspension(r repos, box *outbox, scope *lessonScope, attempts int, reason string) (*model.StudentSuspension, error) {
	e := scope.enrollment
	existing, err := r.suspension.FindActive(e.StudentID, e.CourseID, e.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, util.ErrAlreadySuspended
	}

	now := s.now()
	key := model.SuspensionActiveKey(e.StudentID, e.CourseID, e.ID)
	sus := &model.StudentSuspension{
		StudentID:         e.StudentID,
		CourseID:          e.CourseID,
		EnrollmentID:      e.ID,
		FailedModuleID:    scope.module.ID,
		TotalAttemptsMade: attempts,
		Reason:            reason,
		SuspendedAt:       now,
		ActiveKey:         &key,
		CanAppeal:         true,
		AppealDeadline:    now.Add(s.Policy().AppealWindow),
	}
	if err := r.suspension.Create(sus); err != nil {
		if util.IsUniqueViolation(err) {
			return nil, util.ErrAlreadySuspended
		}
		return nil, err
	}

	if err := r.enrollment.UpdateStatus(e.ID, model.EnrollmentSuspended); err != nil {
		return nil, err
	}
	e.Status = model.EnrollmentSuspended
	box.suspensions = append(box.suspensions, sus)
	return sus, nil
}

// CreateSuspension 手动为章节创建停学记录，已存在有效记录时返回 ErrAlreadySuspended
func (s *ProgressionService) CreateSuspension(ctx context.Context, studentID, moduleID uint, reason string) (*model.StudentSuspension, error) {
	var sus *model.StudentSuspension
	err := s.inTx(ctx, func(r repos, box *outbox) error {
		scope, err := s.moduleScope(r, studentID, moduleID)
		if err != nil {
			return err
		}
		if strings.TrimSpace(reason) == "" {
			reason = "Maximum module attempts exhausted"
		}
		sus, err = s.createSuspension(r, box, scope, scope.progress.AttemptsCount, reason)
		return err
	})
	logTxError("CreateSuspension", studentID, err)
	return sus, err
}

// GetActiveSuspension 课程下的有效停学记录，没有返回 nil
func (s *ProgressionService) GetActiveSuspension(ctx context.Context, studentID, courseID uint) (*SuspensionView, error) {
	r := s.bind(s.DB.WithContext(ctx))
	e, err := r.enrollment.FindByStudentCourse(studentID, courseID)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, util.ErrNotEnrolled
	}
	sus, err := r.suspension.FindActive(studentID, courseID, e.ID)
	if err != nil || sus == nil {
		return nil, err
	}
	return &SuspensionView{Suspension: sus, CanSubmitAppeal: sus.CanSubmitAppeal(s.now())}, nil
}

func (s *ProgressionService) ListSuspensions(ctx context.Context, studentID uint) ([]model.StudentSuspension, error) {
	return s.SuspensionRepo.WithTx(s.DB.WithContext(ctx)).ListByStudent(studentID)
}

func (s *ProgressionService) ListPendingAppeals(ctx context.Context, page, limit int) ([]model.StudentSuspension, int64, error) {
	return s.SuspensionRepo.WithTx(s.DB.WithContext(ctx)).ListPendingAppeals(page, limit)
}

// SubmitAppeal 仅限本人、未恢复、申诉期内且未申诉过的停学记录
func (s *ProgressionService) SubmitAppeal(ctx context.Context, studentID uint, suspensionID, text string) (*model.StudentSuspension, error) {
	var sus *model.StudentSuspension
	err := s.inTx(ctx, func(r repos, box *outbox) error {
		found, err := r.suspension.FindByID(suspensionID)
		if err != nil {
			return notFound(err)
		}
		if found.StudentID != studentID {
			return util.ErrNotFound
		}
		now := s.now()
		if !found.IsActive() || !found.CanSubmitAppeal(now) {
			return util.ErrAppealNotAllowed
		}

		found.AppealSubmitted = true
		found.AppealText = strings.TrimSpace(text)
		found.AppealSubmittedAt = &now
		found.ReviewStatus = model.ReviewPending
		if err := r.suspension.Save(found); err != nil {
			return err
		}
		sus = found
		return nil
	})
	logTxError("SubmitAppeal", studentID, err)
	return sus, err
}

// ReviewAppeal 审核申诉。通过时恢复选课并为失败章节增加重修次数，章节保持 failed 以便重修。
func (s *ProgressionService) ReviewAppeal(ctx context.Context, reviewerID uint, suspensionID string, review AppealReview) (*model.StudentSuspension, error) {
	var sus *model.StudentSuspension
	err := s.inTx(ctx, func(r repos, box *outbox) error {
		found, err := r.suspension.FindByID(suspensionID)
		if err != nil {
			return notFound(err)
		}
		if !found.AppealSubmitted || found.ReviewStatus != model.ReviewPending || !found.IsActive() {
			return util.ErrAppealNotPending
		}

		now := s.now()
		found.ReviewedBy = &reviewerID
		found.ReviewedAt = &now
		found.ReviewNotes = strings.TrimSpace(review.Notes)

		if !review.Approve {
			found.ReviewStatus = model.ReviewDenied
			found.CanAppeal = false
			if err := r.suspension.Save(found); err != nil {
				return err
			}
			sus = found
			return nil
		}

		granted := review.AdditionalAttempts
		if granted <= 0 {
			granted = 1
		}
		found.ReviewStatus = model.ReviewApproved
		found.Reinstated = true
		found.ReinstatedAt = &now
		found.ActiveKey = nil
		found.AdditionalAttemptsGranted = granted
		if err := r.suspension.Save(found); err != nil {
			return err
		}

		if err := r.enrollment.UpdateStatus(found.EnrollmentID, model.EnrollmentActive); err != nil {
			return err
		}
		p, err := r.progress.FindModuleProgress(found.StudentID, found.FailedModuleID, found.EnrollmentID)
		if err != nil {
			return err
		}
		if p != nil {
			p.MaxAttempts += granted
			if err := r.progress.SaveModuleProgress(p); err != nil {
				return err
			}
		}
		sus = found
		return nil
	})
	logTxError("ReviewAppeal", reviewerID, err)
	if err == nil {
		decision := string(sus.ReviewStatus)
		monitoring.AppealDecisions.WithLabelValues(decision).Inc()
		logger.Log.Info("Appeal reviewed",
			zap.String("suspensionId", sus.ID),
			zap.Uint("reviewerId", reviewerID),
			zap.String("decision", decision))
		if s.Notifier != nil {
			s.Notifier.NotifyAppealDecision(sus)
		}
	}
	return sus, err
}

// CloseExpiredAppeals 申诉期结束后关闭申诉资格，由定时任务调用
func (s *ProgressionService) CloseExpiredAppeals(ctx context.Context) (int64, error) {
	n, err := s.SuspensionRepo.WithTx(s.DB.WithContext(ctx)).CloseExpiredAppeals(s.now())
	if err != nil {
		logger.Log.Error("Failed to close expired appeal windows", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		logger.Log.Info("Closed expired appeal windows", zap.Int64("count", n))
	}
	return n, nil
}
