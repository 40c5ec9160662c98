package service

import (
	"context"
	"io"
	"lms_backend/internal/model"
	"lms_backend/internal/scoring"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"strings"

	"go.uber.org/zap"
)

// FileUpload 上传的文件，读取 MIME 后需要回到开头
type FileUpload struct {
	Filename string
	Size     int64
	Reader   io.ReadSeeker
}

// SubmissionGrade 评分请求
type SubmissionGrade struct {
	Grade    float64 `json:"grade"`
	Feedback string  `json:"feedback"`
}

// GradeResult 评分后的提交与课时分
type GradeResult struct {
	Submission  *model.AssignmentSubmission `json:"submission"`
	Percentage  float64                     `json:"percentage"`
	Passed      bool                        `json:"passed"`
	LessonScore *scoring.LessonScore        `json:"lessonScore,omitempty"`
}

type AssignmentService struct {
	Progression *ProgressionService
	Storage     *StorageService
	Notifier    *NotificationService
}

func NewAssignmentService(progression *ProgressionService, storage *StorageService, notifier *NotificationService) *AssignmentService {
	return &AssignmentService{Progression: progression, Storage: storage, Notifier: notifier}
}

// storeAttachment 校验类型后写入对象存储，返回访问地址与对象名
func (s *AssignmentService) storeAttachment(ctx context.Context, studentID, assignmentID uint, file *FileUpload) (string, string, error) {
	if file.Size > util.MaxSubmissionSize {
		return "", "", util.ErrFileTooLarge
	}
	mimeType, err := util.ValidateMimeType(file.Reader, util.AllowedSubmissionTypes)
	if err != nil {
		return "", "", util.ErrInvalidFileType
	}
	if _, err := file.Reader.Seek(0, io.SeekStart); err != nil {
		return "", "", err
	}

	key := SubmissionKey(studentID, assignmentID, file.Filename)
	url, err := s.Storage.Put(ctx, key, file.Reader, file.Size, mimeType)
	if err != nil {
		return "", "", err
	}
	return url, key, nil
}

// Submit 提交作业，附件先写存储，事务失败时删除
func (s *AssignmentService) Submit(ctx context.Context, studentID, assignmentID uint, content string, file *FileUpload) (*model.AssignmentSubmission, error) {
	content = strings.TrimSpace(content)
	if content == "" && file == nil {
		return nil, util.ErrEmptySubmission
	}

	p := s.Progression
	assignment, err := p.AssignmentRepo.WithTx(p.DB.WithContext(ctx)).FindByID(assignmentID)
	if err != nil {
		return nil, notFound(err)
	}

	var fileURL, objectKey string
	if file != nil {
		fileURL, objectKey, err = s.storeAttachment(ctx, studentID, assignmentID, file)
		if err != nil {
			return nil, err
		}
	}

	var submission *model.AssignmentSubmission
	err = p.inTx(ctx, func(r repos, box *outbox) error {
		scope, err := p.moduleScope(r, studentID, assignment.ModuleID)
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

		submission = &model.AssignmentSubmission{
			StudentID:    studentID,
			AssignmentID: assignmentID,
			ModuleID:     assignment.ModuleID,
			Content:      content,
			FileURL:      fileURL,
			SubmittedAt:  p.now(),
		}
		if err := r.assignment.CreateSubmission(submission); err != nil {
			return err
		}

		if assignment.LessonID != nil {
			lesson, err := r.course.FindLesson(*assignment.LessonID)
			if err != nil {
				return notFound(err)
			}
			if _, _, err := p.refreshLessonScore(r, studentID, lesson); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil && objectKey != "" {
		if rmErr := s.Storage.Remove(ctx, objectKey); rmErr != nil {
			logger.Log.Warn("Failed to remove orphaned submission file",
				zap.String("key", objectKey),
				zap.Error(rmErr))
		}
	}
	logTxError("SubmitAssignment", studentID, err)
	return submission, err
}

// Grade 评分并刷新课时分；可重复评分，分数变化会通知学生
func (s *AssignmentService) Grade(ctx context.Context, graderID, submissionID uint, req SubmissionGrade) (*GradeResult, error) {
	p := s.Progression
	var result *GradeResult
	var assignment *model.Assignment
	err := p.inTx(ctx, func(r repos, box *outbox) error {
		submission, err := r.assignment.FindSubmission(submissionID)
		if err != nil {
			return notFound(err)
		}
		assignment, err = r.assignment.FindByID(submission.AssignmentID)
		if err != nil {
			return notFound(err)
		}
		if req.Grade < 0 || req.Grade > assignment.PointsPossible {
			return util.ErrInvalidGrade
		}

		now := p.now()
		grade := req.Grade
		submission.Grade = &grade
		submission.Graded = true
		submission.Feedback = strings.TrimSpace(req.Feedback)
		submission.GradedBy = &graderID
		submission.GradedAt = &now
		if err := r.assignment.SaveSubmission(submission); err != nil {
			return err
		}

		pct := submission.Percentage(assignment.PointsPossible)
		result = &GradeResult{
			Submission: submission,
			Percentage: pct,
			Passed:     pct >= p.Policy().AssignmentPassingScore,
		}

		if assignment.LessonID != nil {
			lesson, err := r.course.FindLesson(*assignment.LessonID)
			if err != nil {
				return notFound(err)
			}
			_, ls, err := p.refreshLessonScore(r, submission.StudentID, lesson)
			if err != nil {
				return err
			}
			result.LessonScore = &ls
		}
		return nil
	})
	logTxError("GradeSubmission", graderID, err)
	if err == nil && s.Notifier != nil {
		s.Notifier.NotifyGrade(result.Submission, assignment, result.Percentage)
	}
	return result, err
}

// ListUngraded 待评分列表
func (s *AssignmentService) ListUngraded(ctx context.Context, moduleID uint, limit int) ([]model.AssignmentSubmission, error) {
	p := s.Progression
	return p.AssignmentRepo.WithTx(p.DB.WithContext(ctx)).ListUngraded(moduleID, limit)
}
