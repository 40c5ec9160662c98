package service

import (
	"context"
	"encoding/json"
	"io"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ContentService 教师端课程编排
type ContentService struct {
	DB             *gorm.DB
	CourseRepo     *repository.CourseRepository
	QuizRepo       *repository.QuizRepository
	AssignmentRepo *repository.AssignmentRepository
	Storage        *StorageService
	Prober         util.VideoProber
}

func NewContentService(db *gorm.DB, storage *StorageService) *ContentService {
	return &ContentService{
		DB:             db,
		CourseRepo:     repository.NewCourseRepository(db),
		QuizRepo:       repository.NewQuizRepository(db),
		AssignmentRepo: repository.NewAssignmentRepository(db),
		Storage:        storage,
		Prober:         util.GetVideoInfo,
	}
}

type CourseRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description"`
	IsPublished bool   `json:"isPublished"`
}

type ModuleRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description"`
	Order       int    `json:"order"`
	MaxAttempts int    `json:"maxAttempts" binding:"omitempty,min=1"`
}

type LessonRequest struct {
	Title   string `json:"title" binding:"required,max=255"`
	Content string `json:"content"`
	Order   int    `json:"order"`
}

type QuestionRequest struct {
	Prompt        string   `json:"prompt" binding:"required"`
	Options       []string `json:"options" binding:"required,min=2"`
	CorrectOption int      `json:"correctOption" binding:"min=0"`
	Points        int      `json:"points"`
}

// QuizRequest LessonID 与 ModuleID 二选一，只给 ModuleID 时为章节期末测验
type QuizRequest struct {
	LessonID     *uint             `json:"lessonId"`
	ModuleID     *uint             `json:"moduleId"`
	Title        string            `json:"title" binding:"required,max=255"`
	PassingScore float64           `json:"passingScore" binding:"omitempty,min=0,max=100"`
	MaxAttempts  int               `json:"maxAttempts" binding:"min=0"`
	IsPublished  bool              `json:"isPublished"`
	Questions    []QuestionRequest `json:"questions" binding:"dive"`
}

type AssignmentRequest struct {
	LessonID       *uint   `json:"lessonId"`
	ModuleID       uint    `json:"moduleId"`
	Title          string  `json:"title" binding:"required,max=255"`
	Instructions   string  `json:"instructions"`
	PointsPossible float64 `json:"pointsPossible" binding:"omitempty,gt=0"`
}

type CourseListResult struct {
	Courses []model.Course `json:"courses"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
}

func (s *ContentService) repo(ctx context.Context) *repository.CourseRepository {
	return s.CourseRepo.WithTx(s.DB.WithContext(ctx))
}

func (s *ContentService) ListCourses(ctx context.Context, page, limit int) (*CourseListResult, error) {
	courses, total, err := s.repo(ctx).ListPublishedCourses(page, limit)
	if err != nil {
		return nil, err
	}
	return &CourseListResult{Courses: courses, Total: total, Page: page, Limit: limit}, nil
}

// GetCourseOutline 未发布课程只对教师可见
func (s *ContentService) GetCourseOutline(ctx context.Context, courseID uint, includeDrafts bool) (*model.Course, error) {
	course, err := s.repo(ctx).FindCourseOutline(courseID)
	if err != nil {
		return nil, notFound(err)
	}
	if !course.IsPublished && !includeDrafts {
		return nil, util.ErrNotFound
	}
	return course, nil
}

func (s *ContentService) CreateCourse(ctx context.Context, req CourseRequest) (*model.Course, error) {
	course := &model.Course{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		IsPublished: req.IsPublished,
	}
	if err := s.repo(ctx).CreateCourse(course); err != nil {
		return nil, err
	}
	logger.Log.Info("Course created", zap.Uint("courseId", course.ID))
	return course, nil
}

func (s *ContentService) PublishCourse(ctx context.Context, courseID uint, published bool) error {
	r := s.repo(ctx)
	if _, err := r.FindCourse(courseID); err != nil {
		return notFound(err)
	}
	return r.SetCoursePublished(courseID, published)
}

func (s *ContentService) CreateModule(ctx context.Context, courseID uint, req ModuleRequest) (*model.Module, error) {
	r := s.repo(ctx)
	if _, err := r.FindCourse(courseID); err != nil {
		return nil, notFound(err)
	}
	module := &model.Module{
		CourseID:    courseID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Order:       req.Order,
		MaxAttempts: req.MaxAttempts,
	}
	if err := r.CreateModule(module); err != nil {
		return nil, err
	}
	return module, nil
}

func (s *ContentService) CreateLesson(ctx context.Context, moduleID uint, req LessonRequest) (*model.Lesson, error) {
	r := s.repo(ctx)
	if _, err := r.FindModule(moduleID); err != nil {
		return nil, notFound(err)
	}
	lesson := &model.Lesson{
		ModuleID: moduleID,
		Title:    strings.TrimSpace(req.Title),
		Content:  req.Content,
		Order:    req.Order,
	}
	if err := r.CreateLesson(lesson); err != nil {
		return nil, err
	}
	return lesson, nil
}

// CreateQuiz 测验与题目在同一事务内创建
func (s *ContentService) CreateQuiz(ctx context.Context, req QuizRequest) (*model.Quiz, error) {
	if (req.LessonID == nil) == (req.ModuleID == nil) {
		return nil, util.ErrInvalidQuizScope
	}
	quiz := &model.Quiz{
		LessonID:     req.LessonID,
		ModuleID:     req.ModuleID,
		Title:        strings.TrimSpace(req.Title),
		PassingScore: req.PassingScore,
		MaxAttempts:  req.MaxAttempts,
		IsPublished:  req.IsPublished,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		courses := s.CourseRepo.WithTx(tx)
		quizzes := s.QuizRepo.WithTx(tx)
		if req.LessonID != nil {
			if _, err := courses.FindLesson(*req.LessonID); err != nil {
				return notFound(err)
			}
		} else if _, err := courses.FindModule(*req.ModuleID); err != nil {
			return notFound(err)
		}
		if err := quizzes.Create(quiz); err != nil {
			return err
		}
		for i, qr := range req.Questions {
			if qr.CorrectOption >= len(qr.Options) {
				return util.ErrInvalidQuestion
			}
			options, err := json.Marshal(qr.Options)
			if err != nil {
				return err
			}
			q := model.QuizQuestion{
				QuizID:        quiz.ID,
				Prompt:        qr.Prompt,
				Options:       datatypes.JSON(options),
				CorrectOption: qr.CorrectOption,
				Points:        qr.Points,
				Order:         i + 1,
			}
			if q.Points <= 0 {
				q.Points = 1
			}
			if err := quizzes.CreateQuestion(&q); err != nil {
				return err
			}
			quiz.Questions = append(quiz.Questions, q)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *ContentService) PublishQuiz(ctx context.Context, quizID uint, published bool) error {
	r := s.QuizRepo.WithTx(s.DB.WithContext(ctx))
	if _, err := r.FindByID(quizID); err != nil {
		return notFound(err)
	}
	return r.SetPublished(quizID, published)
}

// CreateAssignment 挂在课时上时 ModuleID 取课时所在章节
func (s *ContentService) CreateAssignment(ctx context.Context, req AssignmentRequest) (*model.Assignment, error) {
	r := s.repo(ctx)
	moduleID := req.ModuleID
	if req.LessonID != nil {
		lesson, err := r.FindLesson(*req.LessonID)
		if err != nil {
			return nil, notFound(err)
		}
		moduleID = lesson.ModuleID
	}
	if moduleID == 0 {
		return nil, util.ErrNotFound
	}
	if _, err := r.FindModule(moduleID); err != nil {
		return nil, notFound(err)
	}

	a := &model.Assignment{
		LessonID:       req.LessonID,
		ModuleID:       moduleID,
		Title:          strings.TrimSpace(req.Title),
		Instructions:   req.Instructions,
		PointsPossible: req.PointsPossible,
	}
	if a.PointsPossible <= 0 {
		a.PointsPossible = 100
	}
	if err := s.AssignmentRepo.WithTx(s.DB.WithContext(ctx)).Create(a); err != nil {
		return nil, err
	}
	return a, nil
}

// AttachLessonVideo 上传课时视频并用 ffprobe 读取时长，时长用于视频观看进度
func (s *ContentService) AttachLessonVideo(ctx context.Context, lessonID uint, file *FileUpload) (*model.Lesson, error) {
	r := s.repo(ctx)
	lesson, err := r.FindLesson(lessonID)
	if err != nil {
		return nil, notFound(err)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !containsString(util.AllowedVideoExtensions, ext) {
		return nil, util.ErrInvalidFileType
	}
	// 部分容器格式识别为 octet-stream，扩展名已校验
	mimeType, err := util.ValidateMimeType(file.Reader, []string{util.MimeVideo, util.MimeOctetStream})
	if err != nil {
		return nil, util.ErrInvalidFileType
	}
	if _, err := file.Reader.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	key := LessonVideoKey(lessonID, file.Filename)
	url, err := s.Storage.Put(ctx, key, file.Reader, file.Size, mimeType)
	if err != nil {
		return nil, err
	}

	duration := 0.0
	if s.Prober != nil {
		info, err := s.Prober(s.Storage.ProbeSource(key))
		if err != nil {
			// 时长读取失败不影响上传
			logger.Log.Warn("Failed to probe lesson video",
				zap.Uint("lessonId", lessonID),
				zap.Error(err))
		} else {
			duration = info.Duration
		}
	}

	if err := r.UpdateLessonVideo(lessonID, url, duration); err != nil {
		return nil, err
	}
	lesson.VideoURL = url
	lesson.VideoDurationSeconds = duration
	return lesson, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
