package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) WithTx(tx *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: tx}
}

func (r *QuizRepository) Create(quiz *model.Quiz) error {
	return r.DB.Create(quiz).Error
}

func (r *QuizRepository) FindByID(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.First(&quiz, id).Error
	return &quiz, err
}

// FindWithQuestions 预加载题目，按 order 排序
func (r *QuizRepository) FindWithQuestions(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order(orderColumn).Order("id ASC")
	}).First(&quiz, id).Error
	return &quiz, err
}

// FindPublishedByLesson 课时上已发布的测验，没有返回 nil
func (r *QuizRepository) FindPublishedByLesson(lessonID uint) (*model.Quiz, error) {
	var quizzes []model.Quiz
	err := r.DB.Where("lesson_id = ? AND is_published = ?", lessonID, true).
		Order("id ASC").Limit(1).
		Find(&quizzes).Error
	if err != nil || len(quizzes) == 0 {
		return nil, err
	}
	return &quizzes[0], nil
}

// FindFinalByModule 章节期末测验：module_id 有值且不挂课时
func (r *QuizRepository) FindFinalByModule(moduleID uint) (*model.Quiz, error) {
	var quizzes []model.Quiz
	err := r.DB.Where("module_id = ? AND lesson_id IS NULL AND is_published = ?", moduleID, true).
		Order("id ASC").Limit(1).
		Find(&quizzes).Error
	if err != nil || len(quizzes) == 0 {
		return nil, err
	}
	return &quizzes[0], nil
}

// ListLessonQuizzesByModule 章节内各课时已发布的测验
func (r *QuizRepository) ListLessonQuizzesByModule(moduleID uint) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := r.DB.Joins("JOIN lessons ON lessons.id = quizzes.lesson_id AND lessons.deleted_at IS NULL").
		Where("lessons.module_id = ? AND quizzes.is_published = ?", moduleID, true).
		Order("quizzes.id ASC").
		Find(&quizzes).Error
	return quizzes, err
}

func (r *QuizRepository) SetPublished(id uint, published bool) error {
	return r.DB.Model(&model.Quiz{}).Where("id = ?", id).Update("is_published", published).Error
}

func (r *QuizRepository) CreateQuestion(q *model.QuizQuestion) error {
	return r.DB.Create(q).Error
}

func (r *QuizRepository) CountAttempts(studentID, quizID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("student_id = ? AND quiz_id = ?", studentID, quizID).
		Count(&count).Error
	return count, err
}

func (r *QuizRepository) CreateAttempt(attempt *model.QuizAttempt) error {
	return r.DB.Create(attempt).Error
}

// BestAttempt 最高得分率的作答，未作答返回 nil
func (r *QuizRepository) BestAttempt(studentID, quizID uint) (*model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("student_id = ? AND quiz_id = ?", studentID, quizID).
		Order("percentage DESC").Order("id ASC").Limit(1).
		Find(&attempts).Error
	if err != nil || len(attempts) == 0 {
		return nil, err
	}
	return &attempts[0], nil
}

func (r *QuizRepository) ListAttempts(studentID, quizID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("student_id = ? AND quiz_id = ?", studentID, quizID).
		Order("attempt_number ASC").
		Find(&attempts).Error
	return attempts, err
}

func (r *QuizRepository) DeleteAttemptsForModule(studentID, moduleID uint) (int64, error) {
	res := r.DB.Where("student_id = ? AND module_id = ?", studentID, moduleID).
		Delete(&model.QuizAttempt{})
	return res.RowsAffected, res.Error
}

type AssignmentRepository struct {
	DB *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{DB: db}
}

func (r *AssignmentRepository) WithTx(tx *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{DB: tx}
}

func (r *AssignmentRepository) Create(a *model.Assignment) error {
	return r.DB.Create(a).Error
}

func (r *AssignmentRepository) FindByID(id uint) (*model.Assignment, error) {
	var a model.Assignment
	err := r.DB.First(&a, id).Error
	return &a, err
}

// FindByLesson 课时作业，没有返回 nil
func (r *AssignmentRepository) FindByLesson(lessonID uint) (*model.Assignment, error) {
	var list []model.Assignment
	err := r.DB.Where("lesson_id = ?", lessonID).Order("id ASC").Limit(1).Find(&list).Error
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (r *AssignmentRepository) ListByModule(moduleID uint) ([]model.Assignment, error) {
	var list []model.Assignment
	err := r.DB.Where("module_id = ?", moduleID).Order("id ASC").Find(&list).Error
	return list, err
}

func (r *AssignmentRepository) CreateSubmission(s *model.AssignmentSubmission) error {
	return r.DB.Create(s).Error
}

func (r *AssignmentRepository) FindSubmission(id uint) (*model.AssignmentSubmission, error) {
	var s model.AssignmentSubmission
	err := r.DB.First(&s, id).Error
	return &s, err
}

func (r *AssignmentRepository) SaveSubmission(s *model.AssignmentSubmission) error {
	return r.DB.Save(s).Error
}

// LatestSubmission 最近一次提交，没有返回 nil
func (r *AssignmentRepository) LatestSubmission(studentID, assignmentID uint) (*model.AssignmentSubmission, error) {
	var list []model.AssignmentSubmission
	err := r.DB.Where("student_id = ? AND assignment_id = ?", studentID, assignmentID).
		Order("submitted_at DESC").Order("id DESC").Limit(1).
		Find(&list).Error
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// BestGradedSubmission 已评分中分数最高的一次
func (r *AssignmentRepository) BestGradedSubmission(studentID, assignmentID uint) (*model.AssignmentSubmission, error) {
	var list []model.AssignmentSubmission
	err := r.DB.Where("student_id = ? AND assignment_id = ? AND graded = ?", studentID, assignmentID, true).
		Order("grade DESC").Order("id ASC").Limit(1).
		Find(&list).Error
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// ListUngraded 待评分提交，按提交时间先后
func (r *AssignmentRepository) ListUngraded(moduleID uint, limit int) ([]model.AssignmentSubmission, error) {
	var list []model.AssignmentSubmission
	q := r.DB.Where("graded = ?", false)
	if moduleID != 0 {
		q = q.Where("module_id = ?", moduleID)
	}
	err := q.Order("submitted_at ASC").Limit(limit).Find(&list).Error
	return list, err
}

func (r *AssignmentRepository) DeleteSubmissionsForModule(studentID, moduleID uint) (int64, error) {
	res := r.DB.Where("student_id = ? AND module_id = ?", studentID, moduleID).
		Delete(&model.AssignmentSubmission{})
	return res.RowsAffected, res.Error
}
