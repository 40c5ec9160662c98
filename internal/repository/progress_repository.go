package repository

import (
	"lms_backend/internal/model"
	"lms_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressRepository 课时完成记录与章节进度
type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) WithTx(tx *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: tx}
}

// FindLessonCompletion 不存在时返回 nil
func (r *ProgressRepository) FindLessonCompletion(studentID, lessonID uint) (*model.LessonCompletion, error) {
	var list []model.LessonCompletion
	err := r.DB.Where("student_id = ? AND lesson_id = ?", studentID, lessonID).
		Limit(1).Find(&list).Error
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// GetOrCreateLessonCompletion 并发插入撞唯一索引时回读已有记录，冲突不中断事务
func (r *ProgressRepository) GetOrCreateLessonCompletion(studentID, lessonID, moduleID uint) (*model.LessonCompletion, error) {
	lc, err := r.FindLessonCompletion(studentID, lessonID)
	if err != nil || lc != nil {
		return lc, err
	}

	lc = &model.LessonCompletion{StudentID: studentID, LessonID: lessonID, ModuleID: moduleID}
	res := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(lc)
	if res.Error != nil && !util.IsUniqueViolation(res.Error) {
		return nil, res.Error
	}
	if res.Error != nil || res.RowsAffected == 0 {
		return r.FindLessonCompletion(studentID, lessonID)
	}
	return lc, nil
}

// SaveLessonCompletion 带版本号的更新，版本不符返回 ErrConcurrentUpdate
func (r *ProgressRepository) SaveLessonCompletion(lc *model.LessonCompletion) error {
	prev := lc.Version
	lc.Version++
	res := r.DB.Model(lc).
		Where("version = ?", prev).
		Select("*").Omit("id", "created_at").
		Updates(lc)
	if res.Error != nil {
		lc.Version = prev
		return res.Error
	}
	if res.RowsAffected == 0 {
		lc.Version = prev
		return util.ErrConcurrentUpdate
	}
	return nil
}

func (r *ProgressRepository) ListLessonCompletionsByModule(studentID, moduleID uint) ([]model.LessonCompletion, error) {
	var list []model.LessonCompletion
	err := r.DB.Where("student_id = ? AND module_id = ?", studentID, moduleID).
		Order("lesson_id ASC").
		Find(&list).Error
	return list, err
}

func (r *ProgressRepository) CountLessonCompletionsByModule(studentID, moduleID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.LessonCompletion{}).
		Where("student_id = ? AND module_id = ?", studentID, moduleID).
		Count(&count).Error
	return count, err
}

func (r *ProgressRepository) CountCompletedLessons(studentID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.LessonCompletion{}).
		Where("student_id = ? AND completed = ?", studentID, true).
		Count(&count).Error
	return count, err
}

func (r *ProgressRepository) DeleteLessonCompletionsForModule(studentID, moduleID uint) (int64, error) {
	res := r.DB.Where("student_id = ? AND module_id = ?", studentID, moduleID).
		Delete(&model.LessonCompletion{})
	return res.RowsAffected, res.Error
}

// FindModuleProgress 不存在时返回 nil
func (r *ProgressRepository) FindModuleProgress(studentID, moduleID, enrollmentID uint) (*model.ModuleProgress, error) {
	var list []model.ModuleProgress
	err := r.DB.Where("student_id = ? AND module_id = ? AND enrollment_id = ?", studentID, moduleID, enrollmentID).
		Limit(1).Find(&list).Error
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// CreateModuleProgress 撞唯一索引时返回已存在的记录
func (r *ProgressRepository) CreateModuleProgress(p *model.ModuleProgress) (*model.ModuleProgress, error) {
	res := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(p)
	if res.Error != nil && !util.IsUniqueViolation(res.Error) {
		return nil, res.Error
	}
	if res.Error != nil || res.RowsAffected == 0 {
		return r.FindModuleProgress(p.StudentID, p.ModuleID, p.EnrollmentID)
	}
	return p, nil
}

// SaveModuleProgress 带版本号的更新，版本不符返回 ErrConcurrentUpdate
func (r *ProgressRepository) SaveModuleProgress(p *model.ModuleProgress) error {
	prev := p.Version
	p.Version++
	res := r.DB.Model(p).
		Where("version = ?", prev).
		Select("*").Omit("id", "created_at").
		Updates(p)
	if res.Error != nil {
		p.Version = prev
		return res.Error
	}
	if res.RowsAffected == 0 {
		p.Version = prev
		return util.ErrConcurrentUpdate
	}
	return nil
}

func (r *ProgressRepository) ListModuleProgressByEnrollment(enrollmentID uint) ([]model.ModuleProgress, error) {
	var list []model.ModuleProgress
	err := r.DB.Where("enrollment_id = ?", enrollmentID).Find(&list).Error
	return list, err
}

func (r *ProgressRepository) CountModulesCompleted(studentID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.ModuleProgress{}).
		Where("student_id = ? AND status = ?", studentID, model.ModuleCompleted).
		Count(&count).Error
	return count, err
}
