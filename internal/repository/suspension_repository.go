package repository

import (
	"lms_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type SuspensionRepository struct {
	DB *gorm.DB
}

func NewSuspensionRepository(db *gorm.DB) *SuspensionRepository {
	return &SuspensionRepository{DB: db}
}

func (r *SuspensionRepository) WithTx(tx *gorm.DB) *SuspensionRepository {
	return &SuspensionRepository{DB: tx}
}

func (r *SuspensionRepository) Create(s *model.StudentSuspension) error {
	return r.DB.Create(s).Error
}

func (r *SuspensionRepository) FindByID(id string) (*model.StudentSuspension, error) {
	var s model.StudentSuspension
	err := r.DB.Where("id = ?", id).First(&s).Error
	return &s, err
}

// FindActive 选课下未恢复的停学记录，没有返回 nil
func (r *SuspensionRepository) FindActive(studentID, courseID, enrollmentID uint) (*model.StudentSuspension, error) {
	var list []model.StudentSuspension
	err := r.DB.Where("student_id = ? AND course_id = ? AND enrollment_id = ? AND reinstated = ?",
		studentID, courseID, enrollmentID, false).
		Order("suspended_at DESC").Limit(1).
		Find(&list).Error
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (r *SuspensionRepository) ListByStudent(studentID uint) ([]model.StudentSuspension, error) {
	var list []model.StudentSuspension
	err := r.DB.Where("student_id = ?", studentID).Order("suspended_at DESC").Find(&list).Error
	return list, err
}

// ListPendingAppeals 待审核申诉，先提交先处理
func (r *SuspensionRepository) ListPendingAppeals(page, limit int) ([]model.StudentSuspension, int64, error) {
	var list []model.StudentSuspension
	var total int64
	q := r.DB.Model(&model.StudentSuspension{}).
		Where("appeal_submitted = ? AND review_status = ?", true, model.ReviewPending)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("appeal_submitted_at ASC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&list).Error
	return list, total, err
}

func (r *SuspensionRepository) Save(s *model.StudentSuspension) error {
	return r.DB.Save(s).Error
}

// CloseExpiredAppeals 申诉期已过且未申诉的记录关闭申诉资格
func (r *SuspensionRepository) CloseExpiredAppeals(now time.Time) (int64, error) {
	res := r.DB.Model(&model.StudentSuspension{}).
		Where("can_appeal = ? AND appeal_submitted = ? AND reinstated = ? AND appeal_deadline < ?",
			true, false, false, now).
		Update("can_appeal", false)
	return res.RowsAffected, res.Error
}
