package model

import (
	"fmt"
	"time"
)

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewDenied   ReviewStatus = "denied"
)

// StudentSuspension 章节重修次数用尽后创建
// swagger:model StudentSuspension
type StudentSuspension struct {
	UUIDBase
	StudentID         uint      `gorm:"index;not null" json:"studentId"`
	CourseID          uint      `gorm:"index;not null" json:"courseId"`
	EnrollmentID      uint      `gorm:"index;not null" json:"enrollmentId"`
	FailedModuleID    uint      `gorm:"not null" json:"failedModuleId"`
	TotalAttemptsMade int       `json:"totalAttemptsMade"`
	Reason            string    `gorm:"type:text" json:"reason"`
	SuspendedAt       time.Time `json:"suspendedAt"`

	// 只有未恢复的停学记录才填写，保证同一选课只有一条有效记录
	ActiveKey *string `gorm:"size:64;uniqueIndex" json:"-"`

	CanAppeal         bool         `gorm:"default:true" json:"canAppeal"`
	AppealDeadline    time.Time    `json:"appealDeadline"`
	AppealSubmitted   bool         `gorm:"default:false" json:"appealSubmitted"`
	AppealText        string       `gorm:"type:text" json:"appealText,omitempty"`
	AppealSubmittedAt *time.Time   `json:"appealSubmittedAt,omitempty"`
	ReviewStatus      ReviewStatus `gorm:"size:20" json:"reviewStatus,omitempty"`

	ReviewedBy                *uint      `json:"reviewedBy,omitempty"`
	ReviewedAt                *time.Time `json:"reviewedAt,omitempty"`
	ReviewNotes               string     `gorm:"type:text" json:"reviewNotes,omitempty"`
	Reinstated                bool       `gorm:"default:false" json:"reinstated"`
	ReinstatedAt              *time.Time `json:"reinstatedAt,omitempty"`
	AdditionalAttemptsGranted int        `gorm:"default:0" json:"additionalAttemptsGranted"`
}

func (StudentSuspension) TableName() string {
	return "student_suspensions"
}

func SuspensionActiveKey(studentID, courseID, enrollmentID uint) string {
	return fmt.Sprintf("%d:%d:%d", studentID, courseID, enrollmentID)
}

// IsActive 未恢复即为有效
func (s *StudentSuspension) IsActive() bool {
	return !s.Reinstated
}

// CanSubmitAppeal 申诉窗口内且尚未申诉
func (s *StudentSuspension) CanSubmitAppeal(now time.Time) bool {
	return s.CanAppeal && !s.AppealSubmitted && !now.After(s.AppealDeadline)
}
