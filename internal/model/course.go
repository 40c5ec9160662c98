package model

import (
	"time"
)

// swagger:model Course
type Course struct {
	BaseModel
	Title       string   `gorm:"size:255;not null" json:"title"`
	Description string   `gorm:"type:text" json:"description"`
	IsPublished bool     `gorm:"default:false" json:"isPublished"`
	Modules     []Module `gorm:"foreignKey:CourseID" json:"modules,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// Module 课程内按顺序排列的章节，是解锁/锁定的基本单位
// swagger:model Module
type Module struct {
	BaseModel
	CourseID    uint     `gorm:"index;not null" json:"courseId"`
	Title       string   `gorm:"size:255;not null" json:"title"`
	Description string   `gorm:"type:text" json:"description"`
	Order       int      `gorm:"default:0" json:"order"`
	MaxAttempts int      `gorm:"default:3" json:"maxAttempts"`
	Lessons     []Lesson `gorm:"foreignKey:ModuleID" json:"lessons,omitempty"`
}

func (Module) TableName() string {
	return "modules"
}

// swagger:model Lesson
type Lesson struct {
	BaseModel
	ModuleID             uint    `gorm:"index;not null" json:"moduleId"`
	Title                string  `gorm:"size:255;not null" json:"title"`
	Content              string  `gorm:"type:text" json:"content,omitempty"`
	Order                int     `gorm:"default:0" json:"order"`
	VideoURL             string  `gorm:"size:500" json:"videoUrl,omitempty"`
	VideoDurationSeconds float64 `gorm:"default:0" json:"videoDurationSeconds"`
}

func (Lesson) TableName() string {
	return "lessons"
}

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentSuspended EnrollmentStatus = "suspended"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

// swagger:model Enrollment
type Enrollment struct {
	BaseModel
	StudentID   uint             `gorm:"uniqueIndex:idx_enrollment_student_course;not null" json:"studentId"`
	CourseID    uint             `gorm:"uniqueIndex:idx_enrollment_student_course;not null" json:"courseId"`
	Status      EnrollmentStatus `gorm:"size:20;default:'active'" json:"status"`
	EnrolledAt  time.Time        `json:"enrolledAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
