package model

import (
	"time"

	"gorm.io/datatypes"
)

// Quiz 可挂在课时上，也可作为章节期末测验（ModuleID 有值且 LessonID 为空）
// swagger:model Quiz
type Quiz struct {
	BaseModel
	LessonID     *uint          `gorm:"index" json:"lessonId,omitempty"`
	ModuleID     *uint          `gorm:"index" json:"moduleId,omitempty"`
	Title        string         `gorm:"size:255;not null" json:"title"`
	PassingScore float64        `gorm:"default:70" json:"passingScore"`
	MaxAttempts  int            `gorm:"default:0" json:"maxAttempts"` // 0 表示不限次数
	IsPublished  bool           `gorm:"default:false" json:"isPublished"`
	Questions    []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// IsFinalAssessment 章节级期末测验
func (q *Quiz) IsFinalAssessment() bool {
	return q.ModuleID != nil && q.LessonID == nil
}

type QuizQuestion struct {
	BaseModel
	QuizID        uint           `gorm:"index;not null" json:"quizId"`
	Prompt        string         `gorm:"type:text;not null" json:"prompt"`
	Options       datatypes.JSON `json:"options"`
	CorrectOption int            `json:"-"`
	Points        int            `gorm:"default:1" json:"points"`
	Order         int            `gorm:"default:0" json:"order"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// QuizAttempt 每次作答一条记录
// swagger:model QuizAttempt
type QuizAttempt struct {
	RecordBase
	StudentID     uint           `gorm:"index:idx_quiz_attempt_student_quiz;not null" json:"studentId"`
	QuizID        uint           `gorm:"index:idx_quiz_attempt_student_quiz;not null" json:"quizId"`
	ModuleID      uint           `gorm:"index" json:"moduleId"`
	Answers       datatypes.JSON `json:"answers"`
	Score         int            `json:"score"`
	Total         int            `json:"total"`
	Percentage    float64        `json:"percentage"`
	Passed        bool           `json:"passed"`
	AttemptNumber int            `json:"attemptNumber"`
	SubmittedAt   time.Time      `json:"submittedAt"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// swagger:model Assignment
type Assignment struct {
	BaseModel
	LessonID       *uint   `gorm:"index" json:"lessonId,omitempty"`
	ModuleID       uint    `gorm:"index;not null" json:"moduleId"`
	Title          string  `gorm:"size:255;not null" json:"title"`
	Instructions   string  `gorm:"type:text" json:"instructions"`
	PointsPossible float64 `gorm:"default:100" json:"pointsPossible"`
}

func (Assignment) TableName() string {
	return "assignments"
}

// swagger:model AssignmentSubmission
type AssignmentSubmission struct {
	RecordBase
	StudentID    uint       `gorm:"index:idx_submission_student_assignment;not null" json:"studentId"`
	AssignmentID uint       `gorm:"index:idx_submission_student_assignment;not null" json:"assignmentId"`
	ModuleID     uint       `gorm:"index" json:"moduleId"`
	Content      string     `gorm:"type:text" json:"content"`
	FileURL      string     `gorm:"size:500" json:"fileUrl,omitempty"`
	Grade        *float64   `json:"grade,omitempty"`
	Graded       bool       `gorm:"default:false" json:"graded"`
	Feedback     string     `gorm:"type:text" json:"feedback,omitempty"`
	GradedBy     *uint      `json:"gradedBy,omitempty"`
	GradedAt     *time.Time `json:"gradedAt,omitempty"`
	SubmittedAt  time.Time  `json:"submittedAt"`
}

func (AssignmentSubmission) TableName() string {
	return "assignment_submissions"
}

// Percentage 已评分提交的得分率，未评分返回 0
func (s *AssignmentSubmission) Percentage(pointsPossible float64) float64 {
	if !s.Graded || s.Grade == nil || pointsPossible <= 0 {
		return 0
	}
	return *s.Grade / pointsPossible * 100
}
