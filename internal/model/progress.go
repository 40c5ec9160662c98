package model

import (
	"time"
)

// LessonCompletion 每个 (学生, 课时) 唯一一条
// swagger:model LessonCompletion
type LessonCompletion struct {
	RecordBase
	StudentID       uint       `gorm:"uniqueIndex:idx_lesson_completion_student_lesson;not null" json:"studentId"`
	LessonID        uint       `gorm:"uniqueIndex:idx_lesson_completion_student_lesson;not null" json:"lessonId"`
	ModuleID        uint       `gorm:"index" json:"moduleId"`
	ReadingProgress float64    `gorm:"default:0" json:"readingProgress"`
	EngagementScore float64    `gorm:"default:0" json:"engagementScore"`
	VideoProgress   float64    `gorm:"default:0" json:"videoProgress"`
	ScrollProgress  float64    `gorm:"default:0" json:"scrollProgress"`
	TimeSpent       int        `gorm:"default:0" json:"timeSpent"` // 秒
	Completed       bool       `gorm:"default:false" json:"completed"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`

	// 缓存的分项得分
	ReadingComponent    float64    `gorm:"default:0" json:"readingComponent"`
	EngagementComponent float64    `gorm:"default:0" json:"engagementComponent"`
	QuizComponent       float64    `gorm:"default:0" json:"quizComponent"`
	AssignmentComponent float64    `gorm:"default:0" json:"assignmentComponent"`
	LessonScore         float64    `gorm:"default:0" json:"lessonScore"`
	ScoreLastUpdated    *time.Time `json:"scoreLastUpdated,omitempty"`

	Version int `gorm:"default:0;not null" json:"-"`
}

func (LessonCompletion) TableName() string {
	return "lesson_completions"
}

type ModuleStatus string

const (
	ModuleLocked     ModuleStatus = "locked"
	ModuleUnlocked   ModuleStatus = "unlocked"
	ModuleInProgress ModuleStatus = "in_progress"
	ModuleCompleted  ModuleStatus = "completed"
	ModuleFailed     ModuleStatus = "failed"
)

// ModuleProgress 每个 (学生, 章节, 选课) 唯一一条
// swagger:model ModuleProgress
type ModuleProgress struct {
	RecordBase
	StudentID    uint `gorm:"uniqueIndex:idx_module_progress_student_module;not null" json:"studentId"`
	ModuleID     uint `gorm:"uniqueIndex:idx_module_progress_student_module;not null" json:"moduleId"`
	EnrollmentID uint `gorm:"uniqueIndex:idx_module_progress_student_module;not null" json:"enrollmentId"`

	CourseContributionScore float64 `gorm:"default:0" json:"courseContributionScore"`
	QuizScore               float64 `gorm:"default:0" json:"quizScore"`
	AssignmentScore         float64 `gorm:"default:0" json:"assignmentScore"`
	FinalAssessmentScore    float64 `gorm:"default:0" json:"finalAssessmentScore"`
	CumulativeScore         float64 `gorm:"default:0" json:"cumulativeScore"`

	Status        ModuleStatus `gorm:"size:20;default:'locked'" json:"status"`
	AttemptsCount int          `gorm:"default:0" json:"attemptsCount"`
	MaxAttempts   int          `gorm:"default:3" json:"maxAttempts"`
	StartedAt     *time.Time   `json:"startedAt,omitempty"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty"`
	FailedAt      *time.Time   `json:"failedAt,omitempty"`
	UnlockedAt    *time.Time   `json:"unlockedAt,omitempty"`

	Version int `gorm:"default:0;not null" json:"-"`
}

func (ModuleProgress) TableName() string {
	return "module_progress"
}

// IsAccessible 可以继续学习的状态
func (p *ModuleProgress) IsAccessible() bool {
	return p.Status == ModuleUnlocked || p.Status == ModuleInProgress
}

// RemainingAttempts 剩余可用次数
func (p *ModuleProgress) RemainingAttempts() int {
	if p.MaxAttempts <= p.AttemptsCount {
		return 0
	}
	return p.MaxAttempts - p.AttemptsCount
}

// ResetScores 清空四项分数和累计分
func (p *ModuleProgress) ResetScores() {
	p.CourseContributionScore = 0
	p.QuizScore = 0
	p.AssignmentScore = 0
	p.FinalAssessmentScore = 0
	p.CumulativeScore = 0
}
