package scoring

import "time"

// Policy 可通过配置调整的通过线与次数限制
type Policy struct {
	ModulePassingScore     float64
	LessonPassingScore     float64
	AssignmentPassingScore float64
	DefaultMaxAttempts     int
	AppealWindow           time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		ModulePassingScore:     80,
		LessonPassingScore:     80,
		AssignmentPassingScore: AssignmentPassingScore,
		DefaultMaxAttempts:     3,
		AppealWindow:           30 * 24 * time.Hour,
	}
}

// Normalize 未设置的字段回落到默认值
func (p Policy) Normalize() Policy {
	d := DefaultPolicy()
	if p.ModulePassingScore <= 0 {
		p.ModulePassingScore = d.ModulePassingScore
	}
	if p.LessonPassingScore <= 0 {
		p.LessonPassingScore = d.LessonPassingScore
	}
	if p.AssignmentPassingScore <= 0 {
		p.AssignmentPassingScore = d.AssignmentPassingScore
	}
	if p.DefaultMaxAttempts <= 0 {
		p.DefaultMaxAttempts = d.DefaultMaxAttempts
	}
	if p.AppealWindow <= 0 {
		p.AppealWindow = d.AppealWindow
	}
	return p
}
