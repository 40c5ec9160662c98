package scoring

import (
	"fmt"
	"strings"
)

const (
	RequirementReading      = "reading"
	RequirementQuiz         = "quiz"
	RequirementAssignment   = "assignment"
	RequirementOverallScore = "overall_score"
)

// Requirement 单项完成条件的检查结果
type Requirement struct {
	Name    string  `json:"name"`
	Met     bool    `json:"met"`
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
	Detail  string  `json:"detail"`
}

// GateResult 课时能否标记完成
type GateResult struct {
	CanComplete  bool          `json:"canComplete"`
	Reason       string        `json:"reason"`
	LessonScore  float64       `json:"lessonScore"`
	Requirements []Requirement `json:"requirements"`
}

// Unmet 未满足的条件名
func (g GateResult) Unmet() []string {
	var names []string
	for _, r := range g.Requirements {
		if !r.Met {
			names = append(names, r.Name)
		}
	}
	return names
}

// EvaluateLessonGate 依次检查阅读、测验、作业、总分四项条件。
// 课时分 ≥ minLessonScore 时可以替代阅读/参与度门槛。
func EvaluateLessonGate(in LessonInput, score LessonScore, minLessonScore float64) GateResult {
	reqs := make([]Requirement, 0, 4)

	readingMet := in.Reading >= ReadingThreshold && in.Engagement >= EngagementThreshold
	reading := Requirement{
		Name:    RequirementReading,
		Met:     readingMet || score.Score >= minLessonScore,
		Current: in.Reading,
		Target:  ReadingThreshold,
	}
	if reading.Met {
		reading.Detail = "Reading requirement met"
	} else {
		reading.Detail = fmt.Sprintf("Reading %.1f%% (need %.0f%%) and engagement %.1f%% (need %.0f%%)",
			in.Reading, ReadingThreshold, in.Engagement, EngagementThreshold)
	}
	reqs = append(reqs, reading)

	if in.Quiz != nil {
		q := Requirement{
			Name:    RequirementQuiz,
			Met:     in.Quiz.Passed(),
			Current: in.Quiz.BestPercentage,
			Target:  in.Quiz.passingScore(),
		}
		switch {
		case q.Met:
			q.Detail = "Quiz passed"
		case !in.Quiz.Attempted:
			q.Detail = fmt.Sprintf("Quiz not attempted (passing score %.0f%%)", q.Target)
		default:
			q.Detail = fmt.Sprintf("Quiz not passed: best score %.1f%% (required %.0f%%)", q.Current, q.Target)
		}
		reqs = append(reqs, q)
	}

	if in.Assignment != nil {
		a := Requirement{
			Name:    RequirementAssignment,
			Met:     in.Assignment.Passed(),
			Current: in.Assignment.Percentage,
			Target:  in.Assignment.passingScore(),
		}
		switch {
		case a.Met:
			a.Detail = "Assignment passed"
		case !in.Assignment.Submitted:
			a.Detail = "Assignment not submitted"
		case !in.Assignment.Graded:
			a.Detail = "Assignment awaiting grading"
		default:
			a.Detail = fmt.Sprintf("Assignment grade %.1f%% below required %.0f%%", a.Current, a.Target)
		}
		reqs = append(reqs, a)
	}

	overall := Requirement{
		Name:    RequirementOverallScore,
		Met:     score.Score >= minLessonScore,
		Current: score.Score,
		Target:  minLessonScore,
	}
	if overall.Met {
		overall.Detail = "Lesson score requirement met"
	} else {
		overall.Detail = fmt.Sprintf("Lesson score %.1f%% below required %.0f%%", score.Score, minLessonScore)
	}
	reqs = append(reqs, overall)

	res := GateResult{
		CanComplete:  true,
		LessonScore:  score.Score,
		Requirements: reqs,
	}
	var details []string
	for _, r := range reqs {
		if !r.Met {
			res.CanComplete = false
			details = append(details, r.Detail)
		}
	}
	if res.CanComplete {
		res.Reason = "All requirements met"
	} else {
		res.Reason = strings.Join(details, "; ")
	}
	return res
}
