// Package scoring 课时与章节评分的纯计算逻辑，不做任何 I/O。
package scoring

import "math"

const (
	ReadingThreshold        = 90.0
	EngagementThreshold     = 60.0
	DefaultQuizPassingScore = 70.0
	AssignmentPassingScore  = 70.0

	// 存在未通过的测验/作业时课时分上限
	CapBothAssessments  = 60.0
	CapSingleAssessment = 65.0
)

// LessonProfile 课时挂载了哪些考核
type LessonProfile struct {
	HasQuiz       bool `json:"hasQuiz"`
	HasAssignment bool `json:"hasAssignment"`
}

type LessonWeights struct {
	Reading    float64 `json:"reading"`
	Engagement float64 `json:"engagement"`
	Quiz       float64 `json:"quiz"`
	Assignment float64 `json:"assignment"`
}

var lessonWeightTable = map[LessonProfile]LessonWeights{
	{HasQuiz: true, HasAssignment: true}:   {Reading: 0.25, Engagement: 0.25, Quiz: 0.25, Assignment: 0.25},
	{HasQuiz: true, HasAssignment: false}:  {Reading: 0.35, Engagement: 0.35, Quiz: 0.30},
	{HasQuiz: false, HasAssignment: true}:  {Reading: 0.35, Engagement: 0.35, Assignment: 0.30},
	{HasQuiz: false, HasAssignment: false}: {Reading: 0.50, Engagement: 0.50},
}

// WeightsForLesson 按考核组合取权重
func WeightsForLesson(p LessonProfile) LessonWeights {
	return lessonWeightTable[p]
}

// QuizOutcome 学生在课时测验上的最好成绩
type QuizOutcome struct {
	Attempted      bool    `json:"attempted"`
	BestPercentage float64 `json:"bestPercentage"`
	PassingScore   float64 `json:"passingScore"`
}

func (q QuizOutcome) passingScore() float64 {
	if q.PassingScore <= 0 {
		return DefaultQuizPassingScore
	}
	return q.PassingScore
}

func (q QuizOutcome) Passed() bool {
	return q.Attempted && q.BestPercentage >= q.passingScore()
}

// AssignmentOutcome 学生在课时作业上的提交情况
type AssignmentOutcome struct {
	Submitted    bool    `json:"submitted"`
	Graded       bool    `json:"graded"`
	Percentage   float64 `json:"percentage"`
	PassingScore float64 `json:"passingScore"`
}

func (a AssignmentOutcome) passingScore() float64 {
	if a.PassingScore <= 0 {
		return AssignmentPassingScore
	}
	return a.PassingScore
}

func (a AssignmentOutcome) Passed() bool {
	return a.Submitted && a.Graded && a.Percentage >= a.passingScore()
}

// LessonInput 计算课时分所需的全部输入，nil 表示课时没有该考核
type LessonInput struct {
	Reading    float64
	Engagement float64
	Quiz       *QuizOutcome
	Assignment *AssignmentOutcome
}

func (in LessonInput) Profile() LessonProfile {
	return LessonProfile{HasQuiz: in.Quiz != nil, HasAssignment: in.Assignment != nil}
}

// LessonScore 课时得分及其构成
type LessonScore struct {
	Profile             LessonProfile `json:"profile"`
	Weights             LessonWeights `json:"weights"`
	ReadingComponent    float64       `json:"readingComponent"`
	EngagementComponent float64       `json:"engagementComponent"`
	QuizComponent       float64       `json:"quizComponent"`
	AssignmentComponent float64       `json:"assignmentComponent"`
	ReadingPenalty      float64       `json:"readingPenalty"`
	EngagementPenalty   float64       `json:"engagementPenalty"`
	Capped              bool          `json:"capped"`
	Cap                 float64       `json:"cap,omitempty"`
	Score               float64       `json:"score"`
}

// CalculateLessonScore 计算 0-100 的课时分。
// 未通过的考核分项记 0，且总分被封顶（两项考核 60，单项 65）；
// 阅读 <90 与参与度 <60 时分别乘以惩罚系数。
func CalculateLessonScore(in LessonInput) LessonScore {
	reading := clamp(in.Reading)
	engagement := clamp(in.Engagement)

	profile := in.Profile()
	w := WeightsForLesson(profile)

	res := LessonScore{
		Profile:             profile,
		Weights:             w,
		ReadingComponent:    reading * w.Reading,
		EngagementComponent: engagement * w.Engagement,
		ReadingPenalty:      1,
		EngagementPenalty:   1,
	}

	failedAssessment := false
	if in.Quiz != nil {
		if in.Quiz.Passed() {
			res.QuizComponent = clamp(in.Quiz.BestPercentage) * w.Quiz
		} else {
			failedAssessment = true
		}
	}
	if in.Assignment != nil {
		if in.Assignment.Passed() {
			res.AssignmentComponent = clamp(in.Assignment.Percentage) * w.Assignment
		} else {
			failedAssessment = true
		}
	}

	score := res.ReadingComponent + res.EngagementComponent + res.QuizComponent + res.AssignmentComponent

	if reading < ReadingThreshold {
		res.ReadingPenalty = 0.5 + (reading/ReadingThreshold)*0.5
		score *= res.ReadingPenalty
	}
	if engagement < EngagementThreshold {
		res.EngagementPenalty = 0.7 + (engagement/EngagementThreshold)*0.3
		score *= res.EngagementPenalty
	}

	if failedAssessment {
		res.Cap = CapSingleAssessment
		if profile.HasQuiz && profile.HasAssignment {
			res.Cap = CapBothAssessments
		}
		if score > res.Cap {
			score = res.Cap
			res.Capped = true
		}
	}

	res.ReadingComponent = round2(res.ReadingComponent)
	res.EngagementComponent = round2(res.EngagementComponent)
	res.QuizComponent = round2(res.QuizComponent)
	res.AssignmentComponent = round2(res.AssignmentComponent)
	res.Score = round2(clamp(score))
	return res
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
