package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeightsForLesson_SumToOne(t *testing.T) {
	for profile, w := range lessonWeightTable {
		sum := w.Reading + w.Engagement + w.Quiz + w.Assignment
		assert.InDelta(t, 1.0, sum, 1e-9, "profile %+v", profile)
	}
}

func TestCalculateLessonScore_NoAssessments(t *testing.T) {
	tests := []struct {
		name       string
		reading    float64
		engagement float64
		want       float64
	}{
		{"above thresholds", 95, 70, 82.5},
		{"full marks", 100, 100, 100},
		// 80*0.5+80*0.5 = 80, reading penalty 0.5+80/90*0.5
		{"reading penalty", 80, 80, 75.56},
		// 95*0.5+30*0.5 = 62.5, engagement penalty 0.7+30/60*0.3 = 0.85
		{"engagement penalty", 95, 30, 53.13},
		{"nothing read", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateLessonScore(LessonInput{Reading: tt.reading, Engagement: tt.engagement})
			assert.InDelta(t, tt.want, got.Score, 0.01)
			assert.False(t, got.Capped)
		})
	}
}

func TestCalculateLessonScore_FailedQuizCapsScore(t *testing.T) {
	in := LessonInput{
		Reading:    100,
		Engagement: 100,
		Quiz:       &QuizOutcome{Attempted: true, BestPercentage: 50, PassingScore: 70},
	}
	got := CalculateLessonScore(in)

	assert.Equal(t, 0.0, got.QuizComponent)
	assert.True(t, got.Capped)
	assert.Equal(t, CapSingleAssessment, got.Score)
}

func TestCalculateLessonScore_FailedQuizWithAssignmentCapsAtSixty(t *testing.T) {
	in := LessonInput{
		Reading:    100,
		Engagement: 100,
		Quiz:       &QuizOutcome{Attempted: true, BestPercentage: 40, PassingScore: 70},
		Assignment: &AssignmentOutcome{Submitted: true, Graded: true, Percentage: 100},
	}
	got := CalculateLessonScore(in)

	assert.Equal(t, 0.0, got.QuizComponent)
	assert.LessOrEqual(t, got.Score, CapBothAssessments)
}

func TestCalculateLessonScore_UngradedAssignmentCaps(t *testing.T) {
	in := LessonInput{
		Reading:    100,
		Engagement: 100,
		Assignment: &AssignmentOutcome{Submitted: true, Graded: false},
	}
	got := CalculateLessonScore(in)

	assert.Equal(t, 0.0, got.AssignmentComponent)
	assert.Equal(t, CapSingleAssessment, got.Score)
}

func TestCalculateLessonScore_PassedAssessments(t *testing.T) {
	in := LessonInput{
		Reading:    100,
		Engagement: 100,
		Quiz:       &QuizOutcome{Attempted: true, BestPercentage: 90, PassingScore: 70},
		Assignment: &AssignmentOutcome{Submitted: true, Graded: true, Percentage: 80},
	}
	got := CalculateLessonScore(in)

	// 25 + 25 + 22.5 + 20
	assert.InDelta(t, 92.5, got.Score, 0.001)
	assert.InDelta(t, 22.5, got.QuizComponent, 0.001)
	assert.InDelta(t, 20.0, got.AssignmentComponent, 0.001)
}

func TestCalculateLessonScore_DefaultPassingScore(t *testing.T) {
	in := LessonInput{
		Reading:    100,
		Engagement: 100,
		Quiz:       &QuizOutcome{Attempted: true, BestPercentage: 70},
	}
	got := CalculateLessonScore(in)
	assert.InDelta(t, 91.0, got.Score, 0.001)
}

func TestCalculateLessonScore_Idempotent(t *testing.T) {
	in := LessonInput{
		Reading:    73,
		Engagement: 41,
		Quiz:       &QuizOutcome{Attempted: true, BestPercentage: 88, PassingScore: 75},
	}
	assert.Equal(t, CalculateLessonScore(in), CalculateLessonScore(in))
}

func TestCalculateLessonScore_ClampsInputs(t *testing.T) {
	got := CalculateLessonScore(LessonInput{Reading: 140, Engagement: -10})
	assert.GreaterOrEqual(t, got.Score, 0.0)
	assert.LessOrEqual(t, got.Score, 100.0)
}

func TestCalculateLessonScore_AssignmentPassingScore(t *testing.T) {
	graded := AssignmentOutcome{Submitted: true, Graded: true, Percentage: 75}

	// 默认通过线 70：35 + 35 + 0.30*75
	got := CalculateLessonScore(LessonInput{Reading: 100, Engagement: 100, Assignment: &graded})
	assert.InDelta(t, 92.5, got.Score, 0.001)
	assert.False(t, got.Capped)

	strict := graded
	strict.PassingScore = 80
	got = CalculateLessonScore(LessonInput{Reading: 100, Engagement: 100, Assignment: &strict})
	assert.Zero(t, got.AssignmentComponent)
	assert.True(t, got.Capped)
	assert.Equal(t, CapSingleAssessment, got.Score)

	gate := EvaluateLessonGate(LessonInput{Reading: 100, Engagement: 100, Assignment: &strict}, got, 80)
	assert.Contains(t, gate.Unmet(), RequirementAssignment)
	assert.Equal(t, 80.0, gate.Requirements[1].Target)
}
