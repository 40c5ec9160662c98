package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evaluate(in LessonInput) GateResult {
	return EvaluateLessonGate(in, CalculateLessonScore(in), 80)
}

func TestEvaluateLessonGate_ReadingOnlyLesson(t *testing.T) {
	res := evaluate(LessonInput{Reading: 95, Engagement: 70})

	assert.True(t, res.CanComplete)
	assert.Equal(t, 82.5, res.LessonScore)
	assert.Empty(t, res.Unmet())
}

func TestEvaluateLessonGate_FailedQuizDenied(t *testing.T) {
	res := evaluate(LessonInput{
		Reading:    100,
		Engagement: 100,
		Quiz:       &QuizOutcome{Attempted: true, BestPercentage: 50, PassingScore: 70},
	})

	require.False(t, res.CanComplete)
	assert.Equal(t, []string{RequirementQuiz, RequirementOverallScore}, res.Unmet())
	assert.Contains(t, res.Reason, "Quiz not passed")
}

func TestEvaluateLessonGate_UnattemptedQuiz(t *testing.T) {
	res := evaluate(LessonInput{
		Reading:    100,
		Engagement: 100,
		Quiz:       &QuizOutcome{PassingScore: 70},
	})

	require.False(t, res.CanComplete)
	assert.Contains(t, res.Reason, "Quiz not attempted")
}

func TestEvaluateLessonGate_AssignmentAwaitingGrade(t *testing.T) {
	res := evaluate(LessonInput{
		Reading:    100,
		Engagement: 100,
		Assignment: &AssignmentOutcome{Submitted: true},
	})

	require.False(t, res.CanComplete)
	assert.Contains(t, res.Unmet(), RequirementAssignment)
	assert.Contains(t, res.Reason, "awaiting grading")
}

func TestEvaluateLessonGate_LowReadingBlocks(t *testing.T) {
	res := evaluate(LessonInput{Reading: 50, Engagement: 90})

	require.False(t, res.CanComplete)
	assert.Contains(t, res.Unmet(), RequirementReading)
}

func TestEvaluateLessonGate_HighScoreSubstitutesReadingGate(t *testing.T) {
	// 阅读不足 90，但测验满分使课时分超过 80
	in := LessonInput{
		Reading:    85,
		Engagement: 100,
		Quiz:       &QuizOutcome{Attempted: true, BestPercentage: 100, PassingScore: 70},
	}
	score := CalculateLessonScore(in)
	// (0.35*85 + 0.35*100 + 0.30*100) * (0.5 + 85/90*0.5)
	assert.InDelta(t, 92.12, score.Score, 0.01)

	res := EvaluateLessonGate(in, score, 80)
	assert.True(t, res.CanComplete)
	assert.Empty(t, res.Unmet())
	require.NotEmpty(t, res.Requirements)
	assert.Equal(t, RequirementReading, res.Requirements[0].Name)
	assert.True(t, res.Requirements[0].Met)
}
