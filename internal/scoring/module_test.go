package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModuleWeightTable_CoversAllProfiles(t *testing.T) {
	assert.Len(t, moduleWeightTable, 8)
	for profile, w := range moduleWeightTable {
		sum := w.CourseContribution + w.Quiz + w.Assignment + w.FinalAssessment
		assert.InDelta(t, 1.0, sum, 1e-9, "profile %+v", profile)

		if !profile.HasQuizzes {
			assert.Zero(t, w.Quiz)
		}
		if !profile.HasAssignments {
			assert.Zero(t, w.Assignment)
		}
		if !profile.HasFinalAssessment {
			assert.Zero(t, w.FinalAssessment)
		}
	}
}

func TestCourseContribution_MissingLessonsCountAsZero(t *testing.T) {
	assert.Equal(t, 45.0, CourseContribution([]float64{90}, 2))
	assert.Equal(t, 85.0, CourseContribution([]float64{90, 80}, 2))
	assert.Equal(t, 0.0, CourseContribution(nil, 0))
}

func TestCalculateModuleScore_AllComponents(t *testing.T) {
	res := CalculateModuleScore(ModuleScoreInput{
		Profile:              ModuleProfile{HasQuizzes: true, HasAssignments: true, HasFinalAssessment: true},
		CourseContribution:   90,
		QuizScore:            80,
		AssignmentScore:      75,
		FinalAssessmentScore: 85,
	}, 80)

	assert.Equal(t, 80.0, res.CumulativeScore)
	assert.True(t, res.Passed)
	assert.Equal(t, 9.0, res.Components.CourseContribution.Weighted)
	assert.Equal(t, 24.0, res.Components.Quiz.Weighted)
	assert.Equal(t, 30.0, res.Components.Assignment.Weighted)
	assert.Equal(t, 17.0, res.Components.FinalAssessment.Weighted)
}

func TestCalculateModuleScore_OnlyCourseContribution(t *testing.T) {
	res := CalculateModuleScore(ModuleScoreInput{
		CourseContribution: 79.99,
		QuizScore:          100,
	}, 80)

	assert.Equal(t, 79.99, res.CumulativeScore)
	assert.False(t, res.Passed)
	assert.False(t, res.Components.Quiz.Exists)
	assert.Zero(t, res.Components.Quiz.Weighted)
}
