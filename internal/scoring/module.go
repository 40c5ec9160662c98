package scoring

// ModuleProfile 章节内存在哪些考核类型
type ModuleProfile struct {
	HasQuizzes         bool `json:"hasQuizzes"`
	HasAssignments     bool `json:"hasAssignments"`
	HasFinalAssessment bool `json:"hasFinalAssessment"`
}

type ModuleWeights struct {
	CourseContribution float64 `json:"courseContribution"`
	Quiz               float64 `json:"quiz"`
	Assignment         float64 `json:"assignment"`
	FinalAssessment    float64 `json:"finalAssessment"`
}

// 缺失的分项权重重新分配给其余分项
var moduleWeightTable = map[ModuleProfile]ModuleWeights{
	{false, false, false}: {CourseContribution: 1.00},
	{true, false, false}:  {CourseContribution: 0.50, Quiz: 0.50},
	{false, true, false}:  {CourseContribution: 0.50, Assignment: 0.50},
	{false, false, true}:  {CourseContribution: 0.60, FinalAssessment: 0.40},
	{true, true, false}:   {CourseContribution: 0.20, Quiz: 0.35, Assignment: 0.45},
	{true, false, true}:   {CourseContribution: 0.30, Quiz: 0.40, FinalAssessment: 0.30},
	{false, true, true}:   {CourseContribution: 0.25, Assignment: 0.50, FinalAssessment: 0.25},
	{true, true, true}:    {CourseContribution: 0.10, Quiz: 0.30, Assignment: 0.40, FinalAssessment: 0.20},
}

func WeightsForModule(p ModuleProfile) ModuleWeights {
	return moduleWeightTable[p]
}

// CourseContribution 章节内全部课时分的平均值，分母是课时总数
func CourseContribution(lessonScores []float64, lessonCount int) float64 {
	if lessonCount <= 0 {
		return 0
	}
	var sum float64
	for _, s := range lessonScores {
		sum += clamp(s)
	}
	return round2(sum / float64(lessonCount))
}

type ModuleScoreInput struct {
	Profile              ModuleProfile
	CourseContribution   float64
	QuizScore            float64
	AssignmentScore      float64
	FinalAssessmentScore float64
}

// Component 单个分项在章节总分中的贡献
type Component struct {
	Exists   bool    `json:"exists"`
	Score    float64 `json:"score"`
	Weight   float64 `json:"weight"`
	Weighted float64 `json:"weighted"`
}

type ModuleComponents struct {
	CourseContribution Component `json:"courseContribution"`
	Quiz               Component `json:"quiz"`
	Assignment         Component `json:"assignment"`
	FinalAssessment    Component `json:"finalAssessment"`
}

// ModuleScore 章节加权总分
type ModuleScore struct {
	Profile         ModuleProfile    `json:"profile"`
	Components      ModuleComponents `json:"components"`
	CumulativeScore float64          `json:"cumulativeScore"`
	PassingScore    float64          `json:"passingScore"`
	Passed          bool             `json:"passed"`
}

// CalculateModuleScore 按章节考核组合加权
func CalculateModuleScore(in ModuleScoreInput, passingScore float64) ModuleScore {
	w := WeightsForModule(in.Profile)

	comps := ModuleComponents{
		CourseContribution: component(true, in.CourseContribution, w.CourseContribution),
		Quiz:               component(in.Profile.HasQuizzes, in.QuizScore, w.Quiz),
		Assignment:         component(in.Profile.HasAssignments, in.AssignmentScore, w.Assignment),
		FinalAssessment:    component(in.Profile.HasFinalAssessment, in.FinalAssessmentScore, w.FinalAssessment),
	}

	total := comps.CourseContribution.Weighted + comps.Quiz.Weighted +
		comps.Assignment.Weighted + comps.FinalAssessment.Weighted
	total = round2(clamp(total))

	return ModuleScore{
		Profile:         in.Profile,
		Components:      comps,
		CumulativeScore: total,
		PassingScore:    passingScore,
		Passed:          total >= passingScore,
	}
}

func component(exists bool, score, weight float64) Component {
	if !exists {
		return Component{}
	}
	score = clamp(score)
	return Component{
		Exists:   true,
		Score:    round2(score),
		Weight:   weight,
		Weighted: round2(score * weight),
	}
}
