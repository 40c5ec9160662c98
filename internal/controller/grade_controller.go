package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// GradeController 教师评分与人工放行
type GradeController struct {
	Assignments *service.AssignmentService
	Progression *service.ProgressionService
}

func NewGradeController(assignments *service.AssignmentService, progression *service.ProgressionService) *GradeController {
	return &GradeController{Assignments: assignments, Progression: progression}
}

// GradeSubmission godoc
// @Summary 作业评分
// @Description 可重复评分，评分后刷新课时分并通知学生
// @Tags 教师
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "提交ID"
// @Param   body body service.SubmissionGrade true "分数与评语"
// @Success 200 {object} util.Response{data=service.GradeResult}
// @Failure 400 {object} util.Response "分数超出范围"
// @Router /api/instructor/submissions/{id}/grade [post]
func (c *GradeController) GradeSubmission(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	submissionID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.SubmissionGrade
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Assignments.Grade(ctx.Request.Context(), claims.UserID, submissionID, req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// ListUngraded godoc
// @Summary 章节内待评分的作业
// @Tags 教师
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "章节ID"
// @Param   limit query int false "数量" default(50)
// @Success 200 {object} util.Response{data=[]model.AssignmentSubmission}
// @Router /api/instructor/modules/{id}/submissions/ungraded [get]
func (c *GradeController) ListUngraded(ctx *gin.Context) {
	moduleID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	limit := util.ParseIntDefault(ctx.Query("limit"), 50, 1, 200)
	list, err := c.Assignments.ListUngraded(ctx.Request.Context(), moduleID, limit)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// GrantFullCredit godoc
// @Summary 人工放行课时
// @Description 跳过完成条件直接标记课时完成，阅读与参与度补足到门槛
// @Tags 教师
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课时ID"
// @Param   studentId path int true "学生ID"
// @Success 200 {object} util.Response{data=service.LessonCompletionResult}
// @Router /api/instructor/lessons/{id}/students/{studentId}/full-credit [post]
func (c *GradeController) GrantFullCredit(ctx *gin.Context) {
	lessonID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	studentID, ok := pathID(ctx, "studentId")
	if !ok {
		return
	}
	result, err := c.Progression.AttemptLessonCompletion(ctx.Request.Context(), studentID, lessonID, true)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
