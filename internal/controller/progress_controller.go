package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ProgressController 学生课时、章节进度
type ProgressController struct {
	Progression *service.ProgressionService
}

func NewProgressController(progression *service.ProgressionService) *ProgressController {
	return &ProgressController{Progression: progression}
}

// RecordLessonProgress godoc
// @Summary 上报课时学习进度
// @Description 阅读、参与度、视频、滚动进度只增不减，timeSpent 为本次新增秒数
// @Tags 学习进度
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课时ID"
// @Param   body body service.LessonProgressUpdate true "进度"
// @Success 200 {object} util.Response{data=service.LessonProgressResult}
// @Failure 403 {object} util.Response "未选课、章节锁定或停学"
// @Router /api/student/lessons/{id}/progress [post]
func (c *ProgressController) RecordLessonProgress(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	lessonID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.LessonProgressUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Progression.RecordLessonProgress(ctx.Request.Context(), claims.UserID, lessonID, req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetLessonScore godoc
// @Summary 课时得分（重新计算并保存分项）
// @Tags 学习进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课时ID"
// @Success 200 {object} util.Response{data=service.LessonProgressResult}
// @Router /api/student/lessons/{id}/score [get]
func (c *ProgressController) GetLessonScore(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	lessonID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	result, err := c.Progression.CalculateAndStoreComponentScores(ctx.Request.Context(), claims.UserID, lessonID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetLessonCompletionStatus godoc
// @Summary 课时能否完成及未满足条件
// @Tags 学习进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课时ID"
// @Success 200 {object} util.Response{data=scoring.GateResult}
// @Router /api/student/lessons/{id}/completion-status [get]
func (c *ProgressController) GetLessonCompletionStatus(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	lessonID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	gate, err := c.Progression.CanCompleteLesson(ctx.Request.Context(), claims.UserID, lessonID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, gate)
}

// CompleteLesson godoc
// @Summary 尝试完成课时
// @Description 条件满足返回 200；不满足返回 202 并列出缺失条件
// @Tags 学习进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课时ID"
// @Success 200 {object} util.Response{data=service.LessonCompletionResult}
// @Success 202 {object} util.Response{data=service.LessonCompletionResult}
// @Router /api/student/lessons/{id}/complete [post]
func (c *ProgressController) CompleteLesson(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	lessonID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	result, err := c.Progression.AttemptLessonCompletion(ctx.Request.Context(), claims.UserID, lessonID, false)
	if err != nil {
		handleError(ctx, err)
		return
	}
	if !result.Completed {
		util.Accepted(ctx, "Lesson requirements not yet met", result)
		return
	}
	util.Success(ctx, result)
}

// GetModuleProgress godoc
// @Summary 章节进度
// @Tags 学习进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "章节ID"
// @Success 200 {object} util.Response{data=service.ModuleProgressView}
// @Router /api/student/progress/module/{id} [get]
func (c *ProgressController) GetModuleProgress(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	moduleID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	view, err := c.Progression.GetModuleProgress(ctx.Request.Context(), claims.UserID, moduleID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// GetModuleScoreBreakdown godoc
// @Summary 章节得分明细
// @Tags 学习进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "章节ID"
// @Success 200 {object} util.Response{data=service.ModuleScoreBreakdown}
// @Router /api/student/progress/module/{id}/score-breakdown [get]
func (c *ProgressController) GetModuleScoreBreakdown(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	moduleID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	breakdown, err := c.Progression.CalculateModuleScore(ctx.Request.Context(), claims.UserID, moduleID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, breakdown)
}

// CheckModuleCompletion godoc
// @Summary 章节完成检查
// @Description 通过则解锁下一章节；未通过记失败，次数用尽时停学
// @Tags 学习进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "章节ID"
// @Success 200 {object} util.Response{data=service.ModuleCompletionResult}
// @Router /api/learning/module/{id}/check-completion [post]
func (c *ProgressController) CheckModuleCompletion(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	moduleID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	result, err := c.Progression.CheckModuleCompletion(ctx.Request.Context(), claims.UserID, moduleID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// RetakeModule godoc
// @Summary 重修失败的章节
// @Description 清空本章节的课时、测验、作业记录，尝试次数加一
// @Tags 学习进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "章节ID"
// @Success 200 {object} util.Response{data=service.RetakeResult}
// @Failure 409 {object} util.Response "章节不是失败状态或次数已用尽"
// @Router /api/learning/module/{id}/retake [post]
func (c *ProgressController) RetakeModule(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	moduleID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	result, err := c.Progression.AttemptModuleRetake(ctx.Request.Context(), claims.UserID, moduleID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
