package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SuspensionController struct {
	Progression *service.ProgressionService
}

func NewSuspensionController(progression *service.ProgressionService) *SuspensionController {
	return &SuspensionController{Progression: progression}
}

type AppealRequest struct {
	Text string `json:"text" binding:"required,max=5000"`
}

type SuspendRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

// GetCourseSuspension godoc
// @Summary 课程下的有效停学记录
// @Description 没有停学时 data 为空
// @Tags 停学与申诉
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=service.SuspensionView}
// @Router /api/student/suspensions/course/{id} [get]
func (c *SuspensionController) GetCourseSuspension(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	view, err := c.Progression.GetActiveSuspension(ctx.Request.Context(), claims.UserID, courseID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// ListMySuspensions godoc
// @Summary 我的全部停学记录
// @Tags 停学与申诉
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.StudentSuspension}
// @Router /api/student/suspensions [get]
func (c *SuspensionController) ListMySuspensions(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	list, err := c.Progression.ListSuspensions(ctx.Request.Context(), claims.UserID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// SubmitAppeal godoc
// @Summary 提交申诉
// @Description 每条停学记录只能在申诉期内申诉一次
// @Tags 停学与申诉
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "停学记录ID"
// @Param   body body AppealRequest true "申诉内容"
// @Success 200 {object} util.Response{data=model.StudentSuspension}
// @Failure 409 {object} util.Response "不允许申诉"
// @Router /api/student/suspensions/{id}/appeal [post]
func (c *SuspensionController) SubmitAppeal(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req AppealRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	sus, err := c.Progression.SubmitAppeal(ctx.Request.Context(), claims.UserID, ctx.Param("id"), req.Text)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, sus)
}

// ListPendingAppeals godoc
// @Summary 待审核的申诉
// @Tags 管理员
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/admin/appeals/pending [get]
func (c *SuspensionController) ListPendingAppeals(ctx *gin.Context) {
	page := util.ParseIntDefault(ctx.Query("page"), 1, 1, 10000)
	limit := util.ParseIntDefault(ctx.Query("limit"), 20, 1, 100)
	list, total, err := c.Progression.ListPendingAppeals(ctx.Request.Context(), page, limit)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: list, Total: total, Page: page, Limit: limit})
}

// ReviewAppeal godoc
// @Summary 审核申诉
// @Description 通过时恢复选课并增加重修次数
// @Tags 管理员
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "停学记录ID"
// @Param   body body service.AppealReview true "审核决定"
// @Success 200 {object} util.Response{data=model.StudentSuspension}
// @Failure 409 {object} util.Response "申诉不在待审核状态"
// @Router /api/admin/suspensions/{id}/review [post]
func (c *SuspensionController) ReviewAppeal(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req service.AppealReview
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	sus, err := c.Progression.ReviewAppeal(ctx.Request.Context(), claims.UserID, ctx.Param("id"), req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, sus)
}

// SuspendStudent godoc
// @Summary 手动停学
// @Tags 管理员
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "章节ID"
// @Param   studentId path int true "学生ID"
// @Param   body body SuspendRequest false "原因"
// @Success 201 {object} util.Response{data=model.StudentSuspension}
// @Failure 409 {object} util.Response "已有有效停学记录"
// @Router /api/admin/modules/{id}/students/{studentId}/suspend [post]
func (c *SuspensionController) SuspendStudent(ctx *gin.Context) {
	moduleID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	studentID, ok := pathID(ctx, "studentId")
	if !ok {
		return
	}
	var req SuspendRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}
	sus, err := c.Progression.CreateSuspension(ctx.Request.Context(), studentID, moduleID, req.Reason)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Created(ctx, sus)
}
