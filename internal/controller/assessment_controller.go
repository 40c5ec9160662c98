package controller

import (
	"errors"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AssessmentController 学生测验作答与作业提交
type AssessmentController struct {
	Quizzes     *service.QuizService
	Assignments *service.AssignmentService
}

func NewAssessmentController(quizzes *service.QuizService, assignments *service.AssignmentService) *AssessmentController {
	return &AssessmentController{Quizzes: quizzes, Assignments: assignments}
}

// SubmitQuiz godoc
// @Summary 提交测验
// @Tags 测验与作业
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Param   body body service.QuizSubmission true "作答（题目ID -> 选项下标）"
// @Success 200 {object} util.Response{data=service.QuizResult}
// @Failure 409 {object} util.Response "作答次数已用尽"
// @Router /api/student/quizzes/{id}/submit [post]
func (c *AssessmentController) SubmitQuiz(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.QuizSubmission
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Quizzes.SubmitQuiz(ctx.Request.Context(), claims.UserID, quizID, req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// ListQuizAttempts godoc
// @Summary 我的测验作答记录
// @Tags 测验与作业
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Success 200 {object} util.Response{data=[]model.QuizAttempt}
// @Router /api/student/quizzes/{id}/attempts [get]
func (c *AssessmentController) ListQuizAttempts(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	attempts, err := c.Quizzes.ListAttempts(ctx.Request.Context(), claims.UserID, quizID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// SubmitAssignment godoc
// @Summary 提交作业
// @Description 文本内容与附件至少提供一项
// @Tags 测验与作业
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "作业ID"
// @Param   content formData string false "文本内容"
// @Param   file formData file false "附件"
// @Success 201 {object} util.Response{data=model.AssignmentSubmission}
// @Failure 400 {object} util.Response "内容为空或文件类型不允许"
// @Failure 413 {object} util.Response "文件过大"
// @Router /api/student/assignments/{id}/submit [post]
func (c *AssessmentController) SubmitAssignment(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	assignmentID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, util.MaxSubmissionSize+1<<20)
	content := ctx.PostForm("content")

	var upload *service.FileUpload
	fileHeader, err := ctx.FormFile("file")
	if err == nil {
		f, err := fileHeader.Open()
		if err != nil {
			util.BadRequest(ctx, "Unable to read uploaded file")
			return
		}
		defer f.Close()
		upload = &service.FileUpload{Filename: fileHeader.Filename, Size: fileHeader.Size, Reader: f}
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		util.BadRequest(ctx, err.Error())
		return
	}

	submission, err := c.Assignments.Submit(ctx.Request.Context(), claims.UserID, assignmentID, content, upload)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Created(ctx, submission)
}
