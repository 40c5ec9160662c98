package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxVideoSize 课时视频上传上限
const maxVideoSize = 2 << 30

// ContentController 教师端课程编排
type ContentController struct {
	ContentService *service.ContentService
}

func NewContentController(contentService *service.ContentService) *ContentController {
	return &ContentController{ContentService: contentService}
}

type PublishRequest struct {
	Published bool `json:"published"`
}

// CreateCourse godoc
// @Summary 创建课程
// @Tags 教师
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CourseRequest true "课程信息"
// @Success 201 {object} util.Response{data=model.Course}
// @Router /api/instructor/courses [post]
func (c *ContentController) CreateCourse(ctx *gin.Context) {
	var req service.CourseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	course, err := c.ContentService.CreateCourse(ctx.Request.Context(), req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Created(ctx, course)
}

// PublishCourse godoc
// @Summary 发布或下架课程
// @Tags 教师
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Param   body body PublishRequest true "是否发布"
// @Success 200 {object} util.Response
// @Router /api/instructor/courses/{id}/publish [put]
func (c *ContentController) PublishCourse(ctx *gin.Context) {
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req PublishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.ContentService.PublishCourse(ctx.Request.Context(), courseID, req.Published); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"published": req.Published})
}

// CreateModule godoc
// @Summary 创建章节
// @Tags 教师
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Param   body body service.ModuleRequest true "章节信息"
// @Success 201 {object} util.Response{data=model.Module}
// @Router /api/instructor/courses/{id}/modules [post]
func (c *ContentController) CreateModule(ctx *gin.Context) {
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.ModuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	module, err := c.ContentService.CreateModule(ctx.Request.Context(), courseID, req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Created(ctx, module)
}

// CreateLesson godoc
// @Summary 创建课时
// @Tags 教师
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "章节ID"
// @Param   body body service.LessonRequest true "课时信息"
// @Success 201 {object} util.Response{data=model.Lesson}
// @Router /api/instructor/modules/{id}/lessons [post]
func (c *ContentController) CreateLesson(ctx *gin.Context) {
	moduleID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req service.LessonRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	lesson, err := c.ContentService.CreateLesson(ctx.Request.Context(), moduleID, req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Created(ctx, lesson)
}

// CreateQuiz godoc
// @Summary 创建测验
// @Description lessonId 与 moduleId 二选一，只给 moduleId 为章节期末测验
// @Tags 教师
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.QuizRequest true "测验与题目"
// @Success 201 {object} util.Response{data=model.Quiz}
// @Router /api/instructor/quizzes [post]
func (c *ContentController) CreateQuiz(ctx *gin.Context) {
	var req service.QuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	quiz, err := c.ContentService.CreateQuiz(ctx.Request.Context(), req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// PublishQuiz godoc
// @Summary 发布或撤回测验
// @Tags 教师
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Param   body body PublishRequest true "是否发布"
// @Success 200 {object} util.Response
// @Router /api/instructor/quizzes/{id}/publish [put]
func (c *ContentController) PublishQuiz(ctx *gin.Context) {
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req PublishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.ContentService.PublishQuiz(ctx.Request.Context(), quizID, req.Published); err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"published": req.Published})
}

// CreateAssignment godoc
// @Summary 创建作业
// @Tags 教师
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.AssignmentRequest true "作业信息"
// @Success 201 {object} util.Response{data=model.Assignment}
// @Router /api/instructor/assignments [post]
func (c *ContentController) CreateAssignment(ctx *gin.Context) {
	var req service.AssignmentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	a, err := c.ContentService.CreateAssignment(ctx.Request.Context(), req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Created(ctx, a)
}

// UploadLessonVideo godoc
// @Summary 上传课时视频
// @Description 上传后用 ffprobe 读取时长
// @Tags 教师
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课时ID"
// @Param   file formData file true "视频文件"
// @Success 200 {object} util.Response{data=model.Lesson}
// @Failure 400 {object} util.Response "文件类型不允许"
// @Router /api/instructor/lessons/{id}/video [post]
func (c *ContentController) UploadLessonVideo(ctx *gin.Context) {
	lessonID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxVideoSize)
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		util.BadRequest(ctx, "Unable to read uploaded file")
		return
	}
	defer f.Close()

	lesson, err := c.ContentService.AttachLessonVideo(ctx.Request.Context(), lessonID, &service.FileUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Reader:   f,
	})
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, lesson)
}
