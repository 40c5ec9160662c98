package controller

import (
	"lms_backend/internal/model"
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	Content     *service.ContentService
	Progression *service.ProgressionService
}

func NewCourseController(content *service.ContentService, progression *service.ProgressionService) *CourseController {
	return &CourseController{Content: content, Progression: progression}
}

// ListCourses godoc
// @Summary 已发布课程列表
// @Tags 课程
// @Produce  json
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=service.CourseListResult}
// @Router /api/courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	page := util.ParseIntDefault(ctx.Query("page"), 1, 1, 10000)
	limit := util.ParseIntDefault(ctx.Query("limit"), 20, 1, 100)
	result, err := c.Content.ListCourses(ctx.Request.Context(), page, limit)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetCourse godoc
// @Summary 课程大纲（章节与课时）
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Course}
// @Router /api/courses/{id} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	drafts := claims.Role == model.Instructor || claims.Role == model.Admin
	course, err := c.Content.GetCourseOutline(ctx.Request.Context(), courseID, drafts)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// Enroll godoc
// @Summary 选课
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Success 201 {object} util.Response{data=model.Enrollment}
// @Failure 409 {object} util.Response "已选过该课程"
// @Router /api/student/courses/{id}/enroll [post]
func (c *CourseController) Enroll(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	enrollment, err := c.Progression.Enroll(ctx.Request.Context(), claims.UserID, courseID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Created(ctx, enrollment)
}

// GetCourseProgress godoc
// @Summary 课程整体进度
// @Tags 课程
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=service.CourseProgress}
// @Router /api/student/progress/course/{id} [get]
func (c *CourseController) GetCourseProgress(ctx *gin.Context) {
	claims, ok := currentUser(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	progress, err := c.Progression.GetCourseProgress(ctx.Request.Context(), claims.UserID, courseID)
	if err != nil {
		handleError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}
