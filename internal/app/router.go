package app

import (
	"lms_backend/docs"
	"lms_backend/internal/config"
	"lms_backend/internal/middleware"
	"lms_backend/internal/model"
	"lms_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/me", c.auth.Me)
		authGroup.GET("/courses/:id", c.course.GetCourse)
		authGroup.GET("/achievements", c.achievement.GetUserAchievements)
		authGroup.GET("/achievements/leaderboard", c.achievement.GetLeaderboard)

		// 学生接口
		a.registerStudentRoutes(authGroup, c)

		// 教师相关接口
		a.registerInstructorRoutes(authGroup, c)

		// 管理员相关接口
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
		public.GET("/courses", c.course.ListCourses)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	student := rg.Group("/student")
	student.Use(middleware.RoleMiddleware(model.Student))
	{
		student.POST("/courses/:id/enroll", c.course.Enroll)

		// 课时
		student.POST("/lessons/:id/progress", c.progress.RecordLessonProgress)
		student.GET("/lessons/:id/score", c.progress.GetLessonScore)
		student.GET("/lessons/:id/completion-status", c.progress.GetLessonCompletionStatus)
		student.POST("/lessons/:id/complete", c.progress.CompleteLesson)

		// 测验与作业
		student.POST("/quizzes/:id/submit", c.assessment.SubmitQuiz)
		student.GET("/quizzes/:id/attempts", c.assessment.ListQuizAttempts)
		student.POST("/assignments/:id/submit", c.assessment.SubmitAssignment)

		// 进度
		student.GET("/progress/module/:id", c.progress.GetModuleProgress)
		student.GET("/progress/module/:id/score-breakdown", c.progress.GetModuleScoreBreakdown)
		student.GET("/progress/course/:id", c.course.GetCourseProgress)

		// 停学与申诉
		student.GET("/suspensions", c.suspension.ListMySuspensions)
		student.GET("/suspensions/course/:id", c.suspension.GetCourseSuspension)
		student.POST("/suspensions/:id/appeal", c.suspension.SubmitAppeal)
	}

	learning := rg.Group("/learning")
	learning.Use(middleware.RoleMiddleware(model.Student))
	{
		learning.POST("/module/:id/check-completion", c.progress.CheckModuleCompletion)
		learning.POST("/module/:id/retake", c.progress.RetakeModule)
	}
}

func (a *App) registerInstructorRoutes(rg *gin.RouterGroup, c *controllers) {
	instructor := rg.Group("/instructor")
	instructor.Use(middleware.RoleMiddleware(model.Instructor))
	{
		// 课程编排
		instructor.POST("/courses", c.content.CreateCourse)
		instructor.PUT("/courses/:id/publish", c.content.PublishCourse)
		instructor.POST("/courses/:id/modules", c.content.CreateModule)
		instructor.POST("/modules/:id/lessons", c.content.CreateLesson)
		instructor.POST("/quizzes", c.content.CreateQuiz)
		instructor.PUT("/quizzes/:id/publish", c.content.PublishQuiz)
		instructor.POST("/assignments", c.content.CreateAssignment)
		instructor.POST("/lessons/:id/video", c.content.UploadLessonVideo)

		// 评分与放行
		instructor.GET("/modules/:id/submissions/ungraded", c.grade.ListUngraded)
		instructor.POST("/submissions/:id/grade", c.grade.GradeSubmission)
		instructor.POST("/lessons/:id/students/:studentId/full-credit", c.grade.GrantFullCredit)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/appeals/pending", c.suspension.ListPendingAppeals)
		admin.POST("/suspensions/:id/review", c.suspension.ReviewAppeal)
		admin.POST("/modules/:id/students/:studentId/suspend", c.suspension.SuspendStudent)
	}
}
