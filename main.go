// @title LMS Progression API
// @version 1.0
// @description 课程章节解锁、课时评分、重修与停学申诉的后端服务。

// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"lms_backend/cmd"
	"os"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
