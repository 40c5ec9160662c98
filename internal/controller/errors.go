package controller

import (
	"errors"
	"lms_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleError 业务错误映射为 4xx，其余记日志返回 500
func handleError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrNotFound), errors.Is(err, util.ErrUserNotFound):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrInvalidLogin):
		util.Error(ctx, http.StatusUnauthorized, err.Error())
	case errors.Is(err, util.ErrNotEnrolled),
		errors.Is(err, util.ErrModuleLocked),
		errors.Is(err, util.ErrStudentSuspended),
		errors.Is(err, util.ErrPermissionDenied),
		errors.Is(err, util.ErrAccountDisabled):
		util.Error(ctx, http.StatusForbidden, err.Error())
	case errors.Is(err, util.ErrNotFailed),
		errors.Is(err, util.ErrModuleFailed),
		errors.Is(err, util.ErrMaxAttemptsReached),
		errors.Is(err, util.ErrAlreadySuspended),
		errors.Is(err, util.ErrAlreadyEnrolled),
		errors.Is(err, util.ErrEmailRegistered),
		errors.Is(err, util.ErrQuizAttemptsLimit),
		errors.Is(err, util.ErrAppealNotAllowed),
		errors.Is(err, util.ErrAppealNotPending),
		errors.Is(err, util.ErrConcurrentUpdate):
		util.Conflict(ctx, err.Error())
	case errors.Is(err, util.ErrQuizNotPublished),
		errors.Is(err, util.ErrInvalidGrade),
		errors.Is(err, util.ErrEmptySubmission),
		errors.Is(err, util.ErrInvalidQuizScope),
		errors.Is(err, util.ErrInvalidQuestion),
		errors.Is(err, util.ErrInvalidFileType):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrFileTooLarge):
		util.Error(ctx, http.StatusRequestEntityTooLarge, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// pathID 解析路径参数，非法时直接返回 400
func pathID(ctx *gin.Context, name string) (uint, bool) {
	id := util.MustParseUint(ctx.Param(name))
	if id == 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return id, true
}

// currentUser 已通过 AuthMiddleware 的用户
func currentUser(ctx *gin.Context) (*util.Claims, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return nil, false
	}
	return claims, true
}
