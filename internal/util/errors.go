package util

import "errors"

var (
	ErrNotFound         = errors.New("resource not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailRegistered  = errors.New("email already registered")
	ErrInvalidLogin     = errors.New("invalid email or password")
	ErrAccountDisabled  = errors.New("account disabled")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")

	ErrNotEnrolled        = errors.New("student is not enrolled in this course")
	ErrAlreadyEnrolled    = errors.New("student is already enrolled in this course")
	ErrModuleLocked       = errors.New("module is locked")
	ErrModuleFailed       = errors.New("module failed, a retake is required")
	ErrStudentSuspended   = errors.New("student is suspended from this course")
	ErrNotFailed          = errors.New("Module is not in failed status")
	ErrMaxAttemptsReached = errors.New("maximum attempts reached")
	ErrAlreadySuspended   = errors.New("student already has an active suspension")

	ErrQuizNotPublished  = errors.New("quiz is not published")
	ErrQuizAttemptsLimit = errors.New("quiz attempt limit reached")
	ErrInvalidGrade      = errors.New("grade out of range")
	ErrEmptySubmission   = errors.New("submission needs text content or a file")
	ErrInvalidQuizScope  = errors.New("quiz must belong to exactly one of lesson or module")
	ErrInvalidQuestion   = errors.New("correct option is out of range")

	ErrAppealNotAllowed = errors.New("appeal not allowed")
	ErrAppealNotPending = errors.New("appeal is not pending review")
	ErrConcurrentUpdate = errors.New("record was modified concurrently, please retry")
	ErrInvalidFileType  = errors.New("invalid file type")
	ErrFileTooLarge     = errors.New("file too large")
)
