package util

import "errors"

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidReference  = errors.New("invalid record reference")
	ErrRelationNotFound  = errors.New("related record not found")
	ErrAttemptNotFound   = errors.New("quiz attempt not found")
	ErrProgramNotFound   = errors.New("certificate program not found")
	ErrIssuanceNotFound  = errors.New("certificate issuance not found")
	ErrCourseNotFound    = errors.New("course not found")
	ErrMaterialNotFound  = errors.New("material not found")
	ErrContentNotFound   = errors.New("content not found")
	ErrPendingNotFound   = errors.New("pending content not found")
	ErrSessionNotFound   = errors.New("authoring session not opened")
	ErrInvalidOrder      = errors.New("order index out of range")
	ErrPublishBlocked    = errors.New("publish blocked by copyright check")
	ErrCopyrightDisabled = errors.New("copyright checker disabled")
	ErrInvalidURL        = errors.New("invalid url")
	ErrUnsupportedMedia  = errors.New("unsupported media type")
)
