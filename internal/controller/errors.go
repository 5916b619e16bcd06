package controller

import (
	"errors"
	"net/http"

	"course_studio_backend/internal/authoring"
	"course_studio_backend/internal/util"
	"course_studio_backend/pkg/cms"

	"github.com/gin-gonic/gin"
)

// respondError 把服务层错误映射为 HTTP 状态码
func respondError(ctx *gin.Context, err error) {
	var cmsErr *cms.Error
	switch {
	case errors.Is(err, util.ErrCourseNotFound),
		errors.Is(err, util.ErrMaterialNotFound),
		errors.Is(err, util.ErrContentNotFound),
		errors.Is(err, util.ErrPendingNotFound),
		errors.Is(err, util.ErrRelationNotFound),
		errors.Is(err, cms.ErrNotFound):
		util.Error(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, util.ErrSessionNotFound):
		util.Error(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, util.ErrInvalidReference),
		errors.Is(err, util.ErrInvalidOrder),
		errors.Is(err, util.ErrInvalidURL),
		errors.Is(err, util.ErrUnsupportedMedia),
		errors.Is(err, authoring.ErrInvalidContent),
		errors.Is(err, authoring.ErrPayloadKind),
		errors.Is(err, authoring.ErrEmptyPayload):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrCopyrightDisabled):
		util.Error(ctx, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &cmsErr):
		util.LogBackendError(ctx, err)
	default:
		util.LogInternalError(ctx, err)
	}
}

// backendUnavailable 记录层返回 nil/false 时使用，具体原因已在记录层写入日志
func backendUnavailable(ctx *gin.Context) {
	util.Error(ctx, http.StatusBadGateway, "backend request failed")
}
