package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"course_studio_backend/internal/service"
	"course_studio_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type MediaController struct {
	media    *service.MediaService
	metadata *service.URLMetadataService
}

func NewMediaController(media *service.MediaService, metadata *service.URLMetadataService) *MediaController {
	return &MediaController{media: media, metadata: metadata}
}

// Upload godoc
// @Summary 上传课程素材
// @Description 根据文件内容识别类型，返回访问地址和推断的内容类型
// @Tags 课程编辑
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param file formData file true "文件"
// @Success 201 {object} util.Response{data=service.MediaUpload}
// @Failure 400 {object} util.Response
// @Router /api/authoring/media [post]
func (c *MediaController) Upload(ctx *gin.Context) {
	header, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	upload, err := c.media.Upload(ctx.Request.Context(), header)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, upload)
}

// URLMetadata godoc
// @Summary 获取链接的标题、描述和封面
// @Description 同一个 editor 的新请求会取消上一个未完成的请求
// @Tags 课程编辑
// @Produce json
// @Security ApiKeyAuth
// @Param url query string true "链接"
// @Param editor query string false "编辑器标识"
// @Success 200 {object} util.Response{data=service.URLMetadata}
// @Failure 502 {object} util.Response
// @Router /api/authoring/url-metadata [get]
func (c *MediaController) URLMetadata(ctx *gin.Context) {
	rawURL := ctx.Query("url")
	if rawURL == "" {
		util.BadRequest(ctx, "url is required")
		return
	}
	key := ctx.Query("editor")
	if key != "" {
		if user := util.GetUserFromContext(ctx); user != nil {
			key = strconv.FormatInt(user.UserID, 10) + ":" + key
		}
	}

	meta, err := c.metadata.FetchLatest(ctx.Request.Context(), key, rawURL)
	switch {
	case err == nil:
		util.Success(ctx, meta)
	case errors.Is(err, util.ErrInvalidURL):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, context.Canceled):
		util.Error(ctx, http.StatusConflict, "superseded by a newer request")
	default:
		util.Error(ctx, http.StatusBadGateway, err.Error())
	}
}
