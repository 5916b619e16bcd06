package controller

import (
	"errors"
	"net/http"

	"course_studio_backend/internal/authoring"
	"course_studio_backend/internal/model"
	"course_studio_backend/internal/service"
	"course_studio_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AuthoringController struct {
	authoring *service.AuthoringService
}

func NewAuthoringController(authoring *service.AuthoringService) *AuthoringController {
	return &AuthoringController{authoring: authoring}
}

type reorderRequest struct {
	From *int `json:"from" binding:"required"`
	To   *int `json:"to" binding:"required"`
}

type moveRequest struct {
	MaterialID string `json:"materialId" binding:"required"`
	Index      int    `json:"index"`
}

type publishRequest struct {
	Status model.CourseStatus `json:"status" binding:"required"`
}

const courseIDKey = "courseId"

// RequireCourseOwner 只有课程作者和管理员可以编辑该课程
func (c *AuthoringController) RequireCourseOwner(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		ctx.Abort()
		return
	}
	courseID, owner, err := c.authoring.CourseOwner(ctx.Request.Context(), model.Ref(ctx.Param("course")))
	if err != nil {
		respondError(ctx, err)
		ctx.Abort()
		return
	}
	if !ownedBy(claims, owner) {
		util.Forbidden(ctx)
		ctx.Abort()
		return
	}
	ctx.Set(courseIDKey, courseID)
	ctx.Next()
}

// courseID 路由中的课程引用统一转换成 documentId
func (c *AuthoringController) courseID(ctx *gin.Context) (string, bool) {
	if id := ctx.GetString(courseIDKey); id != "" {
		return id, true
	}
	id, err := c.authoring.ResolveCourse(ctx.Request.Context(), model.Ref(ctx.Param("course")))
	if err != nil {
		respondError(ctx, err)
		return "", false
	}
	return id, true
}

// Open godoc
// @Summary 打开课程编辑会话
// @Tags 课程编辑
// @Produce json
// @Security ApiKeyAuth
// @Param course path string true "课程 id 或 documentId"
// @Success 200 {object} util.Response{data=authoring.WorkingSet}
// @Router /api/authoring/courses/{course}/open [post]
func (c *AuthoringController) Open(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	ws, err := c.authoring.Open(ctx.Request.Context(), model.Ref(courseID))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, ws)
}

// Session godoc
// @Summary 获取当前编辑会话
// @Tags 课程编辑
// @Produce json
// @Security ApiKeyAuth
// @Param course path string true "课程 id 或 documentId"
// @Success 200 {object} util.Response{data=authoring.WorkingSet}
// @Failure 409 {object} util.Response
// @Router /api/authoring/courses/{course}/session [get]
func (c *AuthoringController) Session(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	ws, err := c.authoring.Session(ctx.Request.Context(), courseID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"workingSet": ws, "pending": ws.Pending.Reduce()})
}

// Close godoc
// @Summary 关闭编辑会话
// @Tags 课程编辑
// @Security ApiKeyAuth
// @Param course path string true "课程 id 或 documentId"
// @Success 200 {object} util.Response
// @Router /api/authoring/courses/{course}/session [delete]
func (c *AuthoringController) Close(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	if err := c.authoring.Close(ctx.Request.Context(), courseID); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// UpdateBasics godoc
// @Summary 修改课程基本信息
// @Description 发布状态请使用 publish 接口
// @Tags 课程编辑
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param course path string true "课程 id 或 documentId"
// @Param body body model.CourseBasics true "基本信息"
// @Success 200 {object} util.Response{data=model.CourseBasics}
// @Router /api/authoring/courses/{course}/basics [put]
func (c *AuthoringController) UpdateBasics(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	var basics model.CourseBasics
	if err := ctx.ShouldBindJSON(&basics); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	updated, err := c.authoring.UpdateBasics(ctx.Request.Context(), courseID, basics)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, updated)
}

// AddMaterial godoc
// @Summary 新增章节
// @Tags 课程编辑
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param course path string true "课程 id 或 documentId"
// @Param body body model.CourseMaterial true "章节"
// @Success 201 {object} util.Response{data=model.CourseMaterial}
// @Router /api/authoring/courses/{course}/materials [post]
func (c *AuthoringController) AddMaterial(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	var m model.CourseMaterial
	if err := ctx.ShouldBindJSON(&m); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if m.Title == "" {
		util.BadRequest(ctx, "title is required")
		return
	}
	created, err := c.authoring.AddMaterial(ctx.Request.Context(), courseID, m)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, created)
}

// ReorderMaterials godoc
// @Summary 调整章节顺序
// @Description 任一写入失败时整表回滚并返回原顺序
// @Tags 课程编辑
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param course path string true "课程 id 或 documentId"
// @Param body body reorderRequest true "from/to 下标"
// @Success 200 {object} util.Response{data=[]model.CourseMaterial}
// @Router /api/authoring/courses/{course}/materials/reorder [post]
func (c *AuthoringController) ReorderMaterials(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	var req reorderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	materials, err := c.authoring.ReorderMaterials(ctx.Request.Context(), courseID, *req.From, *req.To)
	if err != nil {
		respondReorder(ctx, err, materials)
		return
	}
	util.Success(ctx, materials)
}

// AddContent godoc
// @Summary 新增课程内容
// @Description 保存失败时返回 202，条目留在待保存列表中等待重试
// @Tags 课程编辑
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param course path string true "课程 id 或 documentId"
// @Param material path string true "章节 documentId"
// @Param body body model.CourseContent true "内容"
// @Success 201 {object} util.Response{data=authoring.PendingItem}
// @Success 202 {object} util.Response{data=authoring.PendingItem}
// @Router /api/authoring/courses/{course}/materials/{material}/contents [post]
func (c *AuthoringController) AddContent(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	var draft model.CourseContent
	if err := ctx.ShouldBindJSON(&draft); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if draft.Type == "" && draft.URL != "" {
		draft.Type = authoring.DetectContentType(draft.URL)
	}
	item, err := c.authoring.AddContent(ctx.Request.Context(), courseID, ctx.Param("material"), draft)
	if err != nil {
		respondError(ctx, err)
		return
	}
	respondPending(ctx, item)
}

// RetryContent godoc
// @Summary 重新保存失败的内容
// @Tags 课程编辑
// @Produce json
// @Security ApiKeyAuth
// @Param course path string true "课程 id 或 documentId"
// @Param local path string true "本地 id"
// @Success 200 {object} util.Response{data=authoring.PendingItem}
// @Success 202 {object} util.Response{data=authoring.PendingItem}
// @Router /api/authoring/courses/{course}/pending/{local}/retry [post]
func (c *AuthoringController) RetryContent(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	item, err := c.authoring.RetryContent(ctx.Request.Context(), courseID, ctx.Param("local"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	respondPending(ctx, item)
}

// ReorderContents godoc
// @Summary 调整章节内的内容顺序
// @Tags 课程编辑
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param course path string true "课程 id 或 documentId"
// @Param material path string true "章节 documentId"
// @Param body body reorderRequest true "from/to 下标"
// @Success 200 {object} util.Response{data=[]model.CourseContent}
// @Router /api/authoring/courses/{course}/materials/{material}/contents/reorder [post]
func (c *AuthoringController) ReorderContents(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	var req reorderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	contents, err := c.authoring.ReorderContents(ctx.Request.Context(), courseID, ctx.Param("material"), *req.From, *req.To)
	if err != nil {
		respondReorder(ctx, err, contents)
		return
	}
	util.Success(ctx, contents)
}

// MoveContent godoc
// @Summary 把内容移动到其他章节
// @Tags 课程编辑
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param course path string true "课程 id 或 documentId"
// @Param content path string true "内容 documentId"
// @Param body body moveRequest true "目标章节与位置"
// @Success 200 {object} util.Response{data=authoring.WorkingSet}
// @Router /api/authoring/courses/{course}/contents/{content}/move [post]
func (c *AuthoringController) MoveContent(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	var req moveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	ws, err := c.authoring.MoveContent(ctx.Request.Context(), courseID, ctx.Param("content"), req.MaterialID, req.Index)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, ws)
}

// CopyrightCheck godoc
// @Summary 发起版权检测
// @Tags 课程编辑
// @Produce json
// @Security ApiKeyAuth
// @Param course path string true "课程 id 或 documentId"
// @Param content path string true "内容 documentId"
// @Success 200 {object} util.Response{data=model.CourseContent}
// @Failure 503 {object} util.Response
// @Router /api/authoring/courses/{course}/contents/{content}/copyright-check [post]
func (c *AuthoringController) CopyrightCheck(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	content, err := c.authoring.RequestCopyrightCheck(ctx.Request.Context(), courseID, ctx.Param("content"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, content)
}

// Publish godoc
// @Summary 修改课程发布状态
// @Description 付费课程发布前所有内容需通过版权检测，未通过时返回 409 和问题列表
// @Tags 课程编辑
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param course path string true "课程 id 或 documentId"
// @Param body body publishRequest true "目标状态"
// @Success 200 {object} util.Response{data=authoring.GateResult}
// @Failure 409 {object} util.Response{data=authoring.GateResult}
// @Router /api/authoring/courses/{course}/publish [post]
func (c *AuthoringController) Publish(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	var req publishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	switch req.Status {
	case model.CourseDraft, model.CoursePublished, model.CourseArchived:
	default:
		util.BadRequest(ctx, "invalid status")
		return
	}
	result, err := c.authoring.Publish(ctx.Request.Context(), courseID, req.Status)
	if errors.Is(err, util.ErrPublishBlocked) {
		util.ErrorWithData(ctx, http.StatusConflict, err.Error(), result)
		return
	}
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

func respondPending(ctx *gin.Context, item authoring.PendingItem) {
	switch item.Status {
	case authoring.StatusError:
		ctx.JSON(http.StatusAccepted, util.Response{Code: http.StatusAccepted, Message: item.Message, Data: item})
	case authoring.StatusSaved:
		util.Created(ctx, item)
	default:
		util.Success(ctx, item)
	}
}

// respondReorder 写入失败时带上回滚后的列表，编辑器据此恢复显示
func respondReorder[T any](ctx *gin.Context, err error, restored []T) {
	if restored == nil {
		respondError(ctx, err)
		return
	}
	util.ErrorWithData(ctx, http.StatusBadGateway, err.Error(), restored)
}
