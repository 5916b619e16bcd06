package controller

import (
	"course_studio_backend/internal/model"
	"course_studio_backend/internal/repository"
	"course_studio_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CertificateIssuanceController struct {
	issuances *repository.CertificateIssuanceRepository
}

func NewCertificateIssuanceController(issuances *repository.CertificateIssuanceRepository) *CertificateIssuanceController {
	return &CertificateIssuanceController{issuances: issuances}
}

func validIssuanceStatus(s model.IssuanceStatus) bool {
	switch s {
	case model.IssuanceActive, model.IssuanceExpired, model.IssuanceRevoked:
		return true
	}
	return false
}

// Create godoc
// @Summary 颁发证书
// @Tags 证书
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body model.CreateIssuanceInput true "证书"
// @Success 201 {object} util.Response{data=model.CertificateIssuance}
// @Router /api/certificate-issuances [post]
func (c *CertificateIssuanceController) Create(ctx *gin.Context) {
	var in model.CreateIssuanceInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if in.Status != "" && !validIssuanceStatus(in.Status) {
		util.BadRequest(ctx, "invalid status")
		return
	}
	issuance := c.issuances.Create(ctx.Request.Context(), in)
	if issuance == nil {
		backendUnavailable(ctx)
		return
	}
	util.Created(ctx, issuance)
}

// List godoc
// @Summary 查询证书
// @Tags 证书
// @Produce json
// @Security ApiKeyAuth
// @Param user query string false "用户 id 或 documentId"
// @Param certificateProgram query string false "证书项目"
// @Param quizAttempt query string false "来源答题记录"
// @Param status query string false "状态"
// @Success 200 {object} util.Response{data=[]model.CertificateIssuance}
// @Router /api/certificate-issuances [get]
func (c *CertificateIssuanceController) List(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	var filter model.IssuanceFilter
	if err := ctx.ShouldBindQuery(&filter); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	filter.UserID = selfRef(user, filter.UserID)
	if user.IsAdmin() && ctx.Query("user") == "" {
		filter.UserID = ""
	}
	util.Success(ctx, c.issuances.List(ctx.Request.Context(), filter))
}

// Get godoc
// @Summary 获取证书
// @Tags 证书
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "id 或 documentId"
// @Success 200 {object} util.Response{data=model.CertificateIssuance}
// @Router /api/certificate-issuances/{id} [get]
func (c *CertificateIssuanceController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	issuance := c.issuances.Get(ctx.Request.Context(), model.Ref(ctx.Param("id")))
	if issuance == nil {
		util.NotFound(ctx)
		return
	}
	if !ownedBy(user, issuance.User) {
		util.Forbidden(ctx)
		return
	}
	util.Success(ctx, issuance)
}

// Update godoc
// @Summary 修改证书
// @Tags 证书
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "id 或 documentId"
// @Param body body model.IssuancePatch true "需要更新的字段"
// @Success 200 {object} util.Response{data=model.CertificateIssuance}
// @Router /api/certificate-issuances/{id} [put]
func (c *CertificateIssuanceController) Update(ctx *gin.Context) {
	var patch model.IssuancePatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if patch.Status != nil && !validIssuanceStatus(*patch.Status) {
		util.BadRequest(ctx, "invalid status")
		return
	}
	issuance := c.issuances.Update(ctx.Request.Context(), model.Ref(ctx.Param("id")), patch)
	if issuance == nil {
		backendUnavailable(ctx)
		return
	}
	util.Success(ctx, issuance)
}

// Revoke godoc
// @Summary 吊销证书
// @Tags 证书
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "id 或 documentId"
// @Success 200 {object} util.Response{data=model.CertificateIssuance}
// @Router /api/certificate-issuances/{id}/revoke [post]
func (c *CertificateIssuanceController) Revoke(ctx *gin.Context) {
	issuance := c.issuances.Revoke(ctx.Request.Context(), model.Ref(ctx.Param("id")))
	if issuance == nil {
		backendUnavailable(ctx)
		return
	}
	util.Success(ctx, issuance)
}

// Delete godoc
// @Summary 删除证书
// @Tags 证书
// @Security ApiKeyAuth
// @Param id path string true "id 或 documentId"
// @Success 200 {object} util.Response
// @Router /api/certificate-issuances/{id} [delete]
func (c *CertificateIssuanceController) Delete(ctx *gin.Context) {
	if !c.issuances.Delete(ctx.Request.Context(), model.Ref(ctx.Param("id"))) {
		backendUnavailable(ctx)
		return
	}
	util.Success(ctx, nil)
}
