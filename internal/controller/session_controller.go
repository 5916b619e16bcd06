package controller

import (
	"net/http"
	"strings"

	"course_studio_backend/internal/service"
	"course_studio_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type SessionController struct {
	tokens *service.TokenStore
}

func NewSessionController(tokens *service.TokenStore) *SessionController {
	return &SessionController{tokens: tokens}
}

type StoreTokenRequest struct {
	Token   string `json:"token" binding:"required"`
	TTLDays int    `json:"ttlDays"`
}

type PendingEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// StoreToken godoc
// @Summary 保存登录凭证到 cookie
// @Tags 会话
// @Accept json
// @Produce json
// @Param body body StoreTokenRequest true "凭证"
// @Success 200 {object} util.Response
// @Router /api/session [post]
func (c *SessionController) StoreToken(ctx *gin.Context) {
	var req StoreTokenRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	expiry := c.tokens.Set(ctx, strings.TrimSpace(req.Token), req.TTLDays)
	util.Success(ctx, gin.H{"expiresAt": expiry})
}

// GetToken godoc
// @Summary 读取 cookie 中的登录凭证
// @Tags 会话
// @Produce json
// @Success 200 {object} util.Response
// @Failure 401 {object} util.Response
// @Router /api/session [get]
func (c *SessionController) GetToken(ctx *gin.Context) {
	token, ok := c.tokens.Get(ctx)
	if !ok {
		util.Unauthorized(ctx)
		return
	}
	util.Success(ctx, gin.H{"token": token})
}

// ClearToken godoc
// @Summary 清除登录凭证
// @Tags 会话
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/session [delete]
func (c *SessionController) ClearToken(ctx *gin.Context) {
	c.tokens.Clear(ctx)
	util.Success(ctx, nil)
}

// StorePendingEmail godoc
// @Summary 记录待验证邮箱（1 天）
// @Tags 会话
// @Accept json
// @Produce json
// @Param body body PendingEmailRequest true "邮箱"
// @Success 200 {object} util.Response
// @Router /api/session/pending-email [post]
func (c *SessionController) StorePendingEmail(ctx *gin.Context) {
	var req PendingEmailRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	c.tokens.SetPendingEmail(ctx, req.Email)
	util.Success(ctx, nil)
}

// GetPendingEmail godoc
// @Summary 读取待验证邮箱
// @Tags 会话
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/session/pending-email [get]
func (c *SessionController) GetPendingEmail(ctx *gin.Context) {
	email := c.tokens.PendingEmail(ctx)
	if email == "" {
		util.Error(ctx, http.StatusNotFound, "no pending email")
		return
	}
	util.Success(ctx, gin.H{"email": email})
}

// ClearPendingEmail godoc
// @Summary 清除待验证邮箱
// @Tags 会话
// @Success 200 {object} util.Response
// @Router /api/session/pending-email [delete]
func (c *SessionController) ClearPendingEmail(ctx *gin.Context) {
	c.tokens.ClearPendingEmail(ctx)
	util.Success(ctx, nil)
}
