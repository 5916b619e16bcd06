package controller

import (
	"errors"

	"course_studio_backend/internal/model"
	"course_studio_backend/internal/repository"
	"course_studio_backend/internal/service"
	"course_studio_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizAttemptController struct {
	attempts *repository.QuizAttemptRepository
	grading  *service.GradingService
}

func NewQuizAttemptController(attempts *repository.QuizAttemptRepository, grading *service.GradingService) *QuizAttemptController {
	return &QuizAttemptController{attempts: attempts, grading: grading}
}

// ownedBy 管理员可访问所有记录，其他用户只能访问自己的
func ownedBy(claims *util.Claims, user *model.UserSummary) bool {
	if claims.IsAdmin() {
		return true
	}
	if user == nil {
		return false
	}
	return user.ID == claims.UserID || (claims.DocumentID != "" && user.DocumentID == claims.DocumentID)
}

// selfRef 非管理员只能以自己的身份提交
func selfRef(claims *util.Claims, requested model.Ref) model.Ref {
	if claims.IsAdmin() && !requested.IsZero() {
		return requested
	}
	if claims.DocumentID != "" {
		return model.Ref(claims.DocumentID)
	}
	return model.IDRef(claims.UserID)
}

// Submit godoc
// @Summary 提交测验并判分，达到及格线时颁发证书
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.Submission true "答题结果"
// @Success 200 {object} util.Response{data=service.SubmissionResult}
// @Failure 502 {object} util.Response
// @Router /api/quiz-attempts/submit [post]
func (c *QuizAttemptController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	var sub service.Submission
	if err := ctx.ShouldBindJSON(&sub); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	sub.UserID = selfRef(user, sub.UserID)

	result, err := c.grading.Submit(ctx.Request.Context(), sub)
	if err != nil {
		var stepErr *service.StepError
		if errors.As(err, &stepErr) {
			util.ErrorWithData(ctx, 502, err.Error(), gin.H{"step": stepErr.Step, "partial": result})
			return
		}
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Create godoc
// @Summary 创建答题记录
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body model.CreateAttemptInput true "答题记录"
// @Success 201 {object} util.Response{data=model.QuizAttempt}
// @Router /api/quiz-attempts [post]
func (c *QuizAttemptController) Create(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	var in model.CreateAttemptInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if in.Status != "" && !in.Status.Valid() {
		util.BadRequest(ctx, "invalid status")
		return
	}
	in.UserID = selfRef(user, in.UserID)

	attempt := c.attempts.Create(ctx.Request.Context(), in)
	if attempt == nil {
		backendUnavailable(ctx)
		return
	}
	util.Created(ctx, attempt)
}

// List godoc
// @Summary 查询答题记录
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param user query string false "用户 id 或 documentId"
// @Param certificateProgram query string false "证书项目"
// @Param courseContent query string false "课程内容"
// @Param status query string false "状态"
// @Success 200 {object} util.Response{data=[]model.QuizAttempt}
// @Router /api/quiz-attempts [get]
func (c *QuizAttemptController) List(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	var filter model.AttemptFilter
	if err := ctx.ShouldBindQuery(&filter); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	filter.UserID = selfRef(user, filter.UserID)
	if user.IsAdmin() && ctx.Query("user") == "" {
		filter.UserID = ""
	}
	util.Success(ctx, c.attempts.List(ctx.Request.Context(), filter))
}

// Get godoc
// @Summary 获取答题记录
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "id 或 documentId"
// @Success 200 {object} util.Response{data=model.QuizAttempt}
// @Router /api/quiz-attempts/{id} [get]
func (c *QuizAttemptController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	attempt := c.attempts.Get(ctx.Request.Context(), model.Ref(ctx.Param("id")))
	if attempt == nil {
		util.NotFound(ctx)
		return
	}
	if !ownedBy(user, attempt.User) {
		util.Forbidden(ctx)
		return
	}
	util.Success(ctx, attempt)
}

// Update godoc
// @Summary 更新答题记录
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "id 或 documentId"
// @Param body body model.AttemptPatch true "需要更新的字段"
// @Success 200 {object} util.Response{data=model.QuizAttempt}
// @Router /api/quiz-attempts/{id} [put]
func (c *QuizAttemptController) Update(ctx *gin.Context) {
	var patch model.AttemptPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if patch.Status != nil && !patch.Status.Valid() {
		util.BadRequest(ctx, "invalid status")
		return
	}
	attempt := c.attempts.Update(ctx.Request.Context(), model.Ref(ctx.Param("id")), patch)
	if attempt == nil {
		backendUnavailable(ctx)
		return
	}
	util.Success(ctx, attempt)
}

// Delete godoc
// @Summary 删除答题记录
// @Tags 测验
// @Security ApiKeyAuth
// @Param id path string true "id 或 documentId"
// @Success 200 {object} util.Response
// @Router /api/quiz-attempts/{id} [delete]
func (c *QuizAttemptController) Delete(ctx *gin.Context) {
	if !c.attempts.Delete(ctx.Request.Context(), model.Ref(ctx.Param("id"))) {
		backendUnavailable(ctx)
		return
	}
	util.Success(ctx, nil)
}
