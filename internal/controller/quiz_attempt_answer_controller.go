package controller

import (
	"course_studio_backend/internal/model"
	"course_studio_backend/internal/repository"
	"course_studio_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizAttemptAnswerController struct {
	answers *repository.QuizAttemptAnswerRepository
}

func NewQuizAttemptAnswerController(answers *repository.QuizAttemptAnswerRepository) *QuizAttemptAnswerController {
	return &QuizAttemptAnswerController{answers: answers}
}

// Create godoc
// @Summary 保存单题作答
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body model.CreateAnswerInput true "作答"
// @Success 201 {object} util.Response{data=model.QuizAttemptAnswer}
// @Router /api/quiz-attempt-answers [post]
func (c *QuizAttemptAnswerController) Create(ctx *gin.Context) {
	var in model.CreateAnswerInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	answer := c.answers.Create(ctx.Request.Context(), in)
	if answer == nil {
		backendUnavailable(ctx)
		return
	}
	util.Created(ctx, answer)
}

// List godoc
// @Summary 查询作答
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param attempt query string false "答题记录 id 或 documentId"
// @Param question query int false "题目 id"
// @Success 200 {object} util.Response{data=[]model.QuizAttemptAnswer}
// @Router /api/quiz-attempt-answers [get]
func (c *QuizAttemptAnswerController) List(ctx *gin.Context) {
	var filter model.AnswerFilter
	if err := ctx.ShouldBindQuery(&filter); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Success(ctx, c.answers.List(ctx.Request.Context(), filter))
}

// Get godoc
// @Summary 获取作答
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "id 或 documentId"
// @Success 200 {object} util.Response{data=model.QuizAttemptAnswer}
// @Router /api/quiz-attempt-answers/{id} [get]
func (c *QuizAttemptAnswerController) Get(ctx *gin.Context) {
	answer := c.answers.Get(ctx.Request.Context(), model.Ref(ctx.Param("id")))
	if answer == nil {
		util.NotFound(ctx)
		return
	}
	util.Success(ctx, answer)
}

// Update godoc
// @Summary 修改作答
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "id 或 documentId"
// @Param body body model.AnswerPatch true "需要更新的字段"
// @Success 200 {object} util.Response{data=model.QuizAttemptAnswer}
// @Router /api/quiz-attempt-answers/{id} [put]
func (c *QuizAttemptAnswerController) Update(ctx *gin.Context) {
	var patch model.AnswerPatch
	if err := ctx.ShouldBindJSON(&patch); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	answer := c.answers.Update(ctx.Request.Context(), model.Ref(ctx.Param("id")), patch)
	if answer == nil {
		backendUnavailable(ctx)
		return
	}
	util.Success(ctx, answer)
}

// Delete godoc
// @Summary 删除作答
// @Tags 测验
// @Security ApiKeyAuth
// @Param id path string true "id 或 documentId"
// @Success 200 {object} util.Response
// @Router /api/quiz-attempt-answers/{id} [delete]
func (c *QuizAttemptAnswerController) Delete(ctx *gin.Context) {
	if !c.answers.Delete(ctx.Request.Context(), model.Ref(ctx.Param("id"))) {
		backendUnavailable(ctx)
		return
	}
	util.Success(ctx, nil)
}
