package controller

import (
	"certprep_backend/internal/service"
	"certprep_backend/internal/util"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

type SessionController struct {
	SessionService *service.SessionService
}

func NewSessionController(sessionService *service.SessionService) *SessionController {
	return &SessionController{SessionService: sessionService}
}

// CreateSession godoc
// @Summary 创建测试会话
// @Description 按分类抽题并冻结题目顺序，开始计时
// @Tags 测试会话
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CreateSessionRequest true "会话配置"
// @Success 201 {object} util.Response{data=service.CreateSessionResult} "创建成功"
// @Failure 400 {object} util.Response "配置不合法"
// @Failure 422 {object} util.Response "所选分类下没有可用题目"
// @Router /api/sessions [post]
func (c *SessionController) CreateSession(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.CreateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.SessionService.CreateSession(claims.UserID, req)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrEmptyPool):
			util.Error(ctx, 422, "所选分类下没有可用题目")
		case errors.Is(err, util.ErrInvalidConfig):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, result)
}

// GetSession godoc
// @Summary 获取会话详情
// @Description 进行中返回题面和已选答案，完成后附带判定结果和解析
// @Tags 测试会话
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "会话ID"
// @Success 200 {object} util.Response{data=service.SessionDetail} "成功"
// @Failure 403 {object} util.Response "无权访问该会话"
// @Failure 404 {object} util.Response "会话不存在"
// @Router /api/sessions/{id} [get]
func (c *SessionController) GetSession(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	detail, err := c.SessionService.GetSessionDetail(claims.UserID, ctx.Param("id"))
	if err != nil {
		c.writeSessionError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// SubmitAnswer godoc
// @Summary 提交单题作答
// @Description 同一题重复提交按最后一次覆盖，完成前均可修改
// @Tags 测试会话
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "会话ID"
// @Param   body body service.SubmitAnswerRequest true "作答内容"
// @Success 200 {object} util.Response{data=model.AnswerRecord} "成功"
// @Failure 400 {object} util.Response "题目不属于该会话"
// @Failure 409 {object} util.Response "会话已完成或已超时"
// @Router /api/sessions/{id}/answers [post]
func (c *SessionController) SubmitAnswer(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	record, err := c.SessionService.SubmitAnswer(claims.UserID, ctx.Param("id"), req)
	if err != nil {
		c.writeSessionError(ctx, err)
		return
	}
	util.Success(ctx, record)
}

// CompleteSession godoc
// @Summary 完成会话并计分
// @Description 幂等接口，重复调用返回相同成绩
// @Tags 测试会话
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "会话ID"
// @Success 200 {object} util.Response{data=service.CompletionResult} "成功"
// @Failure 403 {object} util.Response "无权访问该会话"
// @Failure 404 {object} util.Response "会话不存在"
// @Router /api/sessions/{id}/complete [post]
func (c *SessionController) CompleteSession(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.SessionService.CompleteSession(claims.UserID, ctx.Param("id"))
	if err != nil {
		// 成绩已落库，聚合由对账任务兜底重试
		if errors.Is(err, util.ErrAggregationFailed) && result != nil {
			util.Success(ctx, result)
			return
		}
		c.writeSessionError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// ListSessions godoc
// @Summary 会话历史
// @Description 按开始时间倒序返回当前用户的会话
// @Tags 测试会话
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "页码，默认1"
// @Param   limit query int false "每页条数，默认20"
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/sessions [get]
func (c *SessionController) ListSessions(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	sessions, total, err := c.SessionService.ListSessions(claims.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{
		List:  sessions,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// writeSessionError 把会话领域错误映射到HTTP状态码
func (c *SessionController) writeSessionError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrSessionNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrSessionCompleted):
		util.Conflict(ctx, "会话已完成，不能继续作答")
	case errors.Is(err, util.ErrSessionExpired):
		util.Conflict(ctx, "会话已超时，本次提交不计分")
	case errors.Is(err, util.ErrUnknownQuestion):
		util.BadRequest(ctx, "题目不属于该会话")
	default:
		util.LogInternalError(ctx, err)
	}
}
