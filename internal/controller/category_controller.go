package controller

import (
	"certprep_backend/internal/service"
	"certprep_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CategoryController struct {
	BankService *service.QuestionBankService
}

func NewCategoryController(bankService *service.QuestionBankService) *CategoryController {
	return &CategoryController{BankService: bankService}
}

// ListCategories godoc
// @Summary 获取题库分类
// @Description 按名称排序返回所有分类
// @Tags 题库
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Category} "成功"
// @Router /api/categories [get]
func (c *CategoryController) ListCategories(ctx *gin.Context) {
	categories, err := c.BankService.ListCategories(ctx.Request.Context())
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, categories)
}
