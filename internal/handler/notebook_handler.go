package handler

import (
	"errors"
	"net/http"

	"notebook-rag-go/internal/service"
	"notebook-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NotebookHandler 负责处理笔记本的增删查请求。
type NotebookHandler struct {
	notebookService service.NotebookService
}

// NewNotebookHandler 创建一个新的 NotebookHandler 实例。
func NewNotebookHandler(notebookService service.NotebookService) *NotebookHandler {
	return &NotebookHandler{notebookService: notebookService}
}

// CreateNotebookRequest 定义了创建笔记本的请求体。
type CreateNotebookRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

// Create 创建一个新笔记本。
func (h *NotebookHandler) Create(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	var req CreateNotebookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}

	nb, err := h.notebookService.Create(user.ID, req.Title, req.Description)
	if err != nil {
		log.Errorf("[NotebookHandler] 创建笔记本失败, owner: %s, error: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建笔记本失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nb})
}

// List 返回当前用户的所有笔记本，按创建时间倒序。
func (h *NotebookHandler) List(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	nbs, err := h.notebookService.List(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询笔记本失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nbs})
}

// Get 返回单个笔记本的详情。
func (h *NotebookHandler) Get(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	nb, err := h.notebookService.Get(user.ID, c.Param("id"))
	if err != nil {
		writeNotebookError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nb})
}

// Delete 级联删除笔记本及其全部数据。
func (h *NotebookHandler) Delete(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	notebookID := c.Param("id")
	if err := h.notebookService.Delete(c.Request.Context(), user.ID, notebookID); err != nil {
		log.Errorf("[NotebookHandler] 删除笔记本失败, NotebookID: %s, error: %v", notebookID, err)
		writeNotebookError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

// writeNotebookError 把笔记本相关的业务错误映射为 HTTP 状态码。
func writeNotebookError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "笔记本不存在"})
	case errors.Is(err, service.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "操作失败"})
	}
}
