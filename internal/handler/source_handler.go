package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"notebook-rag-go/internal/model"
	"notebook-rag-go/internal/service"
	"notebook-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// maxUploadSize 单个上传文件的大小上限（50MB）。
const maxUploadSize = 50 << 20

// SourceHandler 负责处理来源的提交、轮询和删除请求。
type SourceHandler struct {
	notebookService service.NotebookService
	sourceService   service.SourceService
}

// NewSourceHandler 创建一个新的 SourceHandler 实例。
func NewSourceHandler(notebookService service.NotebookService, sourceService service.SourceService) *SourceHandler {
	return &SourceHandler{
		notebookService: notebookService,
		sourceService:   sourceService,
	}
}

// SubmitURLRequest 定义了 URL 类来源的提交请求体。
type SubmitURLRequest struct {
	Kind  string `json:"kind" binding:"required"`
	URL   string `json:"url" binding:"required,url"`
	Title string `json:"title"`
}

// Submit 提交一个新来源。multipart 请求按文件处理，JSON 请求按 URL 处理。
// 成功返回 202 和来源 ID，客户端用它轮询摄取状态。
func (h *SourceHandler) Submit(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}
	notebookID := c.Param("id")
	if _, err := h.notebookService.Get(user.ID, notebookID); err != nil {
		writeNotebookError(c, err)
		return
	}

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		h.submitFile(c, notebookID)
		return
	}
	h.submitURL(c, notebookID)
}

func (h *SourceHandler) submitFile(c *gin.Context, notebookID string) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少上传文件"})
		return
	}
	if fileHeader.Size > maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "文件过大"})
		return
	}

	kind, err := resolveFileKind(c.PostForm("kind"), fileHeader.Filename)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取上传文件失败"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取上传文件失败"})
		return
	}

	src, err := h.sourceService.SubmitFile(c.Request.Context(), service.SubmitFileInput{
		NotebookID: notebookID,
		Kind:       kind,
		FileName:   fileHeader.Filename,
		Data:       data,
	})
	if err != nil {
		log.Errorf("[SourceHandler] 文件来源提交失败, NotebookID: %s, error: %v", notebookID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "来源提交失败"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "message": "accepted", "data": src})
}

func (h *SourceHandler) submitURL(c *gin.Context, notebookID string) {
	var req SubmitURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}
	kind, err := model.ParseSourceKind(req.Kind)
	if err != nil || !kind.IsURLBased() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "不支持的来源类型: " + req.Kind})
		return
	}

	src, err := h.sourceService.SubmitURL(c.Request.Context(), service.SubmitURLInput{
		NotebookID: notebookID,
		Kind:       kind,
		Title:      req.Title,
		URL:        req.URL,
	})
	if err != nil {
		log.Errorf("[SourceHandler] URL 来源提交失败, NotebookID: %s, error: %v", notebookID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "来源提交失败"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "message": "accepted", "data": src})
}

// List 返回笔记本下的全部来源及其摄取状态和摘要。
func (h *SourceHandler) List(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}
	notebookID := c.Param("id")
	if _, err := h.notebookService.Get(user.ID, notebookID); err != nil {
		writeNotebookError(c, err)
		return
	}

	srcs, err := h.sourceService.List(notebookID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询来源失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": srcs})
}

// Get 返回单个来源，客户端轮询此接口等待状态变为 ready 或 failed。
func (h *SourceHandler) Get(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}
	notebookID := c.Param("id")
	if _, err := h.notebookService.Get(user.ID, notebookID); err != nil {
		writeNotebookError(c, err)
		return
	}

	src, err := h.sourceService.Get(c.Param("sourceId"))
	if err != nil || src.NotebookID != notebookID {
		c.JSON(http.StatusNotFound, gin.H{"error": "来源不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": src})
}

// Delete 删除单个来源及其分块、向量和对象。
func (h *SourceHandler) Delete(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}
	notebookID := c.Param("id")
	if _, err := h.notebookService.Get(user.ID, notebookID); err != nil {
		writeNotebookError(c, err)
		return
	}

	err := h.sourceService.Delete(c.Request.Context(), notebookID, c.Param("sourceId"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "来源不存在"})
			return
		}
		log.Errorf("[SourceHandler] 删除来源失败, SourceID: %s, error: %v", c.Param("sourceId"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除来源失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

// resolveFileKind 确定文件来源的类型：显式指定优先，否则按扩展名推断。
func resolveFileKind(explicit, fileName string) (model.SourceKind, error) {
	if explicit != "" {
		kind, err := model.ParseSourceKind(explicit)
		if err != nil {
			return "", err
		}
		if kind.IsURLBased() {
			return "", errors.New("该来源类型需要提供 URL 而非文件")
		}
		return kind, nil
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return model.KindPDF, nil
	case ".docx":
		return model.KindDOCX, nil
	default:
		return model.KindText, nil
	}
}
