package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"notebook-rag-go/internal/service"
	"notebook-rag-go/pkg/log"
	"notebook-rag-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理 WebSocket 问答连接和对话历史查询。
type ChatHandler struct {
	chatService     service.ChatService
	notebookService service.NotebookService
	userService     service.UserService
	jwtManager      *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(
	chatService service.ChatService,
	notebookService service.NotebookService,
	userService service.UserService,
	jwtManager *token.JWTManager,
) *ChatHandler {
	return &ChatHandler{
		chatService:     chatService,
		notebookService: notebookService,
		userService:     userService,
		jwtManager:      jwtManager,
	}
}

// chatRequest 是客户端通过 WebSocket 发送的一次提问。
type chatRequest struct {
	NotebookID string `json:"notebookId"`
	Question   string `json:"question"`
}

// chatResponse 是一次完整的回答，答案与被引分块 ID 一次性返回。
type chatResponse struct {
	Answer        string   `json:"answer"`
	CitedChunkIDs []string `json:"citedChunkIds"`
	Timestamp     int64    `json:"timestamp"`
}

type chatError struct {
	Error string `json:"error"`
}

// Handle 处理一个传入的 WebSocket 连接。
// 连接通过路径中的 token 认证；每条消息是一次独立的阻塞式问答。
func (h *ChatHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyToken(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的 token"})
		return
	}
	user, err := h.userService.GetProfile(claims.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户不存在"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()
	log.Infof("WebSocket 连接已建立，用户: %s", user.Email)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		var req chatRequest
		if err := json.Unmarshal(message, &req); err != nil || req.NotebookID == "" || req.Question == "" {
			h.writeError(conn, "消息格式错误，需要 {notebookId, question}")
			continue
		}

		// 校验笔记本所有权，防止跨用户提问
		if _, err := h.notebookService.Get(user.ID, req.NotebookID); err != nil {
			h.writeError(conn, "笔记本不存在或无权访问")
			continue
		}

		answer, citedIDs, err := h.chatService.Answer(c.Request.Context(), req.NotebookID, req.Question)
		if err != nil {
			log.Errorf("[ChatHandler] 回答生成失败, NotebookID: %s, error: %v", req.NotebookID, err)
			h.writeError(conn, "回答生成失败，请稍后重试")
			continue
		}

		if citedIDs == nil {
			citedIDs = []string{}
		}
		resp := chatResponse{
			Answer:        answer,
			CitedChunkIDs: citedIDs,
			Timestamp:     time.Now().UnixMilli(),
		}
		b, _ := json.Marshal(resp)
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Warnf("向 WebSocket 写入消息失败: %v", err)
			break
		}
	}
}

// History 返回笔记本的完整对话记录，按时间升序，带被引分块 ID。
func (h *ChatHandler) History(c *gin.Context) {
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

	messages, err := h.chatService.History(c.Request.Context(), notebookID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询对话记录失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": messages})
}

func (h *ChatHandler) writeError(conn *websocket.Conn, msg string) {
	b, _ := json.Marshal(chatError{Error: msg})
	_ = conn.WriteMessage(websocket.TextMessage, b)
}
