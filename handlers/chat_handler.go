package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mindtek/leadchat/db"
	"github.com/mindtek/leadchat/internal/auth"
	"github.com/mindtek/leadchat/services"
)

// Handler exposes the chat and dashboard surface. When authService is nil the
// dashboard routes are open, which matches the original public deployment.
type Handler struct {
	chat        *services.ChatService
	extraction  *services.ExtractionService
	store       db.Store
	authService *auth.Service
	logger      *zap.SugaredLogger
}

func NewHandler(chat *services.ChatService, extraction *services.ExtractionService, store db.Store, authService *auth.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		chat:        chat,
		extraction:  extraction,
		store:       store,
		authService: authService,
		logger:      logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.POST("/start", h.handleStart)
	router.POST("/chat", h.handleChat)

	dashboard := router.Group("/conversations")
	if h.authService != nil {
		router.POST("/auth/login", h.handleLogin)
		dashboard.Use(h.requireAdmin)
	}
	dashboard.GET("", h.handleList)
	dashboard.GET("/:id", h.handleGetMessages)
	dashboard.DELETE("/:id", h.handleDelete)
	dashboard.POST("/:id/analyze", h.handleAnalyze)
}

// CORSMiddleware allows the separately hosted dashboard to call the API.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

type loginRequest struct {
	Password string `json:"password"`
}

func (h *Handler) handleStart(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"conversation_id": h.chat.StartConversation()})
}

func (h *Handler) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"reply": "Missing conversation_id."})
		return
	}

	if strings.TrimSpace(req.ConversationID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"reply": "Missing conversation_id."})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required."})
		return
	}

	reply, history, err := h.chat.HandleTurn(c.Request.Context(), req.ConversationID, req.Message)
	if err != nil {
		h.logger.Warnw("chat turn failed", "conversation_id", req.ConversationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"reply": "Sorry, I could not process your request."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reply": reply, "history": history})
}

func (h *Handler) handleList(c *gin.Context) {
	summaries, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Warnw("list conversations failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

func (h *Handler) handleGetMessages(c *gin.Context) {
	id := c.Param("id")

	turns, err := h.store.GetTurns(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found."})
			return
		}
		h.logger.Warnw("fetch conversation failed", "conversation_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversation."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": turns})
}

func (h *Handler) handleDelete(c *gin.Context) {
	id := c.Param("id")

	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.logger.Warnw("delete conversation failed", "conversation_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete conversation."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) handleAnalyze(c *gin.Context) {
	id := c.Param("id")

	lead, err := h.extraction.Extract(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found."})
		case errors.Is(err, services.ErrValidationFailure):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "code": "validation_failed"})
		case errors.Is(err, services.ErrMalformedExtraction):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse analysis JSON.", "code": "malformed_extraction"})
		case errors.Is(err, services.ErrCompletionFailure):
			h.logger.Warnw("analysis completion failed", "conversation_id", id, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to analyze conversation.", "code": "completion_failed"})
		default:
			h.logger.Warnw("analysis failed", "conversation_id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to analyze conversation.", "code": "storage_failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"analysis": lead})
}

func (h *Handler) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	token, expiresAt, err := h.authService.Login(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger.Warnw("login failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to login"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expiresAt.Format(time.RFC3339),
	})
}

func (h *Handler) requireAdmin(c *gin.Context) {
	token := parseBearerToken(c.GetHeader("Authorization"))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}

	if _, err := h.authService.VerifyToken(token); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	c.Next()
}

func parseBearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
