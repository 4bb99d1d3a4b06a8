package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"regulaite-backend/models"
	"regulaite-backend/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Answerer resolves one query
type Answerer interface {
	ResolveAnswer(ctx context.Context, req service.ResolveAnswerRequest) *service.ResolveAnswerResult
}

// HistoryStore keeps per-user chat transcripts
type HistoryStore interface {
	Load(ctx context.Context, username string) ([]models.ConversationTurn, error)
	Append(ctx context.Context, username string, turns ...models.ConversationTurn) ([]models.ConversationTurn, error)
	Clear(ctx context.Context, username string) error
}

// ChatDefaults are the request settings used when a request leaves them unset
type ChatDefaults struct {
	TopK       int
	Evidence   bool
	WebEnabled bool
}

// ChatHandler handles HTTP requests for the chat
type ChatHandler struct {
	answers  Answerer
	history  HistoryStore
	defaults ChatDefaults
	now      func() time.Time
	logger   *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(answers Answerer, history HistoryStore, defaults ChatDefaults, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{
		answers:  answers,
		history:  history,
		defaults: defaults,
		now:      time.Now,
		logger:   logger,
	}
}

// AskRequest represents the request body for asking a question
type AskRequest struct {
	Query            string `json:"query"`
	AnswerLength     string `json:"answer_length"`
	WebEnabled       *bool  `json:"web_enabled"`
	EvidenceMode     *bool  `json:"evidence_mode"`
	RetrievalTopK    int    `json:"retrieval_top_k" binding:"omitempty,min=1,max=50"`
	RetrievalStoreID string `json:"retrieval_store_id"`
	Model            string `json:"model"`
}

// AskResponse is the data returned for an answered question
type AskResponse struct {
	Answer              *models.AnswerRecord `json:"answer"`
	Markdown            string               `json:"markdown"`
	Backend             string               `json:"backend"`
	Mode                service.Mode         `json:"mode"`
	Strict              bool                 `json:"strict"`
	Weak                bool                 `json:"weak"`
	Status              models.QueryStatus   `json:"status"`
	FollowUpSuggestions []string             `json:"follow_up_suggestions"`
}

// Ask handles POST /api/chat/ask
func (h *ChatHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "EMPTY_QUERY",
				"message": service.ErrEmptyQuery.Error(),
			},
		})
		return
	}

	username := c.GetString(ContextUsername)
	ctx := c.Request.Context()

	history, err := h.history.Load(ctx, username)
	if err != nil {
		h.logger.Error("Failed to load history", zap.String("username", username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "HISTORY_READ_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	if service.IsDuplicate(history, query) {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DUPLICATE_QUERY",
				"message": service.ErrDuplicateQuery.Error(),
			},
		})
		return
	}

	history, err = h.history.Append(ctx, username, models.ConversationTurn{Role: models.RoleUser, Content: query})
	if err != nil {
		h.logger.Error("Failed to store user turn", zap.String("username", username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "HISTORY_WRITE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	serviceReq := service.ResolveAnswerRequest{
		Query:            query,
		History:          history,
		RetrievalTopK:    h.defaults.TopK,
		EvidenceMode:     h.defaults.Evidence,
		ModeHint:         string(service.ModeForAnswerLength(req.AnswerLength)),
		WebEnabled:       h.defaults.WebEnabled,
		RetrievalStoreID: strings.TrimSpace(req.RetrievalStoreID),
		ModelName:        strings.TrimSpace(req.Model),
		ApplyLengthNote:  true,
		Username:         username,
	}
	if req.RetrievalTopK > 0 {
		serviceReq.RetrievalTopK = req.RetrievalTopK
	}
	if req.EvidenceMode != nil {
		serviceReq.EvidenceMode = *req.EvidenceMode
	}
	if req.WebEnabled != nil {
		serviceReq.WebEnabled = *req.WebEnabled
	}

	result := h.answers.ResolveAnswer(ctx, serviceReq)
	markdown := result.Answer.Markdown()

	if _, err := h.history.Append(ctx, username, models.ConversationTurn{Role: models.RoleAssistant, Content: markdown}); err != nil {
		h.logger.Error("Failed to store assistant turn", zap.String("username", username), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": AskResponse{
			Answer:              result.Answer,
			Markdown:            markdown,
			Backend:             result.Backend,
			Mode:                result.Mode,
			Strict:              result.Strict,
			Weak:                result.Weak,
			Status:              result.Status,
			FollowUpSuggestions: result.Answer.FollowUpSuggestions,
		},
	})
}

// GetHistory handles GET /api/chat/history
func (h *ChatHandler) GetHistory(c *gin.Context) {
	history, ok := h.loadHistory(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    history,
	})
}

// ClearHistory handles DELETE /api/chat/history
func (h *ChatHandler) ClearHistory(c *gin.Context) {
	username := c.GetString(ContextUsername)
	if err := h.history.Clear(c.Request.Context(), username); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CLEAR_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Chat history cleared",
	})
}

// ExportAnswerMarkdown handles GET /api/chat/export/answer.md
func (h *ChatHandler) ExportAnswerMarkdown(c *gin.Context) {
	md, ok := h.latestAnswer(c)
	if !ok {
		return
	}
	h.attachment(c, service.ExportFileName("answer", "md", h.now()), "text/markdown; charset=utf-8", []byte(md))
}

// ExportAnswerHTML handles GET /api/chat/export/answer.html
func (h *ChatHandler) ExportAnswerHTML(c *gin.Context) {
	md, ok := h.latestAnswer(c)
	if !ok {
		return
	}

	page, err := service.RenderHTML("RegulAIte Answer", md)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RENDER_FAILED",
				"message": err.Error(),
			},
		})
		return
	}
	h.attachment(c, service.ExportFileName("answer", "html", h.now()), "text/html; charset=utf-8", []byte(page))
}

// ExportChatJSON handles GET /api/chat/export/chat.json
func (h *ChatHandler) ExportChatJSON(c *gin.Context) {
	history, ok := h.loadHistory(c)
	if !ok {
		return
	}

	data, err := service.ChatJSON(history)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "EXPORT_FAILED",
				"message": err.Error(),
			},
		})
		return
	}
	h.attachment(c, service.ExportFileName("chat", "json", h.now()), "application/json", data)
}

// ExportChatMarkdown handles GET /api/chat/export/chat.md
func (h *ChatHandler) ExportChatMarkdown(c *gin.Context) {
	history, ok := h.loadHistory(c)
	if !ok {
		return
	}

	md := service.ChatMarkdown(history)
	if md == "" {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NO_HISTORY",
				"message": "Chat history is empty",
			},
		})
		return
	}
	h.attachment(c, service.ExportFileName("chat", "md", h.now()), "text/markdown; charset=utf-8", []byte(md))
}

// Suggestions handles GET /api/chat/suggestions?query=
func (h *ChatHandler) Suggestions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    service.FollowUpSuggestions(c.Query("query")),
	})
}

func (h *ChatHandler) loadHistory(c *gin.Context) ([]models.ConversationTurn, bool) {
	history, err := h.history.Load(c.Request.Context(), c.GetString(ContextUsername))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "HISTORY_READ_FAILED",
				"message": err.Error(),
			},
		})
		return nil, false
	}
	return history, true
}

func (h *ChatHandler) latestAnswer(c *gin.Context) (string, bool) {
	history, ok := h.loadHistory(c)
	if !ok {
		return "", false
	}

	md, err := service.LatestAnswerMarkdown(history)
	if errors.Is(err, service.ErrNoAnswer) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NO_ANSWER",
				"message": "No answer to export yet",
			},
		})
		return "", false
	}
	return md, true
}

func (h *ChatHandler) attachment(c *gin.Context, filename, contentType string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}
