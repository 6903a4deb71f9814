package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/media"
	"messaging-service/internal/messaging"
	"messaging-service/internal/models"
)

// ChatHandler serves the REST side of conversations. Sends go through the
// same pipeline as the websocket path.
type ChatHandler struct {
	pipeline *messaging.Pipeline
}

func NewChatHandler(pipeline *messaging.Pipeline) *ChatHandler {
	return &ChatHandler{pipeline: pipeline}
}

// ListChats returns the caller's chats, most recent activity first.
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.pipeline.ListChats(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	if chats == nil {
		chats = []models.ChatSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// StartChat creates or returns the chat with an operator.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		OperatorID int `json:"operator_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	chat, created, err := h.pipeline.StartChat(c.Request.Context(), identityFromContext(c), req.OperatorID)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"chat_id": chat.ID, "chat": chat})
}

// GetChatMessages returns a page of history. ?before=<id>&limit=<n>.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, ok := intParam(c, "chat_id")
	if !ok {
		return
	}
	var before int64
	if raw := c.Query("before"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			badRequest(c, "invalid before")
			return
		}
		before = v
	}

	msgs, err := h.pipeline.History(c.Request.Context(), identityFromContext(c), chatID, before, queryInt(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostChatMessage sends a message. JSON bodies carry text or a media URL;
// multipart bodies carry the media itself in the "file" field.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chatID, ok := intParam(c, "chat_id")
	if !ok {
		return
	}

	req := messaging.SendRequest{ChatID: chatID, SenderID: c.GetInt("userID")}
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if !h.bindMultipart(c, &req) {
			return
		}
	} else {
		var body struct {
			Kind    models.KindTag `json:"kind"`
			Tier    int            `json:"tier"`
			Content string         `json:"content"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err.Error())
			return
		}
		req.Kind = models.MessageKind{Tag: body.Kind, Tier: body.Tier}
		req.Content = body.Content
	}

	res, err := h.pipeline.Send(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *ChatHandler) bindMultipart(c *gin.Context, req *messaging.SendRequest) bool {
	req.Kind = models.MessageKind{Tag: models.KindTag(c.PostForm("kind"))}
	req.Content = c.PostForm("content")

	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return false
	}
	if header.Size > media.MaxUploadBytes {
		badRequest(c, media.ErrPayloadTooLarge.Error())
		return false
	}
	f, err := header.Open()
	if err != nil {
		badRequest(c, "unreadable file")
		return false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, media.MaxUploadBytes+1))
	if err != nil {
		badRequest(c, "unreadable file")
		return false
	}
	req.Media = data
	req.ContentType = header.Header.Get("Content-Type")
	return true
}

// MarkRead flags the peer's messages as read.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	chatID, ok := intParam(c, "chat_id")
	if !ok {
		return
	}
	n, err := h.pipeline.MarkRead(c.Request.Context(), chatID, c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}
