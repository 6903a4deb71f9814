package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/models"
	"messaging-service/internal/social"
)

// SocialHandler serves favorites and profile views.
type SocialHandler struct {
	social *social.Service
}

func NewSocialHandler(svc *social.Service) *SocialHandler {
	return &SocialHandler{social: svc}
}

type favoriteRequest struct {
	TargetUserID int `json:"target_user_id" binding:"required"`
}

func (h *SocialHandler) AddFavorite(c *gin.Context) {
	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	fav, err := h.social.AddFavorite(c.Request.Context(), identityFromContext(c), req.TargetUserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fav)
}

func (h *SocialHandler) RemoveFavorite(c *gin.Context) {
	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.social.RemoveFavorite(c.Request.Context(), identityFromContext(c), req.TargetUserID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SocialHandler) Favorites(c *gin.Context) {
	h.list(c, func(userID int) ([]models.ViewerEntry, error) {
		return h.social.Favorites(c.Request.Context(), identityFromContext(c), userID)
	})
}

// Fans is VIP-gated: non-VIP subjects get a redacted list.
func (h *SocialHandler) Fans(c *gin.Context) {
	h.list(c, func(userID int) ([]models.ViewerEntry, error) {
		return h.social.Fans(c.Request.Context(), identityFromContext(c), userID)
	})
}

// Viewers is VIP-gated like Fans.
func (h *SocialHandler) Viewers(c *gin.Context) {
	h.list(c, func(userID int) ([]models.ViewerEntry, error) {
		return h.social.Viewers(c.Request.Context(), identityFromContext(c), userID, queryInt(c, "limit", 0))
	})
}

func (h *SocialHandler) RecordView(c *gin.Context) {
	var req struct {
		ViewedUserID int `json:"viewed_user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	recorded, err := h.social.RecordView(c.Request.Context(), identityFromContext(c), req.ViewedUserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recorded": recorded})
}

func (h *SocialHandler) list(c *gin.Context, load func(userID int) ([]models.ViewerEntry, error)) {
	userID, ok := intParam(c, "userId")
	if !ok {
		return
	}
	entries, err := load(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if entries == nil {
		entries = []models.ViewerEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"users": entries})
}
