package handlers

import (
	"github.com/gin-gonic/gin"

	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
)

// Handlers groups every REST handler of the service.
type Handlers struct {
	Chat   *ChatHandler
	Wallet *WalletHandler
	Boost  *BoostHandler
	VIP    *VIPHandler
	Social *SocialHandler
	Admin  *AdminHandler
}

// Register mounts the REST surface behind authMiddleware.
func (h Handlers) Register(router gin.IRouter, authMiddleware gin.HandlerFunc) {
	api := router.Group("/", authMiddleware)

	api.GET("/chats", h.Chat.ListChats)
	api.POST("/chats/start", h.Chat.StartChat)
	api.GET("/chats/:chat_id/messages", h.Chat.GetChatMessages)
	api.POST("/chats/:chat_id/messages", h.Chat.PostChatMessage)
	api.POST("/chats/:chat_id/read", h.Chat.MarkRead)

	api.GET("/wallet/balance", h.Wallet.Balance)
	api.GET("/wallet/transactions", h.Wallet.Transactions)
	api.GET("/pricing", h.Wallet.Pricing)

	api.POST("/boost/:accountId", h.Boost.Activate)
	api.GET("/boost/status/:accountId", h.Boost.Status)
	api.GET("/boost/active", h.Boost.Active)

	api.POST("/vip/purchase-xp", h.VIP.PurchaseXP)
	api.GET("/vip/progress", h.VIP.Progress)

	api.POST("/favorites", h.Social.AddFavorite)
	api.DELETE("/favorites", h.Social.RemoveFavorite)
	api.GET("/favorites/:userId", h.Social.Favorites)
	api.GET("/favorites/:userId/fans", h.Social.Fans)
	api.POST("/views", h.Social.RecordView)
	api.GET("/views/:userId", h.Social.Viewers)

	staff := api.Group("/admin", middleware.RequireRole(models.RoleAdmin, models.RoleModerator))
	staff.GET("/activity", h.Admin.RecentActivity)
	staff.POST("/activity", h.Admin.RecordActivity)

	admin := api.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.POST("/accounts/:accountId/credit", h.Admin.Credit)
	admin.GET("/accounts/:accountId/transactions", h.Admin.Transactions)
	admin.GET("/accounts/:accountId/reconcile", h.Admin.Reconcile)
	admin.PUT("/accounts/:accountId/vip", h.Admin.SetVIP)
	admin.PUT("/accounts/:accountId/vip-xp", h.Admin.OverrideXP)
	admin.DELETE("/accounts/:accountId", h.Admin.DeleteAccount)
	admin.POST("/transactions/:txId/reverse", h.Admin.Reverse)
	admin.POST("/boosts/purge", h.Boost.Purge)
}
