package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cupizz/cupizz-server-sub000/internal/handlers"
	"github.com/cupizz/cupizz-server-sub000/internal/middleware"
)

func RegisterChatRoutes(r gin.IRouter) {
	chat := r.Group("/chat")
	chat.Use(middleware.AuthMiddleware())
	{
		chat.GET("/conversations", handlers.ListConversations)
		chat.POST("/conversations/resolve", handlers.ResolveConversation)
		chat.GET("/conversations/:id/messages", handlers.GetMessages)
		chat.POST("/conversations/:id/read", handlers.MarkConversationRead)
		chat.DELETE("/conversations/:id", handlers.DeleteConversation)
		chat.POST("/messages", middleware.SendRateLimit(30, time.Minute), handlers.SendMessage)
		chat.POST("/presence", handlers.SetPresence)
		chat.POST("/anonymous/match", handlers.MatchAnonymousChat)
		chat.POST("/anonymous/looking", handlers.SetAnonymousLooking)
	}
}
