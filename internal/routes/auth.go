package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/cupizz/cupizz-server-sub000/internal/handlers"
	"github.com/cupizz/cupizz-server-sub000/internal/middleware"
)

func RegisterAuthRoutes(r gin.IRouter) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", handlers.Register)
		auth.POST("/login", handlers.Login)
		auth.POST("/logout", middleware.AuthMiddleware(), handlers.Logout)
		auth.GET("/google", handlers.GoogleLogin)
		auth.GET("/google/callback", handlers.GoogleCallback)
	}
}
