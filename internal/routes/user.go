package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/cupizz/cupizz-server-sub000/internal/handlers"
	"github.com/cupizz/cupizz-server-sub000/internal/middleware"
)

func RegisterUserRoutes(r gin.IRouter) {
	users := r.Group("/users")
	users.Use(middleware.AuthMiddleware())
	{
		users.GET("/me", handlers.GetMe)
		users.PUT("/me", handlers.UpdateProfile)
		users.POST("/me/push-tokens", handlers.RegisterPushToken)
		users.GET("/me/notifications", handlers.GetNotifications)
		users.PUT("/me/notifications/:id/read", handlers.MarkNotificationRead)
		users.GET("/:id", handlers.GetUser)
	}
}
