package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/cupizz/cupizz-server-sub000/internal/handlers"
	"github.com/cupizz/cupizz-server-sub000/internal/middleware"
)

func RegisterPostRoutes(r gin.IRouter) {
	posts := r.Group("/posts")
	posts.Use(middleware.AuthMiddleware())
	{
		posts.GET("", handlers.ListPosts)
		posts.POST("", handlers.CreatePost)
		posts.DELETE("/:id", handlers.DeletePost)
		posts.POST("/:id/like", handlers.LikePost)
		posts.POST("/:id/comments", handlers.CommentPost)
	}
}
