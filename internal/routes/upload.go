package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/cupizz/cupizz-server-sub000/internal/handlers"
	"github.com/cupizz/cupizz-server-sub000/internal/middleware"
)

func RegisterUploadRoutes(r gin.IRouter) {
	upload := r.Group("/upload")
	upload.Use(middleware.AuthMiddleware())
	{
		upload.POST("", handlers.UploadFile)
	}
}
