package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cupizz/cupizz-server-sub000/internal/database"
	"github.com/cupizz/cupizz-server-sub000/internal/models"
)

// ListPosts GET /posts
func ListPosts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	const pageSize = 20

	var posts []models.Post
	if err := database.DB.Preload("Author").
		Order("created_at desc").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&posts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	// Anonymous posts hide their author from readers
	for i := range posts {
		if posts[i].IsAnonymous {
			posts[i].Author = nil
			posts[i].AuthorID = ""
		}
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts, "page": page})
}

// CreatePost POST /posts
func CreatePost(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	var req struct {
		Content     string `json:"content" binding:"required"`
		IsAnonymous bool   `json:"isAnonymous"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content required"})
		return
	}

	post := models.Post{
		AuthorID:    userID,
		Content:     req.Content,
		IsAnonymous: req.IsAnonymous,
	}
	if err := database.DB.Create(&post).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"post": post})
}

// DeletePost DELETE /posts/:id
func DeletePost(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	var post models.Post
	if err := database.DB.First(&post, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	if post.AuthorID != userID {
		var user models.User
		if err := database.DB.Select("id", "role").First(&user, "id = ?", userID).Error; err != nil || user.Role != models.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
	}

	database.DB.Delete(&post)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// LikePost POST /posts/:id/like
func LikePost(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	postID := c.Param("id")

	var post models.Post
	if err := database.DB.First(&post, "id = ?", postID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	like := models.PostLike{PostID: postID, UserID: userID}
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&like).Error; err != nil {
			return err
		}
		return tx.Model(&post).Update("like_count", gorm.Expr("like_count + 1")).Error
	})
	if err != nil {
		// Duplicate like, treat as idempotent
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CommentPost POST /posts/:id/comments
func CommentPost(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	postID := c.Param("id")

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content required"})
		return
	}

	var post models.Post
	if err := database.DB.First(&post, "id = ?", postID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	comment := models.PostComment{
		PostID:   postID,
		AuthorID: userID,
		Content:  req.Content,
	}
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&post).Update("comment_count", gorm.Expr("comment_count + 1")).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}
