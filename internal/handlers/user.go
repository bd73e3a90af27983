package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"github.com/cupizz/cupizz-server-sub000/internal/database"
	"github.com/cupizz/cupizz-server-sub000/internal/models"
	"github.com/cupizz/cupizz-server-sub000/pkg/logger"
)

// GetMe GET /users/me
func GetMe(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	var user models.User
	if err := database.DB.Preload("Avatar").First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// GetUser GET /users/:id
// Public profiles are read-heavy; cache them briefly in redis.
func GetUser(c *gin.Context) {
	id := c.Param("id")
	cacheKey := "user:" + id

	if database.Redis != nil {
		var cached models.User
		if err := database.CacheGet(cacheKey, &cached); err == nil {
			c.JSON(http.StatusOK, gin.H{"user": cached})
			return
		}
	}

	var user models.User
	if err := database.DB.Preload("Avatar").First(&user, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if database.Redis != nil {
		if err := database.CacheSet(cacheKey, user, 5*time.Minute); err != nil {
			logger.Debug().Err(err).Str("user_id", id).Msg("Profile cache write failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

type UpdateProfileInput struct {
	NickName *string    `json:"nickName"`
	Intro    *string    `json:"intro"`
	Birthday *time.Time `json:"birthday"`
	Gender   *string    `json:"gender"`
	Hobbies  []string   `json:"hobbies"`
	AvatarID *string    `json:"avatarId"`
}

// UpdateProfile PUT /users/me
func UpdateProfile(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	var input UpdateProfileInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	updates := map[string]interface{}{}
	if input.NickName != nil {
		updates["nick_name"] = *input.NickName
	}
	if input.Intro != nil {
		updates["intro"] = *input.Intro
	}
	if input.Birthday != nil {
		updates["birthday"] = *input.Birthday
	}
	if input.Gender != nil {
		updates["gender"] = *input.Gender
	}
	if input.Hobbies != nil {
		updates["hobbies"] = pq.StringArray(input.Hobbies)
	}
	if input.AvatarID != nil {
		var file models.File
		if err := database.DB.First(&file, "id = ?", *input.AvatarID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Avatar file not found"})
			return
		}
		updates["avatar_id"] = *input.AvatarID
	}

	if len(updates) > 0 {
		if err := database.DB.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
			return
		}
		if database.Redis != nil {
			if err := database.CacheInvalidate("user:" + userID); err != nil {
				logger.Debug().Err(err).Str("user_id", userID).Msg("Profile cache invalidation failed")
			}
		}
	}

	var user models.User
	database.DB.Preload("Avatar").First(&user, "id = ?", userID)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// RegisterPushToken POST /users/me/push-tokens
func RegisterPushToken(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
		return
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	for _, t := range user.PushTokens {
		if t == req.Token {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
	}

	user.PushTokens = append(user.PushTokens, req.Token)
	if err := database.DB.Model(&user).Update("push_tokens", user.PushTokens).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register push token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetNotifications GET /users/me/notifications
func GetNotifications(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	var notifications []models.Notification
	if err := database.DB.Where("user_id = ?", userID).
		Order("created_at desc").Limit(50).Find(&notifications).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// MarkNotificationRead PUT /users/me/notifications/:id/read
func MarkNotificationRead(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	var notification models.Notification
	if err := database.DB.First(&notification, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	if notification.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	notification.IsRead = true
	database.DB.Save(&notification)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
