package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cupizz/cupizz-server-sub000/internal/config"
	"github.com/cupizz/cupizz-server-sub000/internal/database"
	"github.com/cupizz/cupizz-server-sub000/internal/models"
	"github.com/cupizz/cupizz-server-sub000/pkg/logger"
)

const FCMSendURL = "https://fcm.googleapis.com/fcm/send"

var pushClient = &http.Client{Timeout: 10 * time.Second}

type fcmMessage struct {
	RegistrationIDs []string               `json:"registration_ids"`
	Notification    fcmNotification        `json:"notification"`
	Data            map[string]interface{} `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// PushDispatcher implements chat.Notifier over FCM. Every dispatch also
// persists Notification rows so clients that missed the push can list it.
type PushDispatcher struct{}

func (PushDispatcher) Notify(recipientUserIDs []string, title, body string, data map[string]interface{}) error {
	if len(recipientUserIDs) == 0 {
		return nil
	}

	payload := "{}"
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			payload = string(raw)
		}
	}

	var tokens []string
	for _, userID := range recipientUserIDs {
		notification := models.Notification{
			UserID:  userID,
			Type:    models.NotificationTypeNewMessage,
			Title:   title,
			Message: body,
			Data:    payload,
		}
		if err := database.DB.Create(&notification).Error; err != nil {
			logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to persist notification")
		}

		var user models.User
		if err := database.DB.Select("id", "push_tokens").First(&user, "id = ?", userID).Error; err != nil {
			continue
		}
		tokens = append(tokens, user.PushTokens...)
	}

	if len(tokens) == 0 {
		return nil
	}
	return sendFCM(tokens, title, body, data)
}

func sendFCM(tokens []string, title, body string, data map[string]interface{}) error {
	serverKey := config.AppConfig.FCMServerKey
	if serverKey == "" {
		logger.Debug().Msg("FCM server key not configured, skipping push")
		return nil
	}

	msg := fcmMessage{
		RegistrationIDs: tokens,
		Notification:    fcmNotification{Title: title, Body: body},
		Data:            data,
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, FCMSendURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+serverKey)

	resp, err := pushClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fcm returned status %d", resp.StatusCode)
	}
	return nil
}
