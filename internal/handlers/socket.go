package handlers

import (
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"

	"github.com/cupizz/cupizz-server-sub000/internal/chat"
	"github.com/cupizz/cupizz-server-sub000/pkg/logger"
	"github.com/cupizz/cupizz-server-sub000/pkg/utils"
)

var SocketServer *socketio.Server

// Presence tracking
var (
	onlineUsers   = make(map[string]string) // userId -> socketId
	onlineUsersMu sync.RWMutex
)

// GetOnlineUsers returns list of online user IDs
func GetOnlineUsers() []string {
	onlineUsersMu.RLock()
	defer onlineUsersMu.RUnlock()

	users := make([]string, 0, len(onlineUsers))
	for userID := range onlineUsers {
		users = append(users, userID)
	}
	return users
}

// IsUserOnline checks if a user has a live socket
func IsUserOnline(userID string) bool {
	onlineUsersMu.RLock()
	defer onlineUsersMu.RUnlock()
	_, exists := onlineUsers[userID]
	return exists
}

// SocketBus adapts the socket.io server to the chat event bus. Events whose
// payload knows its recipients go to per-user rooms; everything else is
// broadcast. Best-effort only, a closed server drops events.
type SocketBus struct{}

func (SocketBus) Publish(topic string, payload interface{}) {
	if SocketServer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn().Str("topic", topic).Msg("Socket publish panicked, event dropped")
		}
	}()

	if addressed, ok := payload.(chat.Addressed); ok {
		for _, userID := range addressed.Recipients() {
			SocketServer.BroadcastToRoom("/", userID, topic, payload)
		}
		return
	}
	SocketServer.BroadcastToRoom("/", "broadcast", topic, payload)
}

func InitSocketServer() *socketio.Server {
	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
			&polling.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
		},
	})

	server.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext("")
		url := s.URL()

		token := url.Query().Get("token")
		if token == "" {
			token = url.Query().Get("auth_token") // Fallback
		}
		if token == "" {
			log.Println("Socket Connection Rejected: No token provided", s.ID())
			return fmt.Errorf("authentication required")
		}

		claims, err := utils.ValidateToken(token)
		if err != nil {
			log.Println("Socket Connection Rejected: Invalid token", s.ID())
			return fmt.Errorf("invalid token")
		}

		userID := claims.UserID
		s.SetContext(userID)

		onlineUsersMu.Lock()
		onlineUsers[userID] = s.ID()
		onlineUsersMu.Unlock()

		// Personal room receives chat events addressed to this user
		s.Join(userID)
		s.Join("broadcast")

		s.Emit("online_users", GetOnlineUsers())
		return nil
	})

	// Clients toggle their in-chat presence over the socket as well, so the
	// marker clears when the app backgrounds without an HTTP round-trip.
	server.OnEvent("/", "presence", func(s socketio.Conn, data map[string]interface{}) {
		userID, _ := s.Context().(string)
		if userID == "" || Chat == nil {
			return
		}
		conversationID, _ := data["conversationId"].(string)
		inChat, _ := data["isInChat"].(bool)
		if err := Chat.SetPresence(userID, conversationID, inChat); err != nil {
			logger.Warn().Err(err).Str("user_id", userID).Msg("Socket presence update failed")
		}
	})

	server.OnEvent("/", "get_online_users", func(s socketio.Conn, msg string) {
		s.Emit("online_users", GetOnlineUsers())
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		userID, _ := s.Context().(string)

		onlineUsersMu.Lock()
		if userID != "" {
			delete(onlineUsers, userID)
		} else {
			for uid, socketID := range onlineUsers {
				if socketID == s.ID() {
					delete(onlineUsers, uid)
					break
				}
			}
		}
		onlineUsersMu.Unlock()

		// Leaving all chats on disconnect keeps presence honest
		if userID != "" && Chat != nil {
			if err := Chat.SetPresence(userID, "", false); err != nil {
				logger.Debug().Err(err).Str("user_id", userID).Msg("Presence clear on disconnect failed")
			}
		}
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("socket error:", e)
	})

	go server.Serve()
	SocketServer = server
	return server
}

// Gin Handler to wrap Socket.io
func SocketHandler(server *socketio.Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		server.ServeHTTP(c.Writer, c.Request)
	}
}
