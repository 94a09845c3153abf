package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fleetline/realtime/internal/hub"
)

// PushHandler exposes the delivery primitives over REST. Every request body is
// validated before any core call, and every response is a structured JSON body
// even when the addressed user is unreachable.
type PushHandler struct {
	registry *hub.Registry
	groups   *hub.GroupIndex
	router   *hub.Router
	log      *slog.Logger
}

func NewPushHandler(registry *hub.Registry, groups *hub.GroupIndex, router *hub.Router, log *slog.Logger) *PushHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PushHandler{registry: registry, groups: groups, router: router, log: log}
}

type sendUserRequest struct {
	UserID string          `json:"userId" binding:"required"`
	Event  string          `json:"event" binding:"required"`
	Data   json.RawMessage `json:"data"`
}

// SendToUser delivers one event to one user's current connection.
func (h *PushHandler) SendToUser(c *gin.Context) {
	var req sendUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	delivered := h.router.SendToUser(req.UserID, req.Event, req.Data)
	c.JSON(http.StatusOK, gin.H{"success": true, "delivered": delivered})
}

type sendUsersRequest struct {
	UserIDs []string        `json:"userIds" binding:"required,min=1"`
	Event   string          `json:"event" binding:"required"`
	Data    json.RawMessage `json:"data"`
}

// SendToUsers delivers to each listed user independently and reports the
// per-user outcome.
func (h *PushHandler) SendToUsers(c *gin.Context) {
	var req sendUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	results, delivered := h.router.SendToUsers(req.UserIDs, req.Event, req.Data)
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"results":        results,
		"deliveredCount": delivered,
		"totalUsers":     len(req.UserIDs),
	})
}

type sendRoleRequest struct {
	Role  string          `json:"role" binding:"required"`
	Event string          `json:"event" binding:"required"`
	Data  json.RawMessage `json:"data"`
}

// SendToRole broadcasts to the role group.
func (h *PushHandler) SendToRole(c *gin.Context) {
	var req sendRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	count := h.router.SendToRole(req.Role, req.Event, req.Data)
	c.JSON(http.StatusOK, gin.H{"success": true, "usersCount": count})
}

type sendAllRequest struct {
	Event string          `json:"event" binding:"required"`
	Data  json.RawMessage `json:"data"`
}

// SendToAll broadcasts to every live connection.
func (h *PushHandler) SendToAll(c *gin.Context) {
	var req sendAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	count := h.router.SendToAll(req.Event, req.Data)
	c.JSON(http.StatusOK, gin.H{"success": true, "usersCount": count})
}

type chatMessageRequest struct {
	ChatRoomID string          `json:"chatRoomId" binding:"required"`
	SenderID   string          `json:"senderId" binding:"required"`
	SenderName string          `json:"senderName"`
	Message    json.RawMessage `json:"message" binding:"required"`
	Recipients []string        `json:"recipients"`
}

// ChatMessage fans a chat message out to the explicit recipients plus the
// room group, excluding the sender's own connection.
func (h *PushHandler) ChatMessage(c *gin.Context) {
	var req chatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	payload := gin.H{
		"chatRoomId": req.ChatRoomID,
		"senderId":   req.SenderID,
		"senderName": req.SenderName,
		"message":    req.Message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}

	_, delivered := h.router.SendToUsers(req.Recipients, hub.EventChatMessage, payload)

	senderConn, _ := h.registry.Resolve(req.SenderID)
	delivered += h.router.SendToGroupExcept(hub.ChatGroup(req.ChatRoomID), senderConn, hub.EventChatMessage, payload)

	c.JSON(http.StatusOK, gin.H{"success": true, "deliveredCount": delivered})
}

type messageReadRequest struct {
	ChatRoomID string `json:"chatRoomId" binding:"required"`
	MessageID  string `json:"messageId" binding:"required"`
	ReaderID   string `json:"readerId" binding:"required"`
	SenderID   string `json:"senderId" binding:"required"`
}

// MessageRead notifies the original sender that their message was read.
func (h *PushHandler) MessageRead(c *gin.Context) {
	var req messageReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	delivered := h.router.SendToUser(req.SenderID, hub.EventChatMessageRead, gin.H{
		"chatRoomId": req.ChatRoomID,
		"messageId":  req.MessageID,
		"readerId":   req.ReaderID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "delivered": delivered})
}

type callNotifyRequest struct {
	CallID     string `json:"callId" binding:"required"`
	CallerID   string `json:"callerId" binding:"required"`
	ReceiverID string `json:"receiverId" binding:"required"`
	CallerName string `json:"callerName"`
}

// CallIncoming notifies the receiver of an inbound call.
func (h *PushHandler) CallIncoming(c *gin.Context) {
	h.callNotify(c, hub.EventCallIncoming, func(req callNotifyRequest) (target string, payload gin.H) {
		return req.ReceiverID, gin.H{
			"callId":     req.CallID,
			"callerId":   req.CallerID,
			"callerName": req.CallerName,
		}
	})
}

// CallAnswered notifies the caller that the call was picked up.
func (h *PushHandler) CallAnswered(c *gin.Context) {
	h.callNotify(c, hub.EventCallAnswered, func(req callNotifyRequest) (string, gin.H) {
		return req.CallerID, gin.H{"callId": req.CallID, "receiverId": req.ReceiverID}
	})
}

// CallEnded notifies the other party that the call finished.
func (h *PushHandler) CallEnded(c *gin.Context) {
	h.callNotify(c, hub.EventCallEnded, func(req callNotifyRequest) (string, gin.H) {
		return req.ReceiverID, gin.H{"callId": req.CallID, "callerId": req.CallerID}
	})
}

// CallRejected notifies the caller of a declined call.
func (h *PushHandler) CallRejected(c *gin.Context) {
	h.callNotify(c, hub.EventCallRejected, func(req callNotifyRequest) (string, gin.H) {
		return req.CallerID, gin.H{"callId": req.CallID, "receiverId": req.ReceiverID}
	})
}

func (h *PushHandler) callNotify(c *gin.Context, event string, build func(callNotifyRequest) (string, gin.H)) {
	var req callNotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target, payload := build(req)
	payload["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	delivered := h.router.SendToUser(target, event, payload)
	c.JSON(http.StatusOK, gin.H{"success": true, "delivered": delivered})
}

// Stats reports current registry and group sizes.
func (h *PushHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connectedUsers": h.registry.Size(),
		"groups":         h.groups.GroupCount(),
	})
}
