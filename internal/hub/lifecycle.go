package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const defaultRole = "Guest"

// Mirror receives best-effort presence updates. Implementations must never
// block delivery; failures are the mirror's problem, not the lifecycle's.
type Mirror interface {
	UserOnline(ctx context.Context, userID, role string)
	UserOffline(ctx context.Context, userID string)
	RoomJoin(ctx context.Context, chatRoomID, userID string)
	RoomLeave(ctx context.Context, chatRoomID, userID string)
}

// Lifecycle drives registration and group membership across a connection's
// life: Connect → registered and joined to its personal and role groups,
// inbound events dispatched, Disconnect → all registry and group state gone.
type Lifecycle struct {
	registry *Registry
	groups   *GroupIndex
	router   *Router
	relay    *Relay
	mirror   Mirror // optional
	log      *slog.Logger
	now      func() time.Time

	handlers map[string]func(ctx context.Context, connID string, data json.RawMessage)
}

func NewLifecycle(registry *Registry, groups *GroupIndex, router *Router, relay *Relay, mirror Mirror, log *slog.Logger) *Lifecycle {
	if log == nil {
		log = slog.Default()
	}
	l := &Lifecycle{
		registry: registry,
		groups:   groups,
		router:   router,
		relay:    relay,
		mirror:   mirror,
		log:      log,
		now:      time.Now,
	}
	l.handlers = map[string]func(ctx context.Context, connID string, data json.RawMessage){
		EventChatJoinRoom:   l.onJoinRoom,
		EventChatLeaveRoom:  l.onLeaveRoom,
		EventChatTyping:     l.onTyping,
		EventChatStopTyping: l.onStopTyping,
		EventCallOffer:      l.onCallOffer,
		EventCallAnswer:     l.onCallAnswer,
		EventCallCandidate:  l.onCallCandidate,
		EventPing:           l.onPing,
	}
	return l
}

func (l *Lifecycle) timestamp() string {
	return l.now().UTC().Format(time.RFC3339)
}

// Connect registers the session under its handshake identity and joins the
// personal and role groups. A missing user id becomes a generated guest id,
// a missing role becomes Guest. Returns the identity actually registered.
func (l *Lifecycle) Connect(ctx context.Context, connID, userID, role string, sink Sink) (string, string) {
	if userID == "" {
		userID = "guest-" + uuid.NewString()
	}
	if role == "" {
		role = defaultRole
	}

	l.router.Attach(connID, sink)
	l.registry.Register(connID, userID, role)
	l.groups.Join(connID, UserGroup(userID))
	l.groups.Join(connID, RoleGroup(role))

	if l.mirror != nil {
		l.mirror.UserOnline(ctx, userID, role)
	}
	l.log.Info("connected", "conn_id", connID, "user_id", userID, "role", role)
	return userID, role
}

// Dispatch routes one inbound event to its handler. Unknown events are logged
// and dropped. Handlers run to completion before Dispatch returns.
func (l *Lifecycle) Dispatch(ctx context.Context, connID, event string, data json.RawMessage) {
	h, ok := l.handlers[event]
	if !ok {
		l.log.Warn("unknown event", "conn_id", connID, "event", event)
		return
	}
	h(ctx, connID, data)
}

// Disconnect tears down all state for the connection. Safe to call for any
// disconnect cause, including liveness timeouts, and safe to call twice.
func (l *Lifecycle) Disconnect(ctx context.Context, connID string) {
	userID, known := l.registry.UserOf(connID)
	l.groups.DropConnection(connID)
	l.registry.Unregister(connID)
	l.router.Detach(connID)
	if known && l.mirror != nil {
		l.mirror.UserOffline(ctx, userID)
	}
	if known {
		l.log.Info("disconnected", "conn_id", connID, "user_id", userID)
	}
}

func (l *Lifecycle) onJoinRoom(ctx context.Context, connID string, data json.RawMessage) {
	var ev RoomEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.ChatRoomID == "" {
		l.log.Warn("bad join-room payload", "conn_id", connID)
		return
	}
	userID, _ := l.registry.UserOf(connID)
	l.groups.Join(connID, ChatGroup(ev.ChatRoomID))
	l.router.SendToGroupExcept(ChatGroup(ev.ChatRoomID), connID, EventChatUserJoined, RoomNotice{
		UserID:     userID,
		ChatRoomID: ev.ChatRoomID,
		Timestamp:  l.timestamp(),
	})
	if l.mirror != nil {
		l.mirror.RoomJoin(ctx, ev.ChatRoomID, userID)
	}
}

func (l *Lifecycle) onLeaveRoom(ctx context.Context, connID string, data json.RawMessage) {
	var ev RoomEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.ChatRoomID == "" {
		l.log.Warn("bad leave-room payload", "conn_id", connID)
		return
	}
	userID, _ := l.registry.UserOf(connID)
	l.groups.Leave(connID, ChatGroup(ev.ChatRoomID))
	l.router.SendToGroupExcept(ChatGroup(ev.ChatRoomID), connID, EventChatUserLeft, RoomNotice{
		UserID:     userID,
		ChatRoomID: ev.ChatRoomID,
		Timestamp:  l.timestamp(),
	})
	if l.mirror != nil {
		l.mirror.RoomLeave(ctx, ev.ChatRoomID, userID)
	}
}

func (l *Lifecycle) onTyping(_ context.Context, connID string, data json.RawMessage) {
	l.typingNotice(connID, data, EventChatUserTyping)
}

func (l *Lifecycle) onStopTyping(_ context.Context, connID string, data json.RawMessage) {
	l.typingNotice(connID, data, EventChatUserStopTyping)
}

func (l *Lifecycle) typingNotice(connID string, data json.RawMessage, event string) {
	var ev RoomEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.ChatRoomID == "" {
		return
	}
	userID, _ := l.registry.UserOf(connID)
	l.router.SendToGroupExcept(ChatGroup(ev.ChatRoomID), connID, event, RoomNotice{
		UserID:     userID,
		ChatRoomID: ev.ChatRoomID,
		Timestamp:  l.timestamp(),
	})
}

func (l *Lifecycle) onCallOffer(_ context.Context, connID string, data json.RawMessage) {
	var ev OfferEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		l.log.Warn("bad offer payload", "conn_id", connID)
		return
	}
	senderID, _ := l.registry.UserOf(connID)
	l.relay.RelayOffer(senderID, ev.CallID, ev.ReceiverID, ev.Offer)
}

func (l *Lifecycle) onCallAnswer(_ context.Context, connID string, data json.RawMessage) {
	var ev AnswerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		l.log.Warn("bad answer payload", "conn_id", connID)
		return
	}
	senderID, _ := l.registry.UserOf(connID)
	l.relay.RelayAnswer(senderID, ev.CallID, ev.CallerID, ev.Answer)
}

func (l *Lifecycle) onCallCandidate(_ context.Context, connID string, data json.RawMessage) {
	var ev CandidateEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return
	}
	senderID, _ := l.registry.UserOf(connID)
	l.relay.RelayICECandidate(senderID, ev.CallID, ev.TargetUserID, ev.Candidate)
}

func (l *Lifecycle) onPing(_ context.Context, connID string, _ json.RawMessage) {
	userID, _ := l.registry.UserOf(connID)
	l.router.SendToConn(connID, EventPong, Pong{Timestamp: l.timestamp(), UserID: userID})
}
