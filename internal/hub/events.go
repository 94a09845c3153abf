package hub

import "encoding/json"

// Inbound event names consumed from a transport session.
const (
	EventChatJoinRoom   = "chat:join-room"
	EventChatLeaveRoom  = "chat:leave-room"
	EventChatTyping     = "chat:typing"
	EventChatStopTyping = "chat:stop-typing"
	EventCallOffer      = "call:offer"
	EventCallAnswer     = "call:answer"
	EventCallCandidate  = "call:ice-candidate"
	EventPing           = "ping"
)

// Outbound event names.
const (
	EventChatUserJoined     = "chat:user-joined"
	EventChatUserLeft       = "chat:user-left"
	EventChatUserTyping     = "chat:user-typing"
	EventChatUserStopTyping = "chat:user-stop-typing"
	EventChatMessage        = "chat:message"
	EventChatMessageRead    = "chat:message-read"
	EventCallError          = "call:error"
	EventCallIncoming       = "call:incoming"
	EventCallAnswered       = "call:answered"
	EventCallEnded          = "call:ended"
	EventCallRejected       = "call:rejected"
	EventPong               = "pong"
)

// Envelope is the wire frame exchanged with clients in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomEvent is the payload of the inbound chat room events.
type RoomEvent struct {
	ChatRoomID string `json:"chatRoomId"`
}

// RoomNotice is broadcast to a room when a member joins, leaves or types.
type RoomNotice struct {
	UserID     string `json:"userId"`
	ChatRoomID string `json:"chatRoomId"`
	Timestamp  string `json:"timestamp"`
}

// OfferEvent is the inbound payload of call:offer.
type OfferEvent struct {
	CallID     string          `json:"callId"`
	ReceiverID string          `json:"receiverId"`
	Offer      json.RawMessage `json:"offer"`
}

// AnswerEvent is the inbound payload of call:answer.
type AnswerEvent struct {
	CallID   string          `json:"callId"`
	CallerID string          `json:"callerId"`
	Answer   json.RawMessage `json:"answer"`
}

// CandidateEvent is the inbound payload of call:ice-candidate.
type CandidateEvent struct {
	CallID       string          `json:"callId"`
	TargetUserID string          `json:"targetUserId"`
	Candidate    json.RawMessage `json:"candidate"`
}

// OfferNotice is delivered to the callee.
type OfferNotice struct {
	CallID    string          `json:"callId"`
	CallerID  string          `json:"callerId"`
	Offer     json.RawMessage `json:"offer"`
	Timestamp string          `json:"timestamp"`
}

// AnswerNotice is delivered back to the caller.
type AnswerNotice struct {
	CallID    string          `json:"callId"`
	Answer    json.RawMessage `json:"answer"`
	Timestamp string          `json:"timestamp"`
}

// CandidateNotice carries an ICE candidate to the other peer.
type CandidateNotice struct {
	CallID    string          `json:"callId"`
	Candidate json.RawMessage `json:"candidate"`
	Timestamp string          `json:"timestamp"`
}

// CallError is emitted to a sender whose offer could not be relayed.
type CallError struct {
	CallID string `json:"callId"`
	Error  string `json:"error"`
}

// Pong answers an application-level ping.
type Pong struct {
	Timestamp string `json:"timestamp"`
	UserID    string `json:"userId"`
}

// Group key helpers. Role keys are case-sensitive on purpose: the original
// protocol matches role groups exactly while counting roles case-insensitively.
func RoleGroup(role string) string       { return "role-" + role }
func UserGroup(userID string) string     { return "user-" + userID }
func ChatGroup(chatRoomID string) string { return "chat-" + chatRoomID }
