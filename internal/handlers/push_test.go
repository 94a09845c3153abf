package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/fleetline/realtime/internal/hub"
)

type fakeSink struct {
	mu     sync.Mutex
	events []string
}

func (s *fakeSink) Send(event string, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func newTestAPI(t *testing.T) (*gin.Engine, *hub.Registry, *hub.GroupIndex, *hub.Router) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := hub.NewRegistry()
	groups := hub.NewGroupIndex()
	router := hub.NewRouter(registry, groups, nil)
	push := NewPushHandler(registry, groups, router, nil)

	engine := gin.New()
	engine.POST("/api/send/user", push.SendToUser)
	engine.POST("/api/send/users", push.SendToUsers)
	engine.POST("/api/send/role", push.SendToRole)
	engine.POST("/api/send/all", push.SendToAll)
	engine.POST("/api/chat/message", push.ChatMessage)
	engine.POST("/api/chat/message-read", push.MessageRead)
	engine.POST("/api/calls/incoming", push.CallIncoming)
	engine.GET("/api/stats", push.Stats)
	return engine, registry, groups, router
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, w.Body.String())
	}
	return w, out
}

func attachUser(registry *hub.Registry, groups *hub.GroupIndex, router *hub.Router, connID, userID, role string) *fakeSink {
	sink := &fakeSink{}
	router.Attach(connID, sink)
	registry.Register(connID, userID, role)
	groups.Join(connID, hub.UserGroup(userID))
	groups.Join(connID, hub.RoleGroup(role))
	return sink
}

func TestSendToUserMissingFieldsRejected(t *testing.T) {
	engine, registry, _, _ := newTestAPI(t)

	w, out := doJSON(t, engine, http.MethodPost, "/api/send/user", `{"event":"X"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
	if _, ok := out["error"]; !ok {
		t.Fatalf("expected error body, got %v", out)
	}
	// Validation failures must leave no partial side effects.
	if registry.Size() != 0 {
		t.Fatalf("registry mutated by rejected request")
	}
}

func TestSendToUserUnreachableIsStructuredSuccess(t *testing.T) {
	engine, _, _, _ := newTestAPI(t)

	w, out := doJSON(t, engine, http.MethodPost, "/api/send/user",
		`{"userId":"u2","event":"X","data":{}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	if out["delivered"] != false {
		t.Fatalf("delivered = %v; want false", out["delivered"])
	}
}

func TestSendToUserDelivered(t *testing.T) {
	engine, registry, groups, router := newTestAPI(t)
	sink := attachUser(registry, groups, router, "c1", "u1", "Driver")

	_, out := doJSON(t, engine, http.MethodPost, "/api/send/user",
		`{"userId":"u1","event":"ride:update","data":{"k":"v"}}`)
	if out["delivered"] != true {
		t.Fatalf("delivered = %v; want true", out["delivered"])
	}
	if len(sink.events) != 1 || sink.events[0] != "ride:update" {
		t.Fatalf("sink events = %v", sink.events)
	}
}

func TestSendToUsersPartialDelivery(t *testing.T) {
	engine, registry, groups, router := newTestAPI(t)
	attachUser(registry, groups, router, "c1", "a", "Driver")

	_, out := doJSON(t, engine, http.MethodPost, "/api/send/users",
		`{"userIds":["a","b"],"event":"X"}`)

	if out["deliveredCount"] != float64(1) || out["totalUsers"] != float64(2) {
		t.Fatalf("counts = %v / %v", out["deliveredCount"], out["totalUsers"])
	}
	results := out["results"].(map[string]any)
	if results["a"] != true || results["b"] != false {
		t.Fatalf("results = %v", results)
	}
}

func TestSendToRoleAndAllCounts(t *testing.T) {
	engine, registry, groups, router := newTestAPI(t)
	attachUser(registry, groups, router, "c1", "u1", "Driver")
	attachUser(registry, groups, router, "c2", "u2", "Rider")

	_, out := doJSON(t, engine, http.MethodPost, "/api/send/role",
		`{"role":"Driver","event":"X"}`)
	if out["usersCount"] != float64(1) {
		t.Fatalf("role usersCount = %v; want 1", out["usersCount"])
	}

	_, out = doJSON(t, engine, http.MethodPost, "/api/send/all", `{"event":"X"}`)
	if out["usersCount"] != float64(2) {
		t.Fatalf("all usersCount = %v; want 2", out["usersCount"])
	}
}

func TestChatMessageFansOutToRecipientsAndRoom(t *testing.T) {
	engine, registry, groups, router := newTestAPI(t)
	sender := attachUser(registry, groups, router, "c1", "u1", "Driver")
	member := attachUser(registry, groups, router, "c2", "u2", "Rider")
	direct := attachUser(registry, groups, router, "c3", "u3", "Rider")
	groups.Join("c1", hub.ChatGroup("r1"))
	groups.Join("c2", hub.ChatGroup("r1"))

	_, out := doJSON(t, engine, http.MethodPost, "/api/chat/message",
		`{"chatRoomId":"r1","senderId":"u1","message":{"text":"hi"},"recipients":["u3"]}`)

	if out["deliveredCount"] != float64(2) {
		t.Fatalf("deliveredCount = %v; want 2", out["deliveredCount"])
	}
	if len(sender.events) != 0 {
		t.Fatalf("sender received own message: %v", sender.events)
	}
	if len(member.events) != 1 || member.events[0] != hub.EventChatMessage {
		t.Fatalf("room member events = %v", member.events)
	}
	if len(direct.events) != 1 {
		t.Fatalf("direct recipient events = %v", direct.events)
	}
}

func TestMessageReadNotifiesSender(t *testing.T) {
	engine, registry, groups, router := newTestAPI(t)
	sender := attachUser(registry, groups, router, "c1", "u1", "Driver")

	_, out := doJSON(t, engine, http.MethodPost, "/api/chat/message-read",
		`{"chatRoomId":"r1","messageId":"m1","readerId":"u2","senderId":"u1"}`)

	if out["delivered"] != true {
		t.Fatalf("delivered = %v", out["delivered"])
	}
	if len(sender.events) != 1 || sender.events[0] != hub.EventChatMessageRead {
		t.Fatalf("sender events = %v", sender.events)
	}
}

func TestCallIncomingNotifiesReceiver(t *testing.T) {
	engine, registry, groups, router := newTestAPI(t)
	receiver := attachUser(registry, groups, router, "c1", "u2", "Rider")

	_, out := doJSON(t, engine, http.MethodPost, "/api/calls/incoming",
		`{"callId":"call-1","callerId":"u1","receiverId":"u2","callerName":"Ann"}`)

	if out["delivered"] != true {
		t.Fatalf("delivered = %v", out["delivered"])
	}
	if len(receiver.events) != 1 || receiver.events[0] != hub.EventCallIncoming {
		t.Fatalf("receiver events = %v", receiver.events)
	}
}

func TestStats(t *testing.T) {
	engine, registry, groups, router := newTestAPI(t)
	attachUser(registry, groups, router, "c1", "u1", "Driver")

	w, out := doJSON(t, engine, http.MethodGet, "/api/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if out["connectedUsers"] != float64(1) {
		t.Fatalf("connectedUsers = %v; want 1", out["connectedUsers"])
	}
}
