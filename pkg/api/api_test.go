package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"tradepost/pkg/models"
	"tradepost/pkg/store"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Count   *int            `json:"count"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	if err := store.Open(filepath.Join(t.TempDir(), "db")); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	srv := httptest.NewServer(Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = store.Close()
	})
	return srv
}

// doAs issues a request with backend role and the given acting user, the
// way the gateway presents trusted callers to the router.
func doAs(t *testing.T, srv *httptest.Server, method, path, user string, body interface{}) (*http.Response, envelope) {
	t.Helper()
	var rd bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = *bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, &rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role-Name", "backend")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope for %s %s: %v", method, path, err)
	}
	return resp, env
}

func mustData(t *testing.T, env envelope, out interface{}) {
	t.Helper()
	if !env.Success {
		t.Fatalf("expected success envelope, got error %q", env.Error)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func seedUser(t *testing.T, srv *httptest.Server, id string) {
	t.Helper()
	resp, _ := doAs(t, srv, http.MethodPost, "/v1/users", "", models.User{ID: id, Name: "name-" + id})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed user %s: status %d", id, resp.StatusCode)
	}
}

func TestMessagingFlow(t *testing.T) {
	srv := newTestServer(t)
	seedUser(t, srv, "alice")
	seedUser(t, srv, "bob")

	// alice opens a conversation with bob
	resp, env := doAs(t, srv, http.MethodPost, "/v1/conversations", "alice",
		map[string]string{"receiver_id": "bob", "initial_message": "hi bob"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create conversation: status %d, error %q", resp.StatusCode, env.Error)
	}
	var created struct {
		Conversation models.ConversationView `json:"conversation"`
		Message      models.Message          `json:"message"`
	}
	mustData(t, env, &created)
	convID := created.Conversation.ID
	if created.Message.Sender != "alice" {
		t.Fatalf("initial message sender: %s", created.Message.Sender)
	}
	// the response carries the populated view, not raw participant ids
	if len(created.Conversation.Participants) != 2 || created.Conversation.Participants[0].Name == "" {
		t.Fatalf("create response not populated: %+v", created.Conversation.Participants)
	}
	if created.Conversation.LastMessage == nil || created.Conversation.LastMessage.Content != "hi bob" {
		t.Fatalf("create response missing last message: %+v", created.Conversation.LastMessage)
	}

	// same pair again is also 201 and hits the same conversation
	resp, env = doAs(t, srv, http.MethodPost, "/v1/conversations", "bob",
		map[string]string{"receiver_id": "alice", "initial_message": "hi alice"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("repeat create: status %d", resp.StatusCode)
	}
	mustData(t, env, &created)
	if created.Conversation.ID != convID {
		t.Fatalf("repeat create made a new conversation: %s vs %s", created.Conversation.ID, convID)
	}

	// bob sends a reply via POST /v1/messages
	resp, env = doAs(t, srv, http.MethodPost, "/v1/messages", "bob",
		map[string]string{"conversation_id": convID, "content": "how much?"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send message: status %d, error %q", resp.StatusCode, env.Error)
	}

	// alice's list shows one conversation with 2 unread (bob's messages)
	resp, env = doAs(t, srv, http.MethodGet, "/v1/conversations", "alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list conversations: status %d", resp.StatusCode)
	}
	if env.Count == nil || *env.Count != 1 {
		t.Fatalf("expected count=1 in envelope, got %v", env.Count)
	}
	var views []models.ConversationView
	mustData(t, env, &views)
	if views[0].UnreadCount != 2 {
		t.Fatalf("alice unread: want 2, got %d", views[0].UnreadCount)
	}

	// viewing the thread marks it read for alice
	resp, env = doAs(t, srv, http.MethodGet, "/v1/messages/conversation/"+convID, "alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list messages: status %d", resp.StatusCode)
	}
	var msgs []models.Message
	mustData(t, env, &msgs)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i-1].TS > msgs[i].TS {
			t.Fatalf("messages out of order at %d", i)
		}
	}

	_, env = doAs(t, srv, http.MethodGet, "/v1/conversations", "alice", nil)
	mustData(t, env, &views)
	if views[0].UnreadCount != 0 {
		t.Fatalf("alice unread after viewing: want 0, got %d", views[0].UnreadCount)
	}

	// explicit read endpoint is idempotent after the view
	resp, env = doAs(t, srv, http.MethodPost, "/v1/conversations/"+convID+"/read", "alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark read: status %d", resp.StatusCode)
	}
	var mr struct {
		Modified int `json:"modified_count"`
	}
	mustData(t, env, &mr)
	if mr.Modified != 0 {
		t.Fatalf("mark read after view: want 0 modified, got %d", mr.Modified)
	}
}

func TestConversationAuthStatuses(t *testing.T) {
	srv := newTestServer(t)
	seedUser(t, srv, "alice")
	seedUser(t, srv, "bob")
	seedUser(t, srv, "mallory")

	_, env := doAs(t, srv, http.MethodPost, "/v1/conversations", "alice",
		map[string]string{"receiver_id": "bob", "initial_message": "secret"})
	var created struct {
		Conversation models.ConversationView `json:"conversation"`
	}
	mustData(t, env, &created)
	convID := created.Conversation.ID

	// non-participant gets 403, not 404
	resp, _ := doAs(t, srv, http.MethodGet, "/v1/conversations/"+convID, "mallory", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-participant get: want 403, got %d", resp.StatusCode)
	}
	resp, _ = doAs(t, srv, http.MethodGet, "/v1/messages/conversation/"+convID, "mallory", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-participant messages: want 403, got %d", resp.StatusCode)
	}
	resp, _ = doAs(t, srv, http.MethodPost, "/v1/messages", "mallory",
		map[string]string{"conversation_id": convID, "content": "intrude"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-participant send: want 403, got %d", resp.StatusCode)
	}

	// unknown conversation is 404 for everyone
	resp, _ = doAs(t, srv, http.MethodGet, "/v1/conversations/conv-nope", "mallory", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown conversation: want 404, got %d", resp.StatusCode)
	}

	// unknown receiver is 404
	resp, _ = doAs(t, srv, http.MethodPost, "/v1/conversations", "alice",
		map[string]string{"receiver_id": "nobody", "initial_message": "hello?"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown receiver: want 404, got %d", resp.StatusCode)
	}

	// missing fields are 400
	resp, _ = doAs(t, srv, http.MethodPost, "/v1/conversations", "alice",
		map[string]string{"receiver_id": "bob"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing message: want 400, got %d", resp.StatusCode)
	}
}

func TestFrontendRequiresSignature(t *testing.T) {
	srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/conversations", nil)
	req.Header.Set("X-Role-Name", "frontend")
	req.Header.Set("X-User-ID", "alice")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unsigned frontend: want 401, got %d", resp.StatusCode)
	}
}

func TestModerationEndpoints(t *testing.T) {
	srv := newTestServer(t)
	seedUser(t, srv, "seller")

	// seller lists an item; it starts pending and is hidden from the catalog
	resp, env := doAs(t, srv, http.MethodPost, "/v1/items", "seller",
		models.Item{Title: "Old bike", PriceCents: 12000})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create item: status %d, error %q", resp.StatusCode, env.Error)
	}
	var it models.Item
	mustData(t, env, &it)
	if it.Status != models.ItemPending {
		t.Fatalf("new item status: %s", it.Status)
	}

	// pending queue shows it
	resp, env = doAs(t, srv, http.MethodGet, "/v1/admin/items", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin items: status %d", resp.StatusCode)
	}
	var queue []models.Item
	mustData(t, env, &queue)
	if len(queue) != 1 || queue[0].ID != it.ID {
		t.Fatalf("pending queue wrong: %+v", queue)
	}

	// approve → active in the catalog
	resp, env = doAs(t, srv, http.MethodPost, "/v1/admin/items/"+it.ID+"/approve", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: status %d", resp.StatusCode)
	}
	mustData(t, env, &it)
	if it.Status != models.ItemActive {
		t.Fatalf("approved item status: %s", it.Status)
	}

	// reject → rejected with timestamp set
	resp, env = doAs(t, srv, http.MethodPost, "/v1/admin/items/"+it.ID+"/reject", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reject: status %d", resp.StatusCode)
	}
	mustData(t, env, &it)
	if it.Status != models.ItemRejected || it.RejectedTS == 0 {
		t.Fatalf("rejected item wrong: %+v", it)
	}

	// stats reflect the store
	resp, env = doAs(t, srv, http.MethodGet, "/v1/admin/stats", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: status %d", resp.StatusCode)
	}
	var stats store.Stats
	mustData(t, env, &stats)
	if stats.Users != 1 || stats.Items != 1 {
		t.Fatalf("stats wrong: %+v", stats)
	}
}

func TestReportLifecycle(t *testing.T) {
	srv := newTestServer(t)
	seedUser(t, srv, "reporter")

	resp, env := doAs(t, srv, http.MethodPost, "/v1/reports", "reporter",
		map[string]string{"reported_user_id": "scammer", "reason": "fake listings"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("file report: status %d, error %q", resp.StatusCode, env.Error)
	}
	var rep models.Report
	mustData(t, env, &rep)
	if rep.Status != models.ReportOpen {
		t.Fatalf("new report status: %s", rep.Status)
	}

	// neither target named is 400
	resp, _ = doAs(t, srv, http.MethodPost, "/v1/reports", "reporter",
		map[string]string{"reason": "nothing in particular"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("targetless report: want 400, got %d", resp.StatusCode)
	}

	// transition to resolved
	resp, env = doAs(t, srv, http.MethodPut, "/v1/reports/"+rep.ID, "",
		map[string]string{"status": models.ReportResolved})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve report: status %d", resp.StatusCode)
	}
	mustData(t, env, &rep)
	if rep.Status != models.ReportResolved {
		t.Fatalf("report status after resolve: %s", rep.Status)
	}

	// reopening a closed report is rejected
	resp, _ = doAs(t, srv, http.MethodPut, "/v1/reports/"+rep.ID, "",
		map[string]string{"status": models.ReportOpen})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("reopen closed: want 400, got %d", resp.StatusCode)
	}
}

func TestCreateUserRejectsKeySeparator(t *testing.T) {
	srv := newTestServer(t)

	// ids become pebble key segments; "b:i" could alias the pair key of
	// {a, b} scoped to item "i"
	resp, env := doAs(t, srv, http.MethodPost, "/v1/users", "", models.User{ID: "b:i", Name: "sneaky"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("user id with ':': want 400, got %d (error %q)", resp.StatusCode, env.Error)
	}
}
