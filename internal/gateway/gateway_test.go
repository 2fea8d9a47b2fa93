package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stellarlinkco/nudge/internal/bus"
	"github.com/stellarlinkco/nudge/internal/channel"
	"github.com/stellarlinkco/nudge/internal/config"
)

type mockNotifier struct {
	mu   sync.Mutex
	sent []bus.Delivery
}

func (m *mockNotifier) Name() string                    { return "mock" }
func (m *mockNotifier) Start(ctx context.Context) error { return nil }
func (m *mockNotifier) Stop() error                     { return nil }

func (m *mockNotifier) Send(d bus.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, d)
	return nil
}

func (m *mockNotifier) deliveries() []bus.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bus.Delivery, len(m.sent))
	copy(out, m.sent)
	return out
}

func newTestGateway(t *testing.T) (*Gateway, *mockNotifier) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Store.DBPath = filepath.Join(t.TempDir(), "nudge.db")
	cfg.Store.Seed = true
	cfg.Channels.Telegram.Chats = map[string]string{"demo-user": "1001"}

	mock := &mockNotifier{}
	g, err := NewWithOptions(cfg, Options{Notifiers: []channel.Notifier{mock}})
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}
	t.Cleanup(func() {
		if err := g.store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	g.now = func() time.Time {
		return time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	}
	return g, mock
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	g, _ := newTestGateway(t)
	rec := doJSON(t, g.routes(), http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status field = %v, want healthy", body["status"])
	}
}

func TestCreateAndGetUser(t *testing.T) {
	g, _ := newTestGateway(t)
	h := g.routes()

	create := map[string]any{
		"user_id":            "alice",
		"name":               "Alice",
		"topics_of_interest": []string{"rust", "databases"},
		"frequency":          "often",
	}
	rec := doJSON(t, h, http.MethodPost, "/api/user", create)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/api/user", create)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/user/alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["name"] != "Alice" || body["frequency"] != "often" {
		t.Errorf("unexpected user body: %v", body)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/user/nobody", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing user status = %d, want 404", rec.Code)
	}
}

func TestUpdatePreferencesEndpoint(t *testing.T) {
	g, _ := newTestGateway(t)
	h := g.routes()

	freq := "rarely"
	rec := doJSON(t, h, http.MethodPut, "/api/preferences", map[string]any{
		"user_id":   "demo-user",
		"frequency": freq,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["frequency"] != "rarely" {
		t.Errorf("frequency = %v, want rarely", body["frequency"])
	}
	// Untouched fields survive a partial update.
	if body["preferred_hour_start"] != float64(9) {
		t.Errorf("preferred_hour_start = %v, want 9", body["preferred_hour_start"])
	}

	rec = doJSON(t, h, http.MethodPut, "/api/preferences", map[string]any{
		"user_id": "nobody", "frequency": "often",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing user status = %d, want 404", rec.Code)
	}
}

func TestFeedbackEndpoint(t *testing.T) {
	g, _ := newTestGateway(t)
	h := g.routes()

	rec := doJSON(t, h, http.MethodPost, "/api/feedback", map[string]any{
		"user_id":      "demo-user",
		"candidate_id": "cand-001",
		"action":       "started",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "recorded" || body["id"] == "" {
		t.Errorf("unexpected body: %v", body)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/feedback", map[string]any{
		"user_id":      "demo-user",
		"candidate_id": "cand-001",
		"action":       "thumbs_up",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown action status = %d, want 400", rec.Code)
	}
}

func TestActivityEndpoint(t *testing.T) {
	g, _ := newTestGateway(t)

	rec := doJSON(t, g.routes(), http.MethodPost, "/api/activity", map[string]any{
		"user_id":       "demo-user",
		"activity_type": "search",
		"query":         "kafka exactly once",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["status"] != "recorded" {
		t.Errorf("status field = %v, want recorded", body["status"])
	}
}

func TestRecommendationsEndpoint(t *testing.T) {
	g, _ := newTestGateway(t)
	h := g.routes()

	rec := doJSON(t, h, http.MethodGet, "/api/recommendations?user_id=demo-user&limit=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	recs, ok := body["recommendations"].([]any)
	if !ok || len(recs) == 0 {
		t.Fatalf("expected recommendations for seeded user, got %v", body["recommendations"])
	}
	if len(recs) > 3 {
		t.Errorf("got %d recommendations, want at most 3", len(recs))
	}

	rec = doJSON(t, h, http.MethodGet, "/api/recommendations", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing user_id status = %d, want 400", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	g, _ := newTestGateway(t)

	rec := doJSON(t, g.routes(), http.MethodPost, "/api/search", map[string]any{
		"query": "kafka streaming",
		"limit": 5,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	results, ok := body["results"].([]any)
	if !ok || len(results) == 0 {
		t.Fatalf("expected search hits for seeded kafka content, got %v", body["results"])
	}
	expanded, ok := body["expanded_terms"].([]any)
	if !ok || len(expanded) == 0 {
		t.Errorf("expected expanded terms for kafka query, got %v", body["expanded_terms"])
	}

	first := results[0].(map[string]any)
	signals := first["signals"].([]any)
	if len(signals) != 1 || signals[0].(map[string]any)["type"] != "semantic_match" {
		t.Errorf("unexpected signals on search result: %v", first["signals"])
	}
}

func TestAddCandidateDerivesFeatures(t *testing.T) {
	g, _ := newTestGateway(t)
	h := g.routes()

	body := map[string]any{
		"title":   "Understanding consensus protocols in distributed systems",
		"summary": "Raft and Paxos explained through leader election and log replication mechanics.",
	}
	rec := doJSON(t, h, http.MethodPost, "/api/candidates", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody(t, rec)
	id, _ := created["id"].(string)
	if !strings.HasPrefix(id, "cand-") {
		t.Errorf("derived id = %q, want cand- prefix", id)
	}
	keywords, ok := created["keywords"].([]any)
	if !ok || len(keywords) == 0 {
		t.Errorf("expected mined keywords, got %v", created["keywords"])
	}
	if created["difficulty"] == "" {
		t.Error("expected a derived reading level")
	}

	rec = doJSON(t, h, http.MethodPost, "/api/candidates", body)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate ingest status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/search", map[string]any{
		"query": "consensus protocols raft",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}
	results := decodeBody(t, rec)["results"].([]any)
	found := false
	for _, res := range results {
		if res.(map[string]any)["candidate"].(map[string]any)["id"] == id {
			found = true
		}
	}
	if !found {
		t.Error("ingested candidate missing from search results")
	}
}

func TestTriggerCheckUnknownUser(t *testing.T) {
	g, _ := newTestGateway(t)

	rec := doJSON(t, g.routes(), http.MethodPost, "/api/trigger/check", map[string]any{
		"user_id": "nobody",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["should_trigger"] != false || body["decision"] != "skip" {
		t.Errorf("unexpected trigger response: %v", body)
	}
}

func TestSnoozeAndResume(t *testing.T) {
	g, _ := newTestGateway(t)
	h := g.routes()

	rec := doJSON(t, h, http.MethodPost, "/api/snooze", map[string]any{
		"user_id": "demo-user",
		"hours":   4,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("snooze status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "snoozed" || body["until"] == "" {
		t.Errorf("unexpected snooze body: %v", body)
	}

	user, err := g.store.UserByID("demo-user")
	if err != nil || user == nil {
		t.Fatalf("load user: %v", err)
	}
	if user.PausedUntil == "" {
		t.Error("expected paused_until to be set after snooze")
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/snooze/demo-user", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resume status = %d", rec.Code)
	}
	user, err = g.store.UserByID("demo-user")
	if err != nil || user == nil {
		t.Fatalf("reload user: %v", err)
	}
	if user.PausedUntil != "" {
		t.Errorf("paused_until = %q, want cleared", user.PausedUntil)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/snooze", map[string]any{
		"user_id": "nobody", "hours": 1,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("snooze missing user status = %d, want 404", rec.Code)
	}
}

func TestProactiveMessageWithCandidate(t *testing.T) {
	g, _ := newTestGateway(t)
	h := g.routes()

	rec := doJSON(t, h, http.MethodPost, "/api/proactive-message", map[string]any{
		"user_id":      "demo-user",
		"candidate_id": "cand-001",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["message"] == "" {
		t.Error("expected a non-empty opener message")
	}
	candidate := body["candidate"].(map[string]any)
	if candidate["id"] != "cand-001" {
		t.Errorf("candidate id = %v, want cand-001", candidate["id"])
	}
	signals := body["signals"].([]any)
	if len(signals) != 1 || signals[0].(map[string]any)["type"] != "user_selected" {
		t.Errorf("unexpected signals: %v", body["signals"])
	}

	rec = doJSON(t, h, http.MethodPost, "/api/proactive-message", map[string]any{
		"user_id": "nobody",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing user status = %d, want 404", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/proactive-message", map[string]any{
		"user_id": "demo-user", "candidate_id": "cand-nope",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing candidate status = %d, want 404", rec.Code)
	}
}

func TestReceptivityEndpoint(t *testing.T) {
	g, _ := newTestGateway(t)

	rec := doJSON(t, g.routes(), http.MethodGet, "/api/receptivity/demo-user", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	pattern, ok := body["hourly_pattern"].(map[string]any)
	if !ok || len(pattern) != 24 {
		t.Fatalf("expected 24-hour pattern, got %v", body["hourly_pattern"])
	}
	optimal, ok := body["optimal_hours"].([]any)
	if !ok {
		t.Fatalf("expected optimal_hours list, got %v", body["optimal_hours"])
	}
	for _, h := range optimal {
		hour := int(h.(float64))
		if pattern[strconv.Itoa(hour)].(float64) < 0.7 {
			t.Errorf("optimal hour %d has receptivity below 0.7", hour)
		}
	}
}

func TestAnalyticsEndpoint(t *testing.T) {
	g, _ := newTestGateway(t)

	rec := doJSON(t, g.routes(), http.MethodGet, "/api/analytics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["total_candidates"] != float64(10) {
		t.Errorf("total_candidates = %v, want 10 from seed", body["total_candidates"])
	}
	if body["total_users"] != float64(2) {
		t.Errorf("total_users = %v, want 2 from seed", body["total_users"])
	}
}

func TestDeliverPublishesToBus(t *testing.T) {
	g, _ := newTestGateway(t)

	recs, err := g.engine.Recommendations("demo-user", 1, nil)
	if err != nil || len(recs) == 0 {
		t.Fatalf("seed recommendations: %v", err)
	}
	g.deliver("demo-user", &recs[0], "All conditions met")

	select {
	case d := <-g.bus.Outbound:
		if d.UserID != "demo-user" || d.ChatID != "1001" {
			t.Errorf("delivery routing = %s/%s, want demo-user/1001", d.UserID, d.ChatID)
		}
		if d.CandidateID != recs[0].Candidate.ID {
			t.Errorf("candidate id = %s, want %s", d.CandidateID, recs[0].Candidate.ID)
		}
	default:
		t.Fatal("expected a delivery on the outbound bus")
	}
}

func TestDispatchLoopSendsToNotifiers(t *testing.T) {
	g, mock := newTestGateway(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		g.dispatchLoop(ctx)
		close(done)
	}()

	g.bus.Outbound <- bus.Delivery{UserID: "demo-user", ChatID: "1001", Title: "hello"}

	deadline := time.After(2 * time.Second)
	for len(mock.deliveries()) == 0 {
		select {
		case <-deadline:
			t.Fatal("notifier never received the delivery")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if got := mock.deliveries()[0].Title; got != "hello" {
		t.Errorf("delivered title = %q, want hello", got)
	}

	cancel()
	<-done
}

func TestSweepAndDrainRun(t *testing.T) {
	g, _ := newTestGateway(t)

	if err := g.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if err := g.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func TestFeedbackClearsCFCache(t *testing.T) {
	g, _ := newTestGateway(t)

	// Prime the cache, then feed back and confirm scores still resolve.
	if scores := g.engine.CF().Scores("demo-user"); scores == nil {
		t.Fatal("expected a cf scores map while priming the cache")
	}
	rec := doJSON(t, g.routes(), http.MethodPost, "/api/feedback", map[string]any{
		"user_id":      "demo-peer",
		"candidate_id": "cand-003",
		"action":       "started",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("feedback status = %d", rec.Code)
	}
	scores := g.engine.CF().Scores("demo-user")
	if scores == nil {
		t.Error("expected cf scores map after cache invalidation")
	}
}
