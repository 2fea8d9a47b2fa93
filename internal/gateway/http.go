package gateway

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/stellarlinkco/nudge/internal/recommend"
	"github.com/stellarlinkco/nudge/internal/store"
	"github.com/stellarlinkco/nudge/internal/trigger"
)

func (g *Gateway) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", g.handleHealth)
	mux.HandleFunc("GET /api/recommendations", g.handleRecommendations)
	mux.HandleFunc("POST /api/candidates", g.handleAddCandidate)
	mux.HandleFunc("POST /api/feedback", g.handleFeedback)
	mux.HandleFunc("POST /api/user", g.handleCreateUser)
	mux.HandleFunc("GET /api/user/{id}", g.handleGetUser)
	mux.HandleFunc("PUT /api/preferences", g.handlePreferences)
	mux.HandleFunc("POST /api/activity", g.handleActivity)
	mux.HandleFunc("GET /api/stats/{user_id}", g.handleStats)
	mux.HandleFunc("POST /api/trigger/check", g.handleTriggerCheck)
	mux.HandleFunc("POST /api/search", g.handleSearch)
	mux.HandleFunc("GET /api/analytics", g.handleAnalytics)
	mux.HandleFunc("POST /api/snooze", g.handleSnooze)
	mux.HandleFunc("DELETE /api/snooze/{user_id}", g.handleResume)
	mux.HandleFunc("POST /api/proactive-message", g.handleProactiveMessage)
	mux.HandleFunc("GET /api/receptivity/{user_id}", g.handleReceptivity)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[gateway] write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "nudge",
		"status":  "healthy",
	})
}

func (g *Gateway) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	limit := g.cfg.Recommend.Limit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 20 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 20")
			return
		}
		limit = n
	}

	// Default receptivity for pull-based requests; the user asked, so
	// assume they are listening.
	uctx := &recommend.UserContext{UserID: userID, ReceptivityScore: 0.7}
	recs, err := g.engine.Recommendations(userID, limit, uctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":         userID,
		"recommendations": recs,
		"timestamp":       g.now().Format(time.RFC3339),
	})
}

// handleAddCandidate ingests a content item. Missing keywords are mined
// from the text, the difficulty from a reading-level estimate, and the
// ID from a dedup hash of the title.
func (g *Gateway) handleAddCandidate(w http.ResponseWriter, r *http.Request) {
	var c store.Candidate
	if !decodeJSON(w, r, &c) {
		return
	}
	if c.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	text := c.Title + " " + c.Summary
	if c.ID == "" {
		c.ID = "cand-" + g.analyzer.ContentHash(c.Title)
	}
	if len(c.Keywords) == 0 {
		c.Keywords = g.analyzer.ExtractTopics(text, 5)
	}
	if c.Difficulty == "" {
		c.Difficulty = g.analyzer.ReadingLevel(text)
	}
	if c.Category == "" {
		c.Category = store.CategoryLearning
	}
	if c.Priority == "" {
		c.Priority = store.PriorityMedium
	}
	if c.CreatedAt == "" {
		c.CreatedAt = g.now().Format(time.RFC3339)
	}

	existing, err := g.store.CandidateByID(c.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "candidate already exists")
		return
	}

	if err := g.store.AddCandidate(c); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := g.buildSimilarityIndex(); err != nil {
		log.Printf("[gateway] reindex after ingest: %v", err)
	}
	writeJSON(w, http.StatusCreated, c)
}

func (g *Gateway) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID            string `json:"user_id"`
		CandidateID       string `json:"candidate_id"`
		Action            string `json:"action"`
		ConversationTurns int    `json:"conversation_turns"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" || req.CandidateID == "" {
		writeError(w, http.StatusBadRequest, "user_id and candidate_id are required")
		return
	}
	if _, ok := store.ActionDeltas[req.Action]; !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
		return
	}

	id, err := g.store.RecordFeedback(store.Feedback{
		UserID:            req.UserID,
		CandidateID:       req.CandidateID,
		Action:            req.Action,
		ConversationTurns: req.ConversationTurns,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "recorded"})
}

func (g *Gateway) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID             string   `json:"user_id"`
		Name               string   `json:"name"`
		Email              string   `json:"email"`
		TopicsOfInterest   []string `json:"topics_of_interest"`
		Frequency          string   `json:"frequency"`
		PreferredHourStart *int     `json:"preferred_hour_start"`
		PreferredHourEnd   *int     `json:"preferred_hour_end"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "user_id and name are required")
		return
	}

	existing, err := g.store.UserByID(req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "user already exists")
		return
	}

	u := store.User{
		ID:               req.UserID,
		Name:             req.Name,
		Email:            req.Email,
		TopicsOfInterest: req.TopicsOfInterest,
		Frequency:        req.Frequency,
	}
	if req.PreferredHourStart != nil {
		u.PreferredHourStart = *req.PreferredHourStart
	}
	if req.PreferredHourEnd != nil {
		u.PreferredHourEnd = *req.PreferredHourEnd
	}
	if err := g.store.CreateUser(u); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	created, err := g.store.UserByID(req.UserID)
	if err != nil || created == nil {
		writeError(w, http.StatusInternalServerError, "user not persisted")
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (g *Gateway) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := g.store.UserByID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (g *Gateway) handlePreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID             string   `json:"user_id"`
		TopicsOfInterest   []string `json:"topics_of_interest"`
		Frequency          *string  `json:"frequency"`
		PreferredHourStart *int     `json:"preferred_hour_start"`
		PreferredHourEnd   *int     `json:"preferred_hour_end"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	user, err := g.store.UpdatePreferences(req.UserID, store.Preferences{
		TopicsOfInterest:   req.TopicsOfInterest,
		Frequency:          req.Frequency,
		PreferredHourStart: req.PreferredHourStart,
		PreferredHourEnd:   req.PreferredHourEnd,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	// Interests shifted, so cached similarity is stale.
	g.engine.CF().ClearCache("")
	writeJSON(w, http.StatusOK, user)
}

func (g *Gateway) handleActivity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string   `json:"user_id"`
		ActivityType string   `json:"activity_type"`
		Keywords     []string `json:"keywords"`
		Query        string   `json:"query"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" || req.ActivityType == "" {
		writeError(w, http.StatusBadRequest, "user_id and activity_type are required")
		return
	}

	id, err := g.store.AddActivity(store.Activity{
		UserID:       req.UserID,
		ActivityType: req.ActivityType,
		Keywords:     req.Keywords,
		Query:        req.Query,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "recorded"})
}

func (g *Gateway) handleStats(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	stats, err := g.store.FeedbackStats(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"stats":   stats,
	})
}

func (g *Gateway) handleTriggerCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := g.store.UserByID(req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"should_trigger": false,
			"decision":       trigger.DecisionSkip,
			"reason":         "User not found",
		})
		return
	}

	uctx := g.userContext(req.UserID)
	recs, err := g.engine.Recommendations(req.UserID, 1, uctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(recs) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{
			"should_trigger": false,
			"decision":       trigger.DecisionSkip,
			"reason":         "No recommendations available",
		})
		return
	}

	top := recs[0]
	result := g.trigger.ShouldTrigger(user, &top, uctx)

	resp := map[string]any{
		"should_trigger": result.Decision == trigger.DecisionTrigger,
		"decision":       result.Decision,
		"reason":         result.Reason,
	}
	if result.Decision == trigger.DecisionTrigger {
		resp["recommendation"] = top
	}
	if result.RetryAfter > 0 {
		resp["retry_after_seconds"] = int(result.RetryAfter.Seconds())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = 5
	}
	if req.Limit > 20 {
		req.Limit = 20
	}

	results, expanded, err := g.Search(req.Query, req.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if expanded == nil {
		expanded = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":          req.Query,
		"results":        results,
		"expanded_terms": expanded,
	})
}

func (g *Gateway) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	stats, err := g.store.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (g *Gateway) handleSnooze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Hours  int    `json:"hours"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Hours <= 0 {
		req.Hours = 1
	}
	if req.Hours > 168 {
		writeError(w, http.StatusBadRequest, "hours must be at most 168")
		return
	}

	user, err := g.store.UserByID(req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	until := g.now().Add(time.Duration(req.Hours) * time.Hour).Format(time.RFC3339)
	if err := g.store.SetPause(req.UserID, until); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if dropped := g.queue.ClearUser(req.UserID); dropped > 0 {
		log.Printf("[gateway] snooze dropped %d queued messages for %s", dropped, req.UserID)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "snoozed",
		"until":  until,
		"hours":  req.Hours,
	})
}

func (g *Gateway) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := g.store.ClearPause(r.PathValue("user_id")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

func (g *Gateway) handleProactiveMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"user_id"`
		CandidateID string `json:"candidate_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := g.store.UserByID(req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	var scored recommend.ScoredCandidate
	if req.CandidateID != "" {
		candidate, err := g.store.CandidateByID(req.CandidateID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if candidate == nil {
			writeError(w, http.StatusNotFound, "candidate not found")
			return
		}
		scored = recommend.ScoredCandidate{
			Candidate: *candidate,
			Score:     0.8,
			Signals: []recommend.Signal{{
				Type:        "user_selected",
				Description: "User-selected topic",
			}},
		}
	} else {
		uctx := g.userContext(req.UserID)
		recs, err := g.engine.Recommendations(req.UserID, 1, uctx)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if len(recs) == 0 {
			writeError(w, http.StatusNotFound, "no recommendations available")
			return
		}
		scored = recs[0]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   composeOpener(scored.Candidate),
		"candidate": scored.Candidate,
		"signals":   scored.Signals,
	})
}

// composeOpener builds a conversation opener for a candidate without
// an LLM in the loop.
func composeOpener(c store.Candidate) string {
	templates := openerTemplates(c)
	return templates[rand.IntN(len(templates))]
}

func openerTemplates(c store.Candidate) []string {
	switch c.Category {
	case store.CategoryWork:
		return []string{
			fmt.Sprintf("Hey, heads up: %s... Would you like me to help you address this?", clip(c.Summary, 80)),
			fmt.Sprintf("I see something that might need your attention: %s. Should we take a look?", c.Title),
		}
	case store.CategoryNews:
		return []string{
			fmt.Sprintf("There's an interesting development that relates to your work: %s... Want to discuss the implications?", clip(c.Summary, 100)),
			fmt.Sprintf("I came across some news you might find relevant: %s. Shall we explore what it means for you?", c.Title),
		}
	case store.CategoryHealth:
		return []string{
			fmt.Sprintf("I noticed a pattern that might be worth discussing: %s... Would you like some suggestions?", clip(c.Summary, 80)),
		}
	case store.CategoryProductivity:
		return []string{
			fmt.Sprintf("I have a suggestion that might help your workflow: %s... Interested?", clip(c.Summary, 80)),
		}
	default:
		topic := "technical topics"
		if len(c.Keywords) > 0 {
			topic = c.Keywords[0]
		}
		return []string{
			fmt.Sprintf("I noticed you've been diving into %s. %s - would you like to explore this together?", topic, c.Title),
			fmt.Sprintf("Based on your recent learning, I thought you might find this interesting: %s... Want to discuss?", clip(c.Summary, 100)),
		}
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func (g *Gateway) handleReceptivity(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	hour := g.now().Hour()
	current := g.trigger.Receptivity(userID, hour)

	pattern := make(map[string]float64, 24)
	var optimal []int
	for h := 0; h < 24; h++ {
		score := g.trigger.Receptivity(userID, h)
		pattern[strconv.Itoa(h)] = score
		if score >= 0.7 {
			optimal = append(optimal, h)
		}
	}
	if optimal == nil {
		optimal = []int{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":             userID,
		"current_receptivity": current,
		"current_hour":        hour,
		"hourly_pattern":      pattern,
		"optimal_hours":       optimal,
	})
}
