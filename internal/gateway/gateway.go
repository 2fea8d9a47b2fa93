// Package gateway wires the recommendation pipeline, trigger decisions,
// delivery queue, scheduler and channels into the long-running service,
// and exposes the HTTP API.
package gateway

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/stellarlinkco/nudge/internal/bus"
	"github.com/stellarlinkco/nudge/internal/channel"
	"github.com/stellarlinkco/nudge/internal/config"
	"github.com/stellarlinkco/nudge/internal/recommend"
	"github.com/stellarlinkco/nudge/internal/scheduler"
	"github.com/stellarlinkco/nudge/internal/store"
	"github.com/stellarlinkco/nudge/internal/textsim"
	"github.com/stellarlinkco/nudge/internal/trigger"
)

// Options for creating a Gateway
type Options struct {
	Notifiers  []channel.Notifier
	SignalChan chan os.Signal // for testing signal handling
}

type Gateway struct {
	cfg        *config.Config
	store      *store.SQLite
	engine     *recommend.Engine
	trigger    *trigger.Service
	queue      *trigger.MessageQueue
	sim        *textsim.TextSimilarity
	expander   *textsim.QueryExpander
	analyzer   *textsim.ContentAnalyzer
	sched      *scheduler.Service
	bus        *bus.Bus
	notifiers  []channel.Notifier
	httpServer *http.Server
	signalChan chan os.Signal // for testing
	now        func() time.Time
}

// New creates a Gateway with default options
func New(cfg *config.Config) (*Gateway, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions creates a Gateway with custom options for testing
func NewWithOptions(cfg *config.Config, opts Options) (*Gateway, error) {
	g := &Gateway{
		cfg:        cfg,
		queue:      trigger.NewMessageQueue(),
		sim:        textsim.New(),
		expander:   textsim.NewQueryExpander(),
		analyzer:   textsim.NewContentAnalyzer(),
		bus:        bus.New(config.DefaultBusBuffer),
		signalChan: opts.SignalChan,
		now:        time.Now,
	}

	st, err := store.NewSQLite(cfg.Store.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	g.store = st

	if cfg.Store.Seed {
		n, err := st.Seed()
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("seed store: %w", err)
		}
		if n > 0 {
			log.Printf("[gateway] seeded %d sample candidates", n)
		}
	}

	g.engine = recommend.NewEngine(st)
	g.trigger = trigger.NewService(st)

	// Feedback shifts similar-user scores for everyone, so invalidate
	// the whole CF cache on every feedback event.
	st.OnFeedback(func(userID string) {
		g.engine.CF().ClearCache("")
	})

	if err := g.buildSimilarityIndex(); err != nil {
		_ = st.Close()
		return nil, err
	}

	g.notifiers = opts.Notifiers
	if g.notifiers == nil && cfg.Channels.Telegram.Enabled {
		tn, err := channel.NewTelegramNotifier(cfg.Channels.Telegram)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("create telegram notifier: %w", err)
		}
		g.notifiers = []channel.Notifier{tn}
	}

	g.sched = scheduler.NewService()
	if err := g.sched.Register(scheduler.JobSweep, cfg.Scheduler.SweepSpec, g.Sweep); err != nil {
		_ = st.Close()
		return nil, err
	}
	if err := g.sched.Register(scheduler.JobDrain, cfg.Scheduler.DrainSpec, g.Drain); err != nil {
		_ = st.Close()
		return nil, err
	}

	return g, nil
}

// buildSimilarityIndex rebuilds the TF-IDF index over the full pool.
func (g *Gateway) buildSimilarityIndex() error {
	candidates, err := g.store.AllCandidates()
	if err != nil {
		return fmt.Errorf("load candidates for index: %w", err)
	}
	corpus := make([]string, 0, len(candidates))
	for _, c := range candidates {
		corpus = append(corpus, candidateText(c))
	}
	g.sim.BuildIndex(corpus)
	log.Printf("[gateway] similarity index built over %d candidates", len(corpus))
	return nil
}

func candidateText(c store.Candidate) string {
	return c.Title + " " + c.Summary + " " + strings.Join(c.Keywords, " ")
}

// userContext assembles a point-in-time context for trigger and ranking.
func (g *Gateway) userContext(userID string) *recommend.UserContext {
	return &recommend.UserContext{
		UserID:           userID,
		CurrentActivity:  "browsing",
		ReceptivityScore: g.trigger.Receptivity(userID, g.now().Hour()),
	}
}

// Sweep evaluates every user for proactive outreach. Deliverable
// suggestions go out on the bus; queueable ones enter the message queue
// with the trigger's retry delay.
func (g *Gateway) Sweep(ctx context.Context) error {
	users, err := g.store.AllUsers()
	if err != nil {
		return fmt.Errorf("sweep load users: %w", err)
	}

	for _, u := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		uctx := g.userContext(u.ID)
		suggestion, err := g.engine.ProactiveSuggestion(u.ID, uctx)
		if err != nil {
			log.Printf("[gateway] sweep suggestion failed for %s: %v", u.ID, err)
			continue
		}
		if suggestion == nil {
			continue
		}

		result := g.trigger.ShouldTrigger(&u, suggestion, uctx)
		switch result.Decision {
		case trigger.DecisionTrigger:
			g.deliver(u.ID, suggestion, result.Reason)
		case trigger.DecisionQueue, trigger.DecisionWait:
			g.queue.Add(u.ID, *suggestion, g.now().Add(result.RetryAfter), result.Priority)
			log.Printf("[gateway] queued suggestion for %s: %s (retry %s)", u.ID, result.Reason, result.RetryAfter)
		case trigger.DecisionSkip:
			log.Printf("[gateway] skipped suggestion for %s: %s", u.ID, result.Reason)
		}
	}
	return nil
}

// Drain re-evaluates due queued messages. Anything that still cannot go
// out is re-queued with a fresh retry delay; skips are dropped.
func (g *Gateway) Drain(ctx context.Context) error {
	for _, m := range g.queue.Ready() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		user, err := g.store.UserByID(m.UserID)
		if err != nil || user == nil {
			log.Printf("[gateway] drain dropped message for missing user %s", m.UserID)
			continue
		}

		uctx := g.userContext(m.UserID)
		result := g.trigger.ShouldTrigger(user, &m.Recommendation, uctx)
		switch result.Decision {
		case trigger.DecisionTrigger:
			g.deliver(m.UserID, &m.Recommendation, result.Reason)
		case trigger.DecisionQueue, trigger.DecisionWait:
			g.queue.Add(m.UserID, m.Recommendation, g.now().Add(result.RetryAfter), result.Priority)
		case trigger.DecisionSkip:
			log.Printf("[gateway] drain skipped message for %s: %s", m.UserID, result.Reason)
		}
	}
	return nil
}

func (g *Gateway) deliver(userID string, rec *recommend.ScoredCandidate, reason string) {
	chatID := g.cfg.Channels.Telegram.Chats[userID]
	d := bus.Delivery{
		Channel:     "telegram",
		UserID:      userID,
		ChatID:      chatID,
		Title:       rec.Candidate.Title,
		Summary:     rec.Candidate.Summary,
		Source:      rec.Candidate.Source,
		CandidateID: rec.Candidate.ID,
		Score:       rec.Score,
		Reason:      reason,
		Timestamp:   g.now(),
	}

	select {
	case g.bus.Outbound <- d:
		log.Printf("[gateway] delivering %q to %s (score %.2f)", rec.Candidate.Title, userID, rec.Score)
	default:
		log.Printf("[gateway] outbound bus full, dropping delivery for %s", userID)
	}
}

func (g *Gateway) dispatchLoop(ctx context.Context) {
	for {
		select {
		case d, ok := <-g.bus.Outbound:
			if !ok {
				return
			}
			if d.ChatID == "" {
				log.Printf("[gateway] no chat mapping for %s, delivery dropped", d.UserID)
				continue
			}
			for _, n := range g.notifiers {
				if err := n.Send(d); err != nil {
					log.Printf("[gateway] %s delivery to %s failed: %v", n.Name(), d.UserID, err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// Search runs TF-IDF semantic search with query expansion over the
// whole candidate pool.
func (g *Gateway) Search(query string, limit int) ([]recommend.ScoredCandidate, []string, error) {
	if limit <= 0 {
		limit = 10
	}

	expanded := g.expander.Expand(query)
	fullQuery := query
	if len(expanded) > 0 {
		fullQuery = query + " " + strings.Join(expanded, " ")
	}

	candidates, err := g.store.AllCandidates()
	if err != nil {
		return nil, nil, fmt.Errorf("search load candidates: %w", err)
	}

	docs := make([]textsim.Document, 0, len(candidates))
	byID := make(map[string]store.Candidate, len(candidates))
	for _, c := range candidates {
		docs = append(docs, textsim.Document{ID: c.ID, Text: candidateText(c)})
		byID[c.ID] = c
	}

	matches := g.sim.FindSimilar(fullQuery, docs, limit)
	results := make([]recommend.ScoredCandidate, 0, len(matches))
	for _, m := range matches {
		results = append(results, recommend.ScoredCandidate{
			Candidate: byID[m.ID],
			Score:     m.Score,
			Signals: []recommend.Signal{{
				Type:        "semantic_match",
				Description: fmt.Sprintf("Semantic similarity: %.0f%%", m.Score*100),
				Weight:      m.Score,
			}},
		})
	}
	return results, expanded, nil
}

// Run starts channels, scheduler and HTTP API, then blocks until a
// shutdown signal arrives.
func (g *Gateway) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, n := range g.notifiers {
		if err := n.Start(ctx); err != nil {
			return fmt.Errorf("start %s channel: %w", n.Name(), err)
		}
	}

	go g.dispatchLoop(ctx)

	if err := g.sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", g.cfg.Gateway.Host, g.cfg.Gateway.Port)
	g.httpServer = &http.Server{Addr: addr, Handler: g.routes()}
	go func() {
		if err := g.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[gateway] http server error: %v", err)
		}
	}()
	log.Printf("[gateway] running on %s", addr)

	// Use injected signal channel for testing, or create default
	sigCh := g.signalChan
	if sigCh == nil {
		sigCh = make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	}
	<-sigCh

	log.Printf("[gateway] shutting down...")
	return g.Shutdown()
}

func (g *Gateway) Shutdown() error {
	if g.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[gateway] http shutdown warning: %v", err)
		}
	}
	g.sched.Stop()
	for _, n := range g.notifiers {
		if err := n.Stop(); err != nil {
			log.Printf("[gateway] stop %s channel warning: %v", n.Name(), err)
		}
	}
	if err := g.store.Close(); err != nil {
		log.Printf("[gateway] close store warning: %v", err)
	}
	log.Printf("[gateway] shutdown complete")
	return nil
}

// Store exposes the backing store for CLI commands.
func (g *Gateway) Store() *store.SQLite {
	return g.store
}
