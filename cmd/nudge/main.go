package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/nudge/internal/config"
	"github.com/stellarlinkco/nudge/internal/gateway"
	"github.com/stellarlinkco/nudge/internal/recommend"
	"github.com/stellarlinkco/nudge/internal/store"
	"github.com/stellarlinkco/nudge/internal/textsim"
	"github.com/stellarlinkco/nudge/internal/trigger"
)

var rootCmd = &cobra.Command{
	Use:   "nudge",
	Short: "nudge - proactive content recommendation service",
}

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the full gateway (HTTP API + scheduler + channels)",
	RunE:  runGateway,
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Print ranked recommendations for a user",
	RunE:  runRecommend,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the candidate pool with TF-IDF and query expansion",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate the proactive trigger decision for a user",
	RunE:  runCheck,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sample candidates and users into the store",
	RunE:  runSeed,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show nudge status",
	RunE:  runStatus,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and data store",
	RunE:  runOnboard,
}

var (
	userFlag  string
	limitFlag int
)

func init() {
	recommendCmd.Flags().StringVarP(&userFlag, "user", "u", "demo-user", "User ID")
	recommendCmd.Flags().IntVarP(&limitFlag, "limit", "n", 5, "Number of recommendations")
	searchCmd.Flags().IntVarP(&limitFlag, "limit", "n", 5, "Number of results")
	checkCmd.Flags().StringVarP(&userFlag, "user", "u", "demo-user", "User ID")
	rootCmd.AddCommand(gatewayCmd, recommendCmd, searchCmd, checkCmd, seedCmd, statusCmd, onboardCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore() (*store.SQLite, *config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	st, err := store.NewSQLite(cfg.Store.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return st, cfg, nil
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	return gw.Run(context.Background())
}

func runRecommend(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	engine := recommend.NewEngine(st)
	recs, err := engine.Recommendations(userFlag, limitFlag, nil)
	if err != nil {
		return fmt.Errorf("recommend: %w", err)
	}
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No recommendations available.")
		return nil
	}

	out := cmd.OutOrStdout()
	for i, r := range recs {
		fmt.Fprintf(out, "%d. [%.2f] %s (%s)\n", i+1, r.Score, r.Candidate.Title, r.Candidate.Category)
		for _, s := range r.Signals {
			fmt.Fprintf(out, "     - %s\n", s.Description)
		}
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	candidates, err := st.AllCandidates()
	if err != nil {
		return fmt.Errorf("load candidates: %w", err)
	}

	sim := textsim.New()
	corpus := make([]string, 0, len(candidates))
	docs := make([]textsim.Document, 0, len(candidates))
	byID := make(map[string]store.Candidate, len(candidates))
	for _, c := range candidates {
		text := c.Title + " " + c.Summary + " " + strings.Join(c.Keywords, " ")
		corpus = append(corpus, text)
		docs = append(docs, textsim.Document{ID: c.ID, Text: text})
		byID[c.ID] = c
	}
	sim.BuildIndex(corpus)

	query := strings.Join(args, " ")
	expanded := textsim.NewQueryExpander().Expand(query)
	fullQuery := query
	if len(expanded) > 0 {
		fullQuery = query + " " + strings.Join(expanded, " ")
	}

	out := cmd.OutOrStdout()
	if len(expanded) > 0 {
		fmt.Fprintf(out, "Expanded terms: %s\n", strings.Join(expanded, ", "))
	}
	matches := sim.FindSimilar(fullQuery, docs, limitFlag)
	if len(matches) == 0 {
		fmt.Fprintln(out, "No matches.")
		return nil
	}
	for i, m := range matches {
		c := byID[m.ID]
		fmt.Fprintf(out, "%d. [%.3f] %s (%s)\n", i+1, m.Score, c.Title, c.Category)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	st, _, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	user, err := st.UserByID(userFlag)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	out := cmd.OutOrStdout()
	if user == nil {
		fmt.Fprintf(out, "User %s not found.\n", userFlag)
		return nil
	}

	svc := trigger.NewService(st)
	uctx := &recommend.UserContext{
		UserID:           userFlag,
		CurrentActivity:  "browsing",
		ReceptivityScore: svc.Receptivity(userFlag, time.Now().Hour()),
	}

	engine := recommend.NewEngine(st)
	suggestion, err := engine.ProactiveSuggestion(userFlag, uctx)
	if err != nil {
		return fmt.Errorf("suggest: %w", err)
	}
	if suggestion == nil {
		fmt.Fprintln(out, "Decision: skip (no suggestion above the quality floor)")
		return nil
	}

	result := svc.ShouldTrigger(user, suggestion, uctx)
	fmt.Fprintf(out, "Suggestion: %s [%.2f]\n", suggestion.Candidate.Title, suggestion.Score)
	fmt.Fprintf(out, "Decision: %s (%s)\n", result.Decision, result.Reason)
	if result.RetryAfter > 0 {
		fmt.Fprintf(out, "Retry after: %s\n", result.RetryAfter)
	}
	if result.Decision == trigger.DecisionTrigger {
		fmt.Fprintf(out, "Priority: %.2f\n", result.Priority)
	}
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.Seed()
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	out := cmd.OutOrStdout()
	if n == 0 {
		fmt.Fprintf(out, "Store already has candidates: %s\n", cfg.Store.DBPath)
		return nil
	}
	fmt.Fprintf(out, "Seeded %d candidates into %s\n", n, cfg.Store.DBPath)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(out, "Config: error (%v)\n", err)
		return nil
	}

	fmt.Fprintf(out, "Config: %s\n", config.ConfigPath())
	fmt.Fprintf(out, "Store: %s\n", cfg.Store.DBPath)
	fmt.Fprintf(out, "Gateway: %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Fprintf(out, "Sweep: %s\n", cfg.Scheduler.SweepSpec)
	fmt.Fprintf(out, "Drain: %s\n", cfg.Scheduler.DrainSpec)
	fmt.Fprintf(out, "Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)

	st, err := store.NewSQLite(cfg.Store.DBPath)
	if err != nil {
		fmt.Fprintf(out, "Store: error (%v)\n", err)
		return nil
	}
	defer st.Close()

	stats, err := st.Stats()
	if err != nil {
		fmt.Fprintf(out, "Stats: error (%v)\n", err)
		return nil
	}
	fmt.Fprintf(out, "Candidates: %d\n", stats.TotalCandidates)
	fmt.Fprintf(out, "Users: %d\n", stats.TotalUsers)
	fmt.Fprintf(out, "Feedback: %d (engagement %.1f%%)\n", stats.TotalFeedback, stats.EngagementRate*100)
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(out, "Created config: %s\n", cfgPath)
	} else {
		fmt.Fprintf(out, "Config already exists: %s\n", cfgPath)
	}

	st, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.Seed()
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if n > 0 {
		fmt.Fprintf(out, "Seeded %d sample candidates: %s\n", n, cfg.Store.DBPath)
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s to set interests and channels\n", cfgPath)
	fmt.Fprintln(out, "  2. Run 'nudge recommend -u demo-user' to test ranking")
	fmt.Fprintln(out, "  3. Run 'nudge gateway' to start the service")
	return nil
}
