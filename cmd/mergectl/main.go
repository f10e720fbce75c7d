// Command mergectl runs merge-suggestion maintenance against the feedback
// database: sweeps, single-post checks, expiry and manual resolution.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/feedbackhq/feedback/internal/config"
	"github.com/feedbackhq/feedback/internal/database"
	"github.com/feedbackhq/feedback/internal/jobs"
	"github.com/feedbackhq/feedback/internal/llm"
	"github.com/feedbackhq/feedback/internal/logger"
	"github.com/feedbackhq/feedback/internal/notify"
	"github.com/feedbackhq/feedback/internal/services"
)

// app holds the services commands operate on. Tests replace it before
// executing a command.
var app *App

// App is the wired service graph used by the commands
type App struct {
	cfg         *config.Config
	db          *gorm.DB
	suggestions *services.MergeSuggestionService
	checker     *services.MergeCheckService
	sweep       *jobs.MergeSweepJob
}

// NewApp wires services over db. source supplies the LLM client.
func NewApp(cfg *config.Config, db *gorm.DB, store database.CandidateStore, source llm.Source, notifier notify.Notifier) *App {
	suggestions := services.NewMergeSuggestionService(db, services.NewGormPostMerger(db), notifier)
	checker := services.NewMergeCheckService(db,
		services.NewMergeSearchService(db, store),
		services.NewMergeAssessor(source),
		suggestions)
	return &App{
		cfg:         cfg,
		db:          db,
		suggestions: suggestions,
		checker:     checker,
		sweep:       jobs.NewMergeSweepJob(checker, suggestions, source, nil),
	}
}

var rootCmd = &cobra.Command{
	Use:           "mergectl",
	Short:         "Inspect and resolve duplicate-post merge suggestions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if app != nil || cmd.Annotations["skipApp"] == "true" {
			return nil
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		app = a
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("database-url", "", "Database URL (defaults to DATABASE_URL)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level for service logs")
}

// openApp loads configuration and connects to the configured database
func openApp(cmd *cobra.Command) (*App, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dsn, _ := cmd.Flags().GetString("database-url"); dsn != "" {
		cfg.DatabaseURL = dsn
	}

	level, _ := cmd.Flags().GetString("log-level")
	if _, err := logger.Init(logger.Config{Level: level, Format: "console"}); err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.DatabaseURL, database.ParseLogLevel(cfg.DBLogLevel))
	if err != nil {
		return nil, err
	}

	source := llm.NewSettingsSource(db, llm.ClientConfig{
		RequestsPerSecond: cfg.LLMRequestsPerSecond,
		MaxConcurrent:     cfg.LLMMaxConcurrent,
		Retry:             llm.DefaultRetryConfig(),
	})
	return NewApp(cfg, db, database.NewPostgresCandidateStore(db), source, notify.Nop{}), nil
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}
