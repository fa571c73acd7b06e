// Instagram Outreach Engine - Main Application
// This is a proof-of-concept demonstrating human-like browser automation.
// FOR EDUCATIONAL PURPOSES ONLY - Do not use on production Instagram accounts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-rod/rod"
	"github.com/joho/godotenv"

	"github.com/instaflow/instagram-outreach/auth"
	"github.com/instaflow/instagram-outreach/behavior"
	"github.com/instaflow/instagram-outreach/browser"
	"github.com/instaflow/instagram-outreach/browsing"
	"github.com/instaflow/instagram-outreach/config"
	"github.com/instaflow/instagram-outreach/engagement"
	"github.com/instaflow/instagram-outreach/feed"
	"github.com/instaflow/instagram-outreach/logger"
	"github.com/instaflow/instagram-outreach/messaging"
	"github.com/instaflow/instagram-outreach/profile"
	"github.com/instaflow/instagram-outreach/session"
	"github.com/instaflow/instagram-outreach/stealth"
	"github.com/instaflow/instagram-outreach/storage"
)

// Application holds all components of the outreach engine
type Application struct {
	config  *config.Config
	logger  *logger.Logger
	browser *browser.Browser
	stealth *stealth.StealthManager
	db      *storage.Database
	auth    *auth.Authenticator
	orch    *session.Orchestrator
}

// Command line flags
var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
	mode       = flag.String("mode", "outreach", "Run mode: outreach, browse, queue, stats, interactive")
	target     = flag.String("target", "", "Username to queue (queue mode)")
	message    = flag.String("message", "", "Message text for the queued target (queue mode)")
	maxTargets = flag.Int("max-targets", 10, "Maximum targets to process this session")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	printBanner()

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		fmt.Println("Note: No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		fmt.Println("\nPlease ensure you have set INSTAGRAM_USERNAME and INSTAGRAM_PASSWORD environment variables")
		fmt.Println("or create a .env file with these values.")
		os.Exit(1)
	}

	if *verbose {
		cfg.Logging.Level = "debug"
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputFile: cfg.Logging.OutputFile,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Instagram Outreach Engine starting...")
	log.Infof("Mode: %s", *mode)

	app, err := NewApplication(cfg, log)
	if err != nil {
		log.Errorf("Failed to initialize application: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	setupGracefulShutdown(app, cancel)

	if err := app.Run(ctx); err != nil {
		log.Errorf("Application error: %v", err)
		app.Close()
		os.Exit(1)
	}

	app.Close()
	log.Info("Application completed successfully")
}

// NewApplication creates and initializes a new application instance
func NewApplication(cfg *config.Config, log *logger.Logger) (*Application, error) {
	db, err := storage.NewDatabase(cfg.Storage.DatabasePath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	stealthMgr := stealth.NewStealthManager(&cfg.Stealth, log)
	browserMgr := browser.NewBrowser(cfg, log, stealthMgr)
	authMgr := auth.NewAuthenticator(cfg, log, stealthMgr, db)

	return &Application{
		config:  cfg,
		logger:  log,
		browser: browserMgr,
		stealth: stealthMgr,
		db:      db,
		auth:    authMgr,
	}, nil
}

// Run executes the application based on the selected mode
func (app *Application) Run(ctx context.Context) error {
	// Modes that never touch the browser
	switch *mode {
	case "queue":
		return app.runQueueMode()
	case "stats":
		app.showDailyStats()
		return nil
	}

	if err := app.browser.Launch(); err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	page := app.browser.GetPage()
	app.auth.SetPage(page)

	app.logger.Info("Authenticating with Instagram...")
	if err := app.auth.Login(ctx); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	app.logger.Info("Authentication successful!")

	app.orch = app.buildOrchestrator(page)

	app.showDailyStats()

	switch *mode {
	case "outreach":
		return app.runOutreachMode(ctx)
	case "browse":
		return app.runBrowseMode(ctx)
	case "interactive":
		return app.runInteractiveMode(ctx)
	default:
		return fmt.Errorf("unknown mode: %s", *mode)
	}
}

// buildOrchestrator wires the page-bound controllers into a session orchestrator
func (app *Application) buildOrchestrator(page *rod.Page) *session.Orchestrator {
	cfg, log, sm := app.config, app.logger, app.stealth

	analyzer := profile.NewAnalyzer(page, cfg, sm, log)
	browseCtl := browsing.NewController(page, cfg, sm, analyzer, log)
	counters := engagement.NewCounters(cfg.Engagement.DailyFollowLimit, cfg.Engagement.DailyLikeLimit)
	engageCtl := engagement.NewController(page, cfg, sm, counters, log)
	feedCtl := feed.NewController(page, cfg, sm, engageCtl, log)

	channels := []messaging.Strategy{
		messaging.NewHighlightReplyStrategy(page, cfg, sm, log),
		messaging.NewStoryReplyStrategy(page, cfg, sm, log),
		messaging.NewDirectMessageStrategy(page, cfg, sm, log),
	}

	return session.New(cfg, session.Deps{
		Human:    sm,
		Browser:  browseCtl,
		Engager:  engageCtl,
		Feed:     feedCtl,
		Channels: channels,
		Library:  behavior.NewLibrary(log),
		Recorder: app.db,
	}, log)
}

// runOutreachMode drains the target queue inside a natural browsing session
func (app *Application) runOutreachMode(ctx context.Context) error {
	pending, err := app.db.GetPendingTargets(*maxTargets)
	if err != nil {
		return fmt.Errorf("failed to load target queue: %w", err)
	}
	if len(pending) == 0 {
		app.logger.Info("Target queue is empty; nothing to do")
		return nil
	}

	targets := make([]session.Target, 0, len(pending))
	for _, p := range pending {
		contacted, err := app.db.HasContacted(p.Username)
		if err == nil && contacted {
			app.logger.Infof("Skipping %s: already contacted", p.Username)
			app.db.UpdateTargetStatus(p.Username, storage.TargetSkipped)
			continue
		}
		msg := p.Message
		if msg == "" {
			msg = app.config.Messaging.MessageTemplate
		}
		targets = append(targets, session.Target{Username: p.Username, Message: msg})
	}

	app.logger.Infof("Processing %d targets over a %s session", len(targets), app.config.SessionDuration())

	state := app.orch.SimulateNaturalSession(ctx, targets, app.config.SessionDuration())
	app.logger.Info(app.orch.Summary())
	app.logger.Infof("Session finished: %d sent, %d failed in %s",
		state.MessagesSent, state.MessagesFailed, state.Duration().Round(time.Second))

	if err := app.db.RecordActivity(state.ProfilesVisited, state.PostsLiked, state.FollowsMade); err != nil {
		app.logger.WithError(err).Warn("Failed to record session activity")
	}

	app.showDailyStats()
	return ctx.Err()
}

// runBrowseMode runs a natural session with no outreach targets; useful
// for warming up a fresh account before sending anything.
func (app *Application) runBrowseMode(ctx context.Context) error {
	app.logger.Info("Running warm-up browse session (no targets)")

	state := app.orch.SimulateNaturalSession(ctx, nil, app.config.SessionDuration())
	app.logger.Infof("Browse session finished: %d posts viewed, %d liked, %d profiles visited",
		state.PostsViewed, state.PostsLiked, state.ProfilesVisited)

	if err := app.db.RecordActivity(state.ProfilesVisited, state.PostsLiked, state.FollowsMade); err != nil {
		app.logger.WithError(err).Warn("Failed to record session activity")
	}
	return ctx.Err()
}

// runQueueMode adds a target to the outreach queue without opening a browser
func (app *Application) runQueueMode() error {
	username := strings.TrimPrefix(strings.TrimSpace(*target), "@")
	if username == "" {
		return fmt.Errorf("queue mode requires -target <username>")
	}

	msg := *message
	if msg == "" {
		msg = app.config.Messaging.MessageTemplate
	}
	if len(msg) > app.config.Messaging.MaxMessageLength {
		return fmt.Errorf("message exceeds maximum length of %d characters", app.config.Messaging.MaxMessageLength)
	}

	if err := app.db.AddTarget(username, msg); err != nil {
		return err
	}

	app.logger.Infof("Queued @%s for outreach", username)
	return nil
}

// runInteractiveMode leaves the authenticated browser open for manual use
func (app *Application) runInteractiveMode(ctx context.Context) error {
	app.logger.Info("Running in interactive mode")
	app.logger.Info("Browser is open and authenticated. Press Ctrl+C to exit.")

	<-ctx.Done()
	return nil
}

// showDailyStats displays today's activity statistics
func (app *Application) showDailyStats() {
	stats, err := app.db.GetTodayStats()
	if err != nil {
		app.logger.WithError(err).Warn("Failed to get daily stats")
		return
	}

	app.logger.Info("=== Today's Activity ===")
	app.logger.Infof("  Messages Sent: %d", stats.MessagesSent)
	app.logger.Infof("  Messages Failed: %d", stats.MessagesFailed)
	app.logger.Infof("  Posts Liked: %d / %d", stats.PostsLiked, app.config.Engagement.DailyLikeLimit)
	app.logger.Infof("  Follows: %d / %d", stats.FollowsMade, app.config.Engagement.DailyFollowLimit)
	app.logger.Infof("  Profiles Viewed: %d", stats.ProfilesViewed)
	app.logger.Info("========================")
}

// Close cleans up application resources
func (app *Application) Close() {
	app.logger.Info("Shutting down...")

	if app.browser != nil {
		app.browser.Close()
	}

	if app.db != nil {
		app.db.Close()
	}

	app.logger.Info("Cleanup complete")
}

// setupGracefulShutdown handles OS signals for graceful shutdown
func setupGracefulShutdown(app *Application, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		app.logger.Infof("Received signal: %v, finishing up...", sig)
		cancel()

		// Second signal forces an immediate exit
		<-sigChan
		app.Close()
		os.Exit(1)
	}()
}

// printBanner prints the application banner
func printBanner() {
	banner := `
╔══════════════════════════════════════════════════════════════════╗
║        Instagram Outreach Engine - Educational Only              ║
╠══════════════════════════════════════════════════════════════════╣
║  ⚠️  WARNING: This tool is for EDUCATIONAL PURPOSES ONLY         ║
║  ⚠️  Using automation on Instagram violates their ToS            ║
║  ⚠️  Do NOT use this on production accounts                      ║
╚══════════════════════════════════════════════════════════════════╝
`
	fmt.Println(banner)
}
