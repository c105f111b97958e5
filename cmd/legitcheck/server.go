package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/legitcheck/internal/analysis"
	"github.com/kalambet/legitcheck/internal/api"
	"github.com/kalambet/legitcheck/internal/blob"
	"github.com/kalambet/legitcheck/internal/capture"
	"github.com/kalambet/legitcheck/internal/config"
	"github.com/kalambet/legitcheck/internal/documents"
	"github.com/kalambet/legitcheck/internal/events"
	"github.com/kalambet/legitcheck/internal/forms"
	"github.com/kalambet/legitcheck/internal/investigation"
	"github.com/kalambet/legitcheck/internal/llm"
	"github.com/kalambet/legitcheck/internal/notify"
	"github.com/kalambet/legitcheck/internal/report"
	"github.com/kalambet/legitcheck/internal/research"
	"github.com/kalambet/legitcheck/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and the investigation worker (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show legitcheck system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "legitcheck.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

// setupLogging installs a text slog handler on stderr at the configured level.
func setupLogging(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// newSender builds the LLM client selected by llm.provider.
func newSender(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (llm.Sender, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "anthropic":
		return llm.NewClientWithBaseURL(cfg.APIKey, cfg.BaseURL,
			llm.WithModel(cfg.Model),
			llm.WithDefaults(cfg.MaxTokens, cfg.Temperature),
			llm.WithTimeout(cfg.Timeout),
			llm.WithLogger(logger),
		), nil
	case "gemini":
		return llm.NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.MaxTokens, cfg.Temperature)
	default:
		return nil, fmt.Errorf("unknown llm.provider %q (want anthropic or gemini)", cfg.Provider)
	}
}

// newResearchCache returns Redis when redis.addr is set and reachable, and an
// in-process cache otherwise. The returned func releases the cache.
func newResearchCache(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (research.Cache, func()) {
	if cfg.Addr == "" {
		return research.NewMemoryCache(), func() {}
	}
	rc, err := research.NewRedisCache(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory research cache", "addr", cfg.Addr, "error", err)
		return research.NewMemoryCache(), func() {}
	}
	logger.Info("research cache connected", "addr", cfg.Addr)
	return rc, func() {
		if err := rc.Close(); err != nil {
			logger.Warn("closing redis", "error", err)
		}
	}
}

// newPublisher connects to NATS when nats.url is set. Without it, or when the
// broker is down, status events are dropped.
func newPublisher(cfg config.NATSConfig, logger *slog.Logger) events.Publisher {
	if cfg.URL == "" {
		return events.Nop{}
	}
	pub, err := events.NewNATSPublisher(cfg.URL, cfg.Subject, logger)
	if err != nil {
		logger.Warn("nats unavailable, status events disabled", "url", cfg.URL, "error", err)
		return events.Nop{}
	}
	return pub
}

func reportOptions(cfg config.ReportConfig) report.Options {
	opts := report.DefaultOptions()
	opts.IncludeSources = cfg.IncludeSources
	if strings.EqualFold(cfg.Format, string(report.A4)) {
		opts.Format = report.A4
	}
	if cfg.Brand != "" {
		opts.Brand = cfg.Brand
	}
	return opts
}

func runServer() error {
	fmt.Fprintln(os.Stderr, versionString())

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.Log.Level)

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get("http://" + addr + "/health"); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("legitcheck is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("legitcheck is already running on %s", addr)
		return fmt.Errorf("server already running on %s", addr)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	blobs, err := blob.NewLocalStore(filepath.Join(cfg.Storage.DataDir, "objects"), cfg.Server.BaseURL())
	if err != nil {
		return fmt.Errorf("opening object storage: %w", err)
	}
	defer blobs.Close()

	catalog, err := forms.Load()
	if err != nil {
		return fmt.Errorf("loading form templates: %w", err)
	}

	sender, err := newSender(ctx, cfg.LLM, logger)
	if err != nil {
		return fmt.Errorf("creating llm client: %w", err)
	}
	logger.Info("llm client ready", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)

	cache, closeCache := newResearchCache(ctx, cfg.Redis, logger)
	defer closeCache()

	pub := newPublisher(cfg.NATS, logger)
	defer pub.Close()

	researcher := research.New(sender,
		research.WithConcurrency(cfg.Research.Concurrency),
		research.WithCache(cache, cfg.Research.CacheTTL),
		research.WithLogger(logger),
	)
	analyzer := documents.New(sender,
		documents.WithConcurrency(cfg.Documents.Concurrency),
		documents.WithFetchTimeout(cfg.Documents.FetchTimeout),
		documents.WithLogger(logger),
	)
	generator := analysis.NewGenerator(sender, logger)

	var mailer notify.Mailer
	if cfg.Email.APIKey != "" {
		mailer = notify.NewSendGrid(cfg.Email.APIKey, cfg.Email.From, cfg.Email.FromName,
			notify.WithBaseURL(cfg.Email.BaseURL),
			notify.WithLogger(logger),
		)
	} else {
		logger.Info("email.api_key not set, report emails disabled")
	}

	var capturer investigation.Capturer
	if cfg.Capture.Enabled {
		browser := capture.New(capture.Config{
			ControlURL: cfg.Capture.ControlURL,
			Timeout:    cfg.Capture.Timeout,
		}, logger)
		defer func() {
			if err := browser.Close(); err != nil {
				logger.Warn("closing browser", "error", err)
			}
		}()
		capturer = browser
	}

	orchestrator := investigation.New(investigation.Deps{
		Store:      store,
		Researcher: researcher,
		Documents:  analyzer,
		Generator:  generator,
		Blobs:      blobs,
		Mailer:     mailer,
		Events:     pub,
		Capture:    capturer,
		Report:     reportOptions(cfg.Report),
		Timeout:    cfg.Pipeline.Timeout,
		Logger:     logger,
	})
	service := investigation.NewService(store, catalog, pub, cfg.Worker.MaxAttempts, logger)

	if ids, err := service.RecoverStale(cfg.Pipeline.Timeout); err != nil {
		logger.Error("stale run recovery failed", "error", err)
	} else if len(ids) > 0 {
		logger.Info("recovered abandoned runs", "count", len(ids))
	}

	if n, err := service.RecoverInterrupted(); err != nil {
		logger.Error("interrupted run recovery failed", "error", err)
	} else if n > 0 {
		logger.Info("requeued interrupted runs", "count", n)
	}

	worker := investigation.NewWorker(store, orchestrator, cfg.Worker.PollInterval, logger).
		WithSweep(time.Minute, func() {
			if _, err := service.RecoverStale(cfg.Pipeline.Timeout); err != nil {
				logger.Error("stale run recovery failed", "error", err)
			}
		})
	go worker.Run(ctx)

	handler := api.NewRouter(api.AppDeps{
		Store:       store,
		Service:     service,
		Blobs:       blobs,
		Forms:       catalog,
		Screenshots: analyzer,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "legitcheck listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func showStatus() error {
	cfg, err := config.LoadClient()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(strings.TrimRight(cfg.Client.ServerURL, "/") + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running at %s", cfg.Client.ServerURL)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("LLM", "%s (%s)", cfg.LLM.Provider, cfg.LLM.Model)
	if cfg.LLM.APIKey == "" {
		printWarning("llm.api_key is not set; the server will not start")
	}
	printStatus("Email", "%s", enabledLabel(cfg.Email.APIKey != ""))
	printStatus("Research cache", "%s", orDefault(cfg.Redis.Addr, "in-memory"))
	printStatus("Status events", "%s", orDefault(cfg.NATS.URL, "disabled"))
	printStatus("Site capture", "%s", enabledLabel(cfg.Capture.Enabled))

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		printStatus("Database", "unavailable (%v)", err)
		return nil
	}
	defer store.Close()

	if counts, err := store.TableStatus(); err == nil {
		for _, c := range counts {
			printStatus(c.Table, "%d", c.Rows)
		}
	}
	if jobs, err := store.JobCounts(); err == nil && len(jobs) > 0 {
		states := make([]string, 0, len(jobs))
		for state := range jobs {
			states = append(states, state)
		}
		sort.Strings(states)
		parts := make([]string, 0, len(states))
		for _, state := range states {
			parts = append(parts, fmt.Sprintf("%s=%d", state, jobs[state]))
		}
		printStatus("Jobs", "%s", strings.Join(parts, " "))
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func enabledLabel(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
