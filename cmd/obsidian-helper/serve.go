package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mymmrac/telego"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/niqitosiq/gemini-obsidian-helper/internal/agent"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/config"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/events"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/history"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/llm"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/logger"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/metrics"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/prompts"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/sanitizer"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/schedule"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/telegram"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/toolcall"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/tools"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/vault"
	"github.com/niqitosiq/gemini-obsidian-helper/internal/watcher"
)

const defaultConfigPath = "./config.toml"

var (
	serveConfigPath string
	serveLogLevel   string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the assistant (main command)",
	Long: `Start the assistant with the specified configuration.
This initializes all components (logger, Telegram connector, Gemini provider,
scheduler, vault watcher) and handles graceful shutdown.`,
	Run: serveHandler,
}

func serveHandler(cmd *cobra.Command, args []string) {
	loadDotEnv("./.env")

	configPath := serveConfigPath
	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if serveLogLevel != "" {
		cfg.Logging.Level = serveLogLevel
	}

	if errors := cfg.Validate(); len(errors) > 0 {
		fmt.Printf("Configuration validation failed:\n")
		for _, e := range errors {
			fmt.Printf("  - %v\n", e)
		}
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	log.Info("Starting obsidian-helper",
		logger.Field{Key: "version", Value: Version},
		logger.Field{Key: "git_commit", Value: GitCommit},
		logger.Field{Key: "config", Value: configPath},
		logger.Field{Key: "vault", Value: cfg.Vault.Path},
		logger.Field{Key: "model", Value: cfg.Gemini.Model},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	m := metrics.New("obsidian_helper", prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.ListenAddr); err != nil {
				log.Error("Metrics listener failed", err,
					logger.Field{Key: "addr", Value: cfg.Metrics.ListenAddr})
			}
		}()
		log.Info("Metrics listener started",
			logger.Field{Key: "addr", Value: cfg.Metrics.ListenAddr})
	}

	store, err := vault.NewStorage(cfg.Vault.Path)
	if err != nil {
		log.Error("Failed to open vault", err)
		os.Exit(1)
	}

	hist, err := history.NewStore(cfg.History.Path)
	if err != nil {
		log.Error("Failed to open conversation history", err)
		os.Exit(1)
	}

	bot, err := telego.NewBot(cfg.Telegram.Token)
	if err != nil {
		log.Error("Failed to create Telegram bot", err)
		os.Exit(1)
	}
	sender := telegram.NewSender(bot, log)

	registry := tools.NewRegistry(log)
	for _, tool := range []tools.Tool{
		tools.NewCreateFileTool(store),
		tools.NewModifyFileTool(store),
		tools.NewDeleteFileTool(store),
		tools.NewCreateFolderTool(store),
		tools.NewDeleteFolderTool(store),
		tools.NewReplyTool(sender),
		tools.NewFinishTool(hist),
	} {
		if err := registry.Register(tool); err != nil {
			log.Error("Failed to register tool", err,
				logger.Field{Key: "tool", Value: tool.Name()})
			os.Exit(1)
		}
	}
	log.Info("Tools registered", logger.Field{Key: "tools", Value: registry.Names()})

	provider, err := llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey:          cfg.Gemini.APIKey,
		Model:           cfg.Gemini.Model,
		MaxOutputTokens: int32(cfg.Gemini.MaxOutputTokens),
		Timeout:         time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second,
	}, log)
	if err != nil {
		log.Error("Failed to initialize Gemini provider", err)
		os.Exit(1)
	}
	log.Info("Gemini provider initialized", logger.Field{Key: "model", Value: provider.Model()})

	orchestrator := agent.New(agent.Config{
		Provider:         provider,
		Registry:         registry,
		Parser:           toolcall.NewParser(registry.Has, log, m),
		Prompts:          prompts.NewBuilder(registry, time.Now),
		History:          hist,
		Vault:            store,
		Validator:        sanitizer.NewValidator(sanitizer.Config{}),
		Logger:           log,
		Recorder:         m,
		MaxPromptEntries: cfg.History.MaxPromptEntries,
		DefaultChatID:    cfg.Telegram.AllowedUserIDs[0],
	})

	scheduler := schedule.NewScheduler(log, m)
	scheduler.Start()

	globalPath := cfg.Vault.GlobalEventsFile
	if globalPath != "" && !filepath.IsAbs(globalPath) {
		globalPath = filepath.Join(cfg.Vault.Path, globalPath)
	}
	engine := events.NewEngine(scheduler, store, orchestrator, log, m, cfg.Vault.TasksDir, globalPath)
	go engine.Run(ctx)

	w, err := watcher.New(cfg.Vault.Path, cfg.Vault.TasksDir, engine, log)
	if err != nil {
		log.Error("Failed to create vault watcher", err)
		os.Exit(1)
	}
	if err := w.Start(ctx, scheduler); err != nil {
		log.Error("Failed to start vault watcher", err)
		os.Exit(1)
	}
	log.Info("Vault watcher started",
		logger.Field{Key: "tasks_dir", Value: cfg.Vault.TasksDir},
		logger.Field{Key: "events", Value: len(engine.IDs())})

	connector, err := telegram.NewConnector(bot, sender, orchestrator, hist, cfg.Telegram.AllowedUserIDs, log)
	if err != nil {
		log.Error("Failed to create Telegram connector", err)
		os.Exit(1)
	}
	if err := connector.Start(ctx); err != nil {
		log.Error("Failed to start Telegram connector", err)
		os.Exit(1)
	}

	log.Info("obsidian-helper is running")

	sig := <-sigChan
	log.Info("Received shutdown signal",
		logger.Field{Key: "signal", Value: sig.String()})

	log.Info("Shutting down obsidian-helper...")
	cancel()

	w.Stop()
	scheduler.Stop()

	log.Info("obsidian-helper stopped gracefully")
	os.Exit(0)
}

// loadDotEnv loads KEY=VALUE pairs from a .env file if one exists.
func loadDotEnv(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			os.Setenv(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
		}
	}
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to configuration file (default: ./config.toml)")
	serveCmd.Flags().StringVarP(&serveLogLevel, "log-level", "l", "", "Override log level (debug, info, warn, error)")
}
