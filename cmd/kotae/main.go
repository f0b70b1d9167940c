// Package main is the Kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chat"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/vectordb"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "kotae server" from the project dir uses the project's
// config (including debug).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "ingest":
		runIngest()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Enabled {
		pipeline := components.Pipeline
		watchSvc := watcher.NewWatcher(
			cfg.Ingest.DataDir,
			cfg.Ingest.Extensions,
			func(path string) {
				if _, err := pipeline.Run(context.Background(), []string{path}); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			watcher.WithLogger(logger),
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		components.Engine,
		components.Pipeline,
		components.Transcriber,
		components.Store,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = answer directly without a server)")
	sessionID := fs.String("session", "", "session id for conversational continuity")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ask [flags] <question>")
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Println("Usage: kotae ask [flags] <question>")
		os.Exit(1)
	}

	if *serverURL != "" {
		answer, err := askViaHTTP(*serverURL, question, *sessionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		printAnswer(answer)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	result, err := components.Engine.Ask(context.Background(), chat.NewConversation(), question)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	printAnswer(&askResponse{Answer: result.Text, Sources: result.Sources})
}

type askResponse struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	SessionID string   `json:"session_id"`
}

func askViaHTTP(serverURL, question, sessionID string) (*askResponse, error) {
	body, err := json.Marshal(map[string]string{
		"question":   question,
		"session_id": sessionID,
	})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out askResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func printAnswer(a *askResponse) {
	fmt.Println(a.Answer)
	if len(a.Sources) > 0 {
		fmt.Printf("\nSources: %s\n", strings.Join(a.Sources, ", "))
	}
	if a.SessionID != "" {
		fmt.Printf("Session: %s\n", a.SessionID)
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	dir := cfg.Ingest.DataDir
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	stats, err := components.Pipeline.RunDir(context.Background(), dir)
	if err != nil {
		fmt.Printf("Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Ingested %d file(s), %d chunk(s) in %d batch(es) from %s\n",
		stats.Files, stats.Chunks, stats.Batches, dir)
	if stats.Skipped > 0 {
		fmt.Printf("Skipped %d unreadable file(s)\n", stats.Skipped)
	}
	if stats.Resumed > 0 {
		fmt.Printf("Resumed past %d previously committed batch(es)\n", stats.Resumed)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status struct {
		Entries  int64          `json:"entries"`
		Sessions int            `json:"sessions"`
		Config   map[string]any `json:"config"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("entries:   %d   # chunks in the vector index\n", status.Entries)
		fmt.Printf("sessions:  %d   # active conversation sessions\n", status.Sessions)
		if len(status.Config) > 0 {
			fmt.Println()
			fmt.Println("# configuration")
			for _, key := range []string{"collection", "namespace", "dimension", "embedding_model", "chat_model", "chunk_size", "chunk_overlap"} {
				if v, ok := status.Config[key]; ok {
					fmt.Printf("%-16s %v\n", key+":", v)
				}
			}
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Embedder    embedding.Embedder
	Store       vectordb.Store
	Generator   llm.Generator
	Transcriber llm.Transcriber
	Checkpoint  *ingest.Checkpoint
	Pipeline    *ingest.Pipeline
	Engine      *chat.Engine
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Generator != nil {
		_ = c.Generator.Close()
	}
	if c.Checkpoint != nil {
		_ = c.Checkpoint.Close()
	}
	if c.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Store.Close(ctx)
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	creds := config.LoadCredentials()
	if err := config.Validate(cfg, creds); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	embedder, err := embedding.New(&cfg.Embedding, cfg.Index.Dimension, creds.OpenAIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	store, err := vectordb.New(ctx, &cfg.Index, logger)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to connect to vector index: %w", err)
	}
	if err := store.EnsureIndex(ctx); err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to prepare vector index: %w", err)
	}

	client, err := llm.New(&cfg.Chat, creds.OpenAIKey)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize chat client: %w", err)
	}

	checkpoint, err := ingest.OpenCheckpoint(cfg.Ingest.CheckpointPath)
	if err != nil {
		logger.Warn("checkpoint ledger unavailable, ingestion will not resume", zap.Error(err))
		checkpoint = nil
	}

	pipelineOpts := []ingest.Option{ingest.WithLogger(logger)}
	if checkpoint != nil {
		pipelineOpts = append(pipelineOpts, ingest.WithCheckpoint(checkpoint))
	}
	pipeline := ingest.NewPipeline(&cfg.Ingest, cfg.Index.Namespace, embedder, store, pipelineOpts...)

	retriever := chat.NewRetriever(embedder, store, cfg.Index.Namespace, cfg.Chat.TopK)
	engine := chat.NewEngine(&cfg.Chat, retriever, client, chat.WithLogger(logger))

	return &Components{
		Embedder:    embedder,
		Store:       store,
		Generator:   client,
		Transcriber: client,
		Checkpoint:  checkpoint,
		Pipeline:    pipeline,
		Engine:      engine,
	}, nil
}

func printUsage() {
	fmt.Println(`kotae - Retrieval-augmented question answering over your documents

Usage:
  kotae server [flags]            Start the HTTP server
  kotae ask [flags] <question>    Ask a question
  kotae ingest [flags] [dir]      Ingest documents into the vector index
  kotae status [flags]            Show index and session status
  kotae version                   Show version
  kotae help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to answer directly without a server.
  --session string   Session id for conversational continuity

Ingest Flags:
  --config string    Config file path

Status Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Examples:
  kotae server
  kotae ask "What is the minimum setback?"
  kotae ask --session 42aa00ff "And for corner lots?"
  kotae ingest ./corpus
  kotae status --output json`)
}
