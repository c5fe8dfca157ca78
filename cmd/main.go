package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"youtube-rag/internal/api"
	"youtube-rag/internal/config"
	"youtube-rag/internal/db"
	"youtube-rag/internal/embedding"
	"youtube-rag/internal/helper"
	"youtube-rag/internal/llmservice"
	"youtube-rag/internal/parser"
	"youtube-rag/internal/session"
	"youtube-rag/internal/youtube"
)

const (
	configFilePath  = "./configs/config.yaml"
	shutdownTimeout = 10 * time.Second
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "youtube-rag",
		Short: "Ask questions about YouTube videos",
		Long:  "Fetches a video's transcript, indexes it and answers questions grounded in it, keeping a conversation per session.",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", configFilePath, "Path to the config file")

	rootCmd.AddCommand(createServeCommand(&configPath))
	rootCmd.AddCommand(createAskCommand(&configPath))
	rootCmd.AddCommand(createArchiveCommand(&configPath))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func createServeCommand(configPath *string) *cobra.Command {
	var addr string
	var withSources bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(cmd.Context(), cfg, withSources)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address, overrides server.addr")
	cmd.Flags().BoolVar(&withSources, "sources", false, "Include retrieved passages in ask responses")

	return cmd
}

func createAskCommand(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <youtube-url> [question...]",
		Short: "Answer questions about one video",
		Long:  "Creates a session for the video and answers each question in turn. Without questions, one question is read per line from stdin.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			return ask(cmd.Context(), cfg, args[0], args[1:], cmd.InOrStdin(), cmd.OutOrStdout(), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print every answer with its sources as JSON")

	return cmd
}

func createArchiveCommand(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "archive [session-id]",
		Short: "List the latest archived exchanges, oldest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			sessionID := ""
			if len(args) == 1 {
				sessionID = args[0]
			}
			archive, err := db.Open(cmd.Context(), &cfg.Database)
			if err != nil {
				return err
			}
			defer archive.Close()

			records, err := archive.ListExchanges(cmd.Context(), sessionID, limit)
			if err != nil {
				return fmt.Errorf("failed to list exchanges: %w", err)
			}
			helper.PrettyPrint(records)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Number of latest exchanges to list, 0 for all")

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	setupLogger(&cfg.Log)
	log.Debug().Str("path", path).Str("provider", cfg.LLM.Provider).Str("model", cfg.LLM.Model).Msg("Loaded config")
	return cfg, nil
}

func setupLogger(logConfig *config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(logConfig.Level)
	if err != nil || logConfig.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if logConfig.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// newRegistry wires the shared model, embedder and transcript client into a session registry.
// The returned cleanup closes the archive when one is configured.
func newRegistry(ctx context.Context, cfg *config.Config) (*session.Registry, func(), error) {
	model, err := llmservice.NewClient(&cfg.LLM, false)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing model: %w", err)
	}
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing embedder: %w", err)
	}
	splitter, err := parser.NewSplitter(cfg.RAG.Splitter, cfg.RAG.ChunkSize, cfg.RAG.Overlap())
	if err != nil {
		return nil, nil, err
	}

	deps := session.Dependencies{
		Transcripts: youtube.NewClient(cfg.Transcript.Timeout),
		Splitter:    splitter,
		Embedder:    embedder,
		Model:       model,
		Language:    cfg.Transcript.Language,
		TopK:        cfg.RAG.TopK,
		MaxTurns:    cfg.RAG.MaxHistoryTurns,
	}

	var opts []session.Option
	cleanup := func() {}
	if cfg.Database.DSN != "" {
		archive, err := db.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening exchange archive: %w", err)
		}
		opts = append(opts, session.WithArchive(archive))
		cleanup = func() {
			if err := archive.Close(); err != nil {
				log.Warn().Err(err).Msg("Error closing exchange archive")
			}
		}
		log.Info().Msg("Exchange archive enabled")
	}

	return session.NewRegistry(deps, opts...), cleanup, nil
}

func serve(ctx context.Context, cfg *config.Config, withSources bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, cleanup, err := newRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	defer registry.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(registry, api.WithSources(withSources)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting API server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func ask(ctx context.Context, cfg *config.Config, url string, questions []string, in io.Reader, out io.Writer, asJSON bool) error {
	registry, cleanup, err := newRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	defer registry.Close()

	sess, err := registry.Create(ctx, url)
	if err != nil {
		return err
	}
	log.Info().Str("session_id", sess.ID).Str("video_id", sess.VideoID).Msg("Session ready")

	answer := func(question string) error {
		resp, err := registry.Ask(ctx, sess.ID, question)
		if err != nil {
			return err
		}
		if asJSON {
			helper.PrettyPrint(resp)
			return nil
		}
		fmt.Fprintf(out, "Q: %s\nA: %s\n\n", question, resp.Answer)
		return nil
	}

	if len(questions) > 0 {
		for _, q := range questions {
			if err := answer(q); err != nil {
				return err
			}
		}
		return nil
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		if err := answer(q); err != nil {
			return err
		}
	}
	return scanner.Err()
}
