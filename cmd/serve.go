package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-clock/internal/config"
	"github.com/kozaktomas/face-clock/internal/store"
	"github.com/kozaktomas/face-clock/internal/store/postgres"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference identity store",
	Long: `Run the reference identity store HTTP server.

Templates and the attendance log live in PostgreSQL when DATABASE_URL is
set, otherwise in memory. Set MODEL_PATH to enable the image-upload
endpoints with server-side embedding extraction.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// buildRepositories picks the storage backend from the environment.
func buildRepositories(cfg *config.Config) (store.TemplateRepository, store.EventRepository, func(), error) {
	if cfg.Database.URL == "" {
		fmt.Println("Using in-memory storage (set DATABASE_URL for PostgreSQL)")
		return store.NewMemoryTemplateRepository(), store.NewMemoryEventRepository(), func() {}, nil
	}

	fmt.Println("Connecting to PostgreSQL...")
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initializing PostgreSQL: %w", err)
	}
	cleanup := func() {
		if err := pool.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing database: %v\n", err)
		}
	}
	return postgres.NewTemplateRepository(pool), postgres.NewEventRepository(pool), cleanup, nil
}

// buildExtractor loads the embedding model when configured; without a model
// the image-upload endpoints respond 501 and only precomputed embeddings are
// accepted.
func buildExtractor(cfg *config.Config) (store.Extractor, error) {
	if cfg.Model.Path == "" {
		fmt.Println("No MODEL_PATH set, image-upload endpoints disabled")
		return nil, nil
	}
	p, err := newPipeline(cfg)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Server-side extraction enabled (model %s)\n", cfg.Model.Path)
	return p, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	templates, events, cleanup, err := buildRepositories(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	extractor, err := buildExtractor(cfg)
	if err != nil {
		return err
	}

	profile := cfg.Profile()
	service := store.NewService(templates, events, profile.EmbeddingDim, cfg.Server.Threshold)

	server := store.NewServer(service, extractor, store.ServerOptions{
		Host:   mustGetString(cmd, "host"),
		Port:   mustGetInt(cmd, "port"),
		Token:  cfg.Store.Token,
		Tenant: cfg.Store.Tenant,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
	}()

	fmt.Println("Press Ctrl+C to stop")
	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
