package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/skyauthor/newsroom/internal/ai"
	"github.com/skyauthor/newsroom/internal/api"
	"github.com/skyauthor/newsroom/internal/config"
	"github.com/skyauthor/newsroom/internal/content"
	"github.com/skyauthor/newsroom/internal/middleware"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "newsroom",
		Short:         "Article CMS with SEO tooling, feeds and search engine notification",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(serveCmd(), reindexCmd(), slugCmd(), optimizeCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	log.Info().Str("env", cfg.Env).Str("version", version).Msg("Starting application...")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.HTTPTimeout,
		WriteTimeout:          cfg.HTTPTimeout,
		IdleTimeout:           120 * time.Second,
		ErrorHandler:          middleware.ErrorHandler,
		UnescapePath:          true,
		DisableStartupMessage: cfg.Env == "production",
	})
	handlers := api.NewHandlers(a.articles, a.pages, a.builder, api.Options{
		CacheTTL: cfg.CacheTTL,
		Version:  version,
	})
	if cfg.AdminAPIKey == "" {
		log.Warn().Msg("ADMIN_API_KEY not set, admin endpoints reject every request")
	}
	api.SetupRoutes(app, handlers, cfg.AdminAPIKey)

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		serverErr <- app.Listen(":" + cfg.Port)
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	log.Info().Msg("Shutting down server...")

	// Create a deadline for graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	a.Drain(shutdownCtx)

	log.Info().Msg("Server exited properly")
	return nil
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the full-text index from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := setupLogger(cfg)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			n, err := a.articles.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			log.Info().Int("articles", n).Dur("took", time.Since(start)).Msg("Search index rebuilt")
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d articles\n", n)
			return nil
		},
	}
}

func slugCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slug <title>",
		Short: "Print the slug generated for a title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug, err := content.GenerateSlug(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), slug)
			return nil
		},
	}
}

func optimizeCmd() *cobra.Command {
	var title, body, file, category string
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Print SEO metadata for an article as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				body = string(data)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if _, err := setupLogger(cfg); err != nil {
				return err
			}

			result, err := ai.NewOptimizer(newGenerator(cfg)).Optimize(cmd.Context(), title, body, category)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "article title")
	cmd.Flags().StringVar(&body, "content", "", "article HTML")
	cmd.Flags().StringVar(&file, "file", "", "read the article HTML from a file")
	cmd.Flags().StringVar(&category, "category", "", "article category")
	return cmd
}
