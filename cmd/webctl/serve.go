package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/humanbrowse"
	"github.com/aretw0/humanbrowse/internal/logging"
	httpadapter "github.com/aretw0/humanbrowse/pkg/adapters/http"
	"github.com/aretw0/humanbrowse/pkg/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Attaches to the running Chromium on the configured debugging port and
exposes the step-run JSON API over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		port, _ := cmd.Flags().GetString("port")
		debug, _ := cmd.Flags().GetBool("debug")

		settings, err := loadSettings(configPath)
		if err != nil {
			fmt.Printf("Error loading settings: %v\n", err)
			os.Exit(1)
		}

		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}
		logger := logging.New(level)

		ctx := context.Background()
		svc, err := humanbrowse.New(ctx, settings, humanbrowse.WithLogger(logger))
		if err != nil {
			fmt.Printf("Error initializing service: %v\n", err)
			os.Exit(1)
		}

		handler := httpadapter.NewHandler(svc.Orchestrator(), svc.ArtifactStore(),
			httpadapter.WithLogger(logger),
			httpadapter.WithMetricsRegistry(svc.MetricsRegistry()))

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: handler,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting webctl server on %s\n", srv.Addr)
			fmt.Printf("Browser debugging port: %d\n", settings.CDPPort)
			fmt.Printf("Runs directory: %s\n", settings.RunsDir)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			if err := svc.Close(shutdownCtx); err != nil {
				logger.Warn("service teardown", "error", err)
			}
			fmt.Println("webctl server stopped gracefully")
		}
	},
}

func loadSettings(path string) (config.Settings, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FromEnv()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().Bool("debug", false, "Enable debug logging")
}
