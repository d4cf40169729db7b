package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vkadlec/face-attendance/internal/config"
	"github.com/vkadlec/face-attendance/internal/database/postgres"
	"github.com/vkadlec/face-attendance/internal/metrics"
	"github.com/vkadlec/face-attendance/internal/recognizer"
	"github.com/vkadlec/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Attendance web server.
The server exposes a REST API for managing enrolled people, starting camera
watch sessions, streaming session events and querying attendance records.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	fmt.Printf("Connecting to PostgreSQL database...\n")
	repos, err := initBackend(context.Background(), cfg)
	if err != nil {
		return err
	}

	sessionRepo := postgres.NewSessionRepository(repos.pool)
	fmt.Printf("Session persistence enabled (PostgreSQL)\n")

	client := recognizer.NewClient(cfg.Recognizer.URL, cfg.Recognizer.Model, cfg.Recognizer.Timeout)
	thresholds := cfg.GetModelThresholds(client.Model())
	identifier := recognizer.NewIdentifier(client, repos.samples, thresholds.Distance, thresholds.MinDetScore)

	m := metrics.New()
	port, host := resolveServeHostPort(cmd)

	server := web.NewServer(cfg, port, host, web.Deps{
		Identifier:  identifier,
		People:      repos.people,
		Samples:     repos.samples,
		Attendance:  repos.attendance,
		Metrics:     m,
		SessionRepo: sessionRepo,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		saveHNSWIndex()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
