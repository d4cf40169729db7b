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
	"github.com/vkadlec/face-attendance/internal/metrics"
	"github.com/vkadlec/face-attendance/internal/recognizer"
	"github.com/vkadlec/face-attendance/internal/watcher"
	"github.com/vkadlec/face-attendance/internal/web/handlers"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the camera and mark attendance",
	Long: `Start a camera watch session in the foreground. Each recognized face is
printed as it is seen; a person is marked present at most once per
cooldown window. Press Ctrl+C to stop.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Duration("cooldown", 0, "Minimum time between two marks for one person (default from config)")
	watchCmd.Flags().Duration("tick", 0, "Camera sampling cadence (default from config)")
	watchCmd.Flags().String("overlap", "", "Policy for ticks arriving while busy: skip or queue (default from config)")
	watchCmd.Flags().String("device", "", "Camera device path (overrides CAMERA_DEVICE)")
	watchCmd.Flags().String("dir", "", "Directory of JPEG frames to replay instead of a camera")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if device := mustGetString(cmd, "device"); device != "" {
		cfg.Camera.Device = device
		cfg.Camera.Dir = ""
	}
	if dir := mustGetString(cmd, "dir"); dir != "" {
		cfg.Camera.Dir = dir
	}

	cooldown := cfg.Attendance.Cooldown
	if d := mustGetDuration(cmd, "cooldown"); d > 0 {
		cooldown = d
	}
	tick := cfg.Attendance.TickInterval
	if d := mustGetDuration(cmd, "tick"); d > 0 {
		tick = d
	}
	overlap := watcher.OverlapMode(cfg.Attendance.OverlapMode)
	if o := mustGetString(cmd, "overlap"); o != "" {
		switch o {
		case string(watcher.OverlapSkip), string(watcher.OverlapQueue):
			overlap = watcher.OverlapMode(o)
		default:
			return fmt.Errorf("invalid overlap mode %q, use 'skip' or 'queue'", o)
		}
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	repos, err := initBackend(context.Background(), cfg)
	if err != nil {
		return err
	}

	client := recognizer.NewClient(cfg.Recognizer.URL, cfg.Recognizer.Model, cfg.Recognizer.Timeout)
	if err := client.Health(context.Background()); err != nil {
		return fmt.Errorf("recognition server not reachable: %w", err)
	}
	thresholds := cfg.GetModelThresholds(client.Model())
	identifier := recognizer.NewIdentifier(client, repos.samples, thresholds.Distance, thresholds.MinDetScore)

	frames, err := handlers.OpenFrameSource(cfg)
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}

	sess := watcher.New("cli", watcher.Options{
		Frames:       frames,
		Identifier:   identifier,
		Attendance:   repos.attendance,
		Metrics:      metrics.New(),
		Cooldown:     cooldown,
		TickInterval: tick,
		Overlap:      overlap,
		Callbacks: watcher.Callbacks{
			OnMarked: func(d recognizer.Detection) {
				fmt.Printf("[%s] MARKED   %s (distance %.3f)\n",
					time.Now().Format("15:04:05"), d.Label, d.Distance)
			},
			OnDetected: func(d recognizer.Detection) {
				fmt.Printf("[%s] detected %s (confidence %.2f)\n",
					time.Now().Format("15:04:05"), d.Label, d.Confidence)
			},
		},
	})

	if err := sess.Start(context.Background()); err != nil {
		_ = frames.Close()
		return fmt.Errorf("starting watch session: %w", err)
	}

	fmt.Printf("Watching (tick %s, cooldown %s, overlap %s). Press Ctrl+C to stop.\n",
		tick, cooldown, overlap)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nStopping...")
	sess.Stop()
	saveHNSWIndex()

	status := sess.Status()
	fmt.Printf("Session finished: %d ticks, %d marks\n", status.Ticks, status.Marks)
	return nil
}
