// movenet serves single-person pose tracking to a block-based host
// over HTTP and websockets.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-movenet/internal/config"
	"github.com/teslashibe/go-movenet/internal/log"
	"github.com/teslashibe/go-movenet/pkg/camera"
	"github.com/teslashibe/go-movenet/pkg/camera/device"
	"github.com/teslashibe/go-movenet/pkg/debug"
	"github.com/teslashibe/go-movenet/pkg/estimator"
	"github.com/teslashibe/go-movenet/pkg/estimator/movenet"
	"github.com/teslashibe/go-movenet/pkg/estimator/smooth"
	"github.com/teslashibe/go-movenet/pkg/extension"
	"github.com/teslashibe/go-movenet/pkg/tracking"
	"github.com/teslashibe/go-movenet/pkg/web"
)

// shutdownTimeout bounds tracker teardown on exit.
const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Error("movenet exited", "error", err)
		os.Exit(1)
	}
}

// parseFlags loads the config file and applies flag overrides.
func parseFlags() (*config.Config, error) {
	configPath := flag.String("config", "", "Path to a YAML config file")
	port := flag.Int("port", 0, "HTTP port (overrides MOVENET_PORT)")
	modelDir := flag.String("model-dir", "", "Directory holding the MoveNet ONNX models")
	cameraID := flag.Int("camera", -1, "Camera device index (overrides CAMERA_DEVICE)")
	static := flag.String("static", "", "Directory served at /")
	debugFlag := flag.Bool("debug", false, "Enable verbose debug logging")
	debugTracking := flag.Bool("debug-tracking", false, "Log every estimation cycle")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *modelDir != "" {
		cfg.Model.Dir = *modelDir
	}
	if *cameraID >= 0 {
		cfg.Camera.DeviceID = *cameraID
	}
	if *static != "" {
		cfg.Server.StaticDir = *static
	}
	debug.Enabled = *debugFlag || *debugTracking
	debug.Tracking = *debugTracking
	if debug.Enabled {
		cfg.Log.Level = "debug"
	}

	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid flags: %v", problems)
	}
	return cfg, nil
}

// run wires the components and serves until ctx is done.
func run(ctx context.Context, cfg *config.Config) error {
	cameras := camera.NewManager(cfg.Camera)
	cameras.OnConfigChange = func(c camera.Config) error {
		log.Info("camera config updated; applies to the next session",
			"device", c.DeviceID, "width", c.Width, "height", c.Height)
		return nil
	}

	models := movenet.DefaultConfig()
	models.ModelDir = cfg.Model.Dir
	if cfg.Model.LightningFile != "" {
		models.LightningFile = cfg.Model.LightningFile
	}
	if cfg.Model.ThunderFile != "" {
		models.ThunderFile = cfg.Model.ThunderFile
	}
	models.LightningURL = cfg.Model.LightningURL
	models.ThunderURL = cfg.Model.ThunderURL
	models.Mirror = cfg.Model.Mirror
	models.Mirrored = func() bool {
		c := cameras.GetConfig()
		return c.Mirrored()
	}
	models.Backend = cfg.Model.Backend
	models.Target = cfg.Model.Target
	models.WarmupRuns = cfg.Model.WarmupRuns

	var provider estimator.Provider = movenet.New(models)
	if cfg.Tracking.Smoothing {
		provider = smooth.Wrap(provider, smooth.DefaultConfig())
	}

	ctrl := tracking.New(provider, device.New(cameras), cfg.Controller())
	ext := extension.New(ctrl)

	server := web.NewServer(web.Config{
		Port:         cfg.Server.Port,
		PoseInterval: cfg.Server.PoseInterval,
		StaticDir:    cfg.Server.StaticDir,
	}, ext, ctrl, cameras)
	ctrl.AddReporter(server)

	log.Info("movenet starting",
		"port", cfg.Server.Port,
		"model_dir", models.ModelDir,
		"camera", cfg.Camera.DeviceID,
		"min_score", cfg.Tracking.MinScore,
		"smoothing", cfg.Tracking.Smoothing)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case serveErr = <-errCh:
	}

	stopped := make(chan struct{})
	go func() {
		ctrl.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownTimeout):
		log.Warn("tracker did not stop in time")
	}

	if err := server.Shutdown(); err != nil && serveErr == nil {
		serveErr = err
	}
	if errors.Is(serveErr, context.Canceled) {
		return nil
	}
	return serveErr
}
