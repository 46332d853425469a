package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/attendance"
	"github.com/MrCodeEU/faceattend/pkg/config"
	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/MrCodeEU/faceattend/pkg/metrics"
	"github.com/MrCodeEU/faceattend/pkg/preview"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	cfg         *config.Config
	configFile  string
	debug       bool
	headless    bool
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "faceattend",
	Short: "Face-verified attendance from a webcam",
	Long: `faceattend registers people by capturing face samples from a webcam,
verifies them live against their samples and records attendance per subject.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", false, "Disable the preview window and show progress on the terminal")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during camera sessions")
}

func initConfig() {
	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.DefaultConfig()
	}

	// .env file is optional
	if err := cfg.ApplyEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	cfg.ExpandPaths()

	logLevel := cfg.Logging.Level
	if debug {
		logLevel = "debug"
	}
	if err := logging.Init(logLevel, cfg.Logging.File, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}
	logging.Debugf("Config loaded, data dir: %s", cfg.Storage.DataDir)
}

// session holds everything a camera command needs and tears it down again.
type session struct {
	ctx     context.Context
	service *attendance.Service
	server  *metrics.Server
	stop    context.CancelFunc
}

func newSession(cmd *cobra.Command) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	var display preview.Display
	switch {
	case headless || !cfg.Preview.Enabled:
		display = preview.NewConsole(os.Stderr)
	default:
		display = preview.NewWindow(cfg.Preview.Width, cfg.Preview.Height)
	}

	s := &session{}

	var collector *metrics.Collector
	addr := metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Listen
	}
	if addr != "" {
		var err error
		collector, err = metrics.NewCollector(prometheus.NewRegistry())
		if err != nil {
			return nil, err
		}
		s.server = metrics.NewServer(addr, collector)
		go func() {
			if err := s.server.Start(); err != nil {
				logging.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	service, err := attendance.NewService(cfg, display, collector)
	if err != nil {
		s.shutdownServer()
		return nil, err
	}
	s.service = service
	s.ctx, s.stop = signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	return s, nil
}

func (s *session) shutdownServer() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		logging.WithError(err).Warn("Failed to stop metrics server")
	}
}

func (s *session) Close() {
	s.stop()
	if err := s.service.Close(); err != nil {
		logging.WithError(err).Warn("Failed to release resources")
	}
	s.shutdownServer()
}
