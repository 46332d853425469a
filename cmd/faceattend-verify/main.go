package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/attendance"
	"github.com/MrCodeEU/faceattend/pkg/config"
	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/MrCodeEU/faceattend/pkg/preview"
	"github.com/MrCodeEU/faceattend/pkg/storage"
	"github.com/MrCodeEU/faceattend/pkg/verification"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// Exit codes:
//
//	0 = face matched
//	1 = face not recognised
//	2 = identity not enrolled
//	3 = system error
const (
	exitMatched       = 0
	exitNotRecognized = 1
	exitNotEnrolled   = 2
	exitSystemError   = 3
)

// Authenticator is the part of attendance.Service this helper needs.
type Authenticator interface {
	Login(ctx context.Context, identity storage.Identity) (verification.Decision, error)
}

var (
	configFile string
	group      string
	name       string
	headless   bool
	exitCode   = exitSystemError
)

var rootCmd = &cobra.Command{
	Use:   "faceattend-verify <id>",
	Short: "Verify one identity and report the outcome as exit code",
	Long: `Non-interactive verification for scripts. The identity may also be given
in FACEATTEND_ID. Exit codes: 0 matched, 1 not recognised, 2 not enrolled,
3 system error.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	Run:           run,
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "Path to configuration file")
	rootCmd.Flags().StringVar(&group, "group", "", "Department (defaults to the first configured one)")
	rootCmd.Flags().StringVar(&name, "name", "", "Display name")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "Run without a preview window")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "faceattend-verify: %v\n", err)
		os.Exit(exitSystemError)
	}
	os.Exit(exitCode)
}

func run(cmd *cobra.Command, args []string) {
	startTime := time.Now()

	id := os.Getenv("FACEATTEND_ID")
	if len(args) > 0 {
		id = args[0]
	}
	if id == "" {
		fmt.Fprintln(os.Stderr, "faceattend-verify: no identity given")
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "faceattend-verify: Configuration error: %v\n", err)
		return
	}

	if err := logging.Init(cfg.Logging.Level, cfg.Logging.File, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "faceattend-verify: Could not initialize logging: %v\n", err)
	}
	logging.Infof("faceattend-verify v%s starting verification for: %s", version, id)

	identity := storage.Identity{ID: id, DisplayName: name, Group: group}
	if identity.Group == "" && len(cfg.Groups) > 0 {
		identity.Group = cfg.Groups[0]
	}
	if identity.DisplayName == "" {
		identity.DisplayName = id
	}

	var display preview.Display = preview.NewConsole(os.Stderr)
	if !headless && cfg.Preview.Enabled {
		display = preview.NewWindow(cfg.Preview.Width, cfg.Preview.Height)
	}

	svc, err := attendance.NewService(cfg, display, nil)
	if err != nil {
		logging.Errorf("Failed to initialize verifier: %v", err)
		fmt.Fprintln(os.Stderr, "faceattend-verify: Initialization error")
		return
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "faceattend-verify: Verifying %s (look at camera)...\n", id)
	exitCode = runVerification(ctx, svc, identity, startTime)
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.ExpandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, cfg.EnsureDirectories()
}

// runVerification performs one attempt and maps the outcome to an exit code.
func runVerification(ctx context.Context, auth Authenticator, identity storage.Identity, startTime time.Time) int {
	decision, err := auth.Login(ctx, identity)
	if err == nil {
		logging.Infof("Verification successful for %s (distance: %.2f, duration: %v)",
			identity.ID, decision.Confidence, time.Since(startTime))
		fmt.Fprintf(os.Stderr, "faceattend-verify: Welcome %s\n", identity.DisplayName)
		return exitMatched
	}

	logging.Warnf("Verification failed for %s: %v (duration: %v)", identity.ID, err, time.Since(startTime))

	var ae *attendance.Error
	if !errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "faceattend-verify: %v\n", err)
		return exitSystemError
	}

	fmt.Fprintf(os.Stderr, "faceattend-verify: %s\n", ae.Message)
	switch ae.Code {
	case attendance.ErrCodeNotRecognized:
		return exitNotRecognized
	case attendance.ErrCodeNotEnrolled, attendance.ErrCodeNoTrainingFaces:
		return exitNotEnrolled
	default:
		return exitSystemError
	}
}
