package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Verify a registered person against the live camera",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	addIdentityFlags(verifyCmd)
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	identity := identityFromFlags(cmd, args)

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	decision, err := s.service.Login(s.ctx, identity)
	if err != nil {
		return err
	}

	fmt.Printf("Welcome %s!\n", identity.DisplayName)
	fmt.Printf("  Distance: %.2f (threshold %.2f)\n", decision.Confidence, cfg.Recognition.Threshold)
	fmt.Printf("  Frames:   %d in %s\n", decision.Frames, decision.Duration.Round(100*time.Millisecond))
	if decision.EvidencePath != "" {
		fmt.Printf("  Evidence: %s\n", decision.EvidencePath)
	}
	return nil
}
