package main

import (
	"fmt"

	"github.com/MrCodeEU/faceattend/pkg/attendance"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <id>",
	Short: "Register a person by capturing face samples",
	Long: `Captures the configured number of face samples from the camera and stores
them for the given id. Press the abort key in the preview window or Ctrl-C to
stop early; samples captured so far are kept.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	addIdentityFlags(enrollCmd)
	rootCmd.AddCommand(enrollCmd)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	identity := identityFromFlags(cmd, args)

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("Registering %s (%s, %s). Please look at the camera.\n", identity.DisplayName, identity.ID, identity.Group)

	result, err := s.service.Register(s.ctx, identity)
	if err != nil {
		if attendance.CodeOf(err) == attendance.ErrCodeIncomplete {
			fmt.Printf("Incomplete: %v\n", err)
			return nil
		}
		return err
	}

	fmt.Printf("Captured %d images for %s.\n", result.Captured, identity.ID)
	fmt.Printf("Registered %s!\n", identity.DisplayName)
	return nil
}
