package main

import (
	"fmt"

	"github.com/MrCodeEU/faceattend/pkg/ledger"
	"github.com/spf13/cobra"
)

var checkinCmd = &cobra.Command{
	Use:   "checkin <id>",
	Short: "Verify a person and record attendance for a subject",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheckin,
}

func init() {
	addIdentityFlags(checkinCmd)
	checkinCmd.Flags().String("subject", "", "Subject (defaults to the first configured one)")
	rootCmd.AddCommand(checkinCmd)
}

func runCheckin(cmd *cobra.Command, args []string) error {
	identity := identityFromFlags(cmd, args)
	subject := mustGetString(cmd, "subject")
	if subject == "" && len(cfg.Subjects) > 0 {
		subject = cfg.Subjects[0]
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	entry, err := s.service.CheckIn(s.ctx, identity, subject)
	if err != nil {
		return err
	}

	fmt.Printf("Welcome %s!\n", entry.Name)
	fmt.Printf("Attendance saved: %s %s at %s\n", entry.ID, entry.Subject, entry.Timestamp.Format(ledger.TimeLayout))
	return nil
}
