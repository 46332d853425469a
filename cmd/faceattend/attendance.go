package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/MrCodeEU/faceattend/pkg/ledger"
	"github.com/spf13/cobra"
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Show recorded attendance",
	Args:  cobra.NoArgs,
	RunE:  runAttendance,
}

func init() {
	attendanceCmd.Flags().String("id", "", "Only show entries for this id")
	attendanceCmd.Flags().String("subject", "", "Only show entries for this subject")
	rootCmd.AddCommand(attendanceCmd)
}

func runAttendance(cmd *cobra.Command, args []string) error {
	id := mustGetString(cmd, "id")
	subject := mustGetString(cmd, "subject")

	book, err := ledger.New(cfg.Ledger)
	if err != nil {
		return fmt.Errorf("failed to open attendance ledger: %w", err)
	}
	defer book.Close()

	entries, err := book.List()
	if err != nil {
		return err
	}

	var shown []ledger.Entry
	for _, e := range entries {
		if (id == "" || e.ID == id) && (subject == "" || e.Subject == subject) {
			shown = append(shown, e)
		}
	}
	if len(shown) == 0 {
		fmt.Println("No attendance recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDEPT\tSUBJECT\tTIMESTAMP")
	for _, e := range shown {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Name, e.Group, e.Subject, e.Timestamp.Format(ledger.TimeLayout))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d entr(ies)\n", len(shown))
	return nil
}
