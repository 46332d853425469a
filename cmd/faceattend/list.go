package main

import (
	"fmt"

	"github.com/MrCodeEU/faceattend/pkg/logging"
	"github.com/MrCodeEU/faceattend/pkg/storage"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered identities",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	logging.Debugf("Listing identities in %s", cfg.SamplesDir())

	store, err := storage.NewFileStore(cfg.Storage.DataDir, cfg.Storage.EncryptionEnabled)
	if err != nil {
		return err
	}

	identities, err := store.List()
	if err != nil {
		return err
	}
	if len(identities) == 0 {
		fmt.Println("No identities registered.")
		return nil
	}

	fmt.Println("Registered identities:")
	for _, identity := range identities {
		n, err := store.Count(identity.Group, identity.ID)
		if err != nil {
			return err
		}
		fmt.Printf("  - %s (%s, %d samples)\n", identity.ID, identity.Group, n)
	}
	fmt.Printf("\nTotal: %d identit(ies)\n", len(identities))
	return nil
}
