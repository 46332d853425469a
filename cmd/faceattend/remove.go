package main

import (
	"errors"
	"fmt"

	"github.com/MrCodeEU/faceattend/pkg/storage"
	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove all face samples of an identity",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	removeCmd.Flags().String("group", "", "Department (defaults to the first configured one)")
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	id := args[0]
	group := mustGetString(cmd, "group")
	if group == "" && len(cfg.Groups) > 0 {
		group = cfg.Groups[0]
	}

	store, err := storage.NewFileStore(cfg.Storage.DataDir, cfg.Storage.EncryptionEnabled)
	if err != nil {
		return err
	}

	if err := store.Remove(group, id); err != nil {
		if errors.Is(err, storage.ErrIdentityNotFound) {
			return fmt.Errorf("%s is not registered in %s", id, group)
		}
		return err
	}

	fmt.Printf("Face samples for '%s' have been removed.\n", id)
	return nil
}
