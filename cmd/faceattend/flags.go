package main

import (
	"fmt"

	"github.com/MrCodeEU/faceattend/pkg/storage"
	"github.com/spf13/cobra"
)

// mustGetString gets a string flag value or panics if the flag doesn't exist.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

func addIdentityFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("group", "", "Department (defaults to the first configured one)")
}

// identityFromFlags builds the identity for args[0]. The group defaults to
// the first configured group and the name to the id.
func identityFromFlags(cmd *cobra.Command, args []string) storage.Identity {
	identity := storage.Identity{
		ID:          args[0],
		DisplayName: mustGetString(cmd, "name"),
		Group:       mustGetString(cmd, "group"),
	}
	if identity.Group == "" && len(cfg.Groups) > 0 {
		identity.Group = cfg.Groups[0]
	}
	if identity.DisplayName == "" {
		identity.DisplayName = identity.ID
	}
	return identity
}
