package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyhall-dev/studyhall/internal/cli/client"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out of the gateway session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.New().SignOut(); err != nil {
				return err
			}
			fmt.Println("Signed out")
			return nil
		},
	}
}
