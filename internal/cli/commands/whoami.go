package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyhall-dev/studyhall/internal/cli/client"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current gateway session",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := client.New().Session()
			if err != nil {
				return err
			}

			if session.User == nil {
				fmt.Println("Not signed in")
				return nil
			}

			fmt.Printf("ID:           %s\n", session.User.ID)
			fmt.Printf("Email:        %s\n", session.User.Email)
			fmt.Printf("Display name: %s\n", session.User.DisplayName)
			fmt.Printf("Role:         %s\n", session.User.Role)
			return nil
		},
	}
}
