package commands

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/studyhall-dev/studyhall/internal/cli/client"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set STUDYHALL_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set STUDYHALL_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(email, password string) error {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("STUDYHALL_EMAIL")
	}
	if password == "" {
		password = os.Getenv("STUDYHALL_PASSWORD")
	}

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or STUDYHALL_EMAIL env var)")
	}

	// Prompt for password if not provided via flag or env var
	if password == "" {
		if term.IsTerminal(int(syscall.Stdin)) {
			fmt.Print("Password: ")
			bytePassword, err := term.ReadPassword(int(syscall.Stdin))
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = string(bytePassword)
			fmt.Println()
		} else {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or STUDYHALL_PASSWORD env var)")
		}
	}

	session, err := client.New().SignIn(email, password)
	if err != nil {
		return err
	}

	if session.User != nil {
		fmt.Printf("Signed in as %s (%s)\n", session.User.DisplayName, session.User.Role)
	} else {
		// The role document fetch is asynchronous; the session may still be settling
		fmt.Println("Signed in; session is still loading")
	}

	return nil
}
