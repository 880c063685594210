package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/session"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the Santa Teresa gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(app *App) error {
				return runLogin(cmd, app, email, password)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set STORECTL_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set STORECTL_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(cmd *cobra.Command, app *App, email, password string) error {
	out := cmd.OutOrStdout()

	// Environment variables are useful for CI/CD
	if email == "" {
		email = os.Getenv("STORECTL_EMAIL")
	}
	if password == "" {
		password = os.Getenv("STORECTL_PASSWORD")
	}

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or STORECTL_EMAIL env var)")
	}

	if password == "" {
		var err error
		password, err = readPassword(out)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Logging in to %s...\n", app.Client.BaseURL())

	user, err := app.Manager.Login(cmd.Context(), email, password)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "✓ Login successful!")
	printUser(out, user)
	return nil
}

func readPassword(out io.Writer) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("password is required in non-interactive mode (use --password flag or STORECTL_PASSWORD env var)")
	}

	fmt.Fprint(out, "Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

func printUser(out io.Writer, user *session.User) {
	fmt.Fprintf(out, "  User: %s (%s)\n", user.Name, user.Email)
	if user.Role != "" {
		fmt.Fprintf(out, "  Role: %s\n", user.Role)
	}
	if len(user.StoreIDs) > 0 {
		fmt.Fprintf(out, "  Stores: %s\n", strings.Join(user.StoreIDs, ", "))
	}
}
