package commands

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Santa-TeresaERP/ST-frontend-sub003/internal/cli/config"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <gateway-url>",
		Short: "Create a storectl.yaml pointing at a gateway",
		Args:  cobra.ExactArgs(1),
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	apiURL := args[0]
	out := cmd.OutOrStdout()

	if u, err := url.Parse(apiURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid gateway URL %q (expected e.g. http://localhost:8080)", apiURL)
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	configPath := filepath.Join(currentDir, config.ConfigFileName)

	var cfg *config.Config
	if _, err := os.Stat(configPath); err == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		fmt.Fprintf(out, "Found existing %s\n", config.ConfigFileName)
		cfg.APIURL = apiURL
	} else {
		cfg = config.DefaultConfig(apiURL)
	}

	if err := config.Save(configPath, cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "✓ Gateway set to %s in %s\n", apiURL, configPath)
	fmt.Fprintln(out, "\nNext: storectl login --email you@example.com")
	return nil
}
