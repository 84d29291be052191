// Package cmd implements the portctl command tree.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	portsession "github.com/Sahityah/portfolio-session"
)

var rootCmd = &cobra.Command{
	Use:   "portctl",
	Short: "Manage your portfolio session from the command line",
	Long: `portctl drives the portfolio identity backend: sign in, register,
inspect and update your profile, and sign out.

The session survives between invocations in a local snapshot file, exactly
like the web application's persisted session. An expired token is detected
on startup and clears the session.

Configuration is read from flags, PORTCTL_* environment variables, and an
optional $HOME/.portctl.yaml, in that order of precedence.

Examples:
  # Sign in and check who you are
  portctl login --email you@example.com
  portctl status

  # Update contact details
  portctl profile update --phone 555-0100 --city Austin

  # Sign in with Google (interactive browser flow)
  portctl google --client-id $GOOGLE_CLIENT_ID --client-secret $GOOGLE_CLIENT_SECRET`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("api-url", "", "identity backend base URL")
	rootCmd.PersistentFlags().String("snapshot-path", "", "session snapshot file (default $HOME/.portctl/session.json)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "HTTP request timeout")

	_ = viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))
	_ = viper.BindPFlag("snapshot_path", rootCmd.PersistentFlags().Lookup("snapshot-path"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
}

func initConfig() {
	home, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".portctl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PORTCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

// newStore builds the session store from the resolved configuration and
// rehydrates it, so every subcommand starts from the persisted session.
func newStore() (*portsession.SessionStore, error) {
	apiURL := viper.GetString("api_url")
	if apiURL == "" {
		return nil, fmt.Errorf("api-url is required (flag, PORTCTL_API_URL, or config file)")
	}

	snapshotPath := viper.GetString("snapshot_path")
	if snapshotPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		snapshotPath = filepath.Join(home, ".portctl", "session.json")
	}

	store, err := portsession.New(portsession.Config{
		APIBaseURL:   apiURL,
		SnapshotPath: snapshotPath,
		HTTPTimeout:  viper.GetDuration("timeout"),
	})
	if err != nil {
		return nil, err
	}

	if err := store.Rehydrate(); err != nil {
		return nil, err
	}
	return store, nil
}

// cmdTimeout bounds a single subcommand's backend interaction.
func cmdTimeout() time.Duration {
	if d := viper.GetDuration("timeout"); d > 0 {
		return d + 5*time.Second
	}
	return portsession.DefaultHTTPTimeout + 5*time.Second
}
