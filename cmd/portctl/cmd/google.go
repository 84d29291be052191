package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	portsession "github.com/Sahityah/portfolio-session"
	"github.com/Sahityah/portfolio-session/googleauth"
)

var googleCmd = &cobra.Command{
	Use:   "google",
	Short: "Sign in with Google",
	Long: `Sign in through Google. Exactly one path runs per attempt:

  1. --credential: you already hold a provider-issued ID token and it is
     exchanged directly.
  2. --redirect-url: the backend performed the provider handshake and
     redirected back with the token in the URL; the URL is consumed and
     the token stripped.
  3. Neither flag: the interactive browser flow runs against Google with a
     loopback listener, using --client-id/--client-secret
     (or PORTCTL_GOOGLE_CLIENT_ID / PORTCTL_GOOGLE_CLIENT_SECRET).

Examples:
  portctl google --credential eyJhbGciOi...
  portctl google --redirect-url "https://app.example.com/?token=eyJh..."
  portctl google --client-id ...apps.googleusercontent.com --client-secret ...`,
	RunE: runGoogle,
}

func init() {
	googleCmd.Flags().String("credential", "", "provider-issued ID token")
	googleCmd.Flags().String("redirect-url", "", "redirect return URL carrying the token")
	googleCmd.Flags().String("client-id", "", "Google OAuth client ID for the interactive flow")
	googleCmd.Flags().String("client-secret", "", "Google OAuth client secret for the interactive flow")

	_ = viper.BindPFlag("google_client_id", googleCmd.Flags().Lookup("client-id"))
	_ = viper.BindPFlag("google_client_secret", googleCmd.Flags().Lookup("client-secret"))

	rootCmd.AddCommand(googleCmd)
}

func runGoogle(cmd *cobra.Command, args []string) error {
	credential, _ := cmd.Flags().GetString("credential")
	redirectURL, _ := cmd.Flags().GetString("redirect-url")
	if credential != "" && redirectURL != "" {
		return fmt.Errorf("--credential and --redirect-url are mutually exclusive")
	}

	store, err := newStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	switch {
	case redirectURL != "":
		ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout())
		defer cancel()
		_, consumed, err := portsession.ConsumeRedirect(ctx, store, redirectURL)
		if err != nil {
			return err
		}
		if !consumed {
			return fmt.Errorf("redirect URL carries no token or error parameter")
		}

	case credential == "":
		flow, err := googleauth.New(googleauth.Config{
			ClientID:     viper.GetString("google_client_id"),
			ClientSecret: viper.GetString("google_client_secret"),
		})
		if err != nil {
			return err
		}
		// Interactive flows wait on a human; don't bind them to the HTTP timeout.
		credential, err = flow.Authenticate(cmd.Context())
		if err != nil {
			return err
		}
		fallthrough

	default:
		ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout())
		defer cancel()
		if err := store.LoginWithGoogle(ctx, credential); err != nil {
			return err
		}
	}

	state := store.State()
	fmt.Printf("Signed in as %s (%s) via Google\n", state.User.Username, state.User.Email)
	return nil
}
