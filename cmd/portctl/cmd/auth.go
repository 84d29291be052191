package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	portsession "github.com/Sahityah/portfolio-session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	Long: `Sign in against the identity backend and persist the session locally.

The password is read from --password or, when omitted, from stdin.

Examples:
  portctl login --email you@example.com
  PORTCTL_API_URL=https://api.example.com portctl login -e you@example.com`,
	RunE: runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	Long: `Register a new account. On success the issued session is persisted
locally, no separate login needed.

Examples:
  portctl register --username "Demo User" --email you@example.com`,
	RunE: runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the local session",
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE:  runStatus,
}

func init() {
	loginCmd.Flags().StringP("email", "e", "", "account email")
	loginCmd.Flags().StringP("password", "p", "", "account password (read from stdin when omitted)")

	registerCmd.Flags().StringP("username", "u", "", "display name")
	registerCmd.Flags().StringP("email", "e", "", "account email")
	registerCmd.Flags().StringP("password", "p", "", "account password (read from stdin when omitted)")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, statusCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")

	if password == "" {
		var err error
		password, err = promptLine("Password: ")
		if err != nil {
			return err
		}
	}
	if err := checkLoginInput(email, password); err != nil {
		return err
	}

	store, err := newStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout())
	defer cancel()

	if err := store.Login(ctx, email, password); err != nil {
		return err
	}

	state := store.State()
	fmt.Printf("Signed in as %s (%s)\n", state.User.Username, state.User.Email)
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	username, _ := cmd.Flags().GetString("username")
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")

	if password == "" {
		var err error
		password, err = promptLine("Password: ")
		if err != nil {
			return err
		}
	}
	if err := checkRegisterInput(username, email, password); err != nil {
		return err
	}

	store, err := newStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout())
	defer cancel()

	if err := store.Register(ctx, username, email, password); err != nil {
		return err
	}

	state := store.State()
	fmt.Printf("Account created, signed in as %s (%s)\n", state.User.Username, state.User.Email)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	store, err := newStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	store.Logout()
	fmt.Println("Signed out")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := newStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	state := store.State()
	if !state.IsAuthenticated {
		fmt.Println("Not signed in")
		return nil
	}

	u := state.User
	fmt.Printf("Signed in as %s (%s)\n", u.Username, u.Email)
	if u.Provider != "" {
		fmt.Printf("  provider: %s\n", u.Provider)
	}
	if exp, ok := portsession.TokenExpiry(state.Token); ok {
		fmt.Printf("  token valid until %s\n", exp.Format("2006-01-02 15:04:05 MST"))
	}
	return nil
}

// promptLine reads one line from stdin.
func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
