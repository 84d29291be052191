package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	portsession "github.com/Sahityah/portfolio-session"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect and update your profile",
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update profile fields",
	Long: `Send a partial profile update. Only the flags you set are sent;
the backend's returned representation becomes the new session user.

Examples:
  portctl profile update --phone 555-0100
  portctl profile update --address "1 Main St" --city Austin --state TX --zip 78701`,
	RunE: runProfileUpdate,
}

func init() {
	profileUpdateCmd.Flags().String("username", "", "display name")
	profileUpdateCmd.Flags().String("avatar-url", "", "avatar image URL")
	profileUpdateCmd.Flags().String("phone", "", "phone number")
	profileUpdateCmd.Flags().String("address", "", "street address")
	profileUpdateCmd.Flags().String("city", "", "city")
	profileUpdateCmd.Flags().String("state", "", "state")
	profileUpdateCmd.Flags().String("zip", "", "zip code")

	profileCmd.AddCommand(profileUpdateCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfileUpdate(cmd *cobra.Command, args []string) error {
	patch := portsession.ProfilePatch{}
	patch.Username, _ = cmd.Flags().GetString("username")
	patch.AvatarURL, _ = cmd.Flags().GetString("avatar-url")
	patch.Phone, _ = cmd.Flags().GetString("phone")
	patch.Address, _ = cmd.Flags().GetString("address")
	patch.City, _ = cmd.Flags().GetString("city")
	patch.State, _ = cmd.Flags().GetString("state")
	patch.Zip, _ = cmd.Flags().GetString("zip")

	if patch == (portsession.ProfilePatch{}) {
		return fmt.Errorf("nothing to update, set at least one field flag")
	}

	store, err := newStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout())
	defer cancel()

	if err := store.UpdateProfile(ctx, patch); err != nil {
		return err
	}

	u := store.State().User
	fmt.Printf("Profile updated for %s (%s)\n", u.Username, u.Email)
	return nil
}
