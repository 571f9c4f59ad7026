package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mediguide/mgctl/pkg/mgctl/client"
	"github.com/mediguide/mgctl/pkg/mgctl/output"
)

func NewMeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "me",
		Short: "Inspect and update the current profile",
	}
	cmd.AddCommand(
		newMeShowCommand(),
		newMeUpdateCommand(),
		newMeUsernameCommand(),
		newMeChangePasswordCommand(),
	)
	return cmd
}

func newMeShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			sess, err := requireSession(cmd.Context(), rt)
			if err != nil {
				return err
			}
			user := sess.CurrentUser()
			format, err := output.ParseFormat(rt.OutputFormat())
			if err != nil {
				return err
			}
			if format == output.FormatTable {
				output.WriteUserTable(rt.Writer(), *user)
				return nil
			}
			return output.WriteObject(rt.Writer(), format, user)
		},
	}
}

func newMeUpdateCommand() *cobra.Command {
	var (
		name     string
		language string
		theme    string
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			update := client.UserUpdate{}
			if cmd.Flags().Changed("name") {
				update.Name = &name
			}
			if cmd.Flags().Changed("language") {
				update.PreferredLanguage = &language
			}
			if cmd.Flags().Changed("theme") {
				update.Theme = &theme
			}
			if update == (client.UserUpdate{}) {
				return fmt.Errorf("nothing to update; set --name, --language, or --theme")
			}
			sess, err := requireSession(cmd.Context(), rt)
			if err != nil {
				return err
			}
			user, err := sess.UpdateProfile(cmd.Context(), update)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Profile updated for %s\n", userDisplayName(user))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&language, "language", "", "Preferred language")
	cmd.Flags().StringVar(&theme, "theme", "", "Theme: light, dark, or system")
	return cmd
}

func newMeUsernameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "username <username>",
		Short: "Set the account username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			sess, err := requireSession(cmd.Context(), rt)
			if err != nil {
				return err
			}
			if err := sess.Client().Users().SetUsername(cmd.Context(), args[0]); err != nil {
				return err
			}
			if _, err := sess.RefreshCurrentUser(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Username set to %s\n", args[0])
			return nil
		},
	}
}

func newMeChangePasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "change-password",
		Short: "Change the account password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			current, err := promptSecret(rt, "Current password")
			if err != nil {
				return err
			}
			next, err := promptSecret(rt, "New password")
			if err != nil {
				return err
			}
			sess, err := requireSession(cmd.Context(), rt)
			if err != nil {
				return err
			}
			if err := sess.Client().Users().ChangePassword(cmd.Context(), current, next); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), "Password changed")
			return nil
		},
	}
}
