package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Account management commands",
	}

	cmd.AddCommand(newUserRegisterCmd())
	cmd.AddCommand(newUserLoginCmd())
	cmd.AddCommand(newUserMeCmd())
	cmd.AddCommand(newUserGetCmd())
	cmd.AddCommand(newUserUpdateCmd())
	cmd.AddCommand(newUserDeleteCmd())
	cmd.AddCommand(newUserGroupsCmd())
	cmd.AddCommand(newUserPlaysCmd())
	cmd.AddCommand(newUserConfirmCmd())
	cmd.AddCommand(newUserResendCmd())

	return cmd
}

func newUserRegisterCmd() *cobra.Command {
	var user, email, pass string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{
				"username": user,
				"email":    email,
				"password": pass,
			}
			var result AuthResult

			if err := client.Post(apiPath("users"), req, &result); err != nil {
				return err
			}

			if err := cfg.SaveToken(result.Token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address for confirmation")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newUserLoginCmd() *cobra.Command {
	var login, pass string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with username or email",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{
				"login":    login,
				"password": pass,
			}
			var result AuthResult

			if err := client.Post(apiPath("users", "login"), req, &result); err != nil {
				return err
			}

			if err := cfg.SaveToken(result.Token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&login, "user", "", "Username or email (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newUserMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the logged in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result User
			if err := client.Get(apiPath("users", "me"), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newUserGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <username|id>",
		Short: "Show a public profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result User
			if err := client.Get(apiPath("users", args[0]), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newUserUpdateCmd() *cobra.Command {
	var user, email, pass, image string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change username, email, password or image",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{}
			for flag, value := range map[string]string{
				"user":  user,
				"email": email,
				"pass":  pass,
				"image": image,
			} {
				if cmd.Flags().Changed(flag) {
					req[updateFields[flag]] = value
				}
			}
			if len(req) == 0 {
				return fmt.Errorf("nothing to update")
			}

			var result User
			if err := client.Patch(apiPath("users", "me"), req, &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "New username")
	cmd.Flags().StringVar(&email, "email", "", "New email address")
	cmd.Flags().StringVar(&pass, "pass", "", "New password")
	cmd.Flags().StringVar(&image, "image", "", "Profile image URL")

	return cmd
}

// updateFields maps update flags to request fields
var updateFields = map[string]string{
	"user":  "username",
	"email": "email",
	"pass":  "password",
	"image": "image",
}

func newUserDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the logged in account",
		Long: `Delete the logged in account.

You leave every group you belong to. Groups where you are the only member are
deleted along with their plays.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete account without --yes")
			}

			var result DeleteUserResult
			if err := client.Delete(apiPath("users", "me"), &result); err != nil {
				return err
			}
			if err := cfg.ClearToken(); err != nil {
				return fmt.Errorf("failed to remove token: %w", err)
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")

	return cmd
}

func newUserGroupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List your groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []GroupSummary
			if err := client.Get(apiPath("users", "me", "groups"), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newUserPlaysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plays <username|id>",
		Short: "List plays a user took part in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Play
			if err := client.Get(apiPath("users", args[0], "plays"), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newUserConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <token>",
		Short: "Confirm an email address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result User
			if err := client.Get(apiPath("users", "confirm", args[0]), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newUserResendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend <username>",
		Short: "Send a fresh confirmation email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Post(apiPath("users", "resend", args[0]), nil, nil); err != nil {
				return err
			}
			NewOutput(cfg.Output).PrintMessage("Confirmation email sent")
			return nil
		},
	}
}
