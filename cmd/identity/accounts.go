package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/anonto42/nano-midea/identity/internal/models"
)

// NewRegisterCmd creates the register subcommand.
func NewRegisterCmd() *cobra.Command {
	var name, password string
	cmd := &cobra.Command{
		Use:   "register <email>",
		Short: "Create an unactivated account and send its activation email",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			res, err := a.accounts.Register(cmd.Context(), models.RegisterRequest{
				Name:                 name,
				Email:                args[0],
				Password:             password,
				PasswordConfirmation: password,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "registered user %d <%s>\n", res.User.ID, res.User.Email)
			fmt.Fprintf(out, "activation token: %s\n", res.ActivationToken)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// NewActivateCmd creates the activate subcommand.
func NewActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <email> <token>",
		Short: "Activate an account with the token from its activation email",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			user, err := a.accounts.ActivateAccount(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "activated user %d\n", user.ID)
			return nil
		}),
	}
}

// NewResendActivationCmd creates the resend-activation subcommand.
func NewResendActivationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend-activation <email>",
		Short: "Issue and mail a fresh activation token",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			raw, err := a.accounts.ResendActivation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "activation token: %s\n", raw)
			return nil
		}),
	}
}

// NewLoginCmd creates the login subcommand.
func NewLoginCmd() *cobra.Command {
	var password string
	var remember bool
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Check an email and password, optionally issuing a remember token",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			user, err := a.accounts.Authenticate(ctx, args[0], password)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !user.Activated {
				fmt.Fprintln(out, "account not activated, check your email for the activation link")
				return nil
			}
			fmt.Fprintf(out, "authenticated user %d\n", user.ID)
			if remember {
				raw, err := a.accounts.Remember(ctx, user)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "remember token: %s\n", raw)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&remember, "remember", false, "issue a remember token")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// NewRememberCmd creates the remember subcommand.
func NewRememberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remember <user-id> <token>",
		Short: "Restore a session from a remember token",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			user, err := a.accounts.UserFromRemember(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "authenticated user %d <%s>\n", user.ID, user.Email)
			return nil
		}),
	}
}

// NewForgetCmd creates the forget subcommand.
func NewForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <email>",
		Short: "Invalidate the account's remember token",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			user, err := a.repos.Users.GetUserByEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.accounts.Forget(cmd.Context(), user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "forgot user %d\n", user.ID)
			return nil
		}),
	}
}

// NewResetRequestCmd creates the reset-request subcommand.
func NewResetRequestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-request <email>",
		Short: "Issue a password reset token and send the reset email",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			raw, err := a.accounts.RequestPasswordReset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset token: %s\n", raw)
			return nil
		}),
	}
}

// NewResetPasswordCmd creates the reset-password subcommand.
func NewResetPasswordCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "reset-password <email> <token>",
		Short: "Set a new password with a reset token",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			user, err := a.accounts.ResetPassword(cmd.Context(), args[0], args[1], models.ResetPasswordRequest{
				Password:             password,
				PasswordConfirmation: password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password reset for user %d\n", user.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&password, "password", "", "new password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// NewUpdateProfileCmd creates the update-profile subcommand.
func NewUpdateProfileCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "update-profile <user-id>",
		Short: "Change name, email and optionally password",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			user, err := a.accounts.UpdateProfile(cmd.Context(), id, models.UpdateProfileRequest{
				Name:                 name,
				Email:                email,
				Password:             password,
				PasswordConfirmation: password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated user %d <%s>\n", user.ID, user.Email)
			return nil
		}),
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "new password, blank keeps the current one")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// NewDeleteUserCmd creates the delete-user subcommand.
func NewDeleteUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-user <email>",
		Short: "Delete an account with its posts and follow edges",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := userID(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			if err := a.accounts.DeleteUser(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted user %d\n", id)
			return nil
		}),
	}
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID %q", s)
	}
	return uint(id), nil
}

// userID resolves an email to its user ID.
func userID(ctx context.Context, a *app, email string) (uint, error) {
	user, err := a.repos.Users.GetUserByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("user %s: %w", email, err)
	}
	return user.ID, nil
}
