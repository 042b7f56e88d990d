package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var envFile string

// NewRootCmd creates the root command for the identity CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage accounts, follows and feeds",
		Long: `identity runs account, follow graph and feed operations against the
configured database. Settings come from the environment and an optional .env file.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")

	cmd.AddCommand(NewMigrateCmd())

	cmd.AddCommand(NewRegisterCmd())
	cmd.AddCommand(NewActivateCmd())
	cmd.AddCommand(NewResendActivationCmd())
	cmd.AddCommand(NewLoginCmd())
	cmd.AddCommand(NewRememberCmd())
	cmd.AddCommand(NewForgetCmd())
	cmd.AddCommand(NewResetRequestCmd())
	cmd.AddCommand(NewResetPasswordCmd())
	cmd.AddCommand(NewUpdateProfileCmd())
	cmd.AddCommand(NewDeleteUserCmd())

	cmd.AddCommand(NewFollowCmd())
	cmd.AddCommand(NewUnfollowCmd())
	cmd.AddCommand(NewFollowingCmd())
	cmd.AddCommand(NewFollowersCmd())

	cmd.AddCommand(NewPostCmd())
	cmd.AddCommand(NewFeedCmd())

	return cmd
}

// withApp wires the services for one command run and closes them afterwards.
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(envFile)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}
