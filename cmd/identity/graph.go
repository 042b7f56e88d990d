package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anonto42/nano-midea/identity/internal/models"
)

// NewFollowCmd creates the follow subcommand.
func NewFollowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "follow <follower-email> <followed-email>",
		Short: "Make one user follow another",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			follower, followed, err := userPair(cmd, a, args)
			if err != nil {
				return err
			}
			if err := a.graph.Follow(cmd.Context(), follower, followed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now follows %s\n", args[0], args[1])
			return nil
		}),
	}
}

// NewUnfollowCmd creates the unfollow subcommand.
func NewUnfollowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unfollow <follower-email> <followed-email>",
		Short: "Remove a follow edge if it exists",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			follower, followed, err := userPair(cmd, a, args)
			if err != nil {
				return err
			}
			if err := a.graph.Unfollow(cmd.Context(), follower, followed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s no longer follows %s\n", args[0], args[1])
			return nil
		}),
	}
}

// NewFollowingCmd creates the following subcommand.
func NewFollowingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "following <email>",
		Short: "List the users an account follows",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := userID(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			users, err := a.graph.Following(cmd.Context(), id)
			if err != nil {
				return err
			}
			printUsers(cmd, users)
			return nil
		}),
	}
}

// NewFollowersCmd creates the followers subcommand.
func NewFollowersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "followers <email>",
		Short: "List the users following an account",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := userID(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			users, err := a.graph.Followers(cmd.Context(), id)
			if err != nil {
				return err
			}
			printUsers(cmd, users)
			return nil
		}),
	}
}

func userPair(cmd *cobra.Command, a *app, args []string) (uint, uint, error) {
	follower, err := userID(cmd.Context(), a, args[0])
	if err != nil {
		return 0, 0, err
	}
	followed, err := userID(cmd.Context(), a, args[1])
	if err != nil {
		return 0, 0, err
	}
	return follower, followed, nil
}

func printUsers(cmd *cobra.Command, users []models.User) {
	out := cmd.OutOrStdout()
	for _, u := range users {
		c := u.ToCompact()
		fmt.Fprintf(out, "%d\t%s\n", c.ID, c.Name)
	}
}
