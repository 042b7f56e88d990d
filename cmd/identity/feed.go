package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewPostCmd creates the post subcommand.
func NewPostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "post <email> <content>",
		Short: "Publish a post of at most 140 characters",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := userID(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			post, err := a.feed.Publish(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created post %d\n", post.ID)
			return nil
		}),
	}
}

// NewFeedCmd creates the feed subcommand.
func NewFeedCmd() *cobra.Command {
	var limit int
	var cursor string
	cmd := &cobra.Command{
		Use:   "feed <email>",
		Short: "Show an account's feed, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := userID(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			posts, next, err := a.feed.Page(cmd.Context(), id, cursor, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range posts {
				fmt.Fprintf(out, "%d\t%d\t%s\t%s\n", p.ID, p.UserID, p.CreatedAt.Format(time.RFC3339), p.Content)
			}
			if next != "" {
				fmt.Fprintf(out, "next: %s\n", next)
			}
			return nil
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "posts per page (default FEED_PAGE_SIZE)")
	cmd.Flags().StringVar(&cursor, "cursor", "", "cursor printed by a previous page")
	return cmd
}
