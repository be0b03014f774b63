package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	postName    string
	postMessage string
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Leave a message on the wall",
	Long: `Leave a message on the wall. Each visitor can post once; the visitor
is recognised by the token kept in the state file.`,
	RunE: runPost,
}

func init() {
	postCmd.Flags().StringVarP(&postName, "name", "n", "", "Your name")
	postCmd.Flags().StringVarP(&postMessage, "message", "m", "", "Your message")
}

func runPost(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	defer c.logger.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	// The placement of a new post depends on how many posts are on the wall.
	sc := c.controller
	sc.Mount()
	defer sc.Unmount()
	if err := sc.AwaitFeed(ctx); err != nil {
		return fmt.Errorf("waiting for the wall: %w", err)
	}
	sc.Load(ctx)

	sc.SetName(postName)
	sc.SetMessage(postMessage)
	if err := sc.Submit(ctx); err != nil {
		if reason := sc.View().Error; reason != "" {
			return errors.New(reason)
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Your message is on the wall.")
	return nil
}
