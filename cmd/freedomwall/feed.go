package main

import (
	"context"
	"errors"
	"freedomwall/internal/services"

	"github.com/spf13/cobra"
)

var follow bool

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Print the wall, newest first",
	RunE:  runFeed,
}

func init() {
	feedCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing the wall as it changes")
}

func runFeed(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	defer c.logger.Close()

	out := cmd.OutOrStdout()
	sc := c.controller
	if follow {
		sc.SetListener(func(v services.View) {
			if !v.Loading {
				renderWall(out, v)
			}
		})
	}
	sc.Mount()
	defer sc.Unmount()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	if err := sc.AwaitFeed(ctx); err != nil {
		return err
	}
	if !follow {
		v := sc.View()
		renderWall(out, v)
		if v.FeedError != "" {
			return errors.New(v.FeedError)
		}
		return nil
	}

	<-cmd.Context().Done()
	return nil
}
