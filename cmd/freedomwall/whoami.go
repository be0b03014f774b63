package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print this visitor's token",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.logger.Close()

		fmt.Fprintln(cmd.OutOrStdout(), c.tokens.GetOrCreateToken())
		return nil
	},
}
