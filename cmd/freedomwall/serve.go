package main

import (
	"freedomwall/internal/di"
	"freedomwall/internal/structures"

	"github.com/spf13/cobra"
)

var serveFlags structures.CliFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the document store daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := di.InitApp(&serveFlags)
		if err != nil {
			return err
		}
		return app.Run(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.ConfigPath, "config", "c", "config/config.yml", "Path to the config file")
	serveCmd.Flags().BoolVarP(&serveFlags.DebugMode, "debug", "d", false, "Also log to the console")
}
