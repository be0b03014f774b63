package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL  string
	statePath  string
	collection string
	logLevel   string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "freedomwall",
	Short: "Freedom Wall guestbook daemon and client",
	Long: `freedomwall hosts the document store behind the Freedom Wall and
lets a visitor read the wall and leave a single message on it.

  serve  - run the store daemon
  post   - leave a message
  feed   - print the wall, optionally following live updates
  whoami - print this visitor's token`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "Daemon base URL")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "Visitor state file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&collection, "collection", "freedomWall", "Collection holding the posts")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Client log level")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Second, "Timeout for a single request")

	rootCmd.AddCommand(serveCmd, postCmd, feedCmd, whoamiCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
