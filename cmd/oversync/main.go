package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/overspend1/oversync/pkg/log"
)

var (
	// Version information (set via ldflags during build).
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "oversync",
	Short: "oversync - encrypted, content-addressed vault sync across devices",
	Long: `oversync keeps a directory ("vault") synchronized across devices by
encrypting each file, indexing it in a Merkle Search Tree, and replicating
it over a direct peer connection and an optional hosted mirror.

The "serve" command runs the Sync Engine and its localhost control API;
every other command is a thin client talking to an already-running serve
process.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"oversync version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("api-addr", "127.0.0.1:7777", "Control API address of a running 'oversync serve'")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ticketCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(activityCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
