package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect <ticket>",
	Short: "Connect to a peer device by its ticket",
	Args:  cobra.ExactArgs(1),
	RunE:  runConnect,
}

func runConnect(cmd *cobra.Command, args []string) error {
	apiAddr, _ := cmd.Root().PersistentFlags().GetString("api-addr")

	if _, err := newAPIClient(apiAddr).post("/connect_peer", map[string]any{
		"ticket": args[0],
	}); err != nil {
		return err
	}
	fmt.Println("connected")
	return nil
}
