package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the Sync Engine's current status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	apiAddr, _ := cmd.Root().PersistentFlags().GetString("api-addr")

	resp, err := newAPIClient(apiAddr).get("/get_sync_status")
	if err != nil {
		return err
	}

	s := resp.Status
	fmt.Printf("peers connected: %d\n", s.PeersConnected)
	if s.LastSync != nil {
		fmt.Printf("last sync:       %s\n", s.LastSync.Format("2006-01-02T15:04:05Z07:00"))
	} else {
		fmt.Println("last sync:       never")
	}
	fmt.Printf("syncing:         %t\n", s.IsSyncing)
	return nil
}
