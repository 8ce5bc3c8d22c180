package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show the 10 most recently modified files",
	RunE:  runActivity,
}

func runActivity(cmd *cobra.Command, args []string) error {
	apiAddr, _ := cmd.Root().PersistentFlags().GetString("api-addr")

	resp, err := newAPIClient(apiAddr).get("/get_recent_activity")
	if err != nil {
		return err
	}

	if len(resp.Activity) == 0 {
		fmt.Println("no recorded activity")
		return nil
	}
	for _, entry := range resp.Activity {
		fmt.Printf("%s  %8d bytes  %s\n",
			entry.LastModified.Format("2006-01-02T15:04:05Z07:00"), entry.Size, entry.Path)
	}
	return nil
}
