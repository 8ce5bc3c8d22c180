package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ticketCmd = &cobra.Command{
	Use:   "ticket",
	Short: "Generate this device's peer ticket for sharing out of band",
	RunE:  runTicket,
}

func runTicket(cmd *cobra.Command, args []string) error {
	apiAddr, _ := cmd.Root().PersistentFlags().GetString("api-addr")

	resp, err := newAPIClient(apiAddr).post("/generate_ticket", map[string]any{})
	if err != nil {
		return err
	}
	fmt.Println(resp.Ticket)
	return nil
}
