package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init <vault-path>",
	Short: "Initialize a vault against a running 'oversync serve'",
	Args:  cobra.ExactArgs(1),
	RunE:  runInit,
}

func init() {
	initCmd.Flags().String("key", "", "Encryption key material (required)")
	initCmd.Flags().String("mirror-owner", "", "Remote mirror repository owner")
	initCmd.Flags().String("mirror-repo", "", "Remote mirror repository name")
	initCmd.Flags().String("mirror-branch", "main", "Remote mirror branch")
	initCmd.Flags().String("mirror-token", "", "Remote mirror access token")
	initCmd.Flags().String("relay-dsn", "", "Directory relay Postgres DSN")
	initCmd.Flags().String("relay-vault-id", "", "Directory relay vault id (defaults to the vault path)")
	initCmd.Flags().String("relay-device-name", "", "Directory relay device name")
	_ = initCmd.MarkFlagRequired("key")
}

func runInit(cmd *cobra.Command, args []string) error {
	apiAddr, _ := cmd.Root().PersistentFlags().GetString("api-addr")
	key, _ := cmd.Flags().GetString("key")
	owner, _ := cmd.Flags().GetString("mirror-owner")
	repo, _ := cmd.Flags().GetString("mirror-repo")
	branch, _ := cmd.Flags().GetString("mirror-branch")
	token, _ := cmd.Flags().GetString("mirror-token")
	relayDSN, _ := cmd.Flags().GetString("relay-dsn")
	relayVaultID, _ := cmd.Flags().GetString("relay-vault-id")
	relayDeviceName, _ := cmd.Flags().GetString("relay-device-name")

	body := map[string]any{
		"vault_path":     args[0],
		"encryption_key": []byte(key),
	}
	if owner != "" && repo != "" {
		body["mirror"] = map[string]string{
			"owner":  owner,
			"repo":   repo,
			"branch": branch,
			"token":  token,
		}
	}
	if relayDSN != "" {
		body["relay"] = map[string]string{
			"dsn":         relayDSN,
			"vault_id":    relayVaultID,
			"device_name": relayDeviceName,
		}
	}

	if _, err := newAPIClient(apiAddr).post("/initialize_sync", body); err != nil {
		return err
	}
	fmt.Printf("vault %s initialized\n", args[0])
	return nil
}
