package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/brandstaetter/brandybox/internal/boxsdk"
	"github.com/brandstaetter/brandybox/internal/client"
	"github.com/brandstaetter/brandybox/internal/client/config"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show account and storage usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			configPath, _ := cmd.Flags().GetString("config")

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("not logged in, run %s first", cyan("brandybox login"))
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			sdk, err := boxsdk.New(client.ResolveBaseURL(cmd.Context(), cfg))
			if err != nil {
				return err
			}
			defer sdk.Close()

			tokens, err := sdk.Auth.Refresh(cmd.Context(), cfg.RefreshToken)
			if err != nil {
				return fmt.Errorf("session expired, run %s again: %w", cyan("brandybox login"), err)
			}
			sdk.SetAccessToken(tokens.AccessToken)

			cfg.RefreshToken = tokens.RefreshToken
			if err := cfg.Save(cfg.Path); err != nil {
				return err
			}

			info, err := sdk.Files.Storage(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Account:  %s\n", cfg.Email)
			fmt.Printf("Server:   %s\n", sdk.BaseURL())
			fmt.Printf("Folder:   %s\n", cfg.SyncDir)
			fmt.Printf("Storage:  %s of %s used\n",
				humanize.Bytes(uint64(info.UsedBytes)),
				humanize.Bytes(uint64(info.LimitBytes)),
			)
			return nil
		},
	}
}
