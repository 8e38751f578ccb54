package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/brandstaetter/brandybox/internal/boxsdk"
	"github.com/brandstaetter/brandybox/internal/client"
	"github.com/brandstaetter/brandybox/internal/client/config"
)

func init() {
	rootCmd.AddCommand(newLoginCmd())
}

func newLoginCmd() *cobra.Command {
	var email string
	var syncDir string
	var serverURL string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to BrandyBox and store credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			configPath, _ := cmd.Flags().GetString("config")

			if cfg, err := config.Load(configPath); err == nil && cfg.RefreshToken != "" {
				fmt.Printf("%s as %s\n", green("Already logged in"), cfg.Email)
				return nil
			}

			if email == "" {
				var err error
				if email, err = promptLine("Email: "); err != nil {
					return err
				}
			}
			password, err := promptPassword("Password: ")
			if err != nil {
				return err
			}

			cfg := &config.Config{
				Path:      configPath,
				Email:     email,
				SyncDir:   syncDir,
				ServerURL: serverURL,
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			sdk, err := boxsdk.New(client.ResolveBaseURL(cmd.Context(), cfg))
			if err != nil {
				return err
			}
			defer sdk.Close()

			tokens, err := sdk.Auth.Login(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			cfg.RefreshToken = tokens.RefreshToken
			if err := cfg.Save(configPath); err != nil {
				return err
			}

			fmt.Printf("%s Credentials saved to %s\n", green("Logged in."), configPath)
			fmt.Printf("Syncing %s, run %s to start\n", cfg.SyncDir, cyan("brandybox"))
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Email of the BrandyBox account")
	cmd.Flags().StringVarP(&syncDir, "dir", "d", config.DefaultSyncDir, "Folder to keep in sync")
	cmd.Flags().StringVarP(&serverURL, "server", "s", "", "Server URL (overrides automatic resolution)")
	return cmd
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return promptLine("")
	}
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(password), nil
}
