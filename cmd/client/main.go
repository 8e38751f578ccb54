package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/brandstaetter/brandybox/internal/client"
	"github.com/brandstaetter/brandybox/internal/client/config"
	"github.com/brandstaetter/brandybox/internal/utils"
	"github.com/brandstaetter/brandybox/internal/version"
)

const configFileName = "config"

var (
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
	cyan  = color.New(color.FgHiCyan).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:     "brandybox",
	Short:   "BrandyBox sync client",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFromViper()
		if err := cfg.Validate(); err != nil {
			return err
		}

		cmd.SilenceUsage = true
		showHeader()

		daemon, err := client.NewDaemon(cfg)
		if err != nil {
			return err
		}

		go drainEvents(cmd.Context(), daemon.Events())

		defer slog.Info("Bye!")
		return daemon.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("email", "e", "", "Email of the BrandyBox account")
	rootCmd.Flags().StringP("dir", "d", config.DefaultSyncDir, "Folder to keep in sync")
	rootCmd.Flags().StringP("server", "s", "", "Server URL (overrides automatic resolution)")
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "BrandyBox config file")
}

func main() {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	logFile := config.LogPath(config.DefaultConfigPath)
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flag("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		viper.AddConfigPath(config.DefaultDir)
		viper.SetConfigName(configFileName)
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("email", cmd.Flags().Lookup("email"))
	viper.BindPFlag("sync_dir", cmd.Flags().Lookup("dir"))
	viper.BindPFlag("server_url", cmd.Flags().Lookup("server"))

	viper.SetEnvPrefix("BRANDYBOX")
	viper.AutomaticEnv()

	return nil
}

func configFromViper() *config.Config {
	cfg := &config.Config{
		Path:         viper.ConfigFileUsed(),
		Email:        viper.GetString("email"),
		SyncDir:      viper.GetString("sync_dir"),
		ServerURL:    viper.GetString("server_url"),
		LanURL:       viper.GetString("lan_url"),
		RefreshToken: viper.GetString("refresh_token"),
	}
	cfg.Sync = config.SyncConfig{
		IntervalSecs:     viper.GetInt("sync.interval_secs"),
		RetrySecs:        viper.GetInt("sync.retry_secs"),
		Workers:          viper.GetInt("sync.workers"),
		RequestsPerSec:   viper.GetFloat64("sync.requests_per_sec"),
		MaxRemoteDeletes: viper.GetInt("sync.max_remote_deletes"),
	}
	if cfg.Path == "" {
		cfg.Path = config.DefaultConfigPath
	}
	return cfg
}

// drainEvents keeps the daemon's event buffer moving and surfaces warnings
// on the terminal. Detailed logging already happens inside the engine.
func drainEvents(ctx context.Context, events <-chan client.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			switch e.Type {
			case client.EventComplete:
				fmt.Printf("%s downloaded %d, uploaded %d\n", green("Synced:"), e.Downloaded, e.Uploaded)
			case client.EventWarnings:
				fmt.Printf("%s %d files skipped (e.g. %v)\n", red("Warning:"), e.Skipped, e.SamplePaths)
			}
		}
	}
}

func showHeader() {
	fmt.Printf("%s %s\n", cyan("BrandyBox"), version.Short())
}
