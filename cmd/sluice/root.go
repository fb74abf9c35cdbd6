package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/sluice/internal/config"
	"github.com/aretw0/sluice/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	v      = viper.New()
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sluice",
	Short: "Sluice runs resumable batch workflows",
	Long: `Sluice walks schedules: graphs of batch jobs, operators over typed variables
and conditional edges. Progress is saved after every step, so an interrupted
run picks up where it stopped.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		envFile, _ := cmd.Flags().GetString("env-file")

		loaded, err := config.Load(v, config.Options{ConfigFile: configFile, EnvFile: envFile})
		if err != nil {
			return err
		}
		level, err := logging.ParseLevel(loaded.LogLevel)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = logging.NewWriter(os.Stderr, level, loaded.LogFormat)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default ./sluice.yaml when present)")
	flags.String("env-file", "", "Env file loaded before the environment is read (default ./.env when present)")
	flags.String("dir", "", "Directory holding the schedule files")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")
	flags.String("redis-url", "", "Keep schedules, locks and abort markers in Redis")
	flags.String("jobs", "", "Job registry file (YAML or JSON)")

	for key, flag := range map[string]string{
		"dir":        "dir",
		"log_level":  "log-level",
		"log_format": "log-format",
		"redis_url":  "redis-url",
		"jobs_file":  "jobs",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
}
