// -- cmd/root.go --
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tastegraph/internal/config"
	"github.com/xkilldash9x/tastegraph/internal/observability"
)

var (
	cfgFile string

	// appConfig is the resolved configuration, populated by the root
	// PersistentPreRunE before any subcommand runs.
	appConfig *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

// newRootCmd builds the root command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tastegraph",
		Short: "Tastegraph records food interactions in a property graph and serves recipe recommendations.",
		// Version is dynamically set at build time. See cmd/version.go.
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// This function runs before any command, setting up config and logging.
			if err := initializeConfig(cmd); err != nil {
				return err
			}

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				// Initialize a fallback logger so the error itself gets reported.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "tastegraph"})
				return err
			}
			appConfig = cfg

			observability.InitializeLogger(cfg.Logger())

			observability.GetLogger().Debug("Starting tastegraph",
				zap.String("version", Version),
				zap.String("backend", cfg.Graph().Backend),
				zap.String("graph_id", cfg.Graph().GraphID))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	cmd.PersistentFlags().String("backend", "", "graph backend: remote or memory")
	cmd.PersistentFlags().String("graph-id", "", "graph to operate on")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	cmd.AddCommand(newInitCmd(), newRecordCmd(), newFavoritesCmd(), newRecommendCmd())
	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	defer observability.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// initializeConfig reads in config file and ENV variables if set.
func initializeConfig(cmd *cobra.Command) error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("TASTEGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Command-line flags take precedence over file and env values.
	if err := v.BindPFlag("graph.backend", cmd.Flags().Lookup("backend")); err != nil {
		return err
	}
	if err := v.BindPFlag("graph.graph_id", cmd.Flags().Lookup("graph-id")); err != nil {
		return err
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}
	return nil
}
