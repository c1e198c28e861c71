package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "wgfctl",
	Short: "wgfctl is the WeGetFunded support console",
	Long: `wgfctl is the interactive support console for the WeGetFunded platform.

It attaches to the staging or production database through a kubectl
port-forward, and runs the backend calls it needs as one-shot Kubernetes Jobs
inside the cluster. Every change is previewed and confirmed before it is
applied, and recorded in the admin audit log.

Common workflows:

  Start the interactive console:
    wgfctl

  Check the environment file:
    wgfctl config check --env-file .env

  Show the last audit entries:
    wgfctl audit recent --env staging --limit 20

  Run a diagnostic job in the cluster:
    wgfctl job run --env staging -- curl -s http://staging-order.staging.svc/health

Configuration:
  Cluster and database settings are read from the .env file (see --env-file)
  or the process environment. Flags can also be set with WGF_ variables:
    WGF_ENV_FILE       path of the environment file (default: .env)
    WGF_LOG_LEVEL      debug, info, warn or error (default: warn)
    WGF_METRICS_ADDR   address of the Prometheus /metrics listener`,
	SilenceUsage: true,
	RunE:         runShell,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	// Read environment variables that match "WGF_VARNAME"
	viper.SetEnvPrefix("WGF")
	viper.AutomaticEnv()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("env-file", ".env", "environment file with cluster and database settings")
	viper.BindPFlag("env_file", rootCmd.PersistentFlags().Lookup("env-file"))

	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address (disabled when empty)")
	viper.BindPFlag("metrics_addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))
}
