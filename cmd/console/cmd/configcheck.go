package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"supportconsole/internal/config"
	"supportconsole/internal/console"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the console configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the environment file without connecting",
	Long: `Load the environment file and the process environment and report every
missing or invalid key. Secrets are never printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(viper.GetString("env_file"))
		if err != nil {
			var missing *config.MissingKeysError
			if errors.As(err, &missing) {
				console.NewRenderer(cmd.OutOrStdout()).Error(err)
			}
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Configuration OK")
		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintf(w, "Cluster\t%s\n", cfg.Cluster.Server)
		for _, env := range config.Environments {
			ec, _ := cfg.Environment(env)
			fmt.Fprintf(w, "%s\tnamespace %s, pod %s:%d, database %s as %s\n",
				env, ec.Namespace, ec.PodName, ec.PodPort, ec.DBName, ec.DBUser)
		}
		fmt.Fprintf(w, "Job image\t%s\n", cfg.Jobs.Image)
		fmt.Fprintf(w, "Job timeout\t%s (poll every %s)\n", cfg.Jobs.Timeout, cfg.Jobs.PollInterval)
		return w.Flush()
	},
}

func init() {
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}
