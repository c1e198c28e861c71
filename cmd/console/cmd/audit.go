package cmd

import (
	"supportconsole/internal/config"
	"supportconsole/internal/console"
	"supportconsole/internal/session"

	"github.com/spf13/cobra"
)

// defaultOperator tags sessions opened by non-interactive commands.
const defaultOperator = "wgfctl"

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the admin audit log",
}

var auditRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the most recent audit records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		envName, _ := cmd.Flags().GetString("env")
		limit, _ := cmd.Flags().GetInt("limit")

		env, err := config.ParseEnvironment(envName)
		if err != nil {
			return err
		}

		d, err := setup(cmd)
		if err != nil {
			return err
		}
		defer d.close()

		operator := d.cfg.Operator
		if operator == "" {
			operator = defaultOperator
		}
		sess, err := session.Open(cmd.Context(), d.cfg, env, operator, session.WithLogger(d.logger))
		if err != nil {
			console.NewRenderer(cmd.ErrOrStderr()).Error(err)
			return err
		}
		defer sess.Close()

		recs, err := sess.Store().GetRecentAuditRecords(cmd.Context(), limit)
		if err != nil {
			return err
		}
		console.NewRenderer(cmd.OutOrStdout()).AuditRecords(recs)
		return nil
	},
}

func init() {
	auditRecentCmd.Flags().String("env", string(config.Staging), "environment to read (staging, production)")
	auditRecentCmd.Flags().Int("limit", 20, "number of records to show")

	auditCmd.AddCommand(auditRecentCmd)
	rootCmd.AddCommand(auditCmd)
}
