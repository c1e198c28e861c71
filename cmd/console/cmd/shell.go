package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"supportconsole/internal/config"
	"supportconsole/internal/console"
	"supportconsole/internal/session"

	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive console (default)",
	Long: `Start the interactive console.

Pick an environment, enter your operator name and choose actions from the
menu. Production requires typing PRODUCTION before the session opens and
again before every change.`,
	Args: cobra.NoArgs,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, _ []string) error {
	d, err := setup(cmd)
	if err != nil {
		console.NewRenderer(cmd.ErrOrStderr()).Error(err)
		return err
	}
	defer d.close()

	prompter, err := console.NewPrompter()
	if err != nil {
		return err
	}
	defer prompter.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shell := console.NewShell(d.cfg, prompter, console.NewRenderer(prompter.Stdout()), d.connector(),
		console.WithLogger(d.logger),
		console.WithMetrics(d.metrics),
	)
	return shell.Run(ctx)
}

// connector opens a session and a job runner for the chosen environment.
func (d *deps) connector() console.Connector {
	return func(ctx context.Context, env config.Environment, operator string) (*console.Connection, error) {
		sess, err := session.Open(ctx, d.cfg, env, operator, session.WithLogger(d.logger))
		if err != nil {
			return nil, err
		}

		runner, err := d.newRunner()
		if err != nil {
			sess.Close()
			return nil, err
		}

		tables, err := sess.TableCount(ctx)
		if err != nil {
			d.logger.Warn("failed to count tables", "error", err)
		}

		return &console.Connection{
			Repo:      sess.Store(),
			Runner:    runner,
			Namespace: d.cfg.Namespace(env),
			Database:  sess.DatabaseName(),
			Tables:    tables,
			Close:     sess.Close,
		}, nil
	}
}
