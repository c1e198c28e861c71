package cmd

import (
	"errors"
	"fmt"
	"strings"

	"supportconsole/internal/cluster"
	"supportconsole/internal/config"
	"supportconsole/internal/console"

	"github.com/spf13/cobra"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Run or render one-shot cluster jobs",
}

var jobRunCmd = &cobra.Command{
	Use:   "run [flags] -- COMMAND [ARGS...]",
	Short: "Run a command as a one-shot Job and print its result",
	Long: `Run a command as a one-shot Kubernetes Job in the environment's namespace,
wait for it to finish and print its logs.

The Job is never retried and is deleted once its logs are collected.

Example:
  wgfctl job run --env staging -- curl -s http://staging-order.staging.svc/health`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envName, _ := cmd.Flags().GetString("env")
		image, _ := cmd.Flags().GetString("image")
		prefix, _ := cmd.Flags().GetString("name-prefix")
		confirm, _ := cmd.Flags().GetString("confirm")

		env, err := config.ParseEnvironment(envName)
		if err != nil {
			return err
		}
		if env.IsProduction() && confirm != console.ProductionPhrase {
			return fmt.Errorf("running a job in production requires --confirm %s", console.ProductionPhrase)
		}

		d, err := setup(cmd)
		if err != nil {
			return err
		}
		defer d.close()

		runner, err := d.newRunner()
		if err != nil {
			return err
		}
		if image == "" {
			image = d.cfg.Jobs.Image
		}

		spec := cluster.JobSpec{
			Name:      cluster.NewJobName(prefix),
			Namespace: d.cfg.Namespace(env),
			Image:     image,
			Command:   args,
		}
		res := runner.Run(cmd.Context(), spec)

		out := console.NewRenderer(cmd.OutOrStdout())
		out.Job(strings.Join(args, " "), res)
		if res.Success {
			fmt.Fprintln(cmd.OutOrStdout(), res.Logs)
			return nil
		}
		return errors.New(res.FailureReason)
	},
}

var jobManifestCmd = &cobra.Command{
	Use:   "manifest [flags] -- COMMAND [ARGS...]",
	Short: "Print the Job manifest a command would run as",
	Long: `Print the YAML manifest of the Job that would run COMMAND, without
contacting the cluster. Useful for reviewing a call or applying it by hand.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace, _ := cmd.Flags().GetString("namespace")
		image, _ := cmd.Flags().GetString("image")
		prefix, _ := cmd.Flags().GetString("name-prefix")

		manifest, err := cluster.RenderManifest(cluster.JobSpec{
			Name:      cluster.NewJobName(prefix),
			Namespace: namespace,
			Image:     image,
			Command:   args,
		})
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(manifest)
		return err
	},
}

func init() {
	jobRunCmd.Flags().String("env", string(config.Staging), "environment whose namespace runs the job (staging, production)")
	jobRunCmd.Flags().String("image", "", "container image (default: JOB_IMAGE)")
	jobRunCmd.Flags().String("name-prefix", "support-manual", "prefix of the generated job name")
	jobRunCmd.Flags().String("confirm", "", "must be PRODUCTION to run in production")

	jobManifestCmd.Flags().String("namespace", "default", "namespace of the job")
	jobManifestCmd.Flags().String("image", config.DefaultJobImage, "container image")
	jobManifestCmd.Flags().String("name-prefix", "support-manual", "prefix of the generated job name")

	jobCmd.AddCommand(jobRunCmd)
	jobCmd.AddCommand(jobManifestCmd)
	rootCmd.AddCommand(jobCmd)
}
