package cli

import (
	"context"
	"fmt"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/app"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/fleet"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/workflow"
	"github.com/spf13/cobra"
)

const defaultWorkflow = "install"

var runCmd = &cobra.Command{
	Use:   "run [workflow]",
	Short: "Run a workflow on the configured servers",
	Long: `Run a named workflow (install by default) on every configured server, or on
the servers selected with --server. Servers are processed in parallel and the
report lists every step of every server in a stable order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tomcatApp := getApp(cmd)

		name := defaultWorkflow
		if len(args) == 1 {
			name = args[0]
		}
		def, err := tomcatApp.Workflows.Lookup(name)
		if err != nil {
			return err
		}

		opts, err := readRunOptions(cmd)
		if err != nil {
			return err
		}
		return runWorkflow(cmd, tomcatApp, def, opts)
	},
}

type runOptions struct {
	servers   []string
	parallel  int
	format    outputFormat
	noHistory bool
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("server", nil, "run only on the named servers (repeatable)")
	cmd.Flags().Int("parallel", 0, "maximum number of servers processed at once (default from config)")
	cmd.Flags().StringP("output", "o", string(outputText), "report format: text, yaml or json")
	cmd.Flags().Bool("no-history", false, "do not record the run in the history database")
}

func readRunOptions(cmd *cobra.Command) (runOptions, error) {
	var opts runOptions
	var err error

	if opts.servers, err = cmd.Flags().GetStringSlice("server"); err != nil {
		return opts, err
	}
	if opts.parallel, err = cmd.Flags().GetInt("parallel"); err != nil {
		return opts, err
	}
	if opts.noHistory, err = cmd.Flags().GetBool("no-history"); err != nil {
		return opts, err
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return opts, err
	}
	opts.format, err = parseOutputFormat(output)
	return opts, err
}

// runWorkflow executes def across the selected servers, records the run and
// renders the report. It returns an error when any server failed.
func runWorkflow(cmd *cobra.Command, tomcatApp *app.App, def workflow.Definition, opts runOptions) error {
	targets, err := tomcatApp.Config.Targets(opts.servers...)
	if err != nil {
		return err
	}

	tomcatApp.Logger.Info("Starting run", "workflow", def.Name, "servers", len(targets))
	report, err := tomcatApp.Orchestrator(opts.parallel).Run(cmd.Context(), targets, def)
	if err != nil {
		return err
	}

	if !opts.noHistory {
		recordRun(cmd, tomcatApp, report)
	}

	if err := renderReport(cmd.OutOrStdout(), opts.format, report); err != nil {
		return err
	}
	if !report.OK() {
		return fmt.Errorf("workflow %s failed on %d of %d server(s)", def.Name, report.Summary.Failed, report.Summary.Total)
	}
	return nil
}

func recordRun(cmd *cobra.Command, tomcatApp *app.App, report *fleet.Report) {
	store, err := tomcatApp.OpenHistory()
	if err != nil {
		tomcatApp.Logger.Warn("Failed to open run history", "error", err)
		return
	}
	if store == nil {
		return
	}
	defer store.Close()

	if err := store.Save(context.WithoutCancel(cmd.Context()), report); err != nil {
		tomcatApp.Logger.Warn("Failed to record run", "run", report.RunID, "error", err)
		return
	}
	tomcatApp.Logger.Debug("Run recorded", "run", report.RunID)
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
