package cli

import (
	"errors"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/history"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded workflow runs",
	Long:  `List recent workflow runs, or show the full report of one run with --run.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tomcatApp := getApp(cmd)

		format, err := outputFlag(cmd)
		if err != nil {
			return err
		}
		runID, err := cmd.Flags().GetString("run")
		if err != nil {
			return err
		}
		limit, err := cmd.Flags().GetInt("limit")
		if err != nil {
			return err
		}

		store, err := tomcatApp.OpenHistory()
		if err != nil {
			return err
		}
		if store == nil {
			return errors.New("run history is disabled in the config")
		}
		defer store.Close()

		if runID != "" {
			report, err := store.Get(cmd.Context(), runID)
			if err != nil {
				return err
			}
			return renderReport(cmd.OutOrStdout(), format, report)
		}

		runs, err := store.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		return renderRuns(cmd.OutOrStdout(), format, runs)
	},
}

func init() {
	historyCmd.Flags().String("run", "", "show the report of the run with this ID")
	historyCmd.Flags().Int("limit", history.DefaultListLimit, "maximum number of runs to list")
	historyCmd.Flags().StringP("output", "o", string(outputText), "output format: text, yaml or json")
	rootCmd.AddCommand(historyCmd)
}
