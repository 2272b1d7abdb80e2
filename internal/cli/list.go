package cli

import (
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered tools and their parameters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFlag(cmd)
		if err != nil {
			return err
		}
		return renderTools(cmd.OutOrStdout(), format, getApp(cmd).Registry.Tools())
	},
}

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List workflow definitions",
	Long:  `List the built-in workflows merged with the workflows section of the config file.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := outputFlag(cmd)
		if err != nil {
			return err
		}
		return renderWorkflows(cmd.OutOrStdout(), format, getApp(cmd).Workflows.Definitions())
	},
}

func outputFlag(cmd *cobra.Command) (outputFormat, error) {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return "", err
	}
	return parseOutputFormat(output)
}

func init() {
	for _, cmd := range []*cobra.Command{toolsCmd, workflowsCmd} {
		cmd.Flags().StringP("output", "o", string(outputText), "output format: text, yaml or json")
		rootCmd.AddCommand(cmd)
	}
}
