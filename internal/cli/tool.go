package cli

import (
	"fmt"
	"strings"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/workflow"
	"github.com/spf13/cobra"
)

var toolCmd = &cobra.Command{
	Use:   "tool <name>",
	Short: "Run a single tool on the configured servers",
	Long: `Run one registered tool as a single step workflow. Parameters are passed
with --param key=value and override server params from the config file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tomcatApp := getApp(cmd)

		tool, err := tomcatApp.Registry.Lookup(args[0])
		if err != nil {
			return err
		}

		raw, err := cmd.Flags().GetStringArray("param")
		if err != nil {
			return err
		}
		params, err := parseParams(raw)
		if err != nil {
			return err
		}

		opts, err := readRunOptions(cmd)
		if err != nil {
			return err
		}
		return runWorkflow(cmd, tomcatApp, singleToolWorkflow(tool.Name(), params), opts)
	},
}

// singleToolWorkflow wraps one tool in a workflow. The invocation params go
// into the step so they take precedence over workflow params.
func singleToolWorkflow(tool string, params map[string]any) workflow.Definition {
	return workflow.Definition{
		Name:        tool,
		Description: "single tool invocation",
		Steps: []workflow.Step{
			{Name: tool, Tool: tool, Policy: workflow.PolicyHard, Params: params},
		},
	}
}

// parseParams turns key=value pairs into a raw param map. Values stay strings
// and are coerced against the tool schema.
func parseParams(pairs []string) (map[string]any, error) {
	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q: expected key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}

func init() {
	addRunFlags(toolCmd)
	toolCmd.Flags().StringArrayP("param", "p", nil, "tool parameter as key=value (repeatable)")
	rootCmd.AddCommand(toolCmd)
}
