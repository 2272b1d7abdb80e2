package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/app"
	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/config"
	"github.com/spf13/cobra"
)

type contextKey string

const appKey contextKey = "app"

var rootCmd = &cobra.Command{
	Use:   "tomcatctl",
	Short: "tomcatctl provisions Apache Tomcat on remote servers over SSH",
	Long: `tomcatctl runs named workflows of host checks, installs and lifecycle
actions against a fleet of Linux servers over SSH, and reports the outcome
of every step on every server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		tomcatApp, err := app.New(cfg)
		if err != nil {
			return err
		}
		ctx := context.WithValue(cmd.Context(), appKey, tomcatApp)
		cmd.SetContext(ctx)

		return nil
	},
}

// Execute runs the root command. An interrupt cancels the command context so
// running workflows stop between steps.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", fmt.Sprintf("config file (default is $HOME/%s)", config.DefaultConfigFileName))
}

func getApp(cmd *cobra.Command) *app.App {
	if a, ok := cmd.Context().Value(appKey).(*app.App); ok {
		return a
	}
	return nil
}
