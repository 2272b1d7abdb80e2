package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MohammadGayasKhan/AgenticAiBot4Tomcat/internal/server"
	"github.com/spf13/cobra"
)

const pingTimeout = 15 * time.Second

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Verify connection to servers",
	Long:  `Try to connect to all configured servers and execute a simple command to verify accessibility.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tomcatApp := getApp(cmd)
		tomcatApp.Logger.Info("Starting connection verification")

		if len(tomcatApp.Config.Servers) == 0 {
			tomcatApp.Logger.Warn("No servers configured")
			return nil
		}

		names, err := cmd.Flags().GetStringSlice("server")
		if err != nil {
			return err
		}
		targets, err := tomcatApp.Config.Targets(names...)
		if err != nil {
			return err
		}

		if failed := verifyServers(cmd.Context(), tomcatApp.Logger, tomcatApp.Connector, targets); failed > 0 {
			return fmt.Errorf("%d of %d server(s) unreachable", failed, len(targets))
		}
		return nil
	},
}

// verifyServers opens a session to each target and runs a trivial command.
// It returns the number of servers that could not be verified.
func verifyServers(ctx context.Context, logger *slog.Logger, connector server.Connector, targets []server.Target) int {
	failed := 0
	for _, target := range targets {
		if !verifyServer(ctx, logger, connector, target) {
			failed++
		}
	}
	return failed
}

func verifyServer(ctx context.Context, logger *slog.Logger, connector server.Connector, target server.Target) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	logger.Info("Checking server", "name", target.ID(), "address", target.Address())
	conn, err := connector.Open(ctx, target)
	if err != nil {
		logger.Error("Verification failed", "server", target.ID(), "error", err)
		return false
	}
	defer conn.Close()

	output, err := conn.Run(ctx, "echo 'pong'", pingTimeout)
	if err != nil {
		logger.Error("Verification failed", "server", target.ID(), "error", err)
		return false
	}

	if strings.TrimSpace(output.Stdout) == "pong" {
		logger.Info("Verification successful", "server", target.ID())
	} else {
		logger.Warn("Verification partially successful (unexpected output)", "server", target.ID(), "output", strings.TrimSpace(output.Combined()))
	}
	return true
}

func init() {
	pingCmd.Flags().StringSlice("server", nil, "ping only the named servers (repeatable)")
	rootCmd.AddCommand(pingCmd)
}
