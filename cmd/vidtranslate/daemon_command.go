package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vidtranslate/internal/api"
	"vidtranslate/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the vidtranslate daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:      logLevel,
				Development:   development,
				SkipPreflight: skipPreflight,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Enable development logging")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip startup preflight checks")

	cmd.AddCommand(newDaemonStatusCommand(ctx))
	return cmd
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue and dependency status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			base, _ := ctx.baseURL()
			status, err := client.Status(cmd.Context())
			if err != nil {
				return wrapDaemonError(err, base)
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range daemonStatusLines(status, base, colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func daemonStatusLines(status api.DaemonStatus, base string, colorize bool) []string {
	var lines []string
	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	if status.Running {
		lines = append(lines, renderStatusLine("Daemon", statusOK, "Running (pid "+strconv.Itoa(status.PID)+")", colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusError, "Not running", colorize))
	}
	lines = append(lines, renderStatusLine("API", statusInfo, base, colorize))
	lines = append(lines, renderStatusLine("Queue DB", statusInfo, status.QueueDBPath, colorize))
	lines = append(lines, renderStatusLine("Delivery", statusInfo, status.DeliveryDir, colorize))

	wf := status.Workflow
	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Workflow", colorize)...)
	active := "idle"
	if len(wf.ActiveJobs) > 0 {
		active = strings.Join(wf.ActiveJobs, ", ")
	}
	lines = append(lines, renderStatusLine("Workers", statusInfo, fmt.Sprintf("%d (active: %s)", wf.Workers, active), colorize))
	lines = append(lines, renderStatusLine("Queue", statusInfo, formatQueueStats(wf.QueueStats), colorize))
	if wf.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusWarn, wf.LastError, colorize))
	}
	if len(wf.StageHealth) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Stages", colorize)...)
		lines = append(lines, stageHealthLines(wf.StageHealth, colorize)...)
	}
	if len(status.Dependencies) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
		lines = append(lines, dependencyLines(status.Dependencies, colorize)...)
	}
	return lines
}

func formatQueueStats(stats map[string]int) string {
	if len(stats) == 0 {
		return "empty"
	}
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, stats[k]))
	}
	return strings.Join(parts, " ")
}
