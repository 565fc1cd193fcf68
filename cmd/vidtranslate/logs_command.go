package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vidtranslate/internal/logging"
	"vidtranslate/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		jobID  string
		level  string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := logging.CurrentLogPath(cfg.Paths.LogDir)
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("no daemon log at %s; has the daemon been started?", path)
			}
			filter := logs.Filter{JobID: strings.TrimSpace(jobID), MinLevel: level}
			out := cmd.OutOrStdout()
			emit := func(line string) { fmt.Fprintln(out, line) }

			if !follow {
				result, err := logs.Tail(cmd.Context(), path, logs.TailOptions{Offset: -1, Limit: lines, Filter: filter})
				if err != nil {
					return err
				}
				for _, line := range result.Lines {
					emit(line)
				}
				return nil
			}

			return logs.Follow(cmd.Context(), path, lines, filter, 500*time.Millisecond, emit)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow the log as it grows")
	cmd.Flags().StringVar(&jobID, "job", "", "Only show lines for this job id")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level to show (debug, info, warn, error)")
	return cmd
}
