package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vidtranslate/internal/api"
	"vidtranslate/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		lang          string
		preserveVoice bool
		wait          bool
		jsonOutput    bool
		pollInterval  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit <video>",
		Short: "Submit a video for translation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := filepath.Abs(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve source path: %w", err)
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			base, _ := ctx.baseURL()

			job, err := client.Submit(cmd.Context(), api.SubmitRequest{
				SourcePath:     source,
				TargetLanguage: lang,
				PreserveVoice:  preserveVoice,
			})
			if err != nil {
				return wrapDaemonError(err, base)
			}

			out := cmd.OutOrStdout()
			if !wait {
				if jsonOutput {
					return writeJSON(cmd, job)
				}
				fmt.Fprintf(out, "Submitted job %s (%s -> %s)\n", job.ID, job.SourceName, job.TargetLanguage)
				return nil
			}

			if !jsonOutput {
				fmt.Fprintf(out, "Submitted job %s\n", job.ID)
			}
			final, err := waitForJob(cmd.Context(), client, job.ID, pollInterval, progressWriter(out, jsonOutput))
			if err != nil {
				return wrapDaemonError(err, base)
			}
			if jsonOutput {
				if err := writeJSON(cmd, final); err != nil {
					return err
				}
			} else {
				printJobDetail(out, final, shouldColorize(out))
			}
			if final.Status == string(queue.StatusFailed) {
				return errors.New("job failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Target language (name or ISO code)")
	cmd.Flags().BoolVar(&preserveVoice, "preserve-voice", false, "Clone the speaker's voice for the translated audio")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Wait for the job to finish")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 2*time.Second, "Polling interval while waiting")
	_ = cmd.MarkFlagRequired("lang")
	return cmd
}

// progressWriter returns the callback used while polling. Terminals get an
// in-place line; other writers get one line per change.
func progressWriter(out io.Writer, quiet bool) func(api.JobReport) {
	if quiet {
		return func(api.JobReport) {}
	}
	tty := shouldColorize(out)
	var last string
	return func(job api.JobReport) {
		line := progressLine(job)
		if line == last {
			return
		}
		last = line
		if tty {
			fmt.Fprintf(out, "\r\x1b[2K%s", line)
			if job.Status == string(queue.StatusSucceeded) || job.Status == string(queue.StatusFailed) {
				fmt.Fprintln(out)
			}
			return
		}
		fmt.Fprintln(out, line)
	}
}

func waitForJob(ctx context.Context, client *api.Client, id string, interval time.Duration, progress func(api.JobReport)) (api.JobReport, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := client.Job(ctx, id)
		if err != nil {
			return api.JobReport{}, err
		}
		progress(job)
		switch job.Status {
		case string(queue.StatusSucceeded), string(queue.StatusFailed):
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the progress or result of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			base, _ := ctx.baseURL()
			job, err := client.Job(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return wrapDaemonError(err, base)
			}
			if jsonOutput {
				return writeJSON(cmd, job)
			}
			out := cmd.OutOrStdout()
			printJobDetail(out, job, shouldColorize(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printJobDetail(out io.Writer, job api.JobReport, colorize bool) {
	for _, line := range renderSectionHeader("Job "+job.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(job.Status), job.Status, colorize))
	if job.SourceName != "" {
		fmt.Fprintln(out, renderStatusLine("Source", statusInfo, job.SourceName, colorize))
	}
	target := job.TargetLanguage
	if job.PreserveVoice {
		target += " (preserve voice)"
	}
	fmt.Fprintln(out, renderStatusLine("Target", statusInfo, target, colorize))

	switch job.Status {
	case string(queue.StatusRunning):
		fmt.Fprintln(out, renderStatusLine("Progress", statusWarn, progressLine(job), colorize))
	case string(queue.StatusFailed):
		if job.Error != nil {
			message := job.Error.Message
			if job.Error.Stage != "" {
				message = fmt.Sprintf("%s: %s", job.Error.Stage, message)
			}
			fmt.Fprintln(out, renderStatusLine("Error", statusError, message, colorize))
		}
	case string(queue.StatusSucceeded):
		if res := job.Result; res != nil {
			fmt.Fprintln(out, renderStatusLine("Output", statusOK, res.FileName, colorize))
			if res.SourceLanguage != "" {
				fmt.Fprintln(out, renderStatusLine("Source language", statusInfo, res.SourceLanguage, colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Segments", statusInfo, strconv.Itoa(res.SegmentCount), colorize))
			fmt.Fprintln(out, renderStatusLine("Voice cloned", statusInfo, yesNo(res.VoiceCloned), colorize))
			if res.Download != nil {
				fmt.Fprintln(out, renderStatusLine("Download", statusOK, res.Download.URL, colorize))
				fmt.Fprintln(out, renderStatusLine("Link expires", statusInfo, res.Download.ExpiresAt, colorize))
			}
		}
	}

	if len(job.StageResults) == 0 {
		return
	}
	rows := make([][]string, 0, len(job.StageResults))
	for _, r := range job.StageResults {
		status := r.Status
		if r.Soft {
			status += " (soft)"
		}
		rows = append(rows, []string{r.Stage, status, formatMillis(r.DurationMs), r.Error})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Stage", "Result", "Duration", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
}

func formatMillis(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(100 * time.Millisecond).String()
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List translation jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range statuses {
				if _, ok := queue.ParseStatus(s); !ok {
					return fmt.Errorf("unknown status %q", s)
				}
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			base, _ := ctx.baseURL()
			jobs, err := client.Jobs(cmd.Context(), statuses...)
			if err != nil {
				return wrapDaemonError(err, base)
			}
			if jsonOutput {
				return writeJSON(cmd, jobs)
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				percent := ""
				if job.Percent != nil {
					percent = fmt.Sprintf("%d%%", *job.Percent)
				}
				rows = append(rows, []string{job.ID, job.Status, job.TargetLanguage, job.Stage, percent, job.SourceName, job.CreatedAt})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Status", "Lang", "Stage", "Progress", "Source", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (queued, running, succeeded, failed)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Remove a finished job and its delivered output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			base, _ := ctx.baseURL()
			id := strings.TrimSpace(args[0])
			if err := client.Remove(cmd.Context(), id); err != nil {
				return wrapDaemonError(err, base)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed job %s\n", id)
			return nil
		},
	}
}
