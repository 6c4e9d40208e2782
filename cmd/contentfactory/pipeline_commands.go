package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"contentfactory/internal/batch"
	"contentfactory/internal/daemonrun"
	"contentfactory/internal/healer"
	"contentfactory/internal/ipc"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/store"
)

// runFlags are shared by every pipeline command.
type runFlags struct {
	testMode bool
	async    bool
	json     bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.testMode, "test-mode", false, "Use stubbed external services")
	cmd.Flags().BoolVar(&f.async, "async", false, "Submit to the running daemon instead of running in-process")
	cmd.Flags().BoolVar(&f.json, "json", false, "Output as JSON")
}

func newPipelineCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newContentRunCommand(ctx),
		newPodcastCommand(ctx),
		newSEOCommand(ctx),
		newHealCommand(ctx),
		newBatchCommand(ctx),
		newPendingCommand(ctx),
	}
}

func newContentRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	var workers []string
	var topicID string
	var skipFailures bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the content pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.async {
				resp, err := ctx.apiClient().StartContent(cmd.Context(), ipc.ContentRequest{
					Workers:      workers,
					TestMode:     flags.testMode,
					SkipFailures: skipFailures,
					TopicID:      topicID,
				})
				if err != nil {
					return err
				}
				return emitAccepted(cmd, resp, flags.json)
			}
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				res, err := rt.Orchestrator.RunContentPipeline(cmd.Context(), pipeline.RunOptions{
					Workers:      workers,
					TestMode:     flags.testMode,
					SkipFailures: skipFailures,
					TopicID:      topicID,
					Trigger:      store.TriggerManual,
				})
				if err != nil {
					return err
				}
				return emitRunResult(cmd, res, flags.json)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringSliceVarP(&workers, "workers", "w", nil, "Workers to run (dependencies are added automatically)")
	cmd.Flags().StringVar(&topicID, "topic", "", "Topic id to write about (defaults to the next pending topic)")
	cmd.Flags().BoolVar(&skipFailures, "skip-failures", false, "Continue past failed workers")
	return cmd
}

func newPodcastCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "podcast",
		Short: "Produce a podcast episode from the latest published article",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.async {
				resp, err := ctx.apiClient().StartPodcast(cmd.Context(), ipc.PodcastRequest{TestMode: flags.testMode})
				if err != nil {
					return err
				}
				return emitAccepted(cmd, resp, flags.json)
			}
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				res, err := rt.Orchestrator.RunPodcastAutoPilot(cmd.Context(), pipeline.PodcastOptions{
					TestMode: flags.testMode,
					Trigger:  store.TriggerManual,
				})
				if err != nil {
					return err
				}
				return emitRunResult(cmd, res, flags.json)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newSEOCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	var limit, minScore int
	cmd := &cobra.Command{
		Use:   "seo",
		Short: "Re-optimize published articles with low SEO scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 || minScore < 0 || minScore > 100 {
				return fmt.Errorf("--limit must be >= 0 and --min-score within 0..100")
			}
			if flags.async {
				resp, err := ctx.apiClient().StartSEO(cmd.Context(), ipc.SEORequest{Limit: limit, MinScore: minScore, TestMode: flags.testMode})
				if err != nil {
					return err
				}
				return emitAccepted(cmd, resp, flags.json)
			}
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				res, err := rt.Orchestrator.RunSEOOptimizer(cmd.Context(), pipeline.SEOOptions{
					Limit:    limit,
					MinScore: minScore,
					TestMode: flags.testMode,
					Trigger:  store.TriggerManual,
				})
				if err != nil {
					return err
				}
				return emitRunResult(cmd, res, flags.json)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum articles to optimize (0 uses workflow.seo_limit)")
	cmd.Flags().IntVar(&minScore, "min-score", 0, "Optimize articles scoring below this (0 uses workflow.seo_min_score)")
	return cmd
}

func newHealCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	var checkAll, reportOnly bool
	cmd := &cobra.Command{
		Use:   "heal",
		Short: "Detect and repair inconsistent content records",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.async {
				resp, err := ctx.apiClient().StartHealer(cmd.Context(), ipc.HealerRequest{
					CheckAllRecords: checkAll,
					AutoFix:         !reportOnly,
					TestMode:        flags.testMode,
				})
				if err != nil {
					return err
				}
				return emitAccepted(cmd, resp, flags.json)
			}
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				report, err := rt.Healer.Run(cmd.Context(), healer.Options{
					CheckAllRecords: checkAll,
					AutoFix:         !reportOnly,
					TestMode:        flags.testMode,
					Trigger:         store.TriggerManual,
				})
				if err != nil {
					return err
				}
				if flags.json {
					return writeJSON(cmd, report)
				}
				printHealReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&checkAll, "all", false, "Scan every content piece instead of the most recent")
	cmd.Flags().BoolVar(&reportOnly, "report-only", false, "Report issues without repairing them")
	return cmd
}

func printHealReport(out io.Writer, report healer.Report) {
	fmt.Fprintf(out, "Healer run %s: scanned %d, found %d, fixed %d (%s)\n",
		report.RunID, report.Scanned, report.IssuesFound, report.IssuesFixed, report.Duration.Round(time.Millisecond))
	if report.DryRun {
		fmt.Fprintln(out, "Test mode: nothing was changed; the Action column lists planned repairs")
	}
	if len(report.Issues) > 0 {
		rows := make([][]string, 0, len(report.Issues))
		for _, issue := range report.Issues {
			rows = append(rows, []string{issue.ContentPieceID, string(issue.Kind), yesNo(issue.Fixed), issue.Action, issue.Error})
		}
		fmt.Fprint(out, renderTable([]string{"Content", "Issue", "Fixed", "Action", "Error"}, rows, nil))
	}
	for _, msg := range report.Errors {
		fmt.Fprintf(out, "  Error: %s\n", msg)
	}
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	var skipFailures bool
	cmd := &cobra.Command{
		Use:   "batch TOPIC_ID...",
		Short: "Write articles for several topics concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items := make([]batch.Item, 0, len(args))
			for _, id := range args {
				if id = strings.TrimSpace(id); id != "" {
					items = append(items, batch.Item{TopicID: id, TestMode: flags.testMode, SkipFailures: skipFailures})
				}
			}
			if len(items) == 0 {
				return fmt.Errorf("at least one topic id is required")
			}
			if flags.async {
				resp, err := ctx.apiClient().StartBatch(cmd.Context(), ipc.BatchRequest{Items: items})
				if err != nil {
					return err
				}
				return emitAccepted(cmd, resp, flags.json)
			}
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				return emitBatchSummary(cmd, rt.Batch.ProcessBatch(cmd.Context(), items), flags.json)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&skipFailures, "skip-failures", false, "Continue past failed workers")
	return cmd
}

func newPendingCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "Write articles for every pending topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.async {
				resp, err := ctx.apiClient().ProcessPending(cmd.Context(), ipc.PendingRequest{TestMode: flags.testMode})
				if err != nil {
					return err
				}
				return emitAccepted(cmd, resp, flags.json)
			}
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				summary, err := rt.Batch.ProcessAllPending(cmd.Context(), flags.testMode)
				if err != nil {
					return err
				}
				return emitBatchSummary(cmd, summary, flags.json)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func emitBatchSummary(cmd *cobra.Command, summary batch.Summary, asJSON bool) error {
	if asJSON {
		if err := writeJSON(cmd, summary); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Processed %d topics: %d succeeded, %d failed (%s)\n",
			summary.Processed, summary.Succeeded, summary.Failed, summary.Duration.Round(time.Millisecond))
		if len(summary.Results) > 0 {
			rows := make([][]string, 0, len(summary.Results))
			for _, res := range summary.Results {
				rows = append(rows, []string{
					res.TopicID,
					yesNo(res.Success),
					res.RunID,
					postID(res.HebrewPostID),
					postID(res.EnglishPostID),
					strings.Join(res.Errors, "; "),
				})
			}
			fmt.Fprint(out, renderTable([]string{"Topic", "OK", "Run", "Hebrew", "English", "Errors"}, rows, nil))
		}
	}
	if summary.Failed > 0 {
		return errRunFailed
	}
	return nil
}
