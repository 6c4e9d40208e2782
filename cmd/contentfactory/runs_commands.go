package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"contentfactory/internal/api"
	"contentfactory/internal/daemonrun"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/runaccess"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List and manage pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must be >= 0")
			}
			return ctx.withAccess(cmd.Context(), func(access runaccess.Access) error {
				runs, err := access.ListRuns(cmd.Context(), limit, statuses)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.RunListResponse{Runs: runs})
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs found")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]string{"ID", "Type", "Trigger", "Status", "Progress", "Stage", "Started"},
					runRows(runs),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	cmd.AddCommand(newResumeCommand(ctx))
	cmd.AddCommand(newCancelCommand(ctx))
	cmd.AddCommand(newExpireCommand(ctx))
	return cmd
}

func runRows(runs []api.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.PipelineType,
			run.TriggerType,
			run.Status,
			fmt.Sprintf("%d/%d", run.Progress.Cursor, run.Progress.Total),
			run.CurrentStage,
			run.StartedAt,
		})
	}
	return rows
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var interrupted, asJSON bool
	cmd := &cobra.Command{
		Use:   "resume [RUN_ID]",
		Short: "Resume a run left running by a crash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interrupted == (len(args) == 1) {
				return fmt.Errorf("pass either a run id or --interrupted")
			}
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				if interrupted {
					results, err := rt.Orchestrator.ResumeInterrupted(cmd.Context())
					if emitErr := emitRunResults(cmd, results, asJSON); emitErr != nil {
						return emitErr
					}
					return err
				}
				res, err := rt.Orchestrator.Resume(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				return emitRunResult(cmd, res, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&interrupted, "interrupted", false, "Resume every interrupted run")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	var reason string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "cancel RUN_ID",
		Short: "Fail a run and expire its pending approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				res, err := rt.Orchestrator.CancelRun(cmd.Context(), strings.TrimSpace(args[0]), reason)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, toRunResultJSON(res))
				}
				printRunResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "cancelled by operator", "Reason recorded on the run")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newExpireCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Expire approvals older than workflow.approval_timeout_hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				n, err := rt.Orchestrator.ExpireStaleApprovals(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Expired %d approvals\n", n)
				return nil
			})
		},
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show a run with its logs and approvals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withAccess(cmd.Context(), func(access runaccess.Access) error {
				detail, err := access.DescribeRun(cmd.Context(), id)
				if err != nil {
					return err
				}
				if detail == nil {
					return &pipeline.RecordNotFoundError{Kind: "Pipeline run", ID: id}
				}
				if asJSON {
					return writeJSON(cmd, detail)
				}
				printRunDetail(cmd.OutOrStdout(), detail)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printRunDetail(out io.Writer, detail *api.RunDetail) {
	run := detail.Run
	fmt.Fprintf(out, "Run %s (%s, %s)\n", run.ID, run.PipelineType, run.TriggerType)
	fmt.Fprintf(out, "  Status:     %s\n", run.Status)
	fmt.Fprintf(out, "  Progress:   %d/%d (%.0f%%)\n", run.Progress.Cursor, run.Progress.Total, run.Progress.Percent)
	if len(run.Order) > 0 {
		fmt.Fprintf(out, "  Order:      %s\n", strings.Join(run.Order, " -> "))
	}
	if len(run.StagesCompleted) > 0 {
		fmt.Fprintf(out, "  Completed:  %s\n", strings.Join(run.StagesCompleted, ", "))
	}
	if len(run.StagesFailed) > 0 {
		fmt.Fprintf(out, "  Failed:     %s\n", strings.Join(run.StagesFailed, ", "))
	}
	if run.RevisionCount > 0 {
		fmt.Fprintf(out, "  Revisions:  %d\n", run.RevisionCount)
	}
	if run.PendingApproval != "" {
		fmt.Fprintf(out, "  Awaiting:   %s\n", run.PendingApproval)
	}
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:      %s\n", run.ErrorMessage)
	}
	fmt.Fprintf(out, "  Started:    %s\n", run.StartedAt)
	if run.CompletedAt != "" {
		fmt.Fprintf(out, "  Finished:   %s\n", run.CompletedAt)
	}

	if len(detail.Approvals) > 0 {
		fmt.Fprintln(out)
		fmt.Fprint(out, renderTable([]string{"Approval", "Type", "Worker", "Status", "Decision", "Feedback"}, approvalRows(detail.Approvals, false), nil))
	}
	if len(detail.Logs) > 0 {
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(detail.Logs))
		for _, entry := range detail.Logs {
			rows = append(rows, []string{entry.Timestamp, entry.Level, entry.Worker, entry.Message})
		}
		fmt.Fprint(out, renderTable([]string{"Time", "Level", "Worker", "Message"}, rows, nil))
	}
}

func newApprovalsCommand(ctx *commandContext) *cobra.Command {
	var status string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "List approval checkpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(cmd.Context(), func(access runaccess.Access) error {
				approvals, err := access.ListApprovals(cmd.Context(), status)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, api.ApprovalListResponse{Approvals: approvals})
				}
				out := cmd.OutOrStdout()
				if len(approvals) == 0 {
					fmt.Fprintln(out, "No approvals found")
					return nil
				}
				fmt.Fprint(out, renderTable([]string{"Approval", "Run", "Type", "Worker", "Status", "Subject", "Created"}, approvalRows(approvals, true), nil))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "pending", "Filter by status (empty for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func approvalRows(approvals []api.Approval, withRun bool) [][]string {
	rows := make([][]string, 0, len(approvals))
	for _, a := range approvals {
		if withRun {
			rows = append(rows, []string{a.ID, a.RunID, a.Type, a.Worker, a.Status, a.RelatedTitle, a.CreatedAt})
			continue
		}
		rows = append(rows, []string{a.ID, a.Type, a.Worker, a.Status, a.Decision, a.Feedback})
	}
	return rows
}
