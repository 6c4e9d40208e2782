package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"contentfactory/internal/approval"
	"contentfactory/internal/daemonrun"
	"contentfactory/internal/ipc"
)

func newDecisionCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newDecisionCommand(ctx, "approve", approval.DecisionApprove, "Approve a pending approval and resume its run"),
		newDecisionCommand(ctx, "reject", approval.DecisionReject, "Reject a pending approval and fail its run"),
		newDecisionCommand(ctx, "revise", approval.DecisionRequestRevision, "Request a revision and rewind the run"),
	}
}

func newDecisionCommand(ctx *commandContext, use string, kind approval.DecisionKind, short string) *cobra.Command {
	var flags runFlags
	var userID, feedback string
	cmd := &cobra.Command{
		Use:   use + " APPROVAL_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if kind == approval.DecisionRequestRevision && strings.TrimSpace(feedback) == "" {
				return fmt.Errorf("--feedback is required when requesting a revision")
			}
			user := strings.TrimSpace(userID)
			if user == "" {
				user = "cli:" + os.Getenv("USER")
			}
			if flags.async {
				resp, err := ctx.apiClient().Decide(cmd.Context(), id, ipc.DecisionRequest{
					Decision: string(kind),
					UserID:   user,
					Feedback: feedback,
				})
				if err != nil {
					return err
				}
				return emitAccepted(cmd, resp, flags.json)
			}
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				res, err := rt.Orchestrator.ApplyDecision(cmd.Context(), id, approval.Decision{
					Kind:     kind,
					UserID:   user,
					Feedback: feedback,
				})
				if err != nil {
					return err
				}
				return emitRunResult(cmd, res, flags.json)
			})
		},
	}
	cmd.Flags().BoolVar(&flags.async, "async", false, "Send the decision to the running daemon")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&userID, "user", "", "Who made the decision (defaults to cli:$USER)")
	cmd.Flags().StringVarP(&feedback, "feedback", "m", "", "Feedback for the workers")
	return cmd
}
