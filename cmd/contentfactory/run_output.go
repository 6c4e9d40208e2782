package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"contentfactory/internal/ipc"
	"contentfactory/internal/pipeline"
	"contentfactory/internal/stage"
)

// errRunFailed makes the process exit non-zero after the result was printed.
var errRunFailed = errors.New("run did not succeed")

type runResultJSON struct {
	Success          bool            `json:"success"`
	RunID            string          `json:"run_id"`
	PipelineType     string          `json:"pipeline_type"`
	Status           string          `json:"status"`
	CompletedWorkers []string        `json:"completed_workers"`
	FailedWorkers    []string        `json:"failed_workers,omitempty"`
	NotAttempted     []string        `json:"not_attempted,omitempty"`
	ApprovalID       string          `json:"approval_id,omitempty"`
	Error            string          `json:"error,omitempty"`
	Artifacts        stage.Artifacts `json:"artifacts"`
}

func toRunResultJSON(res pipeline.RunResult) runResultJSON {
	return runResultJSON{
		Success:          res.Success,
		RunID:            res.RunID,
		PipelineType:     res.PipelineType,
		Status:           string(res.Status),
		CompletedWorkers: nonNilStrings(res.CompletedWorkers),
		FailedWorkers:    res.FailedWorkers,
		NotAttempted:     res.NotAttempted,
		ApprovalID:       res.ApprovalID,
		Error:            res.Error,
		Artifacts:        res.Artifacts,
	}
}

func emitRunResult(cmd *cobra.Command, res pipeline.RunResult, asJSON bool) error {
	if asJSON {
		if err := writeJSON(cmd, toRunResultJSON(res)); err != nil {
			return err
		}
	} else {
		printRunResult(cmd.OutOrStdout(), res)
	}
	if !res.Success {
		return errRunFailed
	}
	return nil
}

func emitRunResults(cmd *cobra.Command, results []pipeline.RunResult, asJSON bool) error {
	if asJSON {
		out := make([]runResultJSON, 0, len(results))
		for _, res := range results {
			out = append(out, toRunResultJSON(res))
		}
		return writeJSON(cmd, out)
	}
	stdout := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(stdout, "No runs affected")
		return nil
	}
	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		printRunResult(stdout, res)
	}
	return nil
}

func printRunResult(out io.Writer, res pipeline.RunResult) {
	fmt.Fprintf(out, "Run %s (%s): %s\n", res.RunID, res.PipelineType, res.Status)
	if len(res.CompletedWorkers) > 0 {
		fmt.Fprintf(out, "  Completed:     %s\n", strings.Join(res.CompletedWorkers, ", "))
	}
	if len(res.FailedWorkers) > 0 {
		fmt.Fprintf(out, "  Failed:        %s\n", strings.Join(res.FailedWorkers, ", "))
	}
	if len(res.NotAttempted) > 0 {
		fmt.Fprintf(out, "  Not attempted: %s\n", strings.Join(res.NotAttempted, ", "))
	}
	if res.ApprovalID != "" {
		fmt.Fprintf(out, "  Awaiting approval %s\n", res.ApprovalID)
	}
	printArtifacts(out, res.Artifacts)
	if res.Error != "" {
		fmt.Fprintf(out, "  Error: %s\n", res.Error)
	}
}

func printArtifacts(out io.Writer, a stage.Artifacts) {
	if a.Title != "" {
		fmt.Fprintf(out, "  Title:         %s\n", a.Title)
	}
	if a.ContentPieceID != "" {
		fmt.Fprintf(out, "  Content piece: %s\n", a.ContentPieceID)
	}
	if a.HebrewPostID != 0 {
		fmt.Fprintf(out, "  Hebrew post:   %d\n", a.HebrewPostID)
	}
	if a.EnglishPostID != 0 {
		fmt.Fprintf(out, "  English post:  %d\n", a.EnglishPostID)
	}
	if a.FeaturedImageURL != "" {
		fmt.Fprintf(out, "  Image:         %s\n", a.FeaturedImageURL)
	}
	if a.VideoURL != "" {
		fmt.Fprintf(out, "  Video:         %s\n", a.VideoURL)
	}
	if a.Episode != nil {
		fmt.Fprintf(out, "  Episode:       %s\n", a.Episode.AudioURL)
	}
	if len(a.SocialPosts) > 0 {
		fmt.Fprintf(out, "  Social posts:  %d\n", len(a.SocialPosts))
	}
	if len(a.SEOUpdates) > 0 {
		fmt.Fprintf(out, "  SEO updates:   %d\n", len(a.SEOUpdates))
	}
}

func emitAccepted(cmd *cobra.Command, resp *ipc.AcceptedResponse, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, resp)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s job to the daemon; follow it with `contentfactory runs`\n", resp.Job)
	return nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
