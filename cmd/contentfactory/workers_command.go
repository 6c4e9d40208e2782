package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"contentfactory/internal/daemonrun"
	"contentfactory/internal/preflight"
	"contentfactory/internal/registry"
)

type workerJSON struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Requires    []string `json:"requires"`
	Services    []string `json:"services"`
	Days        []string `json:"days"`
	OnDemand    bool     `json:"on_demand"`
	Approval    bool     `json:"approval"`
}

func newWorkersCommand(ctx *commandContext) *cobra.Command {
	var check, asJSON bool
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "List registered workers and their dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(func(rt *daemonrun.Runtime) error {
				defs := rt.Registry.Definitions()
				if check {
					results := preflight.CheckWorkers(cmd.Context(), rt.Registry)
					if asJSON {
						return writeJSON(cmd, results)
					}
					out := cmd.OutOrStdout()
					renderChecks(out, "Workers", results, false, shouldColorize(out))
					if len(preflight.Failed(results)) > 0 {
						return fmt.Errorf("%d workers not ready", len(preflight.Failed(results)))
					}
					return nil
				}
				if asJSON {
					out := make([]workerJSON, 0, len(defs))
					for _, def := range defs {
						out = append(out, toWorkerJSON(def))
					}
					return writeJSON(cmd, out)
				}
				rows := make([][]string, 0, len(defs))
				for _, def := range defs {
					rows = append(rows, []string{
						def.ID,
						joinOrDash(def.Requires),
						joinOrDash(def.Services),
						scheduleLabel(def.Schedule),
						yesNo(def.Approval),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Worker", "Requires", "Services", "Schedule", "Approval"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Run each worker's health check")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func toWorkerJSON(def registry.Definition) workerJSON {
	return workerJSON{
		ID:          def.ID,
		Description: def.Description,
		Requires:    nonNilStrings(def.Requires),
		Services:    nonNilStrings(def.Services),
		Days:        dayNames(def.Schedule.Days),
		OnDemand:    def.Schedule.OnDemand,
		Approval:    def.Approval,
	}
}

func scheduleLabel(s registry.Schedule) string {
	parts := dayNames(s.Days)
	if s.OnDemand {
		parts = append(parts, "on demand")
	}
	return joinOrDash(parts)
}

func dayNames(days []time.Weekday) []string {
	out := make([]string, 0, len(days))
	for _, day := range days {
		out = append(out, strings.ToLower(day.String()[:3]))
	}
	return out
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
