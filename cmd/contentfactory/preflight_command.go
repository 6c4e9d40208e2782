package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"contentfactory/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check directories and external service credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checks := preflight.RunAll(cmd.Context(), cfg)
			integrations := preflight.Integrations(cfg)
			if asJSON {
				if err := writeJSON(cmd, map[string][]preflight.Result{
					"checks":       checks,
					"integrations": integrations,
				}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				renderChecks(out, "Checks", checks, true, colorize)
				fmt.Fprintln(out)
				renderChecks(out, "Integrations", integrations, false, colorize)
			}
			if failed := preflight.Failed(checks); len(failed) > 0 {
				return fmt.Errorf("%d preflight checks failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
