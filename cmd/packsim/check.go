package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zeusync/packwork/internal/core/defs"
	"github.com/zeusync/packwork/internal/core/host"
	"github.com/zeusync/packwork/pkg/concurrent"
	"github.com/zeusync/packwork/pkg/sequence"
)

var errCheckFailed = errors.New("some scenarios failed to start")

type checkResult struct {
	path   string
	packed int
	issues []host.ConfigIssue
	err    error
}

func newCheckCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "check scenario...",
		Short: "Start every scenario and report generation and validation results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := concurrent.Map(cmd.Context(), args, workers, checkScenario)

			failed := false
			out := cmd.OutOrStdout()
			for _, r := range results {
				if r.err != nil {
					failed = true
					fmt.Fprintf(out, "%s: FAIL %v\n", r.path, r.err)
					continue
				}
				fmt.Fprintf(out, "%s: ok packed=%d issues=%d\n", r.path, r.packed, len(r.issues))
				for _, issue := range r.issues {
					fmt.Fprintf(out, "  %s %s: %s\n", issue.Def, issue.Code, issue.Message)
				}
			}
			if failed {
				return errCheckFailed
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "j", 4, "scenarios checked at once")
	return cmd
}

func checkScenario(_ context.Context, path string) checkResult {
	res := checkResult{path: path}
	rt, sc, err := setup(path)
	if err != nil {
		res.err = err
		return res
	}
	if res.err = rt.Start(sc); res.err != nil {
		return res
	}
	res.packed = sequence.From(rt.Defs.All()).
		Filter(func(d *defs.Definition) bool { return d.Role == defs.RolePacked }).
		Count()
	res.issues, res.err = rt.Sim.Validate()
	return res
}
