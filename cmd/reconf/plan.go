package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/reconf/pkg/planner"
	"github.com/cuemby/reconf/pkg/scenario"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute a reconfiguration plan",
	Long: `Compute the plan of a scenario file.

Examples:
  # Print the plan of a scenario
  reconf plan -f drain.yaml

  # Allow a longer search and a longer plan
  reconf plan -f drain.yaml --timeout 2m --max-time 7200`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringP("file", "f", "", "Scenario file (required)")
	planCmd.Flags().Duration("timeout", 0, "Search timeout, overrides the scenario")
	planCmd.Flags().Int("max-time", 0, "Upper bound of the plan duration, overrides the scenario")
	planCmd.Flags().Int("node-limit", 0, "Maximum number of search decisions, overrides the scenario")
	planCmd.Flags().StringP("output", "o", "text", "Output format (text, json)")
	_ = planCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	output, _ := cmd.Flags().GetString("output")
	if output != "text" && output != "json" {
		return fmt.Errorf("unsupported output format: %s", output)
	}

	sc, err := scenario.Load(filename)
	if err != nil {
		return err
	}
	cfg := sc.Planner
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout, _ = cmd.Flags().GetDuration("timeout")
	}
	if cmd.Flags().Changed("max-time") {
		cfg.MaxTime, _ = cmd.Flags().GetInt("max-time")
	}
	if cmd.Flags().Changed("node-limit") {
		cfg.NodeLimit, _ = cmd.Flags().GetInt("node-limit")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := planner.New(cfg, sc.Durations).Plan(ctx, sc.Model, sc.Request, sc.Constraints...)
	if err != nil {
		return err
	}
	if output == "json" {
		return writePlanJSON(cmd.OutOrStdout(), sc.Name, res)
	}
	return writePlanText(cmd.OutOrStdout(), sc.Name, res)
}

func writePlanText(w io.Writer, name string, res *planner.Result) error {
	if name != "" {
		fmt.Fprintf(w, "Scenario: %s\n", name)
	}
	if len(res.Misplaced) > 0 {
		fmt.Fprintf(w, "Misplaced VMs: %v\n", res.Misplaced)
	}
	if !res.Feasible {
		fmt.Fprintf(w, "No plan satisfies the request (%d nodes explored)\n", res.Stats.Nodes)
		return nil
	}
	p := res.Plan
	fmt.Fprintf(w, "Plan %s: %d actions, duration %d\n", p.ID, p.Size(), p.Duration())
	if len(p.Instantiated) > 0 {
		fmt.Fprintf(w, "Instantiated: %v\n", p.Instantiated)
	}
	fmt.Fprint(w, p.String())
	for _, r := range p.Resized {
		fmt.Fprintln(w, r.String())
	}
	return nil
}

type planOutput struct {
	Scenario     string   `json:"scenario,omitempty"`
	ID           string   `json:"id,omitempty"`
	Feasible     bool     `json:"feasible"`
	Duration     int      `json:"duration"`
	Actions      []string `json:"actions,omitempty"`
	Instantiated []string `json:"instantiated,omitempty"`
	Resized      []string `json:"resized,omitempty"`
	Misplaced    []string `json:"misplaced,omitempty"`
	Nodes        int      `json:"nodes"`
}

func writePlanJSON(w io.Writer, name string, res *planner.Result) error {
	out := planOutput{Scenario: name, Feasible: res.Feasible, Nodes: res.Stats.Nodes}
	for _, vm := range res.Misplaced {
		out.Misplaced = append(out.Misplaced, string(vm))
	}
	if p := res.Plan; p != nil {
		out.ID = p.ID
		out.Duration = p.Duration()
		for _, a := range p.Actions() {
			out.Actions = append(out.Actions, a.String())
		}
		for _, vm := range p.Instantiated {
			out.Instantiated = append(out.Instantiated, string(vm))
		}
		for _, r := range p.Resized {
			out.Resized = append(out.Resized, r.String())
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
