package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rfielding/kripke-atlk/kripke"
)

func newInfoCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "info MODEL",
		Short: "Describe the variables, agents and groups of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := c.loadModel(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Model: %s\n", sys.Name)

			fmt.Fprintln(out, "\nVariables:")
			for _, v := range sys.Vars() {
				kind := "state"
				if v.Kind == kripke.InputVar {
					kind = "input"
				}
				fmt.Fprintf(out, "  %-24s %-5s {%s}\n", v.Name, kind, strings.Join(v.Domain, ", "))
			}

			fmt.Fprintln(out, "\nAgents:")
			for _, a := range sys.Agents() {
				fmt.Fprintf(out, "  %s observes [%s] controls [%s]\n", a.Name, varNames(a.Observed), varNames(a.Actions))
			}

			if groups := sys.Groups(); len(groups) > 0 {
				fmt.Fprintln(out, "\nGroups:")
				for _, g := range groups {
					fmt.Fprintf(out, "  %s = [%s]\n", g.Name, strings.Join(g.Members, ", "))
				}
			}

			fmt.Fprintf(out, "\nReachable states: %s\n", sys.CountStates(sys.Reachable()))
			return nil
		},
	}
}

func varNames(vars []*kripke.Var) string {
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.Name
	}
	return strings.Join(names, ", ")
}

func newGraphCmd(c *cli) *cobra.Command {
	var format string
	var limit int
	cmd := &cobra.Command{
		Use:   "graph MODEL",
		Short: "Print the reachable states as a Graphviz or Mermaid graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "dot" && format != "mermaid" {
				return usageError(fmt.Errorf("unknown format %q (expected dot or mermaid)", format))
			}
			sys, err := c.loadModel(args[0])
			if err != nil {
				return err
			}
			g, err := sys.ExplicitGraph(limit)
			if err != nil {
				return err
			}
			if g.Truncated {
				c.log.Warn("graph truncated", "limit", limit)
			}
			out := cmd.OutOrStdout()
			if format == "mermaid" {
				return g.WriteMermaidStateDiagram(out)
			}
			fmt.Fprint(out, g.GenerateGraphviz(sys.Name))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "dot", "dot or mermaid")
	cmd.Flags().IntVar(&limit, "limit", 1000, "maximum number of states (0 for all)")
	return cmd
}

func newFreeChoiceCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "free-choice MODEL",
		Short: "List the reachable joint actions with no transition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := c.loadModel(args[0])
			if err != nil {
				return err
			}
			bad, err := sys.CheckFreeChoice()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if bad.IsFalse() {
				fmt.Fprintf(out, "%s is a free-choice system\n", sys.Name)
				return nil
			}
			moves, err := sys.PickAllStatesInputs(bad)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s is not a free-choice system; %d moves have no transition:\n", sys.Name, len(moves))
			for i, m := range moves {
				if limit > 0 && i == limit {
					fmt.Fprintf(out, "  ... %d more\n", len(moves)-limit)
					break
				}
				fmt.Fprintf(out, "  %s / %s\n", sys.Describe(m), sys.DescribeInputs(m))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of moves listed (0 for all)")
	return cmd
}
