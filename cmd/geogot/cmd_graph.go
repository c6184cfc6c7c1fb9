package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/repo"
)

func newGraphCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect and repair the revision graph",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "rebuild",
			Short: "Re-index commits whose graph records are missing or wrong",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				r, err := g.open(cmd)
				if err != nil {
					return err
				}
				defer r.Close()

				fixed, err := r.RebuildGraph(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "fixed %d commit(s)\n", len(fixed))
				return nil
			},
		},
		graphPairCmd(g, "ancestor <ancestor> <descendant>", "Report whether the first commit is an ancestor of the second",
			func(r *repo.Repo, a, b object.Hash) (string, error) {
				ok, err := r.Graph.IsAncestor(b, a)
				return fmt.Sprint(ok), err
			}),
		graphPairCmd(g, "sparse <start> <end>", "Report whether history from start back to end crosses a sparse commit",
			func(r *repo.Repo, a, b object.Hash) (string, error) {
				ok, err := r.Graph.ContainsSparse(a, b)
				return fmt.Sprint(ok), err
			}),
		graphPairCmd(g, "merge-base <a> <b>", "Print the best common ancestor of two commits",
			func(r *repo.Repo, a, b object.Hash) (string, error) {
				base, ok, err := r.Graph.MergeBase(a, b)
				if err == nil && !ok {
					return "", fmt.Errorf("no common ancestor of %s and %s", a.Short(), b.Short())
				}
				return string(base), err
			}),
	)
	return cmd
}

// graphPairCmd builds a query taking two commits and printing one line.
func graphPairCmd(g *globals, use, short string, query func(r *repo.Repo, a, b object.Hash) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			a, err := resolve(r, args[0])
			if err != nil {
				return err
			}
			b, err := resolve(r, args[1])
			if err != nil {
				return err
			}
			line, err := query(r, a, b)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}
}
