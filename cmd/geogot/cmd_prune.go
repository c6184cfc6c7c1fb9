package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPruneCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete objects unreachable from any ref",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			sum, err := r.Prune(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if sum.Deleted == 0 {
				fmt.Fprintln(out, "nothing to prune")
				return nil
			}
			fmt.Fprintf(out, "deleted %d object(s), %d commit(s); %d reachable from %d ref(s)\n",
				sum.Deleted, sum.DeletedCommits, sum.Reachable, sum.Roots)
			return nil
		},
	}
}
