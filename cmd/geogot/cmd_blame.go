package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/blame"
)

func newBlameCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "blame <commit> <path>",
		Short: "Show the commit that last changed each attribute of a feature",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			commit, err := resolve(r, args[0])
			if err != nil {
				return err
			}
			report, err := blame.New(r.Store, r.Graph).Blame(cmd.Context(), commit, args[1])
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, a := range report.Attributes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Name, a.Commit.Short(), a.Author, a.Value)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if report.Incomplete {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: history is incomplete; some attributions may be too recent")
			}
			return nil
		},
	}
}
