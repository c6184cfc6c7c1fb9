package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/merge"
	"github.com/odvcencio/geogot/pkg/repo"
)

func newMergePreviewCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "merge-preview <ours> <theirs> [path...]",
		Short: "Count the results of merging two commits without writing",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			ours, err := resolve(r, args[0])
			if err != nil {
				return err
			}
			theirs, err := resolve(r, args[1])
			if err != nil {
				return err
			}
			report, err := r.MergePreview(cmd.Context(), ours, theirs, args[2:]...)
			if err != nil {
				return err
			}
			printCounts(cmd.OutOrStdout(), report.Counts)
			return nil
		},
	}
}

func newMergeCmd(g *globals) *cobra.Command {
	var message, ref string

	cmd := &cobra.Command{
		Use:   "merge <ours> <theirs>",
		Short: "Merge theirs into ours and write a merge commit",
		Long: "Merge theirs into ours. Non-conflicting changes and attribute-level merges\n" +
			"are committed with both commits as parents. Any conflict aborts the merge\n" +
			"and lists the conflicting paths.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			ours, err := resolve(r, args[0])
			if err != nil {
				return err
			}
			theirs, err := resolve(r, args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			res, err := r.MergeCommit(cmd.Context(), ours, theirs, message)
			if errors.Is(err, repo.ErrMergeConflicts) {
				for _, c := range res.Conflicts {
					fmt.Fprintf(out, "CONFLICT (%s): %s\n", c.Kind, c.Path)
				}
				printCounts(out, res.Counts)
				return err
			}
			if err != nil {
				return err
			}

			switch {
			case res.UpToDate:
				fmt.Fprintln(out, "already up to date")
			case res.FastForward:
				fmt.Fprintf(out, "fast-forward to %s\n", res.Commit)
			default:
				printCounts(out, res.Counts)
				fmt.Fprintln(out, res.Commit)
			}
			if ref != "" && res.Commit != ours {
				return r.UpdateRefCAS(ref, res.Commit, ours)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "merge commit message")
	cmd.Flags().StringVar(&ref, "update-ref", "", "move this ref from ours to the result")
	return cmd
}

func printCounts(out io.Writer, c merge.Counts) {
	fmt.Fprintf(out, "unconflicted %d, merged %d, conflicted %d\n", c.Unconflicted, c.Merged, c.Conflicted)
}
