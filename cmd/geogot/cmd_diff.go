package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/diff"
	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/repo"
)

func newDiffCmd(g *globals) *cobra.Command {
	var attributes, trees bool

	cmd := &cobra.Command{
		Use:   "diff <old> <new> [path...]",
		Short: "Show changes between two trees or commits",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			oldTree, err := treeOf(r, args[0])
			if err != nil {
				return err
			}
			newTree, err := treeOf(r, args[1])
			if err != nil {
				return err
			}

			it := diff.New(r.Store).Diff(cmd.Context(), oldTree, newTree, diff.Options{Paths: args[2:], ReportTrees: trees})
			defer it.Close()
			out := cmd.OutOrStdout()
			var entries []diff.Entry
			for it.Next() {
				e := it.Entry()
				if !attributes {
					entries = append(entries, e)
					continue
				}
				if err := printAttributeDiff(out, r, e); err != nil {
					return err
				}
			}
			if err := it.Err(); err != nil {
				return err
			}
			fmt.Fprint(out, diff.FormatEntries(entries))
			return nil
		},
	}

	cmd.Flags().BoolVar(&attributes, "attributes", false, "show attribute changes of each feature")
	cmd.Flags().BoolVar(&trees, "trees", false, "also list changed trees")
	return cmd
}

// printAttributeDiff prints the attribute changes of one feature entry.
// Tree entries are listed by path only.
func printAttributeDiff(out io.Writer, r *repo.Repo, e diff.Entry) error {
	if e.IsTree() {
		fmt.Fprint(out, diff.FormatEntries([]diff.Entry{e}))
		return nil
	}
	var oldF, newF *object.FeatureObj
	var md object.Hash
	var err error
	if e.Old != nil && !e.Old.IsTree() {
		if oldF, err = r.Store.ReadFeature(e.OldID()); err != nil {
			return err
		}
		md = e.Old.MetadataID
	}
	if e.New != nil && !e.New.IsTree() {
		if newF, err = r.Store.ReadFeature(e.NewID()); err != nil {
			return err
		}
		md = e.New.MetadataID
	}
	var ft *object.FeatureTypeObj
	if md != "" {
		if ft, err = r.Store.ReadFeatureType(md); err != nil {
			return err
		}
	}
	fmt.Fprint(out, diff.FormatAttributes(e.Path(), diff.Attributes(oldF, newF, ft)))
	return nil
}
