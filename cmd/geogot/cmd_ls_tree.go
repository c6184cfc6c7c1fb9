package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/tree"
)

func newLsTreeCmd(g *globals) *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "ls-tree <tree> [path]",
		Short: "List the entries of a tree",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			root, err := treeOf(r, args[0])
			if err != nil {
				return err
			}
			prefix := ""
			if len(args) > 1 {
				prefix = strings.Trim(args[1], "/")
			}

			out := cmd.OutOrStdout()
			return tree.Walk(cmd.Context(), r.Store, root, prefix, func(ref tree.NodeRef) error {
				if ref.IsTree() && ref.Path() == prefix {
					return nil
				}
				fmt.Fprintf(out, "%-7s %s %s\n", ref.Node.Type, ref.ObjectID(), ref.Path())
				if ref.IsTree() && !recursive {
					return tree.SkipTree
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into subtrees")
	return cmd
}
