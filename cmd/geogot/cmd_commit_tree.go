package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/object"
)

func newCommitTreeCmd(g *globals) *cobra.Command {
	var parentArgs []string
	var message, author string

	cmd := &cobra.Command{
		Use:   "commit-tree <tree> [-p parent]... -m <message>",
		Short: "Create a commit of a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			treeID, err := resolve(r, args[0])
			if err != nil {
				return err
			}
			parents := make([]object.Hash, 0, len(parentArgs))
			for _, p := range parentArgs {
				h, err := resolve(r, p)
				if err != nil {
					return err
				}
				parents = append(parents, h)
			}
			if author != "" {
				r.Config.Core.Author = author
			}

			id, err := r.CommitTree(treeID, parents, message)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&parentArgs, "parent", "p", nil, "parent commit (repeatable)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&author, "author", "", "override the configured author")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}
