package main

import (
	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/object"
)

func newUpdateRefCmd(g *globals) *cobra.Command {
	var oldValue string

	cmd := &cobra.Command{
		Use:   "update-ref <name> <id>",
		Short: "Point a ref at an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			h, err := resolve(r, args[1])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("old") {
				return r.UpdateRefCAS(args[0], h, object.Hash(oldValue))
			}
			return r.UpdateRef(args[0], h)
		},
	}

	cmd.Flags().StringVar(&oldValue, "old", "", "only update if the ref currently holds this id (empty: ref must not exist)")
	return cmd
}
