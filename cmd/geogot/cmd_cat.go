package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/object"
)

func newCatCmd(g *globals) *cobra.Command {
	var asCID bool

	cmd := &cobra.Command{
		Use:   "cat <id>",
		Short: "Print a stored object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			h, err := resolve(r, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asCID {
				s, err := h.Multibase()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, s)
				return nil
			}

			objType, data, err := r.Store.Read(h)
			if err != nil {
				return fmt.Errorf("cat %s: %w", h.Short(), err)
			}
			obj, err := object.Unmarshal(objType, data)
			if err != nil {
				return fmt.Errorf("cat %s: %w", h.Short(), err)
			}
			printObject(out, obj)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asCID, "cid", false, "print the object's CID instead of its content")
	return cmd
}

func printObject(out io.Writer, obj object.Object) {
	switch o := obj.(type) {
	case *object.TreeObj:
		fmt.Fprintf(out, "tree size %d trees %d\n", o.Size, o.NumTrees)
		for _, n := range o.Nodes {
			fmt.Fprintln(out, formatNode(n))
		}
		for _, b := range o.Buckets {
			fmt.Fprintf(out, "bucket %2d %s%s\n", b.Index, b.TreeID, formatExtent(b.Extent))
		}
	case *object.FeatureObj:
		for i, v := range o.Values {
			fmt.Fprintf(out, "%d\t%s\n", i, v)
		}
	case *object.FeatureTypeObj:
		fmt.Fprintf(out, "name %s\n", o.Name)
		for _, a := range o.Attributes {
			line := fmt.Sprintf("%s\t%s", a.Name, a.Kind)
			if a.Nillable {
				line += "\tnillable"
			}
			if a.CRS != "" {
				line += "\t" + a.CRS
			}
			fmt.Fprintln(out, line)
		}
	case *object.CommitObj:
		fmt.Fprintf(out, "tree %s\n", o.TreeHash)
		for _, p := range o.Parents {
			fmt.Fprintf(out, "parent %s\n", p)
		}
		fmt.Fprintf(out, "author %s %d %s\n", o.Author, o.AuthorTimestamp, o.AuthorTimezone)
		fmt.Fprintf(out, "committer %s %d %s\n", o.Committer, o.CommitterTimestamp, o.CommitterTimezone)
		fmt.Fprintf(out, "\n%s\n", o.Message)
	case *object.TagObj:
		fmt.Fprintf(out, "object %s\n", o.TargetHash)
		fmt.Fprintf(out, "tag %s\n", o.Name)
		fmt.Fprintf(out, "tagger %s %s\n", o.Tagger, time.Unix(o.Timestamp, 0).UTC().Format(time.RFC3339))
		fmt.Fprintf(out, "\n%s\n", o.Message)
	}
}

func formatNode(n object.Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-7s %s %s", n.Type, n.ObjectID, n.Name)
	if n.MetadataID != "" {
		fmt.Fprintf(&b, " [type %s]", n.MetadataID.Short())
	}
	b.WriteString(formatExtent(n.Extent))
	return b.String()
}

func formatExtent(e *object.Envelope) string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf(" (%g %g, %g %g)", e.MinX, e.MinY, e.MaxX, e.MaxY)
}
