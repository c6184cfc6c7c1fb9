package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newLogCmd(g *globals) *cobra.Command {
	var oneline bool
	var limit int

	cmd := &cobra.Command{
		Use:   "log <commit>",
		Short: "Show first-parent commit history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			start, err := resolve(r, args[0])
			if err != nil {
				return err
			}
			entries, err := r.Log(start, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				c := e.Commit
				mark := ""
				if e.Sparse {
					mark = " (sparse)"
				}
				if oneline {
					fmt.Fprintf(out, "%s%s %s\n", e.ID.Short(), mark, firstLine(c.Message))
					continue
				}
				fmt.Fprintf(out, "commit %s%s\n", e.ID, mark)
				if len(c.Parents) > 1 {
					fmt.Fprint(out, "Merge:")
					for _, p := range c.Parents {
						fmt.Fprintf(out, " %s", p.Short())
					}
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "Author: %s\n", c.Author)
				fmt.Fprintf(out, "Date:   %s %s\n", time.Unix(c.AuthorTimestamp, 0).Format("2006-01-02 15:04:05"), c.AuthorTimezone)
				fmt.Fprintln(out)
				fmt.Fprintf(out, "    %s\n", c.Message)
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&oneline, "oneline", false, "compact one-line format")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of commits to show (0 for all)")
	return cmd
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
