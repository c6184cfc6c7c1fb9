package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/object"
	"github.com/odvcencio/geogot/pkg/repo"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globals holds the persistent flags shared by every command.
type globals struct {
	dir     string
	verbose bool
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "geogot",
		Short:         "Version control for feature collections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.dir, "repo", "C", ".", "run as if started in this directory")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(g))
	root.AddCommand(newCatCmd(g))
	root.AddCommand(newLsTreeCmd(g))
	root.AddCommand(newDiffCmd(g))
	root.AddCommand(newCommitTreeCmd(g))
	root.AddCommand(newUpdateRefCmd(g))
	root.AddCommand(newLogCmd(g))
	root.AddCommand(newMergePreviewCmd(g))
	root.AddCommand(newMergeCmd(g))
	root.AddCommand(newBlameCmd(g))
	root.AddCommand(newGraphCmd(g))
	root.AddCommand(newPruneCmd(g))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "geogot 0.1.0-dev")
		},
	}
}

func (g *globals) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// open opens the repository containing the --repo directory.
func (g *globals) open(cmd *cobra.Command) (*repo.Repo, error) {
	return repo.Open(g.dir, repo.WithLogger(g.logger(cmd)))
}

// resolve accepts a full object id or a ref name.
func resolve(r *repo.Repo, arg string) (object.Hash, error) {
	return r.ResolveRef(arg)
}

// treeOf resolves arg to a tree id, peeling a commit to its tree.
func treeOf(r *repo.Repo, arg string) (object.Hash, error) {
	h, err := resolve(r, arg)
	if err != nil {
		return "", err
	}
	if h == object.EmptyTreeHash {
		return h, nil
	}
	objType, _, err := r.Store.Read(h)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", h.Short(), err)
	}
	switch objType {
	case object.TypeTree:
		return h, nil
	case object.TypeCommit:
		c, err := r.Store.ReadCommit(h)
		if err != nil {
			return "", err
		}
		return c.TreeHash, nil
	default:
		return "", fmt.Errorf("%s is a %s, not a tree or commit", h.Short(), objType)
	}
}
