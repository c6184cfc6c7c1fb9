package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/odvcencio/geogot/pkg/repo"
)

func newInitCmd(g *globals) *cobra.Command {
	cfg := repo.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty geogot repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.dir
			if len(args) > 0 {
				path = args[0]
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			if err := os.MkdirAll(abs, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			r, err := repo.Init(abs, repo.WithConfig(cfg), repo.WithLogger(g.logger(cmd)))
			if err != nil {
				return err
			}
			defer r.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "initialized empty geogot repository in %s\n", r.Dir+string(filepath.Separator))
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Storage.Backend, "storage", cfg.Storage.Backend, "object backend: loose, badger or memory")
	cmd.Flags().StringVar(&cfg.Graph.Backend, "graph", cfg.Graph.Backend, "revision graph backend: badger or memory")
	cmd.Flags().StringVar(&cfg.Core.Author, "author", "", "default commit author")
	return cmd
}
