package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGCCommand(projectRoot, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Remove auxiliary File/Glob/FileName/Env/Option nodes with no remaining dependents",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(*projectRoot, *configPath)
			if err != nil {
				return err
			}
			defer e.cache.Close()

			ctx := cmd.Context()
			g, err := e.loadGraph(ctx)
			if err != nil {
				return err
			}

			removed := g.GC()
			if err := e.saveGraph(ctx, g); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d node(s)\n", len(removed))
			return nil
		},
	}
}
