package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInspectCommand(projectRoot, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print request-graph statistics for the persisted cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(*projectRoot, *configPath)
			if err != nil {
				return err
			}
			defer e.cache.Close()

			g, err := e.loadGraph(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "invalid requests:       %d\n", len(g.InvalidNodeIDs()))
			fmt.Fprintf(out, "incomplete requests:    %d\n", len(g.IncompleteNodeIDs()))
			fmt.Fprintf(out, "unpredictable requests: %d\n", len(g.UnpredictableNodeIDs()))
			fmt.Fprintf(out, "glob nodes:             %d\n", len(g.GlobNodeIDs()))
			fmt.Fprintf(out, "env nodes:              %d\n", len(g.EnvNodeIDs()))
			fmt.Fprintf(out, "option nodes:           %d\n", len(g.OptionNodeIDs()))
			return nil
		},
	}
}
