package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yudppp/parcel/internal/collab"
	"github.com/yudppp/parcel/internal/reqgraph"
	"github.com/yudppp/parcel/internal/request"
	"github.com/yudppp/parcel/internal/tracker"
)

func newRunCommand(projectRoot, configPath *string) *cobra.Command {
	var entries []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the given entry requests, reusing cached results where still valid",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEntries(cmd.Context(), *projectRoot, *configPath, entries, cmd)
		},
	}
	cmd.Flags().StringSliceVar(&entries, "entry", nil, "glob pattern to build as a request (repeatable)")
	return cmd
}

func runEntries(ctx context.Context, projectRoot, configPath string, entries []string, cmd *cobra.Command) error {
	e, err := setup(projectRoot, configPath)
	if err != nil {
		return err
	}
	defer e.cache.Close()

	if len(entries) == 0 {
		entries = []string{"**/*"}
	}
	specs := make([]request.Spec, len(entries))
	for i, pattern := range entries {
		specs[i] = globRequestSpec(pattern)
	}

	entryIDs := make([]string, len(specs))
	for i, s := range specs {
		entryIDs[i] = s.ID
	}
	sort.Strings(entryIDs)

	g, err := e.loadGraphFor(ctx, entryIDs)
	if err != nil {
		return err
	}

	// Reconciliation order: unpredictable nodes, then env, then option, then
	// fold in filesystem events last, so a request already marked invalid by
	// an earlier step still picks up any FS-driven invalidation too.
	g.InvalidateUnpredictableNodes()
	g.InvalidateEnvNodes(environMap(os.Environ()))
	g.InvalidateOptionNodes(e.cfg.Options)

	if err := e.fs.WriteSnapshot(ctx, e.ws.ProjectRoot, e.ws.GraphDir+"/snapshot", collab.WatcherOptions{Ignore: e.cfg.Ignore}); err != nil {
		return fmt.Errorf("snapshot filesystem: %w", err)
	}
	events, err := e.fs.GetEventsSince(ctx, e.ws.ProjectRoot, e.ws.GraphDir+"/snapshot", collab.WatcherOptions{Ignore: e.cfg.Ignore})
	if err != nil {
		return fmt.Errorf("diff filesystem: %w", err)
	}
	g.RespondToFSEvents(toReqgraphEvents(events))

	t := tracker.New(g, tracker.WithOptions(e.cfg.Options), tracker.WithLogger(e.log))

	for _, spec := range specs {
		result, err := t.RunRequest(ctx, spec, request.RunOptions{})
		if err != nil {
			return fmt.Errorf("run %s: %w", spec.ID, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %v\n", spec.ID, result)
	}

	if err := e.fs.WriteSnapshot(ctx, e.ws.ProjectRoot, e.ws.GraphDir+"/snapshot", collab.WatcherOptions{Ignore: e.cfg.Ignore}); err != nil {
		return fmt.Errorf("snapshot filesystem: %w", err)
	}
	return e.saveGraphFor(ctx, entryIDs, g)
}

// environMap turns the os.Environ() "KEY=VALUE" slice into a map, the shape
// InvalidateEnvNodes compares recorded Env node values against.
func environMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}

// globRequestSpec builds a demo request: "list files matching pattern",
// reusable across runs and invalidated whenever a matching file is created.
// Updates and deletions of matching files do not invalidate it.
func globRequestSpec(pattern string) request.Spec {
	id := "glob-listing:" + pattern
	return request.Spec{
		ID:    id,
		Type:  "glob-listing",
		Input: pattern,
		Run: func(ctx context.Context, rc request.RunContext) (any, error) {
			if err := rc.API.InvalidateOnFileCreate(reqgraph.FileCreateInvalidation{Glob: pattern}); err != nil {
				return nil, err
			}
			if err := rc.API.StoreResult(ctx, pattern, ""); err != nil {
				return nil, err
			}
			return strings.TrimSpace(pattern), nil
		},
	}
}

func toReqgraphEvents(events []collab.Event) []reqgraph.Event {
	out := make([]reqgraph.Event, len(events))
	for i, ev := range events {
		var t reqgraph.EventType
		switch ev.Type {
		case collab.EventCreate:
			t = reqgraph.EventCreate
		case collab.EventUpdate:
			t = reqgraph.EventUpdate
		case collab.EventDelete:
			t = reqgraph.EventDelete
		}
		out[i] = reqgraph.Event{Path: ev.Path, Type: t}
	}
	return out
}
