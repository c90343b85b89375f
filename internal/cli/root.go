// Package cli wires the parcelcore commands: run, inspect, and gc, each
// operating on the .parcelcore workspace at a project root.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yudppp/parcel/internal/config"
	"github.com/yudppp/parcel/internal/fswatch"
	"github.com/yudppp/parcel/internal/logging"
	"github.com/yudppp/parcel/internal/objectcache"
	"github.com/yudppp/parcel/internal/persistence"
	"github.com/yudppp/parcel/internal/reqgraph"
	"github.com/yudppp/parcel/internal/workspace"
)

// Exit codes, mirroring the convention of distinguishing validation errors
// from execution failures from plain success.
const (
	ExitSuccess          = 0
	ExitValidationError  = 1
	ExitArgOrSystemError = 2
	ExitExecutionFailure = 3
)

// NewRootCommand builds the parcelcore cobra command tree.
func NewRootCommand() *cobra.Command {
	var projectRoot string
	var configPath string

	root := &cobra.Command{
		Use:           "parcelcore",
		Short:         "Incremental request tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&projectRoot, "project-root", "", "project root (defaults to the working directory)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (defaults to .parcelcore/config.yaml)")

	root.AddCommand(newRunCommand(&projectRoot, &configPath))
	root.AddCommand(newInspectCommand(&projectRoot, &configPath))
	root.AddCommand(newGCCommand(&projectRoot, &configPath))
	return root
}

type env struct {
	ws    workspace.Workspace
	cfg   config.Config
	cache *objectcache.BoltCache
	fs    *fswatch.FS
	log   logging.Logger
}

func setup(projectRoot, configPath string) (*env, error) {
	ws, err := workspace.EnsureWorkspace(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	cfg, err := config.Load(ws.ProjectRoot, configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cache, err := objectcache.Open(ws.CacheDir + "/objects.db")
	if err != nil {
		return nil, fmt.Errorf("object cache: %w", err)
	}
	return &env{ws: ws, cfg: cfg, cache: cache, fs: fswatch.New(), log: logging.Default()}, nil
}

func (e *env) loadGraph(ctx context.Context) (*reqgraph.Graph, error) {
	return e.loadGraphFor(ctx, nil)
}

func (e *env) saveGraph(ctx context.Context, g *reqgraph.Graph) error {
	return e.saveGraphFor(ctx, nil, g)
}

// loadGraphFor and saveGraphFor key the cache on the entry request ids this
// run was asked to build, in addition to the engine version, so each --entry
// set produces its own cache root and can never be handed back another entry
// set's stale graph.
func (e *env) loadGraphFor(ctx context.Context, entries []string) (*reqgraph.Graph, error) {
	root := persistence.CacheKey(persistence.CacheKeyInputs{EngineVersion: e.cfg.EngineVersion, Entries: entries})
	g, found, err := persistence.LoadRequestGraph(ctx, e.cache, root)
	if err != nil {
		return nil, err
	}
	if !found {
		return reqgraph.New(), nil
	}
	return g, nil
}

func (e *env) saveGraphFor(ctx context.Context, entries []string, g *reqgraph.Graph) error {
	root := persistence.CacheKey(persistence.CacheKeyInputs{EngineVersion: e.cfg.EngineVersion, Entries: entries})
	return persistence.SaveRequestGraph(ctx, e.cache, root, g)
}
