// Package cli implements the dmlab commands over a single state file.
package cli

import (
	"context"
	"encoding/json"
	"io"

	"go.uber.org/zap"

	"github.com/AngelCh415/dmlab/internal/ingest"
	"github.com/AngelCh415/dmlab/internal/metrics"
	"github.com/AngelCh415/dmlab/internal/persist"
	"github.com/AngelCh415/dmlab/internal/store"
)

// Context is handed to every command's Run method.
type Context struct {
	Ctx     context.Context
	Store   *store.MemoryStore
	Manager *persist.Manager
	Service *metrics.Service
	Report  ingest.Report
	Out     io.Writer
	Log     *zap.Logger
}

// Open loads the state file at path through the normalizer. A missing file
// yields the default state.
func Open(ctx context.Context, path string, out io.Writer, log *zap.Logger) (*Context, error) {
	st := store.NewMemoryStore(ingest.Normalize(nil), log)
	pm := persist.NewManager(persist.NewFileStore(path), st, log, nil)
	rep, err := pm.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &Context{
		Ctx:     ctx,
		Store:   st,
		Manager: pm,
		Service: metrics.NewService(st, log),
		Report:  rep,
		Out:     out,
		Log:     log,
	}, nil
}

func (c *Context) printJSON(v any) error {
	enc := json.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
