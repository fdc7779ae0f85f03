// Package engine wires scanner, table and report together. Run is the single
// threaded reference path, RunFile optionally shards a memory mapped file
// across workers and merges their tables.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/miku/stationagg/internal/chunk"
	"github.com/miku/stationagg/internal/table"
)

// checkEvery is the number of records between context checks, minus one.
const checkEvery = 1<<16 - 1

// Config controls a run. The zero value is a single threaded run with default
// buffer and table sizes.
type Config struct {
	Workers int
	Scanner chunk.Options
	Table   table.Options
	Logger  *zap.Logger
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Stats describe a finished run.
type Stats struct {
	Rows     int64
	Bytes    int64
	Refills  int
	Shards   int
	Grows    int
	Stations int
}

func (s *Stats) add(o Stats) {
	s.Rows += o.Rows
	s.Bytes += o.Bytes
	s.Refills += o.Refills
	s.Grows += o.Grows
}

// Result is the aggregated table and some counters.
type Result struct {
	Table *table.Table
	Stats Stats
}

// Run aggregates all records from r on the calling goroutine.
func Run(ctx context.Context, r io.Reader, cfg Config) (*Result, error) {
	tab := table.New(cfg.Table)
	stats, err := aggregate(ctx, chunk.NewScanner(r, cfg.Scanner), tab)
	if err != nil {
		return nil, err
	}
	stats.Shards = 1
	stats.Stations = tab.Len()
	return &Result{Table: tab, Stats: stats}, nil
}

// RunFile aggregates the file at path. With more than one worker the file is
// memory mapped and split into newline aligned shards.
func RunFile(ctx context.Context, path string, cfg Config) (*Result, error) {
	if cfg.Workers > 1 {
		return runMapped(ctx, path, cfg)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chunk.ErrIO, err)
	}
	defer f.Close()
	return Run(ctx, f, cfg)
}

// aggregate drains s into tab.
func aggregate(ctx context.Context, s *chunk.Scanner, tab *table.Table) (Stats, error) {
	var rows int64
	for s.Scan() {
		rec := s.Record()
		if err := tab.Upsert(rec.Name, rec.Hash, rec.Temp); err != nil {
			return Stats{}, fmt.Errorf("station %q: %w", rec.Name, err)
		}
		if rows++; rows&checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Stats{}, err
			}
		}
	}
	if err := s.Err(); err != nil {
		return Stats{}, err
	}
	return Stats{
		Rows:    rows,
		Bytes:   s.Offset(),
		Refills: s.Refills(),
		Grows:   tab.Grows(),
	}, nil
}
