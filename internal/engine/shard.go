package engine

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/exp/mmap"
	"golang.org/x/sync/errgroup"

	"github.com/miku/stationagg/internal/chunk"
	"github.com/miku/stationagg/internal/table"
)

// shardsPerWorker keeps workers busy when shards finish at different times.
const shardsPerWorker = 4

// Source is random access input, as provided by mmap.ReaderAt.
type Source interface {
	io.ReaderAt
	Len() int
	At(i int) byte
}

type shard struct {
	off, len int64
}

// split cuts src into at most n shards. Every shard but the first starts
// right after a newline, so no line is cut in two.
func split(src Source, n int) []shard {
	size := src.Len()
	var (
		shards []shard
		start  int
	)
	for i := 1; i <= n; i++ {
		end := size
		if i < n {
			end = max(i*size/n, start)
			for end > 0 && end < size && src.At(end-1) != '\n' {
				end++
			}
		}
		if end > start {
			shards = append(shards, shard{off: int64(start), len: int64(end - start)})
		}
		start = end
	}
	return shards
}

func runMapped(ctx context.Context, path string, cfg Config) (*Result, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chunk.ErrIO, err)
	}
	defer r.Close()
	return RunShards(ctx, r, cfg)
}

// RunShards processes src with cfg.Workers goroutines, each shard with its
// own scanner and table, and merges the tables afterwards. The first error
// stops the remaining shards.
func RunShards(ctx context.Context, src Source, cfg Config) (*Result, error) {
	var (
		log     = cfg.logger()
		workers = max(cfg.Workers, 1)
		shards  = split(src, workers*shardsPerWorker)
		tables  = make([]*table.Table, len(shards))
		stats   = make([]Stats, len(shards))
		// Scanner buffers are handed from one shard to the next.
		bufs = make(chan []byte, workers)
	)
	for i := 0; i < workers; i++ {
		bufs <- nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sh := range shards {
		i, sh := i, sh
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			opts := cfg.Scanner
			opts.Buffer = <-bufs
			s := chunk.NewScanner(io.NewSectionReader(src, sh.off, sh.len), opts)
			defer func() { bufs <- s.Buffer() }()
			tab := table.New(cfg.Table)
			st, err := aggregate(gctx, s, tab)
			if err != nil {
				return fmt.Errorf("shard %d at offset %d: %w", i, sh.off, err)
			}
			tables[i], stats[i] = tab, st
			log.Debug("shard done",
				zap.Int("shard", i),
				zap.Int64("offset", sh.off),
				zap.Int64("rows", st.Rows),
				zap.Int("stations", tab.Len()),
				zap.Int("grows", st.Grows),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := table.New(cfg.Table)
	var sum Stats
	for i, tab := range tables {
		if err := total.Merge(tab); err != nil {
			return nil, fmt.Errorf("merge shard %d: %w", i, err)
		}
		sum.add(stats[i])
	}
	sum.Grows += total.Grows()
	sum.Shards = len(shards)
	sum.Stations = total.Len()
	return &Result{Table: total, Stats: sum}, nil
}
