package brc

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sync/errgroup"
)

// Options configure one aggregation run. Zero values fall back to the
// defaults noted on each field; there is no process-wide state.
type Options struct {
	Workers   int        // chunk / goroutine count, default one per logical core
	Source    SourceType // how chunk bytes are fetched, default buffered
	SWAR      bool       // word-at-a-time delimiter scan instead of byte-at-a-time
	TableSize int        // aggregate table slots, default DefaultTableSize
}

// Result is the outcome of a full run.
type Result struct {
	Table   *Table
	Rows    uint64 // lines folded into the table
	Skipped uint64 // malformed lines dropped along the way
}

// chunkResult is what one worker hands back for the merge fold. It is
// owned by the worker until the fold reads it.
type chunkResult struct {
	table   *Table
	rows    uint64
	skipped uint64
}

func defaultWorkers() int {
	if n := cpuid.CPU.LogicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Aggregate plans line-aligned chunks of the file, parses each in its
// own goroutine with a private source, tokenizer and table, and folds
// the per-worker tables into one. Chunks are fully independent so the
// parse phase shares nothing; the join before the fold is the only
// synchronization point. The first worker error cancels the run, a
// partial aggregate is never returned.
func Aggregate(ctx context.Context, path string, opts Options) (*Result, error) {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers()
	}
	if opts.Source == "" {
		opts.Source = SourceBuffered
	}
	if opts.TableSize == 0 {
		opts.TableSize = DefaultTableSize
	}
	factory, err := NewSourceFactory(opts.Source)
	if err != nil {
		return nil, err
	}
	chunks, err := PlanChunks(path, opts.Workers)
	if err != nil {
		return nil, err
	}

	results := make([]chunkResult, len(chunks))
	group, ctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := processChunk(chunk, factory(), NewTokenizer(opts.SWAR), opts.TableSize)
			if err != nil {
				return fmt.Errorf("chunk [%d,%d): %w", chunk.Start, chunk.End, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	final, err := NewTable(opts.TableSize)
	if err != nil {
		return nil, err
	}
	out := &Result{Table: final}
	for _, res := range results {
		if res.table == nil {
			continue
		}
		if err := final.Merge(res.table); err != nil {
			return nil, err
		}
		out.Rows += res.rows
		out.Skipped += res.skipped
	}
	return out, nil
}

// processChunk tokenizes every complete line of one chunk into a fresh
// private table. Empty chunks (Start == End) are no-ops. Malformed
// lines are skipped and counted, they never abort the run.
func processChunk(chunk Chunk, source ChunkSource, tok *Tokenizer, tableSize int) (chunkResult, error) {
	view, err := source.Open(chunk)
	if err != nil {
		return chunkResult{}, err
	}
	defer source.Close()

	table, err := NewTable(tableSize)
	if err != nil {
		return chunkResult{}, err
	}
	res := chunkResult{table: table}
	cursor := 0
	for {
		line, next, err := tok.Next(view, cursor)
		if errors.Is(err, ErrEndOfView) {
			break
		}
		if err != nil {
			res.skipped++
			cursor = next
			continue
		}
		if err := table.Upsert(line.Name, line.Hash, line.Value); err != nil {
			return chunkResult{}, err
		}
		res.rows++
		cursor = next
	}
	return res, nil
}
