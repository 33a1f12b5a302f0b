package brc

import (
	"fmt"
	"io"
	"os"
)

// probeSize is how many bytes a boundary probe reads at a time while
// looking for the next newline.
const probeSize = 128

// Chunk is a contiguous byte range [Start, End) of the input file. Start
// is always the first byte of a line, so every physical line belongs to
// exactly one chunk.
type Chunk struct {
	Path  string
	Start int64
	End   int64
	First bool
	Last  bool
}

func (c Chunk) Len() int64 { return c.End - c.Start }

// PlanChunks splits the file into nWorkers ranges that together cover
// [0, fileSize) with no gaps or overlaps. Candidate boundaries at
// i*width are advanced past the next '\n' so no line is split between
// two chunks; the last chunk absorbs the remainder. Chunks can end up
// empty (Start == End) when lines are long relative to the nominal
// width, workers treat those as no-ops.
func PlanChunks(path string, nWorkers int) ([]Chunk, error) {
	if nWorkers < 1 {
		return nil, fmt.Errorf("plan: n_workers must be greater than 0, got %d", nWorkers)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return nil, fmt.Errorf("plan: %s is empty", path)
	}

	width := size / int64(nWorkers)
	chunks := make([]Chunk, 0, nWorkers)
	start := int64(0)
	for i := 0; i < nWorkers; i++ {
		end := size
		if i < nWorkers-1 {
			candidate := max(int64(i+1)*width, start)
			if candidate == start {
				end = start
			} else {
				end, err = alignBoundary(f, candidate, size)
				if err != nil {
					return nil, err
				}
			}
		}
		chunks = append(chunks, Chunk{
			Path:  path,
			Start: start,
			End:   end,
			First: i == 0,
			Last:  i == nWorkers-1,
		})
		start = end
	}
	return chunks, nil
}

// alignBoundary advances candidate to the smallest offset b >= candidate
// where b == size or the byte at b-1 is '\n'.
func alignBoundary(f *os.File, candidate, size int64) (int64, error) {
	if candidate >= size {
		return size, nil
	}
	buf := make([]byte, probeSize)
	off := candidate - 1
	for off < size {
		n, err := f.ReadAt(buf, off)
		if err != nil && err != io.EOF {
			return 0, fmt.Errorf("plan: probe at %d: %w", off, err)
		}
		if n == 0 {
			break
		}
		for k := 0; k < n; k++ {
			if buf[k] == '\n' {
				return min(off+int64(k)+1, size), nil
			}
		}
		off += int64(n)
	}
	return size, nil
}
