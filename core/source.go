package brc

import (
	"fmt"
	"os"
	"sync"

	xmmap "golang.org/x/exp/mmap"
	"golang.org/x/sys/unix"
)

type SourceType string

const (
	SourceBuffered SourceType = "buffered"
	SourceMmap     SourceType = "mmap"
	SourceArena    SourceType = "arena"
	SourcePreload  SourceType = "preload"
)

var SourceList = []SourceType{SourceBuffered, SourceMmap, SourceArena, SourcePreload}

// ChunkSource fetches the raw bytes of one chunk. Every variant yields
// byte-identical views for the same range, they differ only in how the
// bytes travel from storage. The view is valid until Close.
type ChunkSource interface {
	Open(c Chunk) ([]byte, error)
	Close() error
}

// SourceFactory builds one private ChunkSource per worker.
type SourceFactory func() ChunkSource

func NewSourceFactory(t SourceType) (SourceFactory, error) {
	switch t {
	case SourceBuffered:
		return func() ChunkSource { return &bufferedSource{} }, nil
	case SourceMmap:
		return func() ChunkSource { return &mmapSource{} }, nil
	case SourceArena:
		return func() ChunkSource { return &arenaSource{} }, nil
	case SourcePreload:
		shared := &preloadShared{}
		return func() ChunkSource { return &preloadSource{shared: shared} }, nil
	default:
		return nil, fmt.Errorf("unknown chunk source %q", t)
	}
}

// bufferedSource preads the chunk into an owned buffer.
type bufferedSource struct {
	file *os.File
}

func (s *bufferedSource) Open(c Chunk) ([]byte, error) {
	file, err := os.Open(c.Path)
	if err != nil {
		return nil, err
	}
	s.file = file
	buff := make([]byte, c.Len())
	if c.Len() == 0 {
		return buff, nil
	}
	if _, err := file.ReadAt(buff, c.Start); err != nil {
		file.Close()
		s.file = nil
		return nil, fmt.Errorf("pread [%d,%d): %w", c.Start, c.End, err)
	}
	return buff, nil
}

func (s *bufferedSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// mmapSource maps the chunk read-only. Mmap offsets must be page
// aligned, so the mapping starts at the enclosing page and the view
// skips the lead-in.
type mmapSource struct {
	mapped []byte
}

func (s *mmapSource) Open(c Chunk) ([]byte, error) {
	if c.Len() == 0 {
		return []byte{}, nil
	}
	file, err := os.Open(c.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	pageSize := int64(os.Getpagesize())
	aligned := c.Start &^ (pageSize - 1)
	mapped, err := unix.Mmap(int(file.Fd()), aligned, int(c.End-aligned),
		unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap [%d,%d): %w", c.Start, c.End, err)
	}
	s.mapped = mapped
	return mapped[c.Start-aligned:], nil
}

func (s *mmapSource) Close() error {
	if s.mapped == nil {
		return nil
	}
	err := unix.Munmap(s.mapped)
	s.mapped = nil
	return err
}

// arenaSource maps the file for the duration of one copy and releases
// the mapping before the chunk is parsed, leaving an owned buffer.
type arenaSource struct{}

func (s *arenaSource) Open(c Chunk) ([]byte, error) {
	buff := make([]byte, c.Len())
	if c.Len() == 0 {
		return buff, nil
	}
	reader, err := xmmap.Open(c.Path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	if _, err := reader.ReadAt(buff, c.Start); err != nil {
		return nil, fmt.Errorf("mapped read [%d,%d): %w", c.Start, c.End, err)
	}
	return buff, nil
}

func (s *arenaSource) Close() error { return nil }

// preloadShared holds the whole file once for all workers of a run.
type preloadShared struct {
	once sync.Once
	data []byte
	err  error
}

// preloadSource serves chunk views as subslices of one shared buffer
// read upfront by whichever worker gets there first.
type preloadSource struct {
	shared *preloadShared
}

func (s *preloadSource) Open(c Chunk) ([]byte, error) {
	s.shared.once.Do(func() {
		s.shared.data, s.shared.err = os.ReadFile(c.Path)
	})
	if s.shared.err != nil {
		return nil, s.shared.err
	}
	if c.End > int64(len(s.shared.data)) {
		return nil, fmt.Errorf("preload: chunk [%d,%d) past end of %d byte buffer",
			c.Start, c.End, len(s.shared.data))
	}
	return s.shared.data[c.Start:c.End], nil
}

func (s *preloadSource) Close() error { return nil }
