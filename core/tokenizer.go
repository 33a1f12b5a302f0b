package brc

import (
	"errors"

	"github.com/zeebo/xxh3"
)

var (
	// ErrEndOfView reports that the cursor reached the end of the chunk view.
	ErrEndOfView = errors.New("end of view")
	// ErrMissingDelimiter reports a line without a ';' between name and value.
	ErrMissingDelimiter = errors.New("line has no ';' delimiter")
	// ErrBadNumber reports a value that is not a signed decimal with at most
	// one '.'.
	ErrBadNumber = errors.New("value is not a fixed-point decimal")
)

// FNV-1a, folded incrementally while the delimiter scan walks the name.
const (
	fnvBasis uint64 = 0x811c9dc5
	fnvPrime uint64 = 0x01000193
)

// Line is one tokenized measurement. Name borrows from the chunk view
// and is only valid until the view is released; Value is the temperature
// in tenths of a degree; Hash is the key the aggregate table probes with.
type Line struct {
	Name  []byte
	Value int64
	Hash  uint64
}

// Tokenizer splits a chunk view into measurements. In scalar mode the
// delimiter scan folds an FNV-1a hash over the name as it goes, so the
// hash is ready the moment the name ends. In SWAR mode the scan checks
// a word at a time and the finished span is hashed with xxh3. Both modes
// produce identical spans and values; hashes only need to be consistent
// within a single run and every worker of a run shares one mode.
type Tokenizer struct {
	swar bool
}

func NewTokenizer(swar bool) *Tokenizer {
	return &Tokenizer{swar: swar}
}

// Next tokenizes the line starting at cursor and returns the cursor of
// the following line. ErrEndOfView means the view is exhausted. On a
// malformed line the returned cursor points past it so the caller can
// skip and continue; no native floating point is used anywhere here.
func (t *Tokenizer) Next(view []byte, cursor int) (Line, int, error) {
	if cursor >= len(view) {
		return Line{}, cursor, ErrEndOfView
	}
	var sep int
	var hash uint64
	if t.swar {
		rest := view[cursor:]
		sep = findIndexOf(rest, patternSemi)
		nl := findIndexOf(rest, patternNl)
		if sep < 0 || (nl >= 0 && nl < sep) {
			next := len(view)
			if nl >= 0 {
				next = cursor + nl + 1
			}
			return Line{}, next, ErrMissingDelimiter
		}
		sep += cursor
		hash = xxh3.Hash(view[cursor:sep])
	} else {
		sep = -1
		hash = fnvBasis
		for i := cursor; i < len(view); i++ {
			b := view[i]
			if b == ';' {
				sep = i
				break
			}
			if b == '\n' {
				return Line{}, i + 1, ErrMissingDelimiter
			}
			hash = (hash ^ uint64(b)) * fnvPrime
		}
		if sep < 0 {
			return Line{}, len(view), ErrMissingDelimiter
		}
	}

	value, next, err := parseTenths(view, sep+1)
	if err != nil {
		return Line{}, next, err
	}
	return Line{Name: view[cursor:sep], Value: value, Hash: hash}, next, nil
}

// parseTenths reads a signed decimal with at most one fractional digit
// starting at i and returns it scaled by 10 as an integer, plus the
// cursor of the next line. Accumulating value*10+digit while skipping
// the '.' keeps billions of sums free of float drift.
func parseTenths(view []byte, i int) (int64, int, error) {
	var value int64
	neg := false
	dot := false
	digits := 0
	for i < len(view) {
		b := view[i]
		if b == '\n' {
			i++
			break
		}
		if b == '\r' {
			i++
			if i < len(view) && view[i] == '\n' {
				i++
			}
			break
		}
		switch {
		case b == '-' && digits == 0 && !neg && !dot:
			neg = true
		case b == '.' && !dot:
			dot = true
		case b >= '0' && b <= '9':
			value = value*10 + int64(b-'0')
			digits++
		default:
			return 0, skipToNextLine(view, i), ErrBadNumber
		}
		i++
	}
	if digits == 0 {
		return 0, i, ErrBadNumber
	}
	if neg {
		value = -value
	}
	return value, i, nil
}

// skipToNextLine returns the cursor just past the next '\n', or the end
// of the view.
func skipToNextLine(view []byte, from int) int {
	for i := from; i < len(view); i++ {
		if view[i] == '\n' {
			return i + 1
		}
	}
	return len(view)
}
