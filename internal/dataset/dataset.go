// Package dataset reads libsvm-format data files into dense row-major
// feature matrices.
package dataset

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"svmengine/pkg/errors"
)

const maxLineSize = 64 << 20

// Set is a dense feature matrix with one target per row
type Set struct {
	Targets  []float64
	Features []float64
	Width    int
}

// Len returns the number of rows
func (s *Set) Len() int {
	return len(s.Targets)
}

// Row returns row i
func (s *Set) Row(i int) []float64 {
	return s.Features[i*s.Width : (i+1)*s.Width]
}

// Chunk returns rows [start, start+size) clipped to the set, and their count
func (s *Set) Chunk(start, size int) ([]float64, int) {
	end := start + size
	if end > s.Len() {
		end = s.Len()
	}
	if start >= end {
		return nil, 0
	}
	return s.Features[start*s.Width : end*s.Width], end - start
}

type sparseRow struct {
	indices []int
	values  []float64
}

// Read parses libsvm data lines "<target> idx:val ...". Rows are widened to
// minWidth or to the largest index seen, whichever is greater.
func Read(r io.Reader, minWidth int) (*Set, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var (
		targets []float64
		rows    []sparseRow
		width   = minWidth
		line    int
	)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		target, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, errors.NewParseError(errors.ParseMalformedSupportVector, line, "target", "invalid target "+strconv.Quote(fields[0]))
		}

		row := sparseRow{
			indices: make([]int, 0, len(fields)-1),
			values:  make([]float64, 0, len(fields)-1),
		}
		prev := 0
		for _, tok := range fields[1:] {
			idx, val, err := splitPair(tok)
			if err != nil {
				return nil, errors.NewParseError(errors.ParseMalformedSupportVector, line, tok, err.Error())
			}
			if idx <= prev {
				return nil, errors.NewParseError(errors.ParseNonIncreasingIndex, line, tok, "indices must be strictly increasing")
			}
			prev = idx
			row.indices = append(row.indices, idx)
			row.values = append(row.values, val)
		}
		if prev > width {
			width = prev
		}

		targets = append(targets, target)
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan data")
	}

	if width == 0 {
		width = 1
	}
	set := &Set{
		Targets:  targets,
		Features: make([]float64, len(rows)*width),
		Width:    width,
	}
	for i, row := range rows {
		dense := set.Row(i)
		for k, idx := range row.indices {
			dense[idx-1] = row.values[k]
		}
	}
	return set, nil
}

// ReadFile reads a data file from disk
func ReadFile(path string, minWidth int) (*Set, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(errors.ErrNotFound, "data file %s", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open data file %s", path)
	}
	defer f.Close()

	set, err := Read(f, minWidth)
	if err != nil {
		return nil, errors.Wrapf(err, "read data file %s", path)
	}
	return set, nil
}

func splitPair(tok string) (int, float64, error) {
	colon := strings.IndexByte(tok, ':')
	if colon < 0 {
		return 0, 0, errors.New("expected index:value")
	}
	idx, err := strconv.Atoi(tok[:colon])
	if err != nil || idx < 1 {
		return 0, 0, errors.New("index must be a positive integer")
	}
	val, err := strconv.ParseFloat(tok[colon+1:], 64)
	if err != nil {
		return 0, 0, errors.New("invalid value")
	}
	return idx, val, nil
}
