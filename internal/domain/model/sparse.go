package model

import "fmt"

// Node is one (index, value) entry of a sparse vector. Indices are 1-based.
type Node struct {
	Index int32
	Value float64
}

// SparseVector is an index-sorted run of nodes. Support vectors of a model
// are slices of one shared buffer.
type SparseVector []Node

// Validate checks that indices are positive and strictly increasing
func (v SparseVector) Validate() error {
	var last int32
	for i, n := range v {
		if n.Index < 1 {
			return fmt.Errorf("node %d: index %d is not 1-based", i, n.Index)
		}
		if i > 0 && n.Index <= last {
			return fmt.Errorf("node %d: index %d does not follow %d", i, n.Index, last)
		}
		last = n.Index
	}
	return nil
}

// MaxIndex returns the largest index, or 0 for an empty vector
func (v SparseVector) MaxIndex() int {
	if len(v) == 0 {
		return 0
	}
	return int(v[len(v)-1].Index)
}

// Dense expands the vector into dim positions; position p holds index p+1.
// Entries beyond dim are dropped.
func (v SparseVector) Dense(dim int) []float64 {
	out := make([]float64, dim)
	for _, n := range v {
		if int(n.Index) <= dim {
			out[n.Index-1] = n.Value
		}
	}
	return out
}

// FromDense builds a sparse vector from a dense row, skipping exact zeros
func FromDense(row []float64) SparseVector {
	v := make(SparseVector, 0, len(row))
	for p, x := range row {
		if x != 0 {
			v = append(v, Node{Index: int32(p + 1), Value: x})
		}
	}
	return v
}
