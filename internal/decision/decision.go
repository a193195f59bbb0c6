// Package decision turns kernel values into one-vs-one decision values,
// class votes and regression outputs.
package decision

import (
	"svmengine/internal/domain/model"
	"svmengine/internal/kernel"
)

// Evaluator computes decision functions for one model. It holds no per-call
// state and is safe for concurrent use.
type Evaluator struct {
	model  *model.Model
	kernel kernel.Kernel
	svs    []model.SparseVector
	starts []int // offset of each class in svs
}

// New creates an evaluator for the model
func New(m *model.Model) *Evaluator {
	starts := make([]int, len(m.Classes))
	offset := 0
	for i := range m.Classes {
		starts[i] = offset
		offset += m.Classes[i].NumSV()
	}

	return &Evaluator{
		model:  m,
		kernel: kernel.New(m.Kernel),
		svs:    m.SupportVectors(),
		starts: starts,
	}
}

// Model returns the evaluated model
func (e *Evaluator) Model() *model.Model {
	return e.model
}

// NumKernelValues is the length of the kernel row, one entry per SV
func (e *Evaluator) NumKernelValues() int {
	return len(e.svs)
}

// KernelRow evaluates the query against every support vector in file order
func (e *Evaluator) KernelRow(x model.SparseVector, residual float64, kvalue []float64) {
	e.kernel.ComputeRow(x, residual, e.svs, kvalue)
}

// DecisionValues writes one value per class pair, in PairIndex order.
// Positive values favour the lower class index.
func (e *Evaluator) DecisionValues(kvalue []float64, dec []float64) {
	classes := e.model.Classes
	c := len(classes)

	p := 0
	for i := 0; i < c; i++ {
		for j := i + 1; j < c; j++ {
			var sum float64

			ci := &classes[i]
			ki := kvalue[e.starts[i] : e.starts[i]+ci.NumSV()]
			for v, coef := range ci.CoefficientRow(j - 1) {
				sum += coef * ki[v]
			}

			cj := &classes[j]
			kj := kvalue[e.starts[j] : e.starts[j]+cj.NumSV()]
			for v, coef := range cj.CoefficientRow(i) {
				sum += coef * kj[v]
			}

			dec[p] = sum - e.model.Rho[p]
			p++
		}
	}
}

// Regression returns the regression output for a kernel row
func (e *Evaluator) Regression(kvalue []float64) float64 {
	var sum float64
	for v, coef := range e.model.Classes[0].Coefficients {
		sum += coef * kvalue[v]
	}
	return sum - e.model.Rho[0]
}

// Vote counts one-vs-one wins and returns the winning class index. Ties go
// to the lowest index. votes must hold one entry per class.
func Vote(dec []float64, votes []int) int {
	c := len(votes)
	for i := range votes {
		votes[i] = 0
	}

	p := 0
	for i := 0; i < c; i++ {
		for j := i + 1; j < c; j++ {
			if dec[p] > 0 {
				votes[i]++
			} else {
				votes[j]++
			}
			p++
		}
	}

	best := 0
	for i := 1; i < c; i++ {
		if votes[i] > votes[best] {
			best = i
		}
	}
	return best
}

// Scratch holds the per-problem buffers a prediction needs
type Scratch struct {
	KValue []float64
	Dec    []float64
	Votes  []int
}

// NewScratch allocates buffers sized for the evaluator's model
func (e *Evaluator) NewScratch() *Scratch {
	return &Scratch{
		KValue: make([]float64, e.NumKernelValues()),
		Dec:    make([]float64, e.model.NumPairs()),
		Votes:  make([]int, e.model.NumClasses()),
	}
}

// PredictLabel runs the full classification path for one query and returns
// the winning class index. s.Dec holds the decision values afterwards.
func (e *Evaluator) PredictLabel(x model.SparseVector, residual float64, s *Scratch) int {
	e.KernelRow(x, residual, s.KValue)
	e.DecisionValues(s.KValue, s.Dec)
	return Vote(s.Dec, s.Votes)
}

// PredictValue runs the regression path for one query
func (e *Evaluator) PredictValue(x model.SparseVector, residual float64, s *Scratch) float64 {
	e.KernelRow(x, residual, s.KValue)
	return e.Regression(s.KValue)
}
