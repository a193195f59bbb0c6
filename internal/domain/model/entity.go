package model

import (
	"fmt"
)

// SVMType defines the kind of problem the model was trained for
type SVMType string

const (
	SVMTypeCSVC       SVMType = "c_svc"
	SVMTypeNuSVC      SVMType = "nu_svc"
	SVMTypeEpsilonSVR SVMType = "epsilon_svr"
	SVMTypeNuSVR      SVMType = "nu_svr"
)

// Valid checks if svm type is supported
func (t SVMType) Valid() bool {
	switch t {
	case SVMTypeCSVC, SVMTypeNuSVC, SVMTypeEpsilonSVR, SVMTypeNuSVR:
		return true
	}
	return false
}

// IsClassification reports whether predictions are class labels
func (t SVMType) IsClassification() bool {
	return t == SVMTypeCSVC || t == SVMTypeNuSVC
}

// IsRegression reports whether predictions are real values
func (t SVMType) IsRegression() bool {
	return t == SVMTypeEpsilonSVR || t == SVMTypeNuSVR
}

// String returns string representation
func (t SVMType) String() string {
	return string(t)
}

// KernelType defines the kernel family
type KernelType string

const (
	KernelLinear  KernelType = "linear"
	KernelPoly    KernelType = "polynomial"
	KernelRBF     KernelType = "rbf"
	KernelSigmoid KernelType = "sigmoid"
)

// ParseKernelType accepts the trainer's spelling and the short "poly" alias
func ParseKernelType(s string) (KernelType, bool) {
	switch s {
	case "linear":
		return KernelLinear, true
	case "polynomial", "poly":
		return KernelPoly, true
	case "rbf":
		return KernelRBF, true
	case "sigmoid":
		return KernelSigmoid, true
	}
	return "", false
}

// Valid checks if kernel type is supported
func (k KernelType) Valid() bool {
	_, ok := ParseKernelType(string(k))
	return ok
}

// String returns string representation
func (k KernelType) String() string {
	return string(k)
}

// KernelParams holds the kernel hyper-parameters stored in the model header
type KernelParams struct {
	Type   KernelType
	Gamma  float64
	Coef0  float64
	Degree int
}

// Calibration holds the per-class-pair sigmoid parameters (probA, probB)
type Calibration struct {
	A []float64
	B []float64
}

// Class groups the support vectors that belong to one trained class.
//
// Coefficients is row-major with Len(SupportVectors) columns: row k holds the
// coefficients against the k-th other class, in class-index order with the
// class itself skipped. Regression models have a single class with one row.
type Class struct {
	Label          int32
	SupportVectors []SparseVector
	Coefficients   []float64
}

// NumSV returns the number of support vectors in this class
func (c *Class) NumSV() int {
	return len(c.SupportVectors)
}

// CoefficientRow returns the coefficients of every SV of this class against
// the k-th other class
func (c *Class) CoefficientRow(k int) []float64 {
	n := len(c.SupportVectors)
	return c.Coefficients[k*n : (k+1)*n]
}

// Model is an immutable, fully materialized SVM. It is safe for concurrent
// reads once returned by the parser.
type Model struct {
	Type    SVMType
	Kernel  KernelParams
	Classes []Class

	// Rho is indexed by PairIndex(i, j); regression models hold one value.
	Rho []float64

	// Probability is nil when the model carries no calibration.
	Probability *Calibration

	// SVRProbability is the Laplace scale regression models store in probA.
	SVRProbability *float64

	TotalSV       int
	NumAttributes int

	// Nodes backs every support vector in Classes.
	Nodes []Node
}

// NumClasses returns the number of classes; regression models report one
func (m *Model) NumClasses() int {
	return len(m.Classes)
}

// NumPairs returns the number of decision functions
func (m *Model) NumPairs() int {
	if m.Type.IsRegression() {
		return 1
	}
	c := len(m.Classes)
	return c * (c - 1) / 2
}

// HasProbability reports whether calibration parameters are present
func (m *Model) HasProbability() bool {
	return m.Probability != nil
}

// Labels returns the trainer labels in class-index order
func (m *Model) Labels() []int32 {
	labels := make([]int32, len(m.Classes))
	for i := range m.Classes {
		labels[i] = m.Classes[i].Label
	}
	return labels
}

// ClassIndex returns the class index for a trainer label
func (m *Model) ClassIndex(label int32) (int, bool) {
	for i := range m.Classes {
		if m.Classes[i].Label == label {
			return i, true
		}
	}
	return 0, false
}

// SupportVectors returns every SV in file order
func (m *Model) SupportVectors() []SparseVector {
	all := make([]SparseVector, 0, m.TotalSV)
	for i := range m.Classes {
		all = append(all, m.Classes[i].SupportVectors...)
	}
	return all
}

// NodeCount returns the size of the shared node buffer
func (m *Model) NodeCount() int {
	return len(m.Nodes)
}

// PairIndex maps the class pair (i < j) of c classes to its position in
// rho, probA and probB
func PairIndex(i, j, c int) int {
	return i*(2*c-i-1)/2 + (j - i - 1)
}

// Validate checks the structural invariants of a model
func (m *Model) Validate() error {
	if !m.Type.Valid() {
		return fmt.Errorf("unknown svm type %q", m.Type)
	}
	if !m.Kernel.Type.Valid() {
		return fmt.Errorf("unknown kernel type %q", m.Kernel.Type)
	}
	if (m.Kernel.Type == KernelRBF || m.Kernel.Type == KernelSigmoid) && !(m.Kernel.Gamma > 0) {
		return fmt.Errorf("kernel %s requires gamma > 0, got %v", m.Kernel.Type, m.Kernel.Gamma)
	}
	if len(m.Classes) == 0 {
		return fmt.Errorf("model has no classes")
	}

	total := 0
	for i := range m.Classes {
		class := &m.Classes[i]
		total += class.NumSV()

		rows := len(m.Classes) - 1
		if m.Type.IsRegression() {
			rows = 1
		}
		if len(class.Coefficients) != rows*class.NumSV() {
			return fmt.Errorf("class %d: expected %d coefficients, got %d", i, rows*class.NumSV(), len(class.Coefficients))
		}
		for k, sv := range class.SupportVectors {
			if err := sv.Validate(); err != nil {
				return fmt.Errorf("class %d, support vector %d: %w", i, k, err)
			}
		}
	}
	if total != m.TotalSV {
		return fmt.Errorf("sum of nr_sv %d does not match total_sv %d", total, m.TotalSV)
	}

	pairs := m.NumPairs()
	if len(m.Rho) != pairs {
		return fmt.Errorf("expected %d rho values, got %d", pairs, len(m.Rho))
	}
	if m.Probability != nil {
		if len(m.Probability.A) != pairs || len(m.Probability.B) != pairs {
			return fmt.Errorf("expected %d probA/probB values, got %d/%d", pairs, len(m.Probability.A), len(m.Probability.B))
		}
	}
	return nil
}
