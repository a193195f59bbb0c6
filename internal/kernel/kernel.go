// Package kernel evaluates SVM kernels between a query vector and support
// vectors. All vectors are index-sorted sparse vectors; dot products and
// distances are single merges over both inputs.
package kernel

import (
	"math"

	"svmengine/internal/domain/model"
)

// Kernel evaluates one model's kernel function
type Kernel struct {
	params model.KernelParams
}

// New creates a kernel for the given parameters
func New(params model.KernelParams) Kernel {
	return Kernel{params: params}
}

// Params returns the kernel parameters
func (k Kernel) Params() model.KernelParams {
	return k.params
}

// Compute returns k(x, sv)
func (k Kernel) Compute(x, sv model.SparseVector) float64 {
	return k.compute(x, 0, sv)
}

// ComputeRow fills out[i] with k(x, svs[i]). residual is the squared norm of
// query features that lie beyond every support vector index and were left out
// of x; only rbf depends on it.
func (k Kernel) ComputeRow(x model.SparseVector, residual float64, svs []model.SparseVector, out []float64) {
	for i, sv := range svs {
		out[i] = k.compute(x, residual, sv)
	}
}

func (k Kernel) compute(x model.SparseVector, residual float64, sv model.SparseVector) float64 {
	p := k.params
	switch p.Type {
	case model.KernelLinear:
		return Dot(x, sv)
	case model.KernelPoly:
		return powi(p.Gamma*Dot(x, sv)+p.Coef0, p.Degree)
	case model.KernelRBF:
		return math.Exp(-p.Gamma * (SquaredDistance(x, sv) + residual))
	case model.KernelSigmoid:
		return math.Tanh(p.Gamma*Dot(x, sv) + p.Coef0)
	}
	return 0
}

// Dot returns the inner product of two sparse vectors
func Dot(x, y model.SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(x) && j < len(y) {
		switch {
		case x[i].Index == y[j].Index:
			sum += x[i].Value * y[j].Value
			i++
			j++
		case x[i].Index < y[j].Index:
			i++
		default:
			j++
		}
	}
	return sum
}

// SquaredDistance returns ||x - y||^2 of two sparse vectors
func SquaredDistance(x, y model.SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(x) && j < len(y) {
		switch {
		case x[i].Index == y[j].Index:
			d := x[i].Value - y[j].Value
			sum += d * d
			i++
			j++
		case x[i].Index < y[j].Index:
			sum += x[i].Value * x[i].Value
			i++
		default:
			sum += y[j].Value * y[j].Value
			j++
		}
	}
	for ; i < len(x); i++ {
		sum += x[i].Value * x[i].Value
	}
	for ; j < len(y); j++ {
		sum += y[j].Value * y[j].Value
	}
	return sum
}

// powi raises base to a non-negative integer power by squaring
func powi(base float64, times int) float64 {
	result := 1.0
	for t := times; t > 0; t /= 2 {
		if t%2 == 1 {
			result *= base
		}
		base *= base
	}
	return result
}
