package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"svmengine/internal/domain/model"
)

func vec(pairs ...float64) model.SparseVector {
	v := make(model.SparseVector, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		v = append(v, model.Node{Index: int32(pairs[i]), Value: pairs[i+1]})
	}
	return v
}

func TestDot(t *testing.T) {
	tests := []struct {
		name string
		x, y model.SparseVector
		want float64
	}{
		{"disjoint", vec(1, 2, 3, 4), vec(2, 5, 4, 6), 0},
		{"overlap", vec(1, 2, 3, 4), vec(1, 3, 3, 0.5, 9, 100), 8},
		{"empty", vec(), vec(1, 1), 0},
		{"identical", vec(2, 3, 5, 4), vec(2, 3, 5, 4), 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Dot(tt.x, tt.y), 1e-12)
			assert.InDelta(t, tt.want, Dot(tt.y, tt.x), 1e-12)
		})
	}
}

func TestSquaredDistance(t *testing.T) {
	tests := []struct {
		name string
		x, y model.SparseVector
		want float64
	}{
		{"identical", vec(1, 2, 3, 4), vec(1, 2, 3, 4), 0},
		{"disjoint", vec(1, 2), vec(2, 3), 13},
		{"tails", vec(1, 1, 5, 2), vec(1, 1, 2, 3, 7, 1), 14},
		{"empty", vec(), vec(4, 3), 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SquaredDistance(tt.x, tt.y), 1e-12)
			assert.InDelta(t, tt.want, SquaredDistance(tt.y, tt.x), 1e-12)
		})
	}
}

func TestPowi(t *testing.T) {
	assert.Equal(t, 1.0, powi(7, 0))
	assert.Equal(t, 7.0, powi(7, 1))
	assert.Equal(t, 1024.0, powi(2, 10))
	assert.InDelta(t, math.Pow(1.5, 7), powi(1.5, 7), 1e-12)
	assert.Equal(t, -27.0, powi(-3, 3))
}

func TestCompute(t *testing.T) {
	x := vec(1, 1, 2, 2)
	sv := vec(1, 3, 3, 1)
	// dot = 3, dist^2 = 4 + 4 + 1 = 9

	tests := []struct {
		name   string
		params model.KernelParams
		want   float64
	}{
		{"linear", model.KernelParams{Type: model.KernelLinear}, 3},
		{"poly", model.KernelParams{Type: model.KernelPoly, Gamma: 0.5, Coef0: 1, Degree: 3}, 15.625},
		{"rbf", model.KernelParams{Type: model.KernelRBF, Gamma: 0.1}, math.Exp(-0.9)},
		{"sigmoid", model.KernelParams{Type: model.KernelSigmoid, Gamma: 0.2, Coef0: -0.1}, math.Tanh(0.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, New(tt.params).Compute(x, sv), 1e-12)
		})
	}
}

func TestCompute_Symmetric(t *testing.T) {
	kernels := []struct {
		name   string
		params model.KernelParams
	}{
		{"linear", model.KernelParams{Type: model.KernelLinear}},
		{"poly", model.KernelParams{Type: model.KernelPoly, Gamma: 0.7, Coef0: 0.3, Degree: 4}},
		{"rbf", model.KernelParams{Type: model.KernelRBF, Gamma: 0.25}},
		{"sigmoid", model.KernelParams{Type: model.KernelSigmoid, Gamma: 0.4, Coef0: -1.2}},
	}
	pairs := []struct {
		name string
		x, y model.SparseVector
	}{
		{"overlap", vec(1, 0.5, 3, -2, 7, 1.25), vec(2, 4, 3, 0.75, 7, -3, 9, 8)},
		{"disjoint", vec(1, 1, 4, 2), vec(2, 3, 5, -1)},
		{"one empty", vec(), vec(3, 2.5, 6, -0.5)},
		{"both empty", vec(), vec()},
	}

	for _, kt := range kernels {
		k := New(kt.params)
		for _, pt := range pairs {
			t.Run(kt.name+"/"+pt.name, func(t *testing.T) {
				assert.Equal(t, k.Compute(pt.x, pt.y), k.Compute(pt.y, pt.x))
			})
		}
	}
}

func TestCompute_RBFSelfIsOne(t *testing.T) {
	for _, gamma := range []float64{1e-3, 0.5, 1, 40} {
		k := New(model.KernelParams{Type: model.KernelRBF, Gamma: gamma})
		for _, x := range []model.SparseVector{vec(), vec(1, 3), vec(2, -1.5, 8, 1e6, 11, 0.001)} {
			assert.Equal(t, 1.0, k.Compute(x, x), "gamma %v, x %v", gamma, x)
		}
	}
}

func TestComputeRow_RBFResidual(t *testing.T) {
	k := New(model.KernelParams{Type: model.KernelRBF, Gamma: 0.5})
	svs := []model.SparseVector{vec(1, 1), vec(2, 1)}

	full := vec(1, 1, 4, 2)
	truncated := vec(1, 1)

	want := make([]float64, 2)
	got := make([]float64, 2)
	k.ComputeRow(full, 0, svs, want)
	k.ComputeRow(truncated, 4, svs, got)

	assert.InDeltaSlice(t, want, got, 1e-12)
	assert.InDelta(t, math.Exp(-2), got[0], 1e-12)
}

func TestComputeRow_ResidualIgnoredByDotKernels(t *testing.T) {
	k := New(model.KernelParams{Type: model.KernelLinear})
	out := make([]float64, 1)
	k.ComputeRow(vec(1, 2), 100, []model.SparseVector{vec(1, 3)}, out)
	assert.Equal(t, 6.0, out[0])
}
