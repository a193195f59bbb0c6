package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svmengine/internal/domain/model"
	"svmengine/internal/parser"
	"svmengine/internal/testsupport"
)

func mustParse(t *testing.T, text string) *model.Model {
	t.Helper()
	m, err := parser.Parse(text)
	require.NoError(t, err)
	return m
}

func TestEvaluator_BinaryRBF(t *testing.T) {
	e := New(mustParse(t, testsupport.BinaryRBFModel))
	s := e.NewScratch()

	label := e.PredictLabel(model.FromDense(testsupport.BinaryRBFInputA), 0, s)
	assert.Equal(t, 0, label)
	assert.InDelta(t, testsupport.BinaryRBFDecisionA, s.Dec[0], 1e-5)

	label = e.PredictLabel(model.FromDense(testsupport.BinaryRBFInputB), 0, s)
	assert.Equal(t, 1, label)
	assert.InDelta(t, testsupport.BinaryRBFDecisionB, s.Dec[0], 1e-5)
}

func TestEvaluator_ThreeClassCoefficientLayout(t *testing.T) {
	e := New(mustParse(t, testsupport.ThreeClassLinearModel))
	s := e.NewScratch()

	tests := []struct {
		name      string
		input     []float64
		decisions []float64
		class     int
	}{
		{"first", []float64{2, 0}, []float64{1.5, 5, 1.75}, 0},
		{"second", []float64{0, 2}, []float64{-2.5, 3, 3.75}, 1},
		{"third", []float64{-2, -2}, []float64{-0.5, -5, -6.25}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class := e.PredictLabel(model.FromDense(tt.input), 0, s)
			assert.InDeltaSlice(t, tt.decisions, s.Dec, 1e-12)
			assert.Equal(t, tt.class, class)
		})
	}
}

func TestEvaluator_Regression(t *testing.T) {
	e := New(mustParse(t, testsupport.RegressionModel))
	s := e.NewScratch()

	assert.InDelta(t, -0.1, e.PredictValue(model.FromDense([]float64{2, 4}), 0, s), 1e-12)
	assert.InDelta(t, 0.4, e.PredictValue(model.FromDense([]float64{1}), 0, s), 1e-12)
}

func TestEvaluator_Deterministic(t *testing.T) {
	e := New(mustParse(t, testsupport.BinaryRBFModel))
	s := e.NewScratch()
	x := model.FromDense(testsupport.BinaryRBFInputB)

	e.PredictLabel(x, 0, s)
	first := append([]float64(nil), s.Dec...)
	e.PredictLabel(x, 0, s)
	assert.Equal(t, first, s.Dec)
}

func TestVote(t *testing.T) {
	tests := []struct {
		name string
		dec  []float64
		want int
	}{
		{"clear winner", []float64{1, 1, -1}, 0},
		{"zero favours higher index", []float64{0, -1, -1}, 2},
		{"three way tie picks lowest", []float64{1, -1, 1}, 0},
		{"last class", []float64{-1, -1, -1}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			votes := make([]int, 3)
			assert.Equal(t, tt.want, Vote(tt.dec, votes))
		})
	}
}

func TestVote_SingleClass(t *testing.T) {
	assert.Equal(t, 0, Vote(nil, make([]int, 1)))
}

func TestEvaluator_CyclicTie(t *testing.T) {
	m := mustParse(t, testsupport.CyclicTieModel)
	e := New(m)
	s := e.NewScratch()

	class := e.PredictLabel(model.FromDense([]float64{0.3, -4, 2}), 0, s)
	assert.Equal(t, []int{1, 1, 1}, s.Votes)
	assert.Equal(t, int32(7), m.Classes[class].Label)
}
