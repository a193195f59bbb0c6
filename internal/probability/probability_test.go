package probability

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svmengine/internal/decision"
	"svmengine/internal/domain/model"
	"svmengine/internal/parser"
	"svmengine/internal/testsupport"
	"svmengine/pkg/errors"
)

func mustParse(t *testing.T, text string) *model.Model {
	t.Helper()
	m, err := parser.Parse(text)
	require.NoError(t, err)
	return m
}

func sum(p []float64) float64 {
	var s float64
	for _, v := range p {
		s += v
	}
	return s
}

func TestSigmoidPredict(t *testing.T) {
	tests := []struct {
		name      string
		dec, a, b float64
		want      float64
	}{
		{"zero", 0, 1, 0, 0.5},
		{"positive branch", 2, 1, 0, 1 / (1 + math.Exp(2))},
		{"negative branch", 2, -1, 0, 1 / (1 + math.Exp(-2))},
		{"large positive does not overflow", 1000, 1, 0, 0},
		{"large negative does not overflow", -1000, 1, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SigmoidPredict(tt.dec, tt.a, tt.b)
			assert.False(t, math.IsNaN(got))
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestConfig_Resolve(t *testing.T) {
	cfg := Config{}.Resolve(4)
	assert.Equal(t, 100, cfg.MaxIterations)
	assert.InDelta(t, 0.00125, cfg.Tolerance, 1e-15)

	cfg = Config{}.Resolve(250)
	assert.Equal(t, 250, cfg.MaxIterations)

	cfg = Config{MaxIterations: 7, Tolerance: 1e-3}.Resolve(4)
	assert.Equal(t, 7, cfg.MaxIterations)
	assert.Equal(t, 1e-3, cfg.Tolerance)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())

	err := Config{MaxIterations: -1}.Validate()
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))

	err = Config{Tolerance: math.NaN()}.Validate()
	assert.True(t, errors.Is(err, errors.ErrInvalidArgument))
}

func TestNew_WithoutCalibration(t *testing.T) {
	_, err := New(mustParse(t, testsupport.BinaryRBFModel), Config{})
	assert.ErrorIs(t, err, errors.ErrNoProbabilityModel)

	_, err = New(mustParse(t, testsupport.RegressionModel), Config{})
	assert.ErrorIs(t, err, errors.ErrNoProbabilityModel)
}

func TestEstimate_TwoClass(t *testing.T) {
	est, err := New(mustParse(t, testsupport.BinaryRBFProbabilityModel), Config{})
	require.NoError(t, err)

	out := make([]float64, 2)
	dec := []float64{testsupport.BinaryRBFDecisionA}
	class, err := est.Estimate(dec, est.NewScratch(), out)
	require.NoError(t, err)

	want := 1 / (1 + math.Exp(-1.5*testsupport.BinaryRBFDecisionA+0.1))
	assert.InDelta(t, want, out[0], 1e-9)
	assert.InDelta(t, 1-want, out[1], 1e-9)
	assert.Equal(t, 0, class)
}

func TestEstimate_ClipsExtremes(t *testing.T) {
	est, err := New(mustParse(t, testsupport.BinaryRBFProbabilityModel), Config{})
	require.NoError(t, err)

	out := make([]float64, 2)
	_, err = est.Estimate([]float64{1e6}, est.NewScratch(), out)
	require.NoError(t, err)
	assert.Equal(t, 1-MinProbability, out[0])
	assert.InDelta(t, MinProbability, out[1], 1e-15)
}

func TestEstimate_ThreeClassAgreesWithVotes(t *testing.T) {
	m := mustParse(t, testsupport.ThreeClassProbabilityModel)
	eval := decision.New(m)
	est, err := New(m, Config{})
	require.NoError(t, err)

	ds := eval.NewScratch()
	ps := est.NewScratch()
	out := make([]float64, 3)

	for _, input := range [][]float64{{2, 0}, {0, 2}, {-2, -2}} {
		voted := eval.PredictLabel(model.FromDense(input), 0, ds)
		class, err := est.Estimate(ds.Dec, ps, out)
		require.NoError(t, err)

		assert.InDelta(t, 1, sum(out), 1e-9)
		for _, v := range out {
			assert.True(t, v >= 0 && v <= 1)
		}
		assert.Equal(t, voted, class, "input %v", input)
	}
}

func TestCouple_RecoversConsistentDistribution(t *testing.T) {
	truth := []float64{0.5, 0.3, 0.2}
	k := len(truth)

	r := make([]float64, k*k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if i != j {
				r[i*k+j] = truth[i] / (truth[i] + truth[j])
			}
		}
	}

	p := make([]float64, k)
	iters, err := Couple(r, k, Config{Tolerance: 1e-10, MaxIterations: 1000}, make([]float64, k*k), make([]float64, k), p)
	require.NoError(t, err)
	assert.Greater(t, iters, 0)
	assert.InDeltaSlice(t, truth, p, 1e-6)
}

func TestCouple_UniformConvergesImmediately(t *testing.T) {
	m := mustParse(t, testsupport.UniformModel(5))
	eval := decision.New(m)
	est, err := New(m, Config{})
	require.NoError(t, err)

	ds := eval.NewScratch()
	eval.PredictLabel(model.FromDense([]float64{1, 2, 3}), 0, ds)

	out := make([]float64, 5)
	class, err := est.Estimate(ds.Dec, est.NewScratch(), out)
	require.NoError(t, err)
	for _, v := range out {
		assert.InDelta(t, 0.2, v, 1e-12)
	}
	assert.Equal(t, 0, class)
}

func TestCouple_IterationCap(t *testing.T) {
	m := mustParse(t, testsupport.ThreeClassProbabilityModel)
	eval := decision.New(m)
	est, err := New(m, Config{MaxIterations: 1, Tolerance: 1e-12})
	require.NoError(t, err)

	ds := eval.NewScratch()
	eval.PredictLabel(model.FromDense([]float64{2, 0}), 0, ds)

	out := make([]float64, 3)
	_, err = est.Estimate(ds.Dec, est.NewScratch(), out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNumericDegenerate))

	// the last iterate is still a distribution
	assert.InDelta(t, 1, sum(out), 1e-9)
}
