// Package probability converts decision values into class probabilities:
// a sigmoid per class pair followed by pairwise coupling across classes.
package probability

import (
	"fmt"
	"math"

	"svmengine/internal/domain/model"
	"svmengine/pkg/errors"
)

// MinProbability bounds every pairwise probability away from 0 and 1
const MinProbability = 1e-7

// Config controls the pairwise coupling iteration. Zero values select the
// defaults for the model's class count.
type Config struct {
	// MaxIterations caps the coupling loop, default max(100, classes)
	MaxIterations int
	// Tolerance is the stopping threshold on the largest deviation,
	// default 0.005 / classes
	Tolerance float64
}

// Resolve fills defaults for a model with the given class count
func (c Config) Resolve(classes int) Config {
	out := c
	if out.MaxIterations <= 0 {
		out.MaxIterations = 100
		if classes > out.MaxIterations {
			out.MaxIterations = classes
		}
	}
	if out.Tolerance <= 0 {
		out.Tolerance = 0.005 / float64(classes)
	}
	return out
}

// Validate rejects negative settings
func (c Config) Validate() error {
	if c.MaxIterations < 0 {
		return errors.NewValidationError(errors.ErrInvalidArgument, "max_iterations", "must be >= 0", c.MaxIterations)
	}
	if c.Tolerance < 0 || math.IsNaN(c.Tolerance) {
		return errors.NewValidationError(errors.ErrInvalidArgument, "tolerance", "must be >= 0", c.Tolerance)
	}
	return nil
}

// Estimator produces class probabilities for one calibrated model
type Estimator struct {
	calibration *model.Calibration
	classes     int
	cfg         Config
}

// New creates an estimator. It returns ErrNoProbabilityModel when the model
// carries no calibration.
func New(m *model.Model, cfg Config) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !m.HasProbability() || !m.Type.IsClassification() {
		return nil, errors.ErrNoProbabilityModel
	}

	return &Estimator{
		calibration: m.Probability,
		classes:     m.NumClasses(),
		cfg:         cfg.Resolve(m.NumClasses()),
	}, nil
}

// Config returns the resolved coupling configuration
func (e *Estimator) Config() Config {
	return e.cfg
}

// Scratch holds the buffers one estimate needs
type Scratch struct {
	R  []float64 // classes x classes pairwise probabilities
	Q  []float64 // classes x classes coupling matrix
	Qp []float64
}

// NewScratch allocates buffers for the estimator's class count
func (e *Estimator) NewScratch() *Scratch {
	c := e.classes
	return &Scratch{
		R:  make([]float64, c*c),
		Q:  make([]float64, c*c),
		Qp: make([]float64, c),
	}
}

// Estimate writes one probability per class into out and returns the most
// probable class index (lowest on ties). When coupling hits its iteration cap
// out holds the last iterate and the error wraps ErrNumericDegenerate.
func (e *Estimator) Estimate(dec []float64, s *Scratch, out []float64) (int, error) {
	c := e.classes
	if c == 1 {
		out[0] = 1
		return 0, nil
	}

	p := 0
	for i := 0; i < c; i++ {
		for j := i + 1; j < c; j++ {
			r := clip(SigmoidPredict(dec[p], e.calibration.A[p], e.calibration.B[p]))
			s.R[i*c+j] = r
			s.R[j*c+i] = 1 - r
			p++
		}
	}

	var err error
	if c == 2 {
		out[0] = s.R[1]
		out[1] = s.R[c]
	} else {
		_, err = Couple(s.R, c, e.cfg, s.Q, s.Qp, out)
	}
	return argmax(out), err
}

// SigmoidPredict evaluates 1 / (1 + exp(A*dec + B)) without overflow
func SigmoidPredict(dec, a, b float64) float64 {
	fApB := dec*a + b
	if fApB >= 0 {
		e := math.Exp(-fApB)
		return e / (1 + e)
	}
	return 1 / (1 + math.Exp(fApB))
}

// Couple solves the pairwise coupling problem for k classes: r is the k x k
// matrix of pairwise probabilities, q and qp are scratch of k*k and k
// entries. p receives the class distribution. It returns the number of
// iterations run.
func Couple(r []float64, k int, cfg Config, q, qp, p []float64) (int, error) {
	cfg = cfg.Resolve(k)

	for t := 0; t < k; t++ {
		p[t] = 1 / float64(k)
		q[t*k+t] = 0
		for j := 0; j < t; j++ {
			q[t*k+t] += r[j*k+t] * r[j*k+t]
			q[t*k+j] = q[j*k+t]
		}
		for j := t + 1; j < k; j++ {
			q[t*k+t] += r[j*k+t] * r[j*k+t]
			q[t*k+j] = -r[j*k+t] * r[t*k+j]
		}
	}

	iter := 0
	for ; iter < cfg.MaxIterations; iter++ {
		var pQp float64
		for t := 0; t < k; t++ {
			qp[t] = 0
			for j := 0; j < k; j++ {
				qp[t] += q[t*k+j] * p[j]
			}
			pQp += p[t] * qp[t]
		}

		var maxError float64
		for t := 0; t < k; t++ {
			if e := math.Abs(qp[t] - pQp); e > maxError {
				maxError = e
			}
		}
		if maxError < cfg.Tolerance {
			return iter, nil
		}

		for t := 0; t < k; t++ {
			diff := (-qp[t] + pQp) / q[t*k+t]
			p[t] += diff
			pQp = (pQp + diff*(diff*q[t*k+t]+2*qp[t])) / (1 + diff) / (1 + diff)
			for j := 0; j < k; j++ {
				qp[j] = (qp[j] + diff*q[t*k+j]) / (1 + diff)
				p[j] /= 1 + diff
			}
		}
	}

	return iter, errors.Wrap(errors.ErrNumericDegenerate,
		fmt.Sprintf("pairwise coupling stopped after %d iterations", iter))
}

func clip(r float64) float64 {
	return math.Min(math.Max(r, MinProbability), 1-MinProbability)
}

func argmax(p []float64) int {
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}
