package engine

import (
	"strconv"
	"time"

	"svmengine/internal/metrics"
	"svmengine/pkg/errors"
)

// Operation names used in logs and metrics
const (
	OpPredictValues         = "predict_values"
	OpPredictProbabilities  = "predict_probabilities"
	OpPredictRegression     = "predict_regression"
	OpPredictDecisionValues = "predict_decision_values"
)

type requirement int

const (
	requireAny requirement = iota
	requireClassifier
	requireRegressor
)

// PredictValues writes the predicted label of each of the n problems in
// features (n rows of stride values) to out.
func (c *Context) PredictValues(features []float64, stride int, out []int32, n int) error {
	start := time.Now()
	err := c.predictValues(features, stride, out, n)
	c.record(OpPredictValues, n, start, err)
	return err
}

// PredictProbabilities writes n*classes row-major class probabilities to out.
// Models without calibration get an all-zero output and
// ErrNoProbabilityModel.
func (c *Context) PredictProbabilities(features []float64, stride int, out []float64, n int) error {
	start := time.Now()
	err := c.predictProbabilities(features, stride, out, n)
	c.record(OpPredictProbabilities, n, start, err)
	return err
}

// PredictRegression writes the regression output of each problem to out
func (c *Context) PredictRegression(features []float64, stride int, out []float64, n int) error {
	start := time.Now()
	err := c.predictRegression(features, stride, out, n)
	c.record(OpPredictRegression, n, start, err)
	return err
}

// PredictDecisionValues writes n*pairs raw decision values to out, pairs
// ordered as model.PairIndex. Regression models write one value per problem.
func (c *Context) PredictDecisionValues(features []float64, stride int, out []float64, n int) error {
	start := time.Now()
	err := c.predictDecisionValues(features, stride, out, n)
	c.record(OpPredictDecisionValues, n, start, err)
	return err
}

func (c *Context) predictValues(features []float64, stride int, out []int32, n int) error {
	if err := c.validate(features, stride, n, requireClassifier); err != nil {
		return err
	}
	if len(out) != n {
		return dimensionError("out_labels", n, len(out))
	}
	if n == 0 {
		return nil
	}

	classes := c.model.Classes
	err := c.run(features, stride, n, func(s *slot, p int) {
		class := c.eval.PredictLabel(s.input, s.residual, s.dec)
		c.labels[p] = classes[class].Label
	})
	if err != nil {
		return err
	}

	copy(out, c.labels[:n])
	return nil
}

func (c *Context) predictProbabilities(features []float64, stride int, out []float64, n int) error {
	if err := c.validate(features, stride, n, requireClassifier); err != nil {
		return err
	}
	classes := c.model.NumClasses()
	if len(out) != n*classes {
		return dimensionError("out_probabilities", n*classes, len(out))
	}

	if c.est == nil {
		for i := range out {
			out[i] = 0
		}
		return errors.ErrNoProbabilityModel
	}

	c.notConverged = 0
	if n == 0 {
		return nil
	}

	err := c.run(features, stride, n, func(s *slot, p int) {
		c.eval.KernelRow(s.input, s.residual, s.dec.KValue)
		c.eval.DecisionValues(s.dec.KValue, s.dec.Dec)

		row := c.staging[p*classes : (p+1)*classes]
		if _, err := c.est.Estimate(s.dec.Dec, s.prob, row); err != nil {
			if !errors.Is(err, errors.ErrNumericDegenerate) {
				s.fail(errors.Wrapf(err, "problem %d", p))
				return
			}
			s.notConverged++
		}
	})
	if err != nil {
		return err
	}

	for _, s := range c.slots {
		c.notConverged += s.notConverged
	}
	if c.notConverged > 0 {
		metrics.RecordCouplingNotConverged(c.notConverged)
		c.log.Warnw("Pairwise coupling hit the iteration cap, returning last iterate",
			"problems", c.notConverged,
			"max_iterations", c.est.Config().MaxIterations,
			"tolerance", c.est.Config().Tolerance,
		)
	}

	copy(out, c.staging[:n*classes])
	return nil
}

func (c *Context) predictRegression(features []float64, stride int, out []float64, n int) error {
	if err := c.validate(features, stride, n, requireRegressor); err != nil {
		return err
	}
	if len(out) != n {
		return dimensionError("out_values", n, len(out))
	}
	if n == 0 {
		return nil
	}

	err := c.run(features, stride, n, func(s *slot, p int) {
		c.staging[p] = c.eval.PredictValue(s.input, s.residual, s.dec)
	})
	if err != nil {
		return err
	}

	copy(out, c.staging[:n])
	return nil
}

func (c *Context) predictDecisionValues(features []float64, stride int, out []float64, n int) error {
	if err := c.validate(features, stride, n, requireAny); err != nil {
		return err
	}
	pairs := c.model.NumPairs()
	if len(out) != n*pairs {
		return dimensionError("out_values", n*pairs, len(out))
	}
	if n == 0 {
		return nil
	}

	regression := c.model.Type.IsRegression()
	err := c.run(features, stride, n, func(s *slot, p int) {
		if regression {
			c.staging[p] = c.eval.PredictValue(s.input, s.residual, s.dec)
			return
		}
		c.eval.KernelRow(s.input, s.residual, s.dec.KValue)
		c.eval.DecisionValues(s.dec.KValue, c.staging[p*pairs:(p+1)*pairs])
	})
	if err != nil {
		return err
	}

	copy(out, c.staging[:n*pairs])
	return nil
}

// validate rejects a call before any work is done
func (c *Context) validate(features []float64, stride, n int, req requirement) error {
	if n < 0 {
		return errors.NewValidationError(errors.ErrInvalidArgument, "n_problems", "must be >= 0", n)
	}
	if c.model == nil {
		return errors.ErrNoModelLoaded
	}

	switch {
	case req == requireClassifier && !c.model.Type.IsClassification():
		return errors.NewValidationError(errors.ErrUnsupportedOperation, "svm_type",
			"operation needs a classification model", c.model.Type)
	case req == requireRegressor && !c.model.Type.IsRegression():
		return errors.NewValidationError(errors.ErrUnsupportedOperation, "svm_type",
			"operation needs a regression model", c.model.Type)
	}

	if n > c.capacity {
		return errors.NewValidationError(errors.ErrCapacityExceeded, "n_problems",
			"exceeds context capacity "+strconv.Itoa(c.capacity), n)
	}
	if stride < 1 {
		return errors.NewValidationError(errors.ErrDimensionMismatch, "stride", "must be >= 1", stride)
	}
	if len(features) != n*stride {
		return dimensionError("features", n*stride, len(features))
	}
	return nil
}

func (c *Context) record(op string, n int, start time.Time, err error) {
	status := StatusLabel(err)
	solved := 0
	if err == nil || errors.Is(err, errors.ErrNoProbabilityModel) {
		solved = n
	}
	metrics.RecordPredict(op, status, solved, time.Since(start))

	if err != nil && !errors.Is(err, errors.ErrNoProbabilityModel) {
		c.log.Debugw("Predict rejected", "operation", op, "problems", n, "error", err)
	}
}

// StatusLabel maps a predict error to its metrics label
func StatusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errors.ErrNoProbabilityModel):
		return "no_probability_model"
	case errors.Is(err, errors.ErrNoModelLoaded):
		return "no_model_loaded"
	case errors.Is(err, errors.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, errors.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, errors.ErrUnsupportedOperation):
		return "unsupported_operation"
	case errors.Is(err, errors.ErrInvalidArgument):
		return "invalid_argument"
	}
	return "internal"
}

func dimensionError(field string, want, got int) error {
	return errors.NewValidationError(errors.ErrDimensionMismatch, field,
		"expected length "+strconv.Itoa(want), got)
}
