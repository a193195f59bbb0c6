package main

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"svmengine/internal/adapters/config"
	"svmengine/internal/dataset"
	"svmengine/internal/engine"
	"svmengine/pkg/errors"
	"svmengine/pkg/logger"
)

// batchSummary is what a batch run reports once every row is predicted
type batchSummary struct {
	Rows     int
	Correct  int
	SqError  float64
	Duration time.Duration
}

// runBatch predicts every row of a libsvm data file and writes one line per
// row: the label (followed by class probabilities when requested) or the
// regression value
func runBatch(ctx context.Context, cfg config.BatchConfig, ectx *engine.Context, w io.Writer, log *logger.Logger) error {
	set, err := dataset.ReadFile(cfg.InputPath, ectx.Model().NumAttributes)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(w)
	summary, err := predictSet(ctx, set, cfg.Probabilities, ectx, out)
	if err != nil {
		return err
	}
	if err := out.Flush(); err != nil {
		return errors.Wrap(err, "write predictions")
	}

	fields := []interface{}{
		"input", cfg.InputPath,
		"rows", humanize.Comma(int64(summary.Rows)),
		"duration", summary.Duration,
	}
	if summary.Rows > 0 {
		if ectx.Model().Type.IsRegression() {
			fields = append(fields, "mse", summary.SqError/float64(summary.Rows))
		} else {
			fields = append(fields, "accuracy", humanize.FtoaWithDigits(100*float64(summary.Correct)/float64(summary.Rows), 2)+"%")
		}
	}
	if n := ectx.NotConverged(); n > 0 {
		fields = append(fields, "coupling_not_converged", n)
	}
	log.Infow("Batch prediction complete", fields...)
	return nil
}

func predictSet(ctx context.Context, set *dataset.Set, probabilities bool, ectx *engine.Context, out *bufio.Writer) (batchSummary, error) {
	start := time.Now()
	m := ectx.Model()
	size := ectx.Capacity()
	classes := m.NumClasses()
	regression := m.Type.IsRegression()

	var (
		labels = make([]int32, size)
		values = make([]float64, size)
		probs  = make([]float64, size*classes)
		sum    = batchSummary{Rows: set.Len()}
	)
	if probabilities && !regression && !m.HasProbability() {
		return sum, errors.Wrap(errors.ErrNoProbabilityModel, "probabilities requested")
	}

	for first := 0; first < set.Len(); first += size {
		if err := ctx.Err(); err != nil {
			return sum, errors.Wrapf(err, "stopped at row %d", first)
		}

		rows, n := set.Chunk(first, size)
		switch {
		case regression:
			if err := ectx.PredictRegression(rows, set.Width, values[:n], n); err != nil {
				return sum, errors.Wrapf(err, "rows %d-%d", first, first+n-1)
			}
		default:
			if err := ectx.PredictValues(rows, set.Width, labels[:n], n); err != nil {
				return sum, errors.Wrapf(err, "rows %d-%d", first, first+n-1)
			}
			if probabilities {
				if err := ectx.PredictProbabilities(rows, set.Width, probs[:n*classes], n); err != nil {
					return sum, errors.Wrapf(err, "rows %d-%d", first, first+n-1)
				}
			}
		}

		for i := 0; i < n; i++ {
			target := set.Targets[first+i]
			if regression {
				d := values[i] - target
				sum.SqError += d * d
				out.WriteString(strconv.FormatFloat(values[i], 'g', -1, 64))
			} else {
				if float64(labels[i]) == target {
					sum.Correct++
				}
				out.WriteString(strconv.FormatInt(int64(labels[i]), 10))
				if probabilities {
					for _, p := range probs[i*classes : (i+1)*classes] {
						out.WriteByte(' ')
						out.WriteString(strconv.FormatFloat(p, 'g', 6, 64))
					}
				}
			}
			out.WriteByte('\n')
		}
	}

	sum.Duration = time.Since(start)
	return sum, nil
}
