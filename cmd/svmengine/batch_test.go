package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"svmengine/internal/adapters/config"
	"svmengine/internal/engine"
	"svmengine/internal/testsupport"
	"svmengine/pkg/errors"
	"svmengine/pkg/logger"
)

func newTestLogger() *logger.Logger {
	zapLog, _ := zap.NewDevelopment()
	return &logger.Logger{SugaredLogger: zapLog.Sugar()}
}

func newEngine(t *testing.T, capacity int, modelText string) *engine.Context {
	t.Helper()
	c, err := engine.New(engine.Config{Capacity: capacity, Workers: 2}, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, c.LoadModel([]byte(modelText)))
	return c
}

func writeData(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.libsvm")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	return path
}

func TestRunBatch_Labels(t *testing.T) {
	ectx := newEngine(t, 2, testsupport.ThreeClassLinearModel)
	path := writeData(t, "1 1:2\n2 2:2\n3 1:-2 2:-2\n1 2:2\n")

	var out bytes.Buffer
	err := runBatch(context.Background(), config.BatchConfig{InputPath: path}, ectx, &out, newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n2\n", out.String())
}

func TestRunBatch_Probabilities(t *testing.T) {
	ectx := newEngine(t, 4, testsupport.ThreeClassProbabilityModel)
	path := writeData(t, "1 1:2\n3 1:-2 2:-2\n")

	var out bytes.Buffer
	err := runBatch(context.Background(), config.BatchConfig{InputPath: path, Probabilities: true}, ectx, &out, newTestLogger())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Len(t, strings.Fields(line), 4, "label plus three probabilities: %q", line)
	}
	assert.True(t, strings.HasPrefix(lines[0], "1 "))
	assert.True(t, strings.HasPrefix(lines[1], "3 "))
}

func TestRunBatch_ProbabilitiesWithoutCalibration(t *testing.T) {
	ectx := newEngine(t, 1, testsupport.ThreeClassLinearModel)
	path := writeData(t, "1 1:2\n")

	var out bytes.Buffer
	err := runBatch(context.Background(), config.BatchConfig{InputPath: path, Probabilities: true}, ectx, &out, newTestLogger())
	assert.ErrorIs(t, err, errors.ErrNoProbabilityModel)
	assert.Empty(t, out.String())
}

func TestRunBatch_Regression(t *testing.T) {
	ectx := newEngine(t, 1, testsupport.RegressionModel)
	path := writeData(t, "0.9 1:2\n-0.1 1:2 2:4\n")

	var out bytes.Buffer
	err := runBatch(context.Background(), config.BatchConfig{InputPath: path}, ectx, &out, newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, "0.9\n-0.1\n", out.String())
}

func TestRunBatch_MissingInput(t *testing.T) {
	ectx := newEngine(t, 1, testsupport.ThreeClassLinearModel)

	var out bytes.Buffer
	err := runBatch(context.Background(), config.BatchConfig{InputPath: filepath.Join(t.TempDir(), "absent")}, ectx, &out, newTestLogger())
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestRunBatch_Cancelled(t *testing.T) {
	ectx := newEngine(t, 1, testsupport.ThreeClassLinearModel)
	path := writeData(t, "1 1:2\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := runBatch(ctx, config.BatchConfig{InputPath: path}, ectx, &out, newTestLogger())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngineConfig(t *testing.T) {
	got := engineConfig(config.EngineConfig{Capacity: 8, Workers: 3, CouplingMaxIterations: 50, CouplingTolerance: 1e-4})
	assert.Equal(t, 8, got.Capacity)
	assert.Equal(t, 3, got.Workers)
	assert.Equal(t, 50, got.Coupling.MaxIterations)
	assert.Equal(t, 1e-4, got.Coupling.Tolerance)
}
