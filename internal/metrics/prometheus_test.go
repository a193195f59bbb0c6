package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

type staticSource []ModelStats

func (s staticSource) ModelStats() []ModelStats { return s }

func TestRecordModelLoad(t *testing.T) {
	before := testutil.ToFloat64(ModelLoads.WithLabelValues("error"))
	RecordModelLoad(time.Millisecond, errors.New("bad model"))
	assert.Equal(t, before+1, testutil.ToFloat64(ModelLoads.WithLabelValues("error")))
}

func TestRecordPredict(t *testing.T) {
	before := testutil.ToFloat64(Problems.WithLabelValues("test_op"))
	RecordPredict("test_op", "ok", 5, time.Millisecond)
	RecordPredict("test_op", "capacity_exceeded", 0, time.Millisecond)

	assert.Equal(t, before+5, testutil.ToFloat64(Problems.WithLabelValues("test_op")))
	assert.Equal(t, 1.0, testutil.ToFloat64(PredictCalls.WithLabelValues("test_op", "capacity_exceeded")))
}

func TestRecordCouplingNotConverged(t *testing.T) {
	before := testutil.ToFloat64(CouplingNotConverged)
	RecordCouplingNotConverged(0)
	RecordCouplingNotConverged(3)
	assert.Equal(t, before+3, testutil.ToFloat64(CouplingNotConverged))
}

func TestInit_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}

func TestModelCollector(t *testing.T) {
	collector := NewModelCollector(staticSource{
		{Context: "a", Loaded: true, Classes: 3, SupportVectors: 12, Attributes: 4, Capacity: 8, Probability: true},
		{Context: "b", Capacity: 1},
	})

	// unloaded contexts report only loaded and capacity
	assert.Equal(t, 8, testutil.CollectAndCount(collector))

	expected := `
# HELP svmengine_model_support_vectors Number of support vectors of the loaded model
# TYPE svmengine_model_support_vectors gauge
svmengine_model_support_vectors{context="a"} 12
`
	assert.NoError(t, testutil.CollectAndCompare(collector, strings.NewReader(expected), "svmengine_model_support_vectors"))
}
