// Command libsvmengine builds the engine as a C shared library:
//
//	go build -buildmode=c-shared -o libsvmengine.so ./cmd/libsvmengine
//
// Every export returns an int32 status; see internal/boundary for the codes.
// Engine defaults come from the ENGINE_* environment variables read once at
// load time.
package main

/*
#include <stdint.h>
*/
import "C"

import (
	"os"
	"unsafe"

	"github.com/kelseyhightower/envconfig"

	"svmengine/internal/adapters/config"
	"svmengine/internal/boundary"
	"svmengine/internal/engine"
	"svmengine/internal/probability"
	"svmengine/pkg/logger"
)

var registry *boundary.Registry

func init() {
	var cfg config.EngineConfig
	if err := envconfig.Process("", &cfg); err != nil {
		// fall back to single-worker contexts
		cfg = config.EngineConfig{}
	}

	log := logger.Nop()
	if level, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if l, err := logger.New(level, "production"); err == nil {
			log = l
		}
	}

	registry = boundary.NewRegistry(engine.Config{
		Workers: cfg.Workers,
		Coupling: probability.Config{
			MaxIterations: cfg.CouplingMaxIterations,
			Tolerance:     cfg.CouplingTolerance,
		},
	}, log, nil)
}

//export svm_context_create
func svm_context_create(outHandle *C.uint64_t) C.int32_t {
	if outHandle == nil {
		return C.int32_t(boundary.StatusNullPointer)
	}
	h, status := registry.Create()
	*outHandle = C.uint64_t(h)
	return C.int32_t(status)
}

//export svm_context_destroy
func svm_context_destroy(handle C.uint64_t) C.int32_t {
	return C.int32_t(registry.Destroy(boundary.Handle(handle)))
}

//export svm_set_capacity
func svm_set_capacity(handle C.uint64_t, capacity C.uint64_t) C.int32_t {
	return C.int32_t(registry.SetCapacity(boundary.Handle(handle), uint64(capacity)))
}

//export svm_load_model
func svm_load_model(handle C.uint64_t, text *C.char, length C.uint64_t) C.int32_t {
	if text == nil {
		return C.int32_t(boundary.StatusNullPointer)
	}
	buf, status := boundary.Bytes(unsafe.Pointer(text), uint64(length))
	if status != boundary.StatusOK {
		return C.int32_t(status)
	}
	return C.int32_t(registry.LoadModel(boundary.Handle(handle), buf))
}

//export svm_predict_values
func svm_predict_values(handle C.uint64_t, features *C.double, nFeatures C.uint64_t, outLabels *C.int32_t, nProblems C.uint64_t) C.int32_t {
	in, status := doubles(features, nFeatures)
	if status != boundary.StatusOK {
		return C.int32_t(status)
	}
	out, status := int32s(outLabels, nProblems)
	if status != boundary.StatusOK {
		return C.int32_t(status)
	}
	return C.int32_t(registry.PredictValues(boundary.Handle(handle), in, out, uint64(nProblems)))
}

//export svm_predict_probabilities
func svm_predict_probabilities(handle C.uint64_t, features *C.double, nFeatures C.uint64_t, outProbs *C.double, nProbs C.uint64_t) C.int32_t {
	in, status := doubles(features, nFeatures)
	if status != boundary.StatusOK {
		return C.int32_t(status)
	}
	out, status := doubles(outProbs, nProbs)
	if status != boundary.StatusOK {
		return C.int32_t(status)
	}
	return C.int32_t(registry.PredictProbabilities(boundary.Handle(handle), in, out))
}

//export svm_predict_regression
func svm_predict_regression(handle C.uint64_t, features *C.double, nFeatures C.uint64_t, outValues *C.double, nValues C.uint64_t) C.int32_t {
	in, status := doubles(features, nFeatures)
	if status != boundary.StatusOK {
		return C.int32_t(status)
	}
	out, status := doubles(outValues, nValues)
	if status != boundary.StatusOK {
		return C.int32_t(status)
	}
	return C.int32_t(registry.PredictRegression(boundary.Handle(handle), in, out))
}

//export svm_class_count
func svm_class_count(handle C.uint64_t, outCount *C.int32_t) C.int32_t {
	if outCount == nil {
		return C.int32_t(boundary.StatusNullPointer)
	}
	n, status := registry.ClassCount(boundary.Handle(handle))
	if status == boundary.StatusOK {
		*outCount = C.int32_t(n)
	}
	return C.int32_t(status)
}

//export svm_labels
func svm_labels(handle C.uint64_t, outLabels *C.int32_t, nLabels C.uint64_t) C.int32_t {
	if outLabels == nil {
		return C.int32_t(boundary.StatusNullPointer)
	}
	out, status := int32s(outLabels, nLabels)
	if status != boundary.StatusOK {
		return C.int32_t(status)
	}
	return C.int32_t(registry.Labels(boundary.Handle(handle), out))
}

func doubles(p *C.double, n C.uint64_t) ([]float64, boundary.Status) {
	return boundary.Float64s(unsafe.Pointer(p), uint64(n))
}

func int32s(p *C.int32_t, n C.uint64_t) ([]int32, boundary.Status) {
	return boundary.Int32s(unsafe.Pointer(p), uint64(n))
}

func main() {}
