package testsupport

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	// Global counter for generating unique sequential IDs in tests
	testSequence uint64

	// Base timestamp to make names shorter
	baseTimestamp = time.Now().UnixNano()
)

func init() {
	// Initialize with current timestamp to ensure uniqueness across test runs
	testSequence = uint64(baseTimestamp % 1000000)
}

// NextSequence returns next unique sequence number
func NextSequence() uint64 {
	return atomic.AddUint64(&testSequence, 1)
}

// UniqueName generates a unique name with given prefix
// Example: UniqueName("svm.predict.requests") -> "svm.predict.requests_123456"
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, NextSequence())
}

// UniqueKey generates a unique redis key under the svmengine test namespace
// Example: UniqueKey("model") -> "svmengine:test:model:123456"
func UniqueKey(prefix string) string {
	return fmt.Sprintf("svmengine:test:%s:%d", prefix, NextSequence())
}

// UniqueRequestID generates a unique prediction request ID
func UniqueRequestID() string {
	return fmt.Sprintf("req_%d_%s", NextSequence(), uuid.New().String()[:8])
}
