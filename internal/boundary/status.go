package boundary

import (
	"svmengine/pkg/errors"
)

// Status is the integer result every boundary call returns. Zero is success,
// positive values are successes with a caveat, negative values are failures.
type Status int32

const (
	StatusOK                   Status = 0
	StatusNoProbabilityModel   Status = 1
	StatusNullPointer          Status = -1
	StatusInvalidHandle        Status = -2
	StatusInvalidArgument      Status = -3
	StatusParseError           Status = -20
	StatusNoModelLoaded        Status = -31
	StatusCapacityExceeded     Status = -40
	StatusDimensionMismatch    Status = -41
	StatusUnsupportedOperation Status = -50
	StatusInternal             Status = -99
)

// Failed reports whether the call failed
func (s Status) Failed() bool {
	return s < 0
}

// String returns string representation
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNoProbabilityModel:
		return "no_probability_model"
	case StatusNullPointer:
		return "null_pointer"
	case StatusInvalidHandle:
		return "invalid_handle"
	case StatusInvalidArgument:
		return "invalid_argument"
	case StatusParseError:
		return "parse_error"
	case StatusNoModelLoaded:
		return "no_model_loaded"
	case StatusCapacityExceeded:
		return "capacity_exceeded"
	case StatusDimensionMismatch:
		return "dimension_mismatch"
	case StatusUnsupportedOperation:
		return "unsupported_operation"
	case StatusInternal:
		return "internal"
	}
	return "unknown"
}

// StatusOf maps an engine error to its status code
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, errors.ErrNoProbabilityModel):
		return StatusNoProbabilityModel
	case errors.Is(err, errors.ErrNumericDegenerate):
		// last iterate was written
		return StatusOK
	case errors.Is(err, errors.ErrInvalidHandle):
		return StatusInvalidHandle
	case errors.Is(err, errors.ErrParse):
		return StatusParseError
	case errors.Is(err, errors.ErrNoModelLoaded):
		return StatusNoModelLoaded
	case errors.Is(err, errors.ErrCapacityExceeded):
		return StatusCapacityExceeded
	case errors.Is(err, errors.ErrDimensionMismatch):
		return StatusDimensionMismatch
	case errors.Is(err, errors.ErrUnsupportedOperation):
		return StatusUnsupportedOperation
	case errors.Is(err, errors.ErrInvalidArgument):
		return StatusInvalidArgument
	}
	return StatusInternal
}
