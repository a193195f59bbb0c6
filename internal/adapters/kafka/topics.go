package kafka

// Default topic names, overridable through KAFKA_REQUEST_TOPIC and
// KAFKA_RESULT_TOPIC
const (
	TopicPredictRequests = "svm.predict.requests"
	TopicPredictResults  = "svm.predict.results"
)

// PredictRequest asks for predictions on a batch of dense feature rows.
// All rows must have the same length.
type PredictRequest struct {
	ID            string      `json:"id"`
	Features      [][]float64 `json:"features"`
	Probabilities bool        `json:"probabilities,omitempty"`
}

// PredictResult answers one PredictRequest. Labels is set for classifiers,
// Values for regression models. Probabilities holds one row per request row
// when requested and the model is calibrated.
type PredictResult struct {
	ID            string      `json:"id"`
	Labels        []int32     `json:"labels,omitempty"`
	Probabilities [][]float64 `json:"probabilities,omitempty"`
	Values        []float64   `json:"values,omitempty"`
	Status        string      `json:"status"`
	Error         string      `json:"error,omitempty"`
}
