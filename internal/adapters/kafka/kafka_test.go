package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"svmengine/internal/testsupport"
)

func TestPredictResult_JSON(t *testing.T) {
	data, err := json.Marshal(PredictResult{ID: "r1", Labels: []int32{1, 2}, Status: "ok"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"r1","labels":[1,2],"status":"ok"}`, string(data))

	var req PredictRequest
	require.NoError(t, json.Unmarshal([]byte(`{"id":"q","features":[[1,0.5]],"probabilities":true}`), &req))
	assert.Equal(t, [][]float64{{1, 0.5}}, req.Features)
	assert.True(t, req.Probabilities)
}

func TestProducer_CloseWithoutWriters(t *testing.T) {
	p := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}})
	assert.NoError(t, p.Close())
}

func TestConsumer_ReadAfterCancel(t *testing.T) {
	c := NewConsumer(ConsumerConfig{Brokers: []string{"localhost:9092"}, GroupID: "g", Topic: "t"})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ReadMessageWithShutdownCheck(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProducer_PublishIntegration(t *testing.T) {
	cfg := testsupport.LoadKafkaConfigFromEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p := NewProducer(ProducerConfig{Brokers: cfg.Brokers})
	defer p.Close()

	id := testsupport.UniqueRequestID()
	require.NoError(t, p.Publish(ctx, cfg.ResultTopic, id, PredictResult{ID: id, Values: []float64{0.5}, Status: "ok"}))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   cfg.Brokers,
		Topic:     cfg.ResultTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, string(msg.Key))

	var got PredictResult
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, []float64{0.5}, got.Values)
}
