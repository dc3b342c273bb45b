package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/rain-features/internal/domain"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("Albury"),
		Value:     []byte(`{"Location":"Albury"}`),
		Topic:     "raw-weather-observations",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("bom")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("Albury"), raw.Key)
	assert.JSONEq(t, `{"Location":"Albury"}`, string(raw.Value))
	assert.Equal(t, "raw-weather-observations", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "bom", raw.Headers["source"])
	assert.Nil(t, raw.Commit)
}

func TestToMessage(t *testing.T) {
	event := domain.OutputEvent{
		Key:   []byte("Albury|2020-01-15"),
		Value: []byte(`{"Temp9am":18.5}`),
		Headers: map[string]string{
			"processed_at": "2026-03-01T12:00:00Z",
			"artifact_id":  "a1",
		},
	}

	msg := toMessage(event)

	assert.Equal(t, []byte("Albury|2020-01-15"), msg.Key)
	assert.JSONEq(t, `{"Temp9am":18.5}`, string(msg.Value))
	assert.Equal(t, []kafkago.Header{
		{Key: "artifact_id", Value: []byte("a1")},
		{Key: "processed_at", Value: []byte("2026-03-01T12:00:00Z")},
	}, msg.Headers)
}
