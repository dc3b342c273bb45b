//go:build integration

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/rain-features/internal/domain"
	"github.com/couchcryptid/rain-features/internal/features"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	kc, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("rain-features-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = kc.Terminate(stopCtx)
	})

	brokers, err := kc.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

// createTopic creates a single-partition topic through the cluster controller.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// fittedModel fits a two-region pipeline on five observations. On
// 2020-01-15 the southern region has a Temp9am median of 18.5 and
// WindGustSpeed fences of (-10, 70).
func fittedModel(t *testing.T) *features.Pipeline {
	t.Helper()
	coords := features.CoordinateTableFrom([]domain.LocationCoordinate{
		{Location: "Albury", Latitude: -36.08, Longitude: 146.92},
		{Location: "Wodonga", Latitude: -36.12, Longitude: 146.89},
		{Location: "Darwin", Latitude: -12.46, Longitude: 130.84},
		{Location: "Katherine", Latitude: -14.47, Longitude: 132.26},
	})
	s := features.DefaultSettings()
	s.Assigner.Clusters = 2
	s.Assigner.Restarts = 4
	s.Imputer.NumericExclude = []string{domain.LatitudeColumn, domain.LongitudeColumn}
	s.Capper.Cap = []string{"Temp9am", "WindGustSpeed"}
	s.Capper.Log = []string{"WindGustSpeed"}
	s.Capper.Bins = s.Capper.Bins[:1]

	model, err := features.New(coords, s, features.WithLogger(discardLogger()))
	require.NoError(t, err)

	train := domain.NewFrame(5)
	require.NoError(t, train.SetCategorical(domain.LocationColumn, []string{"Albury", "Wodonga", "Albury", "Darwin", "Katherine"}))
	require.NoError(t, train.SetCategorical(domain.DateColumn, []string{"2020-01-15", "2020-01-15", "2020-01-16", "2020-01-15", "2020-01-16"}))
	require.NoError(t, train.SetNumeric("Temp9am", []float64{18, 19, 25, 30, 31}))
	require.NoError(t, train.SetNumeric("WindGustSpeed", []float64{10, 20, 30, 40, 50}))
	require.NoError(t, train.SetNumeric("Rainfall", []float64{0, 5, 12, 40, 2}))
	require.NoError(t, model.Fit(train))
	return model
}
