package kp

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/go-test/deep"

	"github.com/jmakaron/dbcursor/internal/app/dbcursor/types"
	"github.com/jmakaron/dbcursor/internal/pkg/cursor"
)

func TestProducerCfgDefaults(t *testing.T) {
	cfg := ProducerCfg{BootstrapServers: "127.0.0.1:9092", MaxInFlight: 1}
	if !cfg.Enabled() || (ProducerCfg{}).Enabled() {
		t.Fatalf("unexpected Enabled result")
	}
	cfg.setDefaults()
	expected := ProducerCfg{
		BootstrapServers:    "127.0.0.1:9092",
		MaxInFlight:         1,
		QueueBufferingMaxMs: 100,
		CompressionCodec:    "none",
		Debug:               ",",
	}
	if diff := deep.Equal(cfg, expected); diff != nil {
		t.Errorf("unexpected defaults: %v", diff)
	}
}

// TestKafkaIntegration needs a broker, set KAFKA_BOOTSTRAP_SERVERS to run it.
func TestKafkaIntegration(t *testing.T) {
	servers := os.Getenv("KAFKA_BOOTSTRAP_SERVERS")
	if servers == "" {
		t.Skip("KAFKA_BOOTSTRAP_SERVERS not set")
	}
	cfg := ProducerCfg{
		BootstrapServers:    servers,
		Acks:                -1,
		EnableIdempotence:   false,
		MaxInFlight:         5,
		Retries:             5,
		QueueBufferingMaxMs: 100,
		CompressionCodec:    "none",
		Debug:               ",",
	}
	p := New(cfg)
	ctx := context.Background()
	if err := p.Connect(ctx); err != nil {
		t.Fatalf("failed to connect producer to kafka, %+v", err)
	}
	entries := []cursor.QueryLogEntry{
		{SQL: "SELECT 1", Time: "0.001"},
		{SQL: "INSERT INTO t VALUES (1)", Time: "0.004"},
		{SQL: "2 times: UPDATE t SET a = $1", Time: "0.010"},
	}
	sent := map[string]*types.QueryEvent{}
	evts := make([]KEvent, len(entries))
	for i, entry := range entries {
		e := types.NewQueryEvent("postgres", i, entry)
		sent[e.ID] = e
		evts[i] = e
	}
	if err := p.PublishWithRetry(evts...); err != nil {
		t.Fatalf("failed to publish messages to kafka with retries, %+v", err)
	}
	defer p.Disconnect()

	config := kafka.ConfigMap{
		kafkaCFGBootstrapServers: servers,
		"group.id":               "test_group",
		"auto.offset.reset":      "earliest",
	}
	kc, err := kafka.NewConsumer(&config)
	if err != nil {
		t.Fatalf("failed to create consumer, %+v", err)
	}
	defer kc.Close()
	if err = kc.Subscribe(*evts[0].Topic(), nil); err != nil {
		t.Fatalf("failed to subscribe to %q topic, %+v", *evts[0].Topic(), err)
	}
	defer kc.Unsubscribe()

	received := map[string]*types.QueryEvent{}
	deadline := time.Now().Add(30 * time.Second)
	for len(received) < len(sent) && time.Now().Before(deadline) {
		m, err := kc.ReadMessage(500 * time.Millisecond)
		if err != nil {
			var kErr kafka.Error
			if errors.As(err, &kErr) && kErr.IsFatal() {
				t.Fatalf("received fatal error from kafka, %+v", err)
			}
			continue
		}
		e, err := types.ParseQueryEvent(m.Value)
		if err != nil {
			t.Fatalf("could not decode kafka message, %+v", err)
		}
		if _, ok := sent[string(m.Key)]; ok {
			received[string(m.Key)] = e
		}
	}
	for id, e := range sent {
		got, ok := received[id]
		if !ok {
			t.Errorf("expected to find message with id '%s' but didnt find it", id)
			continue
		}
		if diff := deep.Equal(got, e); diff != nil {
			t.Errorf("unexpected event %s: %v", id, diff)
		}
	}
}
