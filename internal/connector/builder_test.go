package connector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/lsm/sinkforge/internal/kafka"
	"github.com/lsm/sinkforge/internal/schema"
)

func testKafkaBuilder() *KafkaSinkBuilder {
	return &KafkaSinkBuilder{
		TopicPrefix: "orders",
		TopicSuffix: "sink",
		Cluster:     &kafka.ClusterConfig{Brokers: []string{"broker-1:9092", "broker-2:9092"}},
		RegistryURL: "http://registry:8081",
		ValueSchema: `{"type":"record"}`,
	}
}

func TestBuild_KafkaTopicNameIsDeterministic(t *testing.T) {
	admin := &fakeAdmin{brokers: []int32{1}}
	registry := &fakeRegistry{}
	b := newTestBuilder(admin, registry)

	sb := testKafkaBuilder()
	sb.PartitionCount = int32p(1)
	sb.ReplicationFactor = int16p(1)

	conn, err := b.Build(context.Background(), sb, SinkID("7"))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	kc, ok := conn.(*KafkaSinkConnector)
	if !ok {
		t.Fatalf("expected *KafkaSinkConnector, got %T", conn)
	}
	if kc.Topic != "orders-7-sink" {
		t.Errorf("topic = %q, want orders-7-sink", kc.Topic)
	}
	if admin.created[0].topic != "orders-7-sink" {
		t.Errorf("created topic = %q, want orders-7-sink", admin.created[0].topic)
	}
}

func TestBuild_KafkaPassthrough(t *testing.T) {
	admin := &fakeAdmin{brokers: []int32{1}}
	registry := &fakeRegistry{}
	b := newTestBuilder(admin, registry)

	sb := testKafkaBuilder()
	sb.PartitionCount = int32p(1)
	sb.ReplicationFactor = int16p(1)
	sb.Fuel = 1000
	sb.ConfigOptions = map[string]string{"linger.ms": "5", "mystery.option": "x"}
	sb.ValueDesc = RowDescriptor{Fields: []FieldDescriptor{{Name: "id", Type: "long"}}}

	conn, err := b.Build(context.Background(), sb, SinkID("42"))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	kc := conn.(*KafkaSinkConnector)
	if kc.Fuel != 1000 {
		t.Errorf("fuel = %d, want 1000", kc.Fuel)
	}
	if kc.ConfigOptions["mystery.option"] != "x" {
		t.Errorf("config options not passed through verbatim: %v", kc.ConfigOptions)
	}
	if len(kc.Brokers) != 2 || kc.Brokers[0] != "broker-1:9092" {
		t.Errorf("brokers = %v, want cluster brokers", kc.Brokers)
	}
	if len(kc.ValueDesc.Fields) != 1 || kc.ValueDesc.Fields[0].Name != "id" {
		t.Errorf("value descriptor not passed through: %+v", kc.ValueDesc)
	}
	if kc.Key != nil {
		t.Errorf("expected no key, got %+v", kc.Key)
	}
	if kc.Consistency != nil {
		t.Errorf("expected no consistency connector, got %+v", kc.Consistency)
	}
}

func TestBuild_ConsistencyTopicSinglePartition(t *testing.T) {
	admin := &fakeAdmin{brokers: []int32{1}}
	registry := &fakeRegistry{}
	b := newTestBuilder(admin, registry)

	sb := testKafkaBuilder()
	sb.PartitionCount = int32p(8)
	sb.ReplicationFactor = int16p(3)
	sb.ConsistencyValueSchema = `{"type":"record","name":"consistency"}`

	conn, err := b.Build(context.Background(), sb, SinkID("9"))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	kc := conn.(*KafkaSinkConnector)
	if kc.Consistency == nil {
		t.Fatal("expected consistency connector")
	}
	if kc.Consistency.Topic != "orders-9-sink-consistency" {
		t.Errorf("consistency topic = %q, want orders-9-sink-consistency", kc.Consistency.Topic)
	}
	if kc.Consistency.SchemaID == 0 {
		t.Error("expected non-zero consistency schema id")
	}

	if len(admin.created) != 2 {
		t.Fatalf("expected 2 created topics, got %d", len(admin.created))
	}
	consistency := admin.created[1]
	if consistency.partitions != 1 {
		t.Errorf("consistency partitions = %d, want 1 regardless of the primary count", consistency.partitions)
	}
	if consistency.replication != 3 {
		t.Errorf("consistency replication = %d, want 3", consistency.replication)
	}

	for _, subject := range registry.subjects {
		if strings.HasSuffix(subject, "-consistency-key") {
			t.Errorf("consistency topic must not carry a key schema, published %v", registry.subjects)
		}
	}
	if registry.schemas["orders-9-sink-consistency-value"] == "" {
		t.Errorf("consistency value schema not published: %v", registry.subjects)
	}
}

func TestBuild_ConsistencyResolvesReplicationFromDefaults(t *testing.T) {
	admin := &fakeAdmin{
		brokers: []int32{1},
		configEntries: map[string]string{
			"num.partitions":             "4",
			"default.replication.factor": "2",
		},
	}
	registry := &fakeRegistry{}
	b := newTestBuilder(admin, registry)

	sb := testKafkaBuilder()
	sb.ConsistencyValueSchema = `{}`

	_, err := b.Build(context.Background(), sb, SinkID("1"))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// Primary resolves both defaults; the consistency topic pins its
	// partition count and re-resolves only the replication factor.
	if admin.describeCalls != 2 {
		t.Errorf("expected 2 config queries, got %d", admin.describeCalls)
	}
	if got := admin.created[1]; got.partitions != 1 || got.replication != 2 {
		t.Errorf("consistency created with partitions=%d replication=%d, want 1/2", got.partitions, got.replication)
	}
}

func TestBuild_UnknownBuilderType(t *testing.T) {
	b := newTestBuilder(&fakeAdmin{}, &fakeRegistry{})

	_, err := b.Build(context.Background(), nil, SinkID("1"))
	if err == nil {
		t.Fatal("expected error for unsupported builder type")
	}
	if !strings.Contains(err.Error(), "unsupported sink connector builder") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuild_AdminFactoryFailure(t *testing.T) {
	cause := errors.New("no route to broker")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := NewBuilder(logger,
		WithAdminFactory(func(*kafka.ClusterConfig) (kafka.Admin, func(), error) {
			return nil, nil, cause
		}),
	)

	sb := testKafkaBuilder()
	_, err := b.Build(context.Background(), sb, SinkID("1"))
	if !errors.Is(err, cause) {
		t.Fatalf("expected admin factory error to be wrapped, got %v", err)
	}
}

func TestBuild_RegistryFactoryFailure(t *testing.T) {
	cause := errors.New("bad registry url")
	admin := &fakeAdmin{brokers: []int32{1}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := NewBuilder(logger,
		WithAdminFactory(func(*kafka.ClusterConfig) (kafka.Admin, func(), error) {
			return admin, func() {}, nil
		}),
		WithRegistryFactory(func(string) (schema.Publisher, error) {
			return nil, cause
		}),
	)

	sb := testKafkaBuilder()
	_, err := b.Build(context.Background(), sb, SinkID("1"))
	if !errors.Is(err, cause) {
		t.Fatalf("expected registry factory error to be wrapped, got %v", err)
	}
	if admin.createCalls != 0 {
		t.Errorf("no topic creation should happen without a registry client, got %d", admin.createCalls)
	}
}

func TestBuild_KeySchemaRoundTrip(t *testing.T) {
	admin := &fakeAdmin{brokers: []int32{1}}
	registry := &fakeRegistry{}
	b := newTestBuilder(admin, registry)

	sb := testKafkaBuilder()
	sb.PartitionCount = int32p(1)
	sb.ReplicationFactor = int16p(1)
	sb.Key = &KeySchema{
		Schema:  `{"type":"record","name":"key"}`,
		Desc:    RowDescriptor{Fields: []FieldDescriptor{{Name: "id", Type: "long"}}},
		Indices: []int{0},
	}

	conn, err := b.Build(context.Background(), sb, SinkID("3"))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	kc := conn.(*KafkaSinkConnector)
	if kc.KeySchemaID == nil {
		t.Fatal("expected key schema id")
	}
	if kc.Key == nil || len(kc.Key.Indices) != 1 || kc.Key.Indices[0] != 0 {
		t.Errorf("key descriptor not passed through: %+v", kc.Key)
	}
	if registry.schemas["orders-3-sink-key"] == "" {
		t.Errorf("key schema not published under orders-3-sink-key: %v", registry.subjects)
	}
}
