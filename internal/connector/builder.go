package connector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/lsm/sinkforge/internal/kafka"
	"github.com/lsm/sinkforge/internal/observability"
	"github.com/lsm/sinkforge/internal/schema"
	"github.com/lsm/sinkforge/internal/tracing"
)

// AdminFactory opens an administrative connection to the builder's cluster.
// The returned close function releases the connection when the build ends.
type AdminFactory func(cfg *kafka.ClusterConfig) (kafka.Admin, func(), error)

// RegistryFactory builds a schema registry client for the given base URL.
type RegistryFactory func(baseURL string) (schema.Publisher, error)

// Builder provisions sink connectors. A single Builder may serve concurrent
// builds; each build opens and closes its own broker and registry clients
// and shares no state with other builds.
type Builder struct {
	logger      *observability.TraceLogger
	tracer      trace.Tracer
	metrics     *observability.Metrics
	newAdmin    AdminFactory
	newRegistry RegistryFactory
}

// Option configures a Builder.
type Option func(*Builder)

// WithTracer sets the tracer used for build spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(b *Builder) { b.tracer = tracer }
}

// WithMetrics sets the metrics the builder records build outcomes on.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// WithAdminFactory overrides how administrative clients are opened.
func WithAdminFactory(f AdminFactory) Option {
	return func(b *Builder) { b.newAdmin = f }
}

// WithRegistryFactory overrides how schema registry clients are built.
func WithRegistryFactory(f RegistryFactory) Option {
	return func(b *Builder) { b.newRegistry = f }
}

// NewBuilder creates a Builder.
func NewBuilder(logger *slog.Logger, opts ...Option) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{
		logger: observability.NewTraceLogger(logger),
		tracer: noop.NewTracerProvider().Tracer("sinkforge-connector"),
		newAdmin: func(cfg *kafka.ClusterConfig) (kafka.Admin, func(), error) {
			client, err := kafka.NewAdminClient(cfg)
			if err != nil {
				return nil, nil, err
			}
			return client, client.Close, nil
		},
		newRegistry: func(baseURL string) (schema.Publisher, error) {
			return schema.NewConfluentRegistry(baseURL)
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build provisions the destination described by sb and returns its connector
// descriptor. Exactly one variant path runs. Steps within a build are
// strictly sequential; cancelling ctx abandons the in-flight call without
// cleaning up resources already created.
func (b *Builder) Build(ctx context.Context, sb SinkConnectorBuilder, id SinkID) (SinkConnector, error) {
	start := time.Now()

	var (
		conn SinkConnector
		err  error
		kind string
	)
	switch sb := sb.(type) {
	case *KafkaSinkBuilder:
		kind = "kafka"
		conn, err = b.buildKafka(ctx, sb, id)
	case *FileSinkBuilder:
		kind = "file"
		conn, err = b.buildFile(ctx, sb, id)
	default:
		return nil, fmt.Errorf("unsupported sink connector builder %T", sb)
	}

	b.observeBuild(kind, start, err)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (b *Builder) observeBuild(kind string, start time.Time, err error) {
	if b.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	b.metrics.BuildsTotal.WithLabelValues(kind, status).Inc()
	b.metrics.BuildDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (b *Builder) buildKafka(ctx context.Context, sb *KafkaSinkBuilder, id SinkID) (SinkConnector, error) {
	topic := fmt.Sprintf("%s-%s-%s", sb.TopicPrefix, id, sb.TopicSuffix)

	ctx, span := tracing.StartSpan(ctx, b.tracer, tracing.SpanBuildKafka,
		trace.WithAttributes(
			tracing.SinkIDAttr(string(id)),
			tracing.SinkKindAttr("kafka"),
			tracing.KafkaTopicAttr(topic),
		),
	)
	defer span.End()

	admin, closeAdmin, err := b.newAdmin(sb.Cluster)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, fmt.Errorf("kafka admin client for sink %s: %w", id, err)
	}
	defer closeAdmin()

	registry, err := b.newRegistry(sb.RegistryURL)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, fmt.Errorf("schema registry client for sink %s: %w", id, err)
	}

	var keySchema string
	if sb.Key != nil {
		keySchema = sb.Key.Schema
	}

	keySchemaID, valueSchemaID, err := b.registerTopic(ctx, admin, registry,
		topic, sb.PartitionCount, sb.ReplicationFactor, sb.ValueSchema, keySchema)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, fmt.Errorf("register sink topic %q: %w", topic, err)
	}

	var consistency *KafkaConsistencyConnector
	if sb.ConsistencyValueSchema != "" {
		consistencyTopic := topic + "-consistency"

		// The consistency topic always has a single partition; its
		// replication factor is resolved from the builder's value
		// independently of the primary topic's resolution.
		one := int32(1)
		_, consistencySchemaID, err := b.registerTopic(ctx, admin, registry,
			consistencyTopic, &one, sb.ReplicationFactor, sb.ConsistencyValueSchema, "")
		if err != nil {
			tracing.SetSpanError(span, err)
			return nil, fmt.Errorf("register sink consistency topic %q: %w", consistencyTopic, err)
		}

		consistency = &KafkaConsistencyConnector{
			Topic:    consistencyTopic,
			SchemaID: consistencySchemaID,
		}
	}

	b.logger.Info(ctx, "kafka sink provisioned",
		"sink_id", string(id),
		"topic", topic,
		"value_schema_id", valueSchemaID,
	)
	tracing.SetSpanOK(span)

	return &KafkaSinkConnector{
		Topic:         topic,
		Brokers:       sb.Cluster.Brokers,
		KeySchemaID:   keySchemaID,
		ValueSchemaID: valueSchemaID,
		Key:           sb.Key,
		ValueDesc:     sb.ValueDesc,
		Consistency:   consistency,
		Fuel:          sb.Fuel,
		ConfigOptions: sb.ConfigOptions,
	}, nil
}
