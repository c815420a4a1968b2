package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute key constants for consistent span attributes.
const (
	AttrSinkID        = "sinkforge.sink.id"
	AttrSinkKind      = "sinkforge.sink.kind"
	AttrKafkaTopic    = "messaging.kafka.topic"
	AttrSchemaSubject = "sinkforge.schema.subject"
	AttrFilePath      = "sinkforge.file.path"
)

// Span name constants for consistent span naming.
const (
	SpanBuildKafka    = "sinkforge.connector.build_kafka"
	SpanBuildFile     = "sinkforge.connector.build_file"
	SpanSchemaPublish = "schema.publish"
)

// StartSpan starts a new span with the given name and options.
// Returns the new context with the span and the span itself.
// If tracer is nil, returns a no-op span.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// SetSpanError records an error on the span and sets the status to Error.
func SetSpanError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK sets the span status to Ok.
func SetSpanOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// SinkIDAttr returns an attribute for the sink identifier.
func SinkIDAttr(id string) attribute.KeyValue {
	return attribute.String(AttrSinkID, id)
}

// SinkKindAttr returns an attribute for the destination kind (kafka or file).
func SinkKindAttr(kind string) attribute.KeyValue {
	return attribute.String(AttrSinkKind, kind)
}

// KafkaTopicAttr returns an attribute for the Kafka topic.
func KafkaTopicAttr(topic string) attribute.KeyValue {
	return attribute.String(AttrKafkaTopic, topic)
}

// SchemaSubjectAttr returns an attribute for the schema registry subject.
func SchemaSubjectAttr(subject string) attribute.KeyValue {
	return attribute.String(AttrSchemaSubject, subject)
}

// FilePathAttr returns an attribute for the claimed sink file path.
func FilePathAttr(path string) attribute.KeyValue {
	return attribute.String(AttrFilePath, path)
}
