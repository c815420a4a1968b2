// Package connector provisions sink connectors. It materializes an abstract
// sink description into a concrete destination, either a Kafka topic with its
// schema-registry subjects (and optionally a single-partition consistency
// topic) or an exclusively claimed append-only file, and returns an immutable
// descriptor the writer subsystem uses to address it.
//
// Provisioning never retries and never rolls back: the first failing
// external call aborts the build, and any topic created before a later step
// failed is left behind in the broker.
package connector

import "github.com/lsm/sinkforge/internal/kafka"

// SinkID uniquely identifies one provisioned sink. It is embedded in derived
// topic names and file names, so sinks with distinct IDs never collide on
// external resources.
type SinkID string

func (id SinkID) String() string { return string(id) }

// FieldDescriptor describes one field of the rows a sink receives.
type FieldDescriptor struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// RowDescriptor describes the shape of the rows a sink receives. It is
// passed through to the writer subsystem unmodified.
type RowDescriptor struct {
	Fields []FieldDescriptor `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// KeySchema carries an optional upsert key: its wire schema text, the
// descriptor of the key columns, and their indices into the value row.
type KeySchema struct {
	Schema  string        `json:"schema"`
	Desc    RowDescriptor `json:"desc"`
	Indices []int         `json:"indices,omitempty"`
}

// SinkConnectorBuilder describes a sink destination that has not been
// provisioned yet. It is a closed sum: exactly *KafkaSinkBuilder and
// *FileSinkBuilder implement it, and Build matches exhaustively.
type SinkConnectorBuilder interface {
	sinkConnectorBuilder()
}

// KafkaSinkBuilder describes a sink backed by a Kafka topic.
type KafkaSinkBuilder struct {
	// TopicPrefix and TopicSuffix frame the derived topic name
	// <prefix>-<sink id>-<suffix>.
	TopicPrefix string
	TopicSuffix string

	// Cluster addresses the broker the topic is created in.
	Cluster *kafka.ClusterConfig

	// RegistryURL is the base URL of the schema registry the sink's
	// schemas are published to.
	RegistryURL string

	// PartitionCount and ReplicationFactor are nil to defer to the
	// broker's configured defaults. Resolved values are always strictly
	// positive.
	PartitionCount    *int32
	ReplicationFactor *int16

	// ValueSchema is the wire schema published under <topic>-value.
	ValueSchema string

	// Key, when present, supplies the schema published under <topic>-key
	// plus the key descriptor passed through to the writer.
	Key *KeySchema

	// ConsistencyValueSchema, when non-empty, requests a single-partition
	// <topic>-consistency companion topic carrying batch-completion
	// metadata for readers.
	ConsistencyValueSchema string

	ValueDesc RowDescriptor

	// Fuel is a rate-limiting parameter for the writer, passed through
	// unmodified.
	Fuel int

	// ConfigOptions are opaque client options for the writer subsystem.
	// They are passed through verbatim; unknown keys are the client's
	// concern, not validated here.
	ConfigOptions map[string]string
}

func (*KafkaSinkBuilder) sinkConnectorBuilder() {}

// FileSinkBuilder describes a sink backed by an append-only container file.
type FileSinkBuilder struct {
	// Path is the base path the output path is derived from.
	Path string

	// FileNameSuffix distinguishes this sink's file from re-creations of
	// the same sink under a new identifier.
	FileNameSuffix string

	ValueDesc RowDescriptor
}

func (*FileSinkBuilder) sinkConnectorBuilder() {}

// SinkConnector is a fully provisioned, externally addressable destination.
// It is a closed sum over *KafkaSinkConnector and *FileSinkConnector and is
// immutable for the life of the sink.
type SinkConnector interface {
	sinkConnector()
}

// KafkaSinkConnector addresses a provisioned Kafka-backed sink.
type KafkaSinkConnector struct {
	Topic         string                     `json:"topic"`
	Brokers       []string                   `json:"brokers"`
	KeySchemaID   *int                       `json:"keySchemaId,omitempty"`
	ValueSchemaID int                        `json:"valueSchemaId"`
	Key           *KeySchema                 `json:"key,omitempty"`
	ValueDesc     RowDescriptor              `json:"valueDesc"`
	Consistency   *KafkaConsistencyConnector `json:"consistency,omitempty"`
	Fuel          int                        `json:"fuel"`
	ConfigOptions map[string]string          `json:"configOptions,omitempty"`
}

func (*KafkaSinkConnector) sinkConnector() {}

// KafkaConsistencyConnector addresses the companion consistency topic.
// It never carries a key schema and always has exactly one partition.
type KafkaConsistencyConnector struct {
	Topic    string `json:"topic"`
	SchemaID int    `json:"schemaId"`
}

// FileSinkConnector addresses a provisioned file-backed sink. The path has
// been created empty and claimed exclusively; the writer appends to it.
type FileSinkConnector struct {
	Path      string        `json:"path"`
	ValueDesc RowDescriptor `json:"valueDesc"`
}

func (*FileSinkConnector) sinkConnector() {}
