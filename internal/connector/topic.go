package connector

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/lsm/sinkforge/internal/kafka"
	"github.com/lsm/sinkforge/internal/schema"
	"github.com/lsm/sinkforge/internal/tracing"
)

// adminRequestTimeout bounds every administrative round-trip to the broker.
const adminRequestTimeout = 5 * time.Second

// Broker config keys holding the cluster-wide topic defaults.
const (
	configNumPartitions     = "num.partitions"
	configReplicationFactor = "default.replication.factor"
)

// registerTopic creates the topic, resolving a nil partition count or
// replication factor from the first broker's configured defaults, then
// publishes the value schema under <topic>-value and, when supplied, the key
// schema under <topic>-key. It returns the registry-assigned schema ids
// (the key id is nil when no key schema was given).
//
// Kafka 2.4+ accepts -1 in create-topic requests to mean "broker default",
// but older brokers reject it, so defaults are resolved explicitly here.
//
// If schema publication fails after the topic was created, the topic is left
// behind in the broker. No compensating deletion is attempted.
func (b *Builder) registerTopic(
	ctx context.Context,
	admin kafka.Admin,
	registry schema.Publisher,
	topic string,
	partitionCount *int32,
	replicationFactor *int16,
	valueSchema, keySchema string,
) (keySchemaID *int, valueSchemaID int, err error) {
	if partitionCount == nil || replicationFactor == nil {
		partitionCount, replicationFactor, err = resolveTopicDefaults(ctx, admin, topic, partitionCount, replicationFactor)
		if err != nil {
			return nil, 0, err
		}
	}

	cctx, cancel := context.WithTimeout(ctx, adminRequestTimeout)
	responses, err := admin.CreateTopics(cctx, *partitionCount, *replicationFactor, nil, topic)
	cancel()
	if err != nil {
		return nil, 0, fmt.Errorf("create topic %q for sink: %w", topic, err)
	}
	if len(responses) != 1 {
		return nil, 0, fmt.Errorf("%w: topic %q: got %d results, expected exactly one",
			ErrTopicCreationResultCount, topic, len(responses))
	}
	response := responses.Sorted()[0]
	if response.Err != nil {
		return nil, 0, fmt.Errorf("%w: topic %q: %w", ErrTopicCreationRejected, topic, response.Err)
	}

	if b.metrics != nil {
		b.metrics.TopicsCreated.Inc()
	}
	b.logger.Debug(ctx, "sink topic created",
		"topic", topic,
		"partitions", *partitionCount,
		"replication_factor", *replicationFactor,
	)

	valueSchemaID, err = b.publishSchema(ctx, registry, topic+"-value", valueSchema)
	if err != nil {
		return nil, 0, err
	}

	if keySchema != "" {
		id, err := b.publishSchema(ctx, registry, topic+"-key", keySchema)
		if err != nil {
			return nil, 0, err
		}
		keySchemaID = &id
	}

	return keySchemaID, valueSchemaID, nil
}

// resolveTopicDefaults fills nil parameters from the cluster defaults: it
// fetches the broker list, queries the first broker's configuration, and
// parses num.partitions and default.replication.factor. Returned values are
// always strictly positive.
func resolveTopicDefaults(
	ctx context.Context,
	admin kafka.Admin,
	topic string,
	partitionCount *int32,
	replicationFactor *int16,
) (*int32, *int16, error) {
	mctx, cancel := context.WithTimeout(ctx, adminRequestTimeout)
	meta, err := admin.Metadata(mctx)
	cancel()
	if err != nil {
		return nil, nil, fmt.Errorf("fetch metadata when creating topic %q for sink: %w", topic, err)
	}
	if len(meta.Brokers) == 0 {
		return nil, nil, fmt.Errorf("%w: topic %q", ErrNoBrokersDiscovered, topic)
	}

	node := meta.Brokers[0].NodeID
	dctx, cancel := context.WithTimeout(ctx, adminRequestTimeout)
	configs, err := admin.DescribeBrokerConfigs(dctx, node)
	cancel()
	if err != nil {
		return nil, nil, fmt.Errorf("fetch configuration from broker %d when creating topic %q for sink: %w",
			node, topic, err)
	}
	if len(configs) != 1 {
		return nil, nil, fmt.Errorf("%w: topic %q: broker %d returned %d config results, expected exactly one",
			ErrUnexpectedConfigResultCount, topic, node, len(configs))
	}
	config := configs[0]
	if config.Err != nil {
		return nil, nil, fmt.Errorf("read configuration of broker %d when creating topic %q for sink: %w",
			node, topic, config.Err)
	}

	for _, entry := range config.Configs {
		if entry.Value == nil {
			continue
		}
		switch entry.Key {
		case configNumPartitions:
			if partitionCount != nil {
				continue
			}
			n, err := strconv.ParseInt(*entry.Value, 10, 32)
			if err != nil || n <= 0 {
				return nil, nil, fmt.Errorf("%w: %s=%q", ErrUnparsableConfigValue, configNumPartitions, *entry.Value)
			}
			v := int32(n)
			partitionCount = &v
		case configReplicationFactor:
			if replicationFactor != nil {
				continue
			}
			n, err := strconv.ParseInt(*entry.Value, 10, 16)
			if err != nil || n <= 0 {
				return nil, nil, fmt.Errorf("%w: %s=%q", ErrUnparsableConfigValue, configReplicationFactor, *entry.Value)
			}
			v := int16(n)
			replicationFactor = &v
		}
	}

	if partitionCount == nil {
		return nil, nil, fmt.Errorf("%w: %s (topic %q)", ErrMissingDefaultConfigKey, configNumPartitions, topic)
	}
	if replicationFactor == nil {
		return nil, nil, fmt.Errorf("%w: %s (topic %q)", ErrMissingDefaultConfigKey, configReplicationFactor, topic)
	}

	return partitionCount, replicationFactor, nil
}

func (b *Builder) publishSchema(ctx context.Context, registry schema.Publisher, subject, schemaText string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, b.tracer, tracing.SpanSchemaPublish,
		trace.WithAttributes(tracing.SchemaSubjectAttr(subject)),
	)
	defer span.End()

	id, err := registry.Publish(ctx, subject, schemaText)
	if err != nil {
		tracing.SetSpanError(span, err)
		return 0, fmt.Errorf("%w: subject %q: %w", ErrSchemaPublishFailed, subject, err)
	}

	if b.metrics != nil {
		b.metrics.SchemasPublished.Inc()
	}
	tracing.SetSpanOK(span)
	return id, nil
}
