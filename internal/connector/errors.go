package connector

import "errors"

// Provisioning failures the caller can match with errors.Is. Every return
// wraps one of these with the failing operation and the target topic or
// path, and nothing is retried: the first failure aborts the build.
var (
	// ErrNoBrokersDiscovered reports that the cluster metadata contained
	// zero brokers, so defaults could not be resolved.
	ErrNoBrokersDiscovered = errors.New("zero brokers discovered in cluster metadata")

	// ErrUnexpectedConfigResultCount reports that the broker config query
	// did not return exactly one result set.
	ErrUnexpectedConfigResultCount = errors.New("unexpected broker config result count")

	// ErrUnparsableConfigValue reports a broker default that is not a
	// positive integer.
	ErrUnparsableConfigValue = errors.New("broker default cannot be parsed as a positive integer")

	// ErrMissingDefaultConfigKey reports that a default was requested but
	// the expected key was absent from the broker config.
	ErrMissingDefaultConfigKey = errors.New("broker config is missing the expected default key")

	// ErrTopicCreationResultCount reports that topic creation did not
	// return exactly one result.
	ErrTopicCreationResultCount = errors.New("unexpected topic creation result count")

	// ErrTopicCreationRejected wraps the broker's reported cause for
	// refusing to create the topic, e.g. it already exists.
	ErrTopicCreationRejected = errors.New("topic creation rejected by broker")

	// ErrSchemaPublishFailed wraps a registry failure. The topic created
	// before the publication attempt is left behind.
	ErrSchemaPublishFailed = errors.New("schema publication failed")

	// ErrPathMissingFileStem reports a file sink base path with no file
	// stem, e.g. a directory path or an empty path.
	ErrPathMissingFileStem = errors.New("sink path has no file stem")

	// ErrSinkFileExists reports that the derived output path is already
	// claimed. There is no alternate naming: the build fails.
	ErrSinkFileExists = errors.New("sink file already exists")
)
