// Package config loads sink definitions from YAML files and watches them for
// changes.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/lsm/sinkforge/internal/connector"
	"github.com/lsm/sinkforge/internal/kafka"
)

// SinkDefinition describes one sink to provision. Exactly one of Kafka and
// File must be set.
type SinkDefinition struct {
	Name string `yaml:"name"`

	// ID pins the sink identifier. When empty the daemon mints a fresh one
	// per provisioning attempt.
	ID string `yaml:"id,omitempty"`

	Kafka *KafkaSinkConfig `yaml:"kafka,omitempty"`
	File  *FileSinkConfig  `yaml:"file,omitempty"`
}

// KafkaSinkConfig configures a Kafka-backed sink.
type KafkaSinkConfig struct {
	Cluster     kafka.ClusterConfig `yaml:"cluster"`
	RegistryURL string              `yaml:"registryUrl"`

	TopicPrefix string `yaml:"topicPrefix"`
	TopicSuffix string `yaml:"topicSuffix"`

	// PartitionCount and ReplicationFactor are omitted to defer to the
	// broker's configured defaults.
	PartitionCount    *int32 `yaml:"partitionCount,omitempty"`
	ReplicationFactor *int16 `yaml:"replicationFactor,omitempty"`

	ValueSchema string           `yaml:"valueSchema"`
	Key         *KeySchemaConfig `yaml:"key,omitempty"`

	// ConsistencySchema, when set, requests the companion consistency
	// topic with this value schema.
	ConsistencySchema string `yaml:"consistencySchema,omitempty"`

	ValueFields []connector.FieldDescriptor `yaml:"valueFields,omitempty"`

	Fuel          int               `yaml:"fuel,omitempty"`
	ConfigOptions map[string]string `yaml:"configOptions,omitempty"`
}

// KeySchemaConfig configures the optional upsert key of a Kafka sink.
type KeySchemaConfig struct {
	Schema  string                      `yaml:"schema"`
	Fields  []connector.FieldDescriptor `yaml:"fields,omitempty"`
	Indices []int                       `yaml:"indices,omitempty"`
}

// FileSinkConfig configures a file-backed sink.
type FileSinkConfig struct {
	Path        string                      `yaml:"path"`
	Suffix      string                      `yaml:"suffix"`
	ValueFields []connector.FieldDescriptor `yaml:"valueFields,omitempty"`
}

// Validate checks the definition for structural errors.
func (d *SinkDefinition) Validate() error {
	var errs []error

	if d.Name == "" {
		errs = append(errs, errors.New("sink definition missing 'name'"))
	}
	switch {
	case d.Kafka == nil && d.File == nil:
		errs = append(errs, errors.New("sink definition needs exactly one of 'kafka' or 'file'"))
	case d.Kafka != nil && d.File != nil:
		errs = append(errs, errors.New("sink definition has both 'kafka' and 'file'"))
	}

	if d.Kafka != nil {
		if err := d.Kafka.Cluster.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("kafka cluster: %w", err))
		}
		if d.Kafka.RegistryURL == "" {
			errs = append(errs, errors.New("kafka sink missing 'registryUrl'"))
		}
		if d.Kafka.TopicPrefix == "" {
			errs = append(errs, errors.New("kafka sink missing 'topicPrefix'"))
		}
		if d.Kafka.TopicSuffix == "" {
			errs = append(errs, errors.New("kafka sink missing 'topicSuffix'"))
		}
		if d.Kafka.ValueSchema == "" {
			errs = append(errs, errors.New("kafka sink missing 'valueSchema'"))
		}
		if d.Kafka.Key != nil && d.Kafka.Key.Schema == "" {
			errs = append(errs, errors.New("kafka sink key missing 'schema'"))
		}
	}

	if d.File != nil {
		if d.File.Path == "" {
			errs = append(errs, errors.New("file sink missing 'path'"))
		}
		if d.File.Suffix == "" {
			errs = append(errs, errors.New("file sink missing 'suffix'"))
		}
	}

	return errors.Join(errs...)
}

// Builder converts the definition into the builder the provisioner consumes.
func (d *SinkDefinition) Builder() connector.SinkConnectorBuilder {
	if d.Kafka != nil {
		k := d.Kafka
		sb := &connector.KafkaSinkBuilder{
			TopicPrefix:            k.TopicPrefix,
			TopicSuffix:            k.TopicSuffix,
			Cluster:                &k.Cluster,
			RegistryURL:            k.RegistryURL,
			PartitionCount:         k.PartitionCount,
			ReplicationFactor:      k.ReplicationFactor,
			ValueSchema:            k.ValueSchema,
			ConsistencyValueSchema: k.ConsistencySchema,
			ValueDesc:              connector.RowDescriptor{Fields: k.ValueFields},
			Fuel:                   k.Fuel,
			ConfigOptions:          k.ConfigOptions,
		}
		if k.Key != nil {
			sb.Key = &connector.KeySchema{
				Schema:  k.Key.Schema,
				Desc:    connector.RowDescriptor{Fields: k.Key.Fields},
				Indices: k.Key.Indices,
			}
		}
		return sb
	}
	return &connector.FileSinkBuilder{
		Path:           d.File.Path,
		FileNameSuffix: d.File.Suffix,
		ValueDesc:      connector.RowDescriptor{Fields: d.File.ValueFields},
	}
}

// Loader loads and watches sink definition files.
type Loader struct {
	mu       sync.RWMutex
	sinks    map[string]*SinkDefinition
	dir      string
	logger   *slog.Logger
	onChange func(map[string]*SinkDefinition)
}

// NewLoader creates a new configuration loader for the given directory.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		sinks:  make(map[string]*SinkDefinition),
		dir:    dir,
		logger: logger,
	}
}

// OnChange registers a callback that fires when config files change.
func (l *Loader) OnChange(fn func(map[string]*SinkDefinition)) {
	l.onChange = fn
}

// Load reads all YAML files from the configured directory. Files that fail
// to parse or validate are logged and skipped.
func (l *Loader) Load() (map[string]*SinkDefinition, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read config dir %s: %w", l.dir, err)
	}

	sinks := make(map[string]*SinkDefinition)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(l.dir, entry.Name())
		def, err := LoadFile(path)
		if err != nil {
			l.logger.Error("failed to load config file", "path", path, "error", err)
			continue
		}
		sinks[def.Name] = def
	}

	l.mu.Lock()
	l.sinks = sinks
	l.mu.Unlock()

	return sinks, nil
}

// Watch starts watching the config directory for changes. Blocks until done
// is closed.
func (l *Loader) Watch(done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close() // intentionally ignoring close error during cleanup
	}()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch dir %s: %w", l.dir, err)
	}

	l.logger.Info("watching config directory", "dir", l.dir)

	for {
		select {
		case <-done:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				l.logger.Info("config change detected", "file", event.Name, "op", event.Op)
				sinks, err := l.Load()
				if err != nil {
					l.logger.Error("failed to reload config", "error", err)
					continue
				}
				if l.onChange != nil {
					l.onChange(sinks)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.logger.Error("watcher error", "error", err)
		}
	}
}

// GetSinks returns a copy of the currently loaded definitions.
func (l *Loader) GetSinks() map[string]*SinkDefinition {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sinks := make(map[string]*SinkDefinition, len(l.sinks))
	for k, v := range l.sinks {
		sinks[k] = v
	}
	return sinks
}

// LoadFile reads and validates a single sink definition file.
func LoadFile(path string) (*SinkDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var def SinkDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sink definition in %s: %w", path, err)
	}

	return &def, nil
}
