package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/lsm/sinkforge/internal/config"
	"github.com/lsm/sinkforge/internal/connector"
	"github.com/lsm/sinkforge/internal/observability"
	"github.com/lsm/sinkforge/internal/schema"
)

// runProvision provisions a single sink definition file and prints the
// resulting connector as JSON.
func runProvision(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: sinkforge provision <file>")
	}

	logger := observability.NewLogger("sinkforge-provision", observability.GetLogLevel(""))
	slog.SetDefault(logger)

	def, err := config.LoadFile(args[0])
	if err != nil {
		return err
	}

	id := def.ID
	if id == "" {
		id = uuid.NewString()
	}

	builder := connector.NewBuilder(logger)
	conn, err := builder.Build(context.Background(), def.Builder(), connector.SinkID(id))
	if err != nil {
		return fmt.Errorf("provision sink %s: %w", def.Name, err)
	}

	out, err := json.MarshalIndent(conn, "", "  ")
	if err != nil {
		return fmt.Errorf("encode connector: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// runDescribe prints the latest registry schema for a subject.
func runDescribe(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: sinkforge describe <subject>")
	}

	registryURL := os.Getenv("SINKFORGE_REGISTRY_URL")
	if registryURL == "" {
		return fmt.Errorf("SINKFORGE_REGISTRY_URL is not set")
	}

	registry, err := schema.NewConfluentRegistry(registryURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := registry.GetLatest(ctx, args[0])
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
