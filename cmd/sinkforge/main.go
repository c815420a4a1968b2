package main

import (
	"fmt"
	"os"
)

const usage = `sinkforge - sink connector provisioning

Usage:
  sinkforge <command> [arguments]

Commands:
  run                    Provision all configured sinks and serve metrics
  provision <file>       Provision the sink defined in a single file and print its connector
  describe <subject>     Print the latest registry schema for a subject

Environment:
  SINKFORGE_CONFIG_DIR    Sink definition directory for 'run' (default /etc/sinkforge/sinks)
  SINKFORGE_METRICS_ADDR  Metrics and health listen address (default :9090)
  SINKFORGE_REGISTRY_URL  Schema registry base URL for 'describe'
  SINKFORGE_LOG_LEVEL     Log level: debug, info, warn, error
  SINKFORGE_OTEL_ENABLED  Set to "true" to export traces via OTLP

Run 'sinkforge help' for this message.`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		return nil
	}

	switch os.Args[1] {
	case "run":
		return runDaemon()
	case "provision":
		return runProvision(os.Args[2:])
	case "describe":
		return runDescribe(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Println(usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\nRun 'sinkforge help' for usage", os.Args[1])
	}
}
