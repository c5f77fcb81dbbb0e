// Command contract-gen generates data contracts.
//
// A source contract describes data as it is found (CSV, JSON or NDJSON
// files, database tables, Supabase tables). A destination contract
// describes where data goes (database tables, OpenAPI request bodies,
// Supabase tables, plain files). A transformation contract links the two.
//
// Contracts are printed to stdout as JSON or YAML, or written with
// --output. Status messages, errors and logs go to stderr.
//
// # Config
//
// Defaults and named connections are read from ~/.contract-gen.yaml, or
// the file named by CONTRACT_GEN_CONFIG. Connection arguments given as
// "@name" are looked up there. See "contract-gen config --help".
//
// # Metrics
//
// --metrics datadog submits run metrics through the Datadog API
// (DD_API_KEY, DD_SITE; extra tags in METRICS_TAGS). --metrics prometheus
// pushes to the Pushgateway at PUSHGATEWAY_URL (default
// http://localhost:9091). A backend that fails to start is replaced by a
// no-op and a warning is logged.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "contractgen/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
