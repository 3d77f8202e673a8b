// Command blockinv is the block inventory command line tool.
//
// It prepares the database (migrate, seed), manages API keys and answers
// inventory queries (blocks, references, export) against the configured
// content store without starting the HTTP service.
//
// Usage:
//
//	go run ./cmd/blockinv [--config configs/development.yaml] <command>
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
