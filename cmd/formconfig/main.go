// Command formconfig serves and inspects form field configuration: lifecycle
// transition rules, field compatibility and workflow definitions.
package main

import "os"

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
