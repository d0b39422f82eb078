// Purpose: Provide the program entrypoint and invoke command execution.
// Exports: main.
// Role: Binary entrypoint for the sail CLI.
// Invariants: Only delegates to execute(); version is injected via ldflags.
package main

// version is set by goreleaser via ldflags
var version = "dev"

func main() {
	execute()
}
