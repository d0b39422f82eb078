// CLI helper utilities for error handling and output formatting.
// Keeps Cobra execution paths thin and consistent.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sailctl/sailing/internal/errs"
)

func printVersion() {
	fmt.Println("sail " + version)
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	if !flags.Quiet {
		var coreErr *errs.Error
		if errors.As(err, &coreErr) {
			switch coreErr.Kind {
			case errs.ConfigError:
				fmt.Fprintln(os.Stderr, "hint: run `sail init` in your repo, or check .sailing/paths.yaml")
			case errs.ConcurrencyError:
				fmt.Fprintln(os.Stderr, "hint: another process holds the lock or claim; retry")
			case errs.NotFound:
				fmt.Fprintln(os.Stderr, "hint: check the ID with `sail task list`")
			}
		}
	}
	os.Exit(1)
}

// printJSON writes v as a single JSON value to stdout, the only output a
// --json read command is allowed to emit on success.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
