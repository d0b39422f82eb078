// Shared parsing/output helpers used across command groups.
package main

import (
	"io"
	"strings"

	"github.com/sailctl/sailing/internal/errs"
	"github.com/spf13/cobra"
)

func notFound(kind, id string) error {
	return errs.New(errs.NotFound, "cmd.sail", kind+" "+id+" not found")
}

// readStdin slurps cmd's InOrStdin, used by edit/patch which take body
// content piped in rather than as a flag.
func readStdin(cmd *cobra.Command) (string, error) {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parsePatchArgs turns "field=value" CLI tokens into a front-matter patch
// map; values containing commas are split into string slices since every
// list-typed front-matter field (tags, blocked_by, stories) is plural.
func parsePatchArgs(args []string) (map[string]interface{}, error) {
	patch := map[string]interface{}{}
	for _, arg := range args {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 {
			return nil, errs.New(errs.InvalidInput, "cmd.sail.parsePatchArgs", "expected field=value, got "+arg)
		}
		key, value := parts[0], parts[1]
		if strings.Contains(value, ",") {
			patch[key] = strings.Split(value, ",")
		} else {
			patch[key] = value
		}
	}
	return patch, nil
}
