// Package paths resolves placeholder-bearing path templates
// ("%project_root%/artefacts") against a layered set of built-in and
// user-supplied placeholders, and exposes the canonical location of every
// well-known on-disk collection.
package paths

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sailctl/sailing/internal/errs"
	"gopkg.in/yaml.v3"
)

var placeholderRe = regexp.MustCompile(`%([a-zA-Z_][a-zA-Z0-9_]*)%`)

const maxExpansionDepth = 8

// Collection names the well-known on-disk directories every component
// resolves against, each independently overridable via paths.yaml.
type Collection string

const (
	CollArtefacts   Collection = "artefacts"
	CollMemory      Collection = "memory"
	CollRuns        Collection = "runs"
	CollAssignments Collection = "assignments"
	CollWorktrees   Collection = "worktrees"
	CollAgents      Collection = "agents"
	CollTemplates   Collection = "templates"
)

// Resolver resolves placeholder templates to absolute paths and exposes
// named collection locations. Resolution is pure and cached per instance.
type Resolver struct {
	placeholders map[string]string
	collections  map[Collection]string
	cache        map[string]string
}

// Overrides is the optional paths.yaml shape: user-supplied placeholders
// plus per-collection template overrides.
type Overrides struct {
	Placeholders map[string]string    `yaml:"placeholders"`
	Collections  map[Collection]string `yaml:"collections"`
}

// LoadOverrides reads a paths.yaml file if present; a missing file yields
// an empty, valid Overrides rather than an error.
func LoadOverrides(path string) (*Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Overrides{}, nil
		}
		return nil, errs.Wrap(errs.ConfigError, "paths.LoadOverrides", "reading paths.yaml", err)
	}
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, errs.Wrap(errs.ConfigError, "paths.LoadOverrides", "parsing paths.yaml", err)
	}
	return &o, nil
}

// New builds a Resolver rooted at projectRoot, with built-in placeholders
// (project_root, project_hash, home, haven) plus any user overrides.
func New(projectRoot string, overrides *Overrides) (*Resolver, error) {
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, errs.Wrap(errs.ConfigError, "paths.New", "resolving project root", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}

	r := &Resolver{
		placeholders: map[string]string{
			"project_root": absRoot,
			"project_hash": projectHash(absRoot),
			"home":         home,
		},
		collections: map[Collection]string{
			CollArtefacts:   "%project_root%/artefacts",
			CollMemory:      "%project_root%/.sailing/memory",
			CollTemplates:   "%project_root%/.sailing/templates",
			CollRuns:        "%haven%/runs",
			CollAssignments: "%haven%/assignments",
			CollWorktrees:   "%haven%/worktrees",
			CollAgents:      "%haven%/agents",
		},
		cache: make(map[string]string),
	}
	r.placeholders["haven"] = "%home%/.sailing/havens/%project_hash%"

	if overrides != nil {
		for k, v := range overrides.Placeholders {
			r.placeholders[k] = v
		}
		for k, v := range overrides.Collections {
			r.collections[k] = v
		}
	}
	return r, nil
}

// projectHash returns the first 12 hex characters of a stable digest of the
// absolute project root, used to key per-project haven directories.
func projectHash(absRoot string) string {
	sum := sha256.Sum256([]byte(absRoot))
	return hex.EncodeToString(sum[:])[:12]
}

// Resolve expands every %name% placeholder in template, recursively, up to
// a fixed depth, and makes the result absolute (relative results resolve
// under project_root; absolute results pass through unchanged).
func (r *Resolver) Resolve(template string) (string, error) {
	if cached, ok := r.cache[template]; ok {
		return cached, nil
	}

	expanded, err := r.expand(template, 0, nil)
	if err != nil {
		return "", err
	}

	result := expanded
	if !filepath.IsAbs(result) {
		result = filepath.Join(r.placeholders["project_root"], result)
	}
	result = filepath.Clean(result)
	r.cache[template] = result
	return result, nil
}

func (r *Resolver) expand(template string, depth int, seen []string) (string, error) {
	if depth > maxExpansionDepth {
		return "", errs.New(errs.ConfigError, "paths.expand", fmt.Sprintf("circular expansion in %q", template))
	}

	var expandErr error
	result := placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		if expandErr != nil {
			return match
		}
		name := placeholderRe.FindStringSubmatch(match)[1]
		for _, s := range seen {
			if s == name {
				expandErr = errs.New(errs.ConfigError, "paths.expand", fmt.Sprintf("circular placeholder %%%s%%", name))
				return match
			}
		}
		value, ok := r.placeholders[name]
		if !ok {
			expandErr = errs.New(errs.ConfigError, "paths.expand", fmt.Sprintf("unknown placeholder %%%s%%", name))
			return match
		}
		nested, err := r.expand(value, depth+1, append(seen, name))
		if err != nil {
			expandErr = err
			return match
		}
		return nested
	})
	if expandErr != nil {
		return "", expandErr
	}
	return result, nil
}

// Collection resolves the effective location of a named well-known
// collection.
func (r *Resolver) Collection(name Collection) (string, error) {
	template, ok := r.collections[name]
	if !ok {
		return "", errs.New(errs.ConfigError, "paths.Collection", fmt.Sprintf("unknown collection %q", name))
	}
	return r.Resolve(template)
}

// ProjectHash returns the resolved %project_hash% value.
func (r *Resolver) ProjectHash() string { return r.placeholders["project_hash"] }

// ProjectRoot returns the resolved %project_root% value.
func (r *Resolver) ProjectRoot() string { return r.placeholders["project_root"] }

// FindProjectRoot walks upward from startDir looking for an ancestor
// directory containing a .sailing/ directory, mirroring the environment
// variable override SAILING_PROJECT_ROOT taking precedence when set.
func FindProjectRoot(startDir string) (string, error) {
	if v := os.Getenv("SAILING_PROJECT_ROOT"); v != "" {
		return filepath.Abs(v)
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", errs.Wrap(errs.ConfigError, "paths.FindProjectRoot", "resolving start dir", err)
	}
	for {
		candidate := filepath.Join(dir, ".sailing")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errs.New(errs.ConfigError, "paths.FindProjectRoot", "no .sailing directory found in any ancestor")
		}
		dir = parent
	}
}

// Sanitize converts arbitrary text (typically a title) into a filesystem-
// and-URL-safe kebab-case slug, used when deriving artefact filenames.
func Sanitize(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	var b strings.Builder
	lastDash := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	result := strings.Trim(b.String(), "-")
	if result == "" {
		return "untitled"
	}
	return result
}
