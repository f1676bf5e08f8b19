// Package script loads YAML commit scripts: a session id, an ordered list
// of commits each carrying raw page patches, and optional expectations on
// the final state.
//
// Example:
//
//	name: energy-push
//	session: s-1
//	commits:
//	  - timestamp_ms: 1700000000000
//	    patches:
//	      - page: 3
//	        allocations: {E: 0.6, S: 0.2, NW: 0.2}
//	expect:
//	  node_type: STABLE
package script

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/autus/internal/node"
)

// Script is a scripted session.
type Script struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Session     string   `yaml:"session"`
	Commits     []Commit `yaml:"commits"`
	Expect      *Expect  `yaml:"expect,omitempty"`
}

// Commit stages its patches in order, then commits. A nil TimestampMs
// takes the next tick of the runner's clock.
type Commit struct {
	TimestampMs *int64           `yaml:"timestamp_ms,omitempty"`
	Patches     []map[string]any `yaml:"patches"`
}

// Expect holds expectations checked after the last commit. StateHash may be
// the 16-character short hash or the full hash.
type Expect struct {
	StateHash string    `yaml:"state_hash,omitempty"`
	NodeType  node.Type `yaml:"node_type,omitempty"`
	Seq       *int64    `yaml:"seq,omitempty"`
}

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script file: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes a script. Unknown fields are rejected, and the document
// must satisfy the embedded schema. filename is used in error positions.
func Parse(filename string, data []byte) (*Script, error) {
	var sc Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	if err := validateSchema(filename, data); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return &sc, nil
}

// Documents returns the commit's patches as page-tagged documents ready for
// staging.
func (c Commit) Documents() []map[string]any {
	out := make([]map[string]any, len(c.Patches))
	copy(out, c.Patches)
	return out
}
