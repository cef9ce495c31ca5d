// Package catalog holds the material catalog model: content-kind
// classification, subject derivation, presentation sorting, and filter
// evaluation. Classification and derivation are pure and total; the
// only stateful piece is the Store, which owns the latest snapshot and
// holds nothing across process restarts.
package catalog

import (
	"fmt"
	"strings"
)

// Coordinate identifies the remote content tree to crawl: a repository
// plus the root path the catalog is scoped to. It is immutable for the
// duration of one crawl; a crawl with a different coordinate fully
// replaces the previous catalog rather than merging into it.
type Coordinate struct {
	Owner string `json:"owner" yaml:"owner"`
	Repo  string `json:"repo" yaml:"repo"`
	Ref   string `json:"ref,omitempty" yaml:"ref"`
	Root  string `json:"root,omitempty" yaml:"root"`
}

// Validate reports required coordinate fields that are absent. Ref and
// Root may be empty (the remote's default branch and the repository
// root, respectively).
func (c Coordinate) Validate() error {
	var missing []string
	if c.Owner == "" {
		missing = append(missing, "owner")
	}
	if c.Repo == "" {
		missing = append(missing, "repo")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

func (c Coordinate) String() string {
	s := c.Owner + "/" + c.Repo
	if c.Ref != "" {
		s += "@" + c.Ref
	}
	if c.Root != "" {
		s += "/" + c.Root
	}
	return s
}

// ConfigError reports coordinate fields that are required but absent.
// It surfaces before any remote call is attempted.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing repository coordinate fields: %s", strings.Join(e.Missing, ", "))
}

// Material is the catalog unit for one discovered file. Kind is
// derived once at crawl time and Subject once at catalog build; neither
// is mutated afterward. Path is relative to the repository root and
// unique within one crawl.
type Material struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url,omitempty"`
	SHA         string `json:"sha,omitempty"`
	Kind        Kind   `json:"kind"`
	Subject     string `json:"subject,omitempty"`
}
