// Package source defines the read-only directory listing contract the
// crawler consumes. Implementations issue exactly one remote call per
// directory and never retry; failures carry the remote response
// verbatim so callers can display it.
package source

import (
	"context"
	"fmt"
)

// EntryType discriminates directory entries. Remote listings may also
// contain symlinks or submodules; consumers skip anything that is
// neither a directory nor a regular file.
type EntryType string

const (
	TypeDir  EntryType = "dir"
	TypeFile EntryType = "file"
)

// Entry is one element of a single directory listing. Entries are
// transient: they never outlive the traversal that fetched them.
type Entry struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Type        EntryType `json:"type"`
	Size        int64     `json:"size"`
	SHA         string    `json:"sha,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
}

// Lister lists one directory of a remote content tree per call.
// Implementations that have no use for the repository coordinate
// (object-store backends) ignore owner, repo, and ref.
type Lister interface {
	ListDirectory(ctx context.Context, owner, repo, dir, ref string) ([]Entry, error)
}

// ListingError reports a failed listing call: a non-success response
// status or a transport failure. StatusCode is zero when no response
// was received.
type ListingError struct {
	StatusCode int
	Status     string
	Body       string

	err error
}

// NewTransportError wraps a transport-level failure (DNS, dial, TLS,
// canceled context) as a ListingError with no status code.
func NewTransportError(err error) *ListingError {
	return &ListingError{Status: "transport failure", err: err}
}

func (e *ListingError) Error() string {
	switch {
	case e.err != nil:
		return fmt.Sprintf("remote listing failed: %v", e.err)
	case e.Body != "":
		return fmt.Sprintf("remote listing failed: %s: %s", e.Status, e.Body)
	default:
		return fmt.Sprintf("remote listing failed: %s", e.Status)
	}
}

// Unwrap exposes the underlying transport error, if any, so context
// cancellation remains visible through errors.Is.
func (e *ListingError) Unwrap() error { return e.err }
