package storage

import (
	"errors"
	"time"

	"github.com/cuemby/edgeplane/pkg/ir"
)

// ErrNotFound is returned when no build has been recorded yet
var ErrNotFound = errors.New("build record not found")

// BuildRecord is the persisted summary of one successful build. Bootstrap
// and Dynamic hold the rendered configuration as JSON so the last known
// good output survives a restart.
type BuildRecord struct {
	Generation  uint64     `json:"generation"`
	Kind        string     `json:"kind"`
	Reason      string     `json:"reason,omitempty"`
	Retried     bool       `json:"retried,omitempty"`
	Version     string     `json:"version"`
	Resources   int        `json:"resources"`
	CacheLen    int        `json:"cache_entries"`
	Errors      []ir.Error `json:"errors,omitempty"`
	DurationMS  int64      `json:"duration_ms"`
	CompletedAt time.Time  `json:"completed_at"`

	Bootstrap []byte `json:"bootstrap,omitempty"`
	Dynamic   []byte `json:"dynamic,omitempty"`
}

// Store persists build history
type Store interface {
	// SaveBuild records a build and marks it as the last known good one
	SaveBuild(rec *BuildRecord) error
	// LastBuild returns the last known good build
	LastBuild() (*BuildRecord, error)
	// ListBuilds returns up to limit records, newest first. A limit of
	// zero or less returns everything.
	ListBuilds(limit int) ([]*BuildRecord, error)
	Close() error
}
