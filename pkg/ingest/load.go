package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cuemby/edgeplane/pkg/log"
	"github.com/cuemby/edgeplane/pkg/metrics"
	"github.com/cuemby/edgeplane/pkg/types"
)

// IsManifest reports whether path names a file LoadDir reads
func IsManifest(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadDir reads every manifest in dir, in file name order, into one
// snapshot. Subdirectories are not read. A resource declared twice keeps
// its last declaration. A file or document that cannot be read is logged
// and skipped so the rest of the directory still loads; only an
// unreadable directory is an error.
func LoadDir(dir string) (*types.Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && IsManifest(e.Name()) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	logger := log.WithComponent("ingest")
	snap := types.NewSnapshot()
	skipped := 0
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			skipped++
			logger.Error().Err(err).Str("file", file).Msg("failed to read manifest")
			continue
		}
		resources := decodeStream(data, func(err error) {
			skipped++
			logger.Error().Err(err).Str("file", file).Msg("skipping invalid manifest")
		})
		for _, r := range resources {
			if _, dup := snap.Get(r.Identity()); dup {
				logger.Warn().
					Str("resource", r.Identity().String()).
					Str("file", file).
					Msg("duplicate resource, keeping the later declaration")
			}
			snap.Upsert(r)
		}
	}

	metrics.ManifestErrors.Set(float64(skipped))
	logger.Debug().
		Int("files", len(files)).
		Int("resources", snap.Len()).
		Int("skipped", skipped).
		Msg("loaded manifests")
	return snap, nil
}
