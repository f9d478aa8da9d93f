package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"taifexflow/internal/models"
	"taifexflow/logger"
)

// PersistenceError wraps a failed artifact write with the path it targeted.
// It propagates to the orchestrator; artifact writes are never retried.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

const timestampLayout = "20060102150405"

// ArtifactWriter persists snapshots under the data directory as a
// timestamped history file plus an overwritten "latest" file, optionally
// mirroring every artifact to S3.
type ArtifactWriter struct {
	dataDir string
	mirror  *S3Mirror
	now     func() time.Time
	log     *logger.Log
}

func NewArtifactWriter(dataDir string, mirror *S3Mirror, log *logger.Log) *ArtifactWriter {
	return &ArtifactWriter{
		dataDir: dataDir,
		mirror:  mirror,
		now:     time.Now,
		log:     log,
	}
}

// LatestPath returns the fixed "latest" artifact path for a category.
func (w *ArtifactWriter) LatestPath(category string) string {
	return filepath.Join(w.dataDir, category+"_latest.json")
}

// WriteSnapshot serializes the snapshot to {category}_{timestamp}.json and,
// when updateLatest is set, to {category}_latest.json. It returns the
// timestamped path.
func (w *ArtifactWriter) WriteSnapshot(ctx context.Context, category string, snap models.Snapshot, updateLatest bool) (string, error) {
	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return "", &PersistenceError{Path: w.dataDir, Err: err}
	}

	data, err := models.EncodeSnapshot(snap)
	if err != nil {
		return "", &PersistenceError{Path: w.dataDir, Err: err}
	}

	tsPath := filepath.Join(w.dataDir, fmt.Sprintf("%s_%s.json", category, w.now().Format(timestampLayout)))
	if err := os.WriteFile(tsPath, data, 0o644); err != nil {
		return "", &PersistenceError{Path: tsPath, Err: err}
	}
	logger.IncrementArtifactWrite(len(data))

	paths := []string{tsPath}
	if updateLatest {
		latest := w.LatestPath(category)
		if err := os.WriteFile(latest, data, 0o644); err != nil {
			return "", &PersistenceError{Path: latest, Err: err}
		}
		logger.IncrementArtifactWrite(len(data))
		paths = append(paths, latest)
	}

	w.log.WithComponent("writer").WithFields(logger.Fields{
		"category": category,
		"records":  len(snap),
		"paths":    paths,
	}).Info("snapshot persisted")

	w.mirrorArtifact(ctx, tsPath, data, "application/json")

	return tsPath, nil
}

// WriteRaw persists a raw payload companion artifact, e.g. the decoded CSV
// body kept for diagnostics, and returns its path.
func (w *ArtifactWriter) WriteRaw(ctx context.Context, category, ext string, payload []byte) (string, error) {
	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return "", &PersistenceError{Path: w.dataDir, Err: err}
	}

	path := filepath.Join(w.dataDir, fmt.Sprintf("%s_%s.%s", category, w.now().Format(timestampLayout), ext))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", &PersistenceError{Path: path, Err: err}
	}
	logger.IncrementArtifactWrite(len(payload))

	w.log.WithComponent("writer").WithFields(logger.Fields{
		"category": category,
		"path":     path,
	}).Info("raw payload persisted")

	w.mirrorArtifact(ctx, path, payload, "text/csv")

	return path, nil
}

// mirrorArtifact uploads a copy to S3 when the mirror is enabled. The local
// filesystem is the system of record, so mirror failures only log.
func (w *ArtifactWriter) mirrorArtifact(ctx context.Context, path string, data []byte, contentType string) {
	if w.mirror == nil {
		return
	}
	if err := w.mirror.Upload(ctx, filepath.Base(path), data, contentType); err != nil {
		w.log.WithComponent("writer").WithError(err).WithFields(logger.Fields{"path": path}).Warn("s3 mirror upload failed")
	}
}
