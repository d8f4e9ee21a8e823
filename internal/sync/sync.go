// Package sync reconciles topic sources into the topic catalog.
package sync

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conorfennell/retention/internal/gitsource"
	"github.com/conorfennell/retention/internal/parser"
	"github.com/conorfennell/retention/internal/storage"
	"github.com/conorfennell/retention/internal/topichash"
)

// Report summarizes the reconciliation of one source.
type Report struct {
	SourceID int64    `json:"source_id"`
	Path     string   `json:"path"`
	Parsed   int      `json:"parsed"`
	Inserted int      `json:"inserted"`
	Removed  int      `json:"removed"`
	Errors   []string `json:"errors,omitempty"`
}

// Syncer scans every configured source and updates the topic catalog.
type Syncer struct {
	db       *storage.DB
	logger   *slog.Logger
	reposDir string
	progress io.Writer
	now      func() time.Time
}

// New creates a Syncer. Git sources are checked out under reposDir.
func New(db *storage.DB, logger *slog.Logger, reposDir string) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{db: db, logger: logger, reposDir: reposDir, now: time.Now}
}

// WithProgress sends git clone/pull progress to w.
func (s *Syncer) WithProgress(w io.Writer) *Syncer {
	s.progress = w
	return s
}

// AddSource registers a local directory or git URL and returns its ID.
// An already registered path returns the existing ID.
func (s *Syncer) AddSource(ctx context.Context, path string) (*storage.Source, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("source path cannot be empty")
	}

	sourceType := storage.SourceLocal
	if gitsource.IsGitURL(path) {
		sourceType = storage.SourceGit
	} else {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		path = abs
	}

	existing, err := s.db.FindSourceByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	id, err := s.db.InsertSource(ctx, path, sourceType)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Source added", "id", id, "type", sourceType, "path", path)
	return &storage.Source{ID: id, Path: path, Type: sourceType}, nil
}

// Run iterates over all sources and reconciles them. A failing source is
// reported and skipped; only storage failures abort the run.
func (s *Syncer) Run(ctx context.Context) ([]Report, error) {
	s.logger.Info("Starting sync process for all sources...")
	sources, err := s.db.GetAllSources(ctx)
	if err != nil {
		return nil, err
	}

	if len(sources) == 0 {
		s.logger.Info("No sources configured. Add one with `retention source add <path/or/url.git>`")
		return nil, nil
	}

	for _, source := range sources {
		if source.Type == storage.SourceGit {
			if err := s.EnsureReposDir(); err != nil {
				return nil, err
			}
			break
		}
	}

	var reports []Report
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		s.logger.Info("Syncing source", "id", source.ID, "type", source.Type, "path", source.Path)

		dir := source.Path
		if source.Type == storage.SourceGit {
			localPath, err := gitsource.LocalPath(s.reposDir, source.Path)
			if err == nil {
				err = gitsource.Sync(ctx, s.logger, source.Path, localPath, s.progress)
			}
			if err != nil {
				s.logger.Error("Error syncing git repo", "url", source.Path, "error", err)
				reports = append(reports, Report{SourceID: source.ID, Path: source.Path, Errors: []string{err.Error()}})
				continue
			}
			dir = localPath
		}

		report, err := s.reconcile(ctx, source.ID, dir)
		if err != nil {
			return reports, err
		}
		report.Path = source.Path
		reports = append(reports, report)
	}
	s.logger.Info("Sync process complete.", "sources", len(sources))
	return reports, nil
}

// reconcile inserts topics found under dir and removes the source's topics
// that are no longer there.
func (s *Syncer) reconcile(ctx context.Context, sourceID int64, dir string) (Report, error) {
	report := Report{SourceID: sourceID}
	found := make(map[string]bool)
	var storeErr error

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		topics, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("parsing %s: %v", path, parseErr))
		}
		for _, topic := range topics {
			topic.Hash = topichash.Hash(topic)
			topic.SourceID = sourceID
			report.Parsed++
			if found[topic.Hash] {
				continue
			}
			found[topic.Hash] = true

			existing, err := s.db.FindTopicByHash(ctx, topic.Hash)
			if err == nil && existing == nil {
				s.logger.Debug("New topic found, inserting...", "hash", topic.Hash)
				if err = s.db.InsertTopic(ctx, topic); err == nil {
					report.Inserted++
				}
			}
			if err != nil {
				storeErr = err
				return filepath.SkipAll
			}
		}
		return nil
	})
	if storeErr != nil {
		return report, storeErr
	}
	if walkErr != nil {
		s.logger.Error("Error walking directory", "path", dir, "error", walkErr)
		report.Errors = append(report.Errors, walkErr.Error())
		return report, nil
	}

	stored, err := s.db.GetTopicsBySourceID(ctx, sourceID)
	if err != nil {
		return report, err
	}
	for _, topic := range stored {
		if found[topic.Hash] {
			continue
		}
		s.logger.Info("Orphaned topic, deleting", "hash", topic.Hash)
		if err := s.db.DeleteTopicByHash(ctx, topic.Hash); err != nil {
			s.logger.Warn("Failed to delete orphaned topic", "hash", topic.Hash, "error", err)
			continue
		}
		report.Removed++
	}

	if err := s.db.UpdateSourceLastScanned(ctx, sourceID, s.now()); err != nil {
		s.logger.Warn("Failed to update last scanned for source", "source_id", sourceID, "error", err)
	}

	s.logger.Info("reconciliation complete",
		"path", dir,
		"parsed_topics", report.Parsed,
		"inserted", report.Inserted,
		"orphaned_deleted", report.Removed,
		"errors", len(report.Errors),
	)
	return report, nil
}

// EnsureReposDir creates the directory git sources are cloned into.
func (s *Syncer) EnsureReposDir() error {
	if err := os.MkdirAll(s.reposDir, 0o755); err != nil {
		return fmt.Errorf("failed to create repos directory: %w", err)
	}
	return nil
}
