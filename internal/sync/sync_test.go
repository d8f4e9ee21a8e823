package sync

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/retention/internal/domain"
	"github.com/conorfennell/retention/internal/sm2"
	"github.com/conorfennell/retention/internal/storage"
	"github.com/conorfennell/retention/internal/topichash"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeDeck(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRunReconcilesLocalSource(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	notes := t.TempDir()
	writeDeck(t, notes, "go.md", "Q: What is Go?\nA: A language\n---\nQ: Who made Go?\nA: Google\n")
	writeDeck(t, notes, "ignored.txt", "Q: Not a deck\nA: skipped")
	require.NoError(t, os.Mkdir(filepath.Join(notes, "sub"), 0o755))
	writeDeck(t, filepath.Join(notes, "sub"), "more.MD", "Q: What is SM-2?\nA: A scheduler\n")

	s := New(db, quietLogger(), filepath.Join(t.TempDir(), "repos"))
	src, err := s.AddSource(ctx, notes)
	require.NoError(t, err)
	assert.Equal(t, storage.SourceLocal, src.Type)

	again, err := s.AddSource(ctx, notes)
	require.NoError(t, err)
	assert.Equal(t, src.ID, again.ID, "adding a known path returns the existing source")

	reports, err := s.Run(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 3, reports[0].Parsed)
	assert.Equal(t, 3, reports[0].Inserted)
	assert.Zero(t, reports[0].Removed)

	topics, err := db.GetTopicsBySourceID(ctx, src.ID)
	require.NoError(t, err)
	assert.Len(t, topics, 3)

	// A learner reviews a topic that later disappears from the source.
	gone := topichash.Hash(domain.Topic{Question: "Who made Go?", Answer: "Google"})
	res := sm2.Update(nil, 4, time.Now())
	_, err = db.SaveReview(ctx, storage.CardRecord{LearnerID: "ada", TopicID: gone, Card: res.Card},
		domain.ReviewLog{ID: "log-1", LearnerID: "ada", TopicID: gone, Quality: 4, WasSuccessful: true, ReviewedAt: res.Card.LastReviewedAt})
	require.NoError(t, err)

	writeDeck(t, notes, "go.md", "Q: What is Go?\nA: A language\n")
	reports, err = s.Run(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 0, reports[0].Inserted)
	assert.Equal(t, 1, reports[0].Removed)

	topic, err := db.FindTopicByHash(ctx, gone)
	require.NoError(t, err)
	assert.Nil(t, topic)

	card, err := db.FindCard(ctx, "ada", gone)
	require.NoError(t, err)
	assert.NotNil(t, card, "cards outlive their topics")

	sources, err := db.GetAllSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.NotNil(t, sources[0].LastScanned)
}

func TestRunWithMissingDirectoryKeepsTopics(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	notes := t.TempDir()
	writeDeck(t, notes, "deck.md", "Q: Kept?\nA: Yes\n")
	s := New(db, quietLogger(), t.TempDir())
	src, err := s.AddSource(ctx, notes)
	require.NoError(t, err)
	_, err = s.Run(ctx)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(notes))
	reports, err := s.Run(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.NotEmpty(t, reports[0].Errors)

	topics, err := db.GetTopicsBySourceID(ctx, src.ID)
	require.NoError(t, err)
	assert.Len(t, topics, 1)
}

func TestAddSourceDetectsGit(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(db, quietLogger(), t.TempDir())
	src, err := s.AddSource(context.Background(), "https://github.com/acme/decks.git")
	require.NoError(t, err)
	assert.Equal(t, storage.SourceGit, src.Type)
	assert.Equal(t, "https://github.com/acme/decks.git", src.Path)

	_, err = s.AddSource(context.Background(), "  ")
	assert.Error(t, err)
}

func TestRunWithoutSources(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reports, err := New(db, quietLogger(), t.TempDir()).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports)
}
