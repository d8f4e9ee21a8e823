package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/retention/internal/domain"
	"github.com/conorfennell/retention/internal/sm2"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func logFor(learner, topic string, res sm2.Result) domain.ReviewLog {
	return domain.ReviewLog{
		ID:            uuid.NewString(),
		LearnerID:     learner,
		TopicID:       topic,
		Quality:       4,
		WasSuccessful: res.WasSuccessful,
		ReviewedAt:    res.Card.LastReviewedAt,
	}
}

func TestSourcesAndTopics(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id, err := db.InsertSource(ctx, "/notes", SourceLocal)
	require.NoError(t, err)

	src, err := db.FindSourceByPath(ctx, "/notes")
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, id, src.ID)
	assert.Equal(t, SourceLocal, src.Type)
	assert.Nil(t, src.LastScanned)

	missing, err := db.FindSourceByPath(ctx, "/elsewhere")
	require.NoError(t, err)
	assert.Nil(t, missing)

	scanned := time.Date(2024, time.April, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, db.UpdateSourceLastScanned(ctx, id, scanned))
	sources, err := db.GetAllSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.NotNil(t, sources[0].LastScanned)
	assert.True(t, sources[0].LastScanned.Equal(scanned))

	topic := domain.Topic{Hash: "h1", Question: "What is SM-2?", Answer: "An algorithm", SourceID: id}
	require.NoError(t, db.InsertTopic(ctx, topic))
	require.NoError(t, db.InsertTopic(ctx, topic), "inserting a known hash is a no-op")
	require.NoError(t, db.InsertTopic(ctx, domain.Topic{Hash: "loose", Question: "No source"}))

	got, err := db.FindTopicByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, &topic, got)

	bySource, err := db.GetTopicsBySourceID(ctx, id)
	require.NoError(t, err)
	assert.Len(t, bySource, 1)

	deleted, err := db.DeleteSource(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err = db.FindTopicByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Nil(t, got, "topics of a deleted source are removed")

	deleted, err = db.DeleteSource(ctx, id)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSaveReviewRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, time.July, 1, 8, 0, 0, 0, time.UTC)

	card, err := db.FindCard(ctx, "ada", "t1")
	require.NoError(t, err)
	assert.Nil(t, card)

	first := sm2.Update(nil, 5, now)
	saved, err := db.SaveReview(ctx, CardRecord{LearnerID: "ada", TopicID: "t1", Card: first.Card}, logFor("ada", "t1", first))
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)
	assert.Equal(t, sm2.Learning, saved.Phase)

	loaded, err := db.FindCard(ctx, "ada", "t1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, first.Card.EaseFactor, loaded.Card.EaseFactor)
	assert.Equal(t, first.Card.IntervalDays, loaded.Card.IntervalDays)
	assert.Equal(t, first.Card.Repetitions, loaded.Card.Repetitions)
	assert.True(t, loaded.Card.LastReviewedAt.Equal(first.Card.LastReviewedAt))
	assert.True(t, loaded.Card.NextReviewAt.Equal(first.Card.NextReviewAt))
	assert.Equal(t, int64(1), loaded.Version)

	second := sm2.Update(&loaded.Card, 4, now.AddDate(0, 0, 1))
	next := *loaded
	next.Card = second.Card
	saved, err = db.SaveReview(ctx, next, logFor("ada", "t1", second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)
	assert.Equal(t, sm2.Young, saved.Phase)

	logs, err := db.ReviewLogs(ctx, "ada", "t1", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.True(t, logs[0].ReviewedAt.After(logs[1].ReviewedAt), "logs are newest first")
}

func TestSaveReviewConflict(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, time.July, 1, 8, 0, 0, 0, time.UTC)

	res := sm2.Update(nil, 4, now)
	rec := CardRecord{LearnerID: "ada", TopicID: "t1", Card: res.Card}
	_, err := db.SaveReview(ctx, rec, logFor("ada", "t1", res))
	require.NoError(t, err)

	// A second first-review of the same card loses.
	_, err = db.SaveReview(ctx, rec, logFor("ada", "t1", res))
	assert.ErrorIs(t, err, ErrConflict)

	// So does a write based on a stale version.
	stale := rec
	stale.Version = 7
	_, err = db.SaveReview(ctx, stale, logFor("ada", "t1", res))
	assert.ErrorIs(t, err, ErrConflict)

	logs, err := db.ReviewLogs(ctx, "ada", "t1", 10)
	require.NoError(t, err)
	assert.Len(t, logs, 1, "rejected reviews are not logged")
}

func TestDueCardsAndUnseenTopics(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC)

	for _, h := range []string{"a", "b", "c", "d"} {
		require.NoError(t, db.InsertTopic(ctx, domain.Topic{Hash: h, Question: "Question " + h}))
	}

	save := func(topic string, reviewedAt time.Time) {
		res := sm2.Update(nil, 4, reviewedAt)
		_, err := db.SaveReview(ctx, CardRecord{LearnerID: "ada", TopicID: topic, Card: res.Card}, logFor("ada", topic, res))
		require.NoError(t, err)
	}
	save("a", now.AddDate(0, 0, -3)) // due two days ago
	save("b", now.AddDate(0, 0, -1)) // due now
	save("c", now)                   // due tomorrow

	// Another learner's cards are invisible.
	res := sm2.Update(nil, 1, now.AddDate(0, 0, -5))
	_, err := db.SaveReview(ctx, CardRecord{LearnerID: "bob", TopicID: "d", Card: res.Card}, logFor("bob", "d", res))
	require.NoError(t, err)

	due, err := db.DueCards(ctx, "ada", now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "a", due[0].TopicID)
	assert.Equal(t, "Question a", due[0].Question)
	assert.Equal(t, "b", due[1].TopicID)

	limited, err := db.DueCards(ctx, "ada", now, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	unseen, err := db.UnseenTopics(ctx, "ada", 10)
	require.NoError(t, err)
	require.Len(t, unseen, 1)
	assert.Equal(t, "d", unseen[0].Hash)

	// Removing a topic hides its card from due queries without deleting it.
	require.NoError(t, db.DeleteTopicByHash(ctx, "a"))
	due, err = db.DueCards(ctx, "ada", now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	card, err := db.FindCard(ctx, "ada", "a")
	require.NoError(t, err)
	assert.NotNil(t, card)
}

func TestFarFutureReviewDates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, time.July, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.InsertTopic(ctx, domain.Topic{Hash: "far", Question: "Far"}))

	far := sm2.RetentionCard{
		EaseFactor:     2.9,
		IntervalDays:   11310936,
		Repetitions:    14,
		LastReviewedAt: now,
		NextReviewAt:   time.Date(32992, time.December, 17, 9, 0, 0, 0, time.UTC),
	}
	res := sm2.Result{Card: far, WasSuccessful: true}
	saved, err := db.SaveReview(ctx, CardRecord{LearnerID: "ada", TopicID: "far", Card: far}, logFor("ada", "far", res))
	require.NoError(t, err)

	loaded, err := db.FindCard(ctx, "ada", "far")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.Card.NextReviewAt.Equal(far.NextReviewAt), "got %v", loaded.Card.NextReviewAt)
	assert.True(t, loaded.Card.LastReviewedAt.Equal(now))

	// Five-digit years still compare after four-digit ones.
	for _, year := range []int{10000, 19999, 32992} {
		due, err := db.DueCards(ctx, "ada", time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), 10)
		require.NoError(t, err)
		assert.Empty(t, due, "not due in year %d", year)
	}
	due, err := db.DueCards(ctx, "ada", time.Date(40000, time.January, 1, 0, 0, 0, 0, time.UTC), 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	// The card can still be reviewed again.
	next := *saved
	next.Card = sm2.Update(&loaded.Card, 5, loaded.Card.NextReviewAt).Card
	_, err = db.SaveReview(ctx, next, logFor("ada", "far", res))
	require.NoError(t, err)
}
