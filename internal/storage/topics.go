package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/retention/internal/domain"
)

// InsertTopic adds a topic to the catalog. A topic whose hash already
// exists is left untouched.
func (db *DB) InsertTopic(ctx context.Context, topic domain.Topic) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO topics (hash, question, answer, context, source_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`,
		topic.Hash,
		topic.Question,
		topic.Answer,
		topic.Context,
		sql.NullInt64{Int64: topic.SourceID, Valid: topic.SourceID != 0},
	)
	if err != nil {
		return fmt.Errorf("failed to insert topic %s: %w", topic.Hash, err)
	}
	return nil
}

// FindTopicByHash retrieves a topic by its hash. It returns nil if there is none.
func (db *DB) FindTopicByHash(ctx context.Context, hash string) (*domain.Topic, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT hash, question, answer, context, source_id
		FROM topics WHERE hash = ?
	`, hash)

	t, err := scanTopic(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find topic by hash %s: %w", hash, err)
	}
	return t, nil
}

// GetTopicsBySourceID retrieves all topics contributed by a source.
func (db *DB) GetTopicsBySourceID(ctx context.Context, sourceID int64) ([]domain.Topic, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT hash, question, answer, context, source_id
		FROM topics WHERE source_id = ?
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get topics for source ID %d: %w", sourceID, err)
	}
	defer rows.Close()

	var topics []domain.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan topic row for source ID %d: %w", sourceID, err)
		}
		topics = append(topics, *t)
	}
	return topics, rows.Err()
}

// DeleteTopicByHash removes a topic from the catalog.
func (db *DB) DeleteTopicByHash(ctx context.Context, hash string) error {
	_, err := db.conn.ExecContext(ctx, `
		DELETE FROM topics
		WHERE hash = ?
	`, hash)
	if err != nil {
		return fmt.Errorf("failed to delete topic with hash %s: %w", hash, err)
	}
	return nil
}

// UnseenTopics returns topics the learner has no card for, in catalog order.
func (db *DB) UnseenTopics(ctx context.Context, learnerID string, limit int) ([]domain.Topic, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT t.hash, t.question, t.answer, t.context, t.source_id
		FROM topics t
		LEFT JOIN retention_cards c ON c.topic_id = t.hash AND c.learner_id = ?
		WHERE c.topic_id IS NULL
		ORDER BY t.rowid
		LIMIT ?
	`, learnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get unseen topics for learner %s: %w", learnerID, err)
	}
	defer rows.Close()

	var topics []domain.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unseen topic row: %w", err)
		}
		topics = append(topics, *t)
	}
	return topics, rows.Err()
}

func scanTopic(row rowScanner) (*domain.Topic, error) {
	var (
		t        domain.Topic
		sourceID sql.NullInt64
	)
	if err := row.Scan(&t.Hash, &t.Question, &t.Answer, &t.Context, &sourceID); err != nil {
		return nil, err
	}
	t.SourceID = sourceID.Int64
	return &t, nil
}
