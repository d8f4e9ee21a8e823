package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/retention/internal/domain"
	"github.com/conorfennell/retention/internal/sm2"
)

// ErrConflict is returned by SaveReview when the stored card changed since it was read.
var ErrConflict = errors.New("card was modified concurrently")

// CardRecord is a stored retention card keyed by (learner, topic).
// Version is zero for a card that has not been stored yet.
type CardRecord struct {
	LearnerID string            `json:"learner_id"`
	TopicID   string            `json:"topic_id"`
	Card      sm2.RetentionCard `json:"card"`
	Phase     sm2.Phase         `json:"phase"`
	Version   int64             `json:"version"`
}

// DueCard is a card joined with the question it schedules.
type DueCard struct {
	CardRecord
	Question string `json:"question"`
}

const cardColumns = `c.learner_id, c.topic_id, c.ease_factor, c.interval_days, c.repetitions,
		c.phase, c.last_reviewed_at, c.next_review_at, c.version`

// FindCard retrieves the card for a learner and topic. It returns nil if the
// learner has never reviewed the topic.
func (db *DB) FindCard(ctx context.Context, learnerID, topicID string) (*CardRecord, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+cardColumns+`
		FROM retention_cards c
		WHERE c.learner_id = ? AND c.topic_id = ?
	`, learnerID, topicID)

	rec, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find card %s/%s: %w", learnerID, topicID, err)
	}
	return rec, nil
}

// SaveReview stores rec.Card and appends entry to the review log in one
// transaction. rec.Version must be the version that was read, or zero for a
// first review. On success the returned record carries the new version.
func (db *DB) SaveReview(ctx context.Context, rec CardRecord, entry domain.ReviewLog) (*CardRecord, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	card := rec.Card
	phase := card.Phase()
	var res sql.Result
	if rec.Version == 0 {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO retention_cards (learner_id, topic_id, ease_factor, interval_days, repetitions,
				phase, last_reviewed_at, next_review_at, version)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)
			ON CONFLICT(learner_id, topic_id) DO NOTHING
		`,
			rec.LearnerID, rec.TopicID, card.EaseFactor, card.IntervalDays, card.Repetitions,
			int(phase), unixTime(card.LastReviewedAt), unixTime(card.NextReviewAt),
		)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE retention_cards
			SET ease_factor = ?, interval_days = ?, repetitions = ?, phase = ?,
				last_reviewed_at = ?, next_review_at = ?, version = version + 1
			WHERE learner_id = ? AND topic_id = ? AND version = ?
		`,
			card.EaseFactor, card.IntervalDays, card.Repetitions, int(phase),
			unixTime(card.LastReviewedAt), unixTime(card.NextReviewAt),
			rec.LearnerID, rec.TopicID, rec.Version,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save card %s/%s: %w", rec.LearnerID, rec.TopicID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to save card %s/%s: %w", rec.LearnerID, rec.TopicID, err)
	}
	if n == 0 {
		return nil, ErrConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO review_logs (id, learner_id, topic_id, quality, was_successful, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.LearnerID, entry.TopicID, entry.Quality, entry.WasSuccessful, unixTime(entry.ReviewedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to append review log for %s/%s: %w", rec.LearnerID, rec.TopicID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit review for %s/%s: %w", rec.LearnerID, rec.TopicID, err)
	}

	saved := rec
	saved.Phase = phase
	saved.Version = rec.Version + 1
	return &saved, nil
}

// DueCards returns the learner's cards with next_review_at <= now, most
// overdue first. Cards whose topic is no longer in the catalog are skipped.
func (db *DB) DueCards(ctx context.Context, learnerID string, now time.Time, limit int) ([]DueCard, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+cardColumns+`, t.question
		FROM retention_cards c
		JOIN topics t ON t.hash = c.topic_id
		WHERE c.learner_id = ? AND c.next_review_at <= ?
		ORDER BY c.next_review_at, c.topic_id
		LIMIT ?
	`, learnerID, unixTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due cards for learner %s: %w", learnerID, err)
	}
	defer rows.Close()

	var due []DueCard
	for rows.Next() {
		var question string
		rec, err := scanCard(rows, &question)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due card row: %w", err)
		}
		due = append(due, DueCard{CardRecord: *rec, Question: question})
	}
	return due, rows.Err()
}

// ReviewLogs returns up to limit reviews of a topic by a learner, newest first.
func (db *DB) ReviewLogs(ctx context.Context, learnerID, topicID string, limit int) ([]domain.ReviewLog, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, learner_id, topic_id, quality, was_successful, reviewed_at
		FROM review_logs
		WHERE learner_id = ? AND topic_id = ?
		ORDER BY reviewed_at DESC, rowid DESC
		LIMIT ?
	`, learnerID, topicID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get review logs for %s/%s: %w", learnerID, topicID, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var (
			l          domain.ReviewLog
			reviewedAt int64
		)
		if err := rows.Scan(&l.ID, &l.LearnerID, &l.TopicID, &l.Quality, &l.WasSuccessful, &reviewedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review log row: %w", err)
		}
		l.ReviewedAt = fromUnix(reviewedAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func scanCard(row rowScanner, extra ...any) (*CardRecord, error) {
	var (
		rec                 CardRecord
		phase               int
		lastReview, nextDue int64
	)
	dest := []any{
		&rec.LearnerID,
		&rec.TopicID,
		&rec.Card.EaseFactor,
		&rec.Card.IntervalDays,
		&rec.Card.Repetitions,
		&phase,
		&lastReview,
		&nextDue,
		&rec.Version,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	rec.Phase = sm2.Phase(phase)
	rec.Card.LastReviewedAt = fromUnix(lastReview)
	rec.Card.NextReviewAt = fromUnix(nextDue)
	return &rec, nil
}
