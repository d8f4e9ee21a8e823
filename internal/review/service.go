// Package review runs the review flow: load a learner's card, schedule it,
// and persist the result. Concurrent reviews of the same card are resolved
// by the store's version check; the loser re-reads and schedules again.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/conorfennell/retention/internal/domain"
	"github.com/conorfennell/retention/internal/sm2"
	"github.com/conorfennell/retention/internal/storage"
)

// DefaultMaxAttempts bounds how often Submit retries after a version conflict.
const DefaultMaxAttempts = 3

var (
	// ErrInvalidSubmission is returned when learner or topic IDs are malformed.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrUnknownTopic is returned when the topic is not in the catalog.
	ErrUnknownTopic = errors.New("unknown topic")
)

// Store is the persistence the review flow needs.
type Store interface {
	FindTopicByHash(ctx context.Context, hash string) (*domain.Topic, error)
	FindCard(ctx context.Context, learnerID, topicID string) (*storage.CardRecord, error)
	SaveReview(ctx context.Context, rec storage.CardRecord, entry domain.ReviewLog) (*storage.CardRecord, error)
	DueCards(ctx context.Context, learnerID string, now time.Time, limit int) ([]storage.DueCard, error)
	UnseenTopics(ctx context.Context, learnerID string, limit int) ([]domain.Topic, error)
	ReviewLogs(ctx context.Context, learnerID, topicID string, limit int) ([]domain.ReviewLog, error)
}

// Submission is one graded review. Quality is passed to the scheduler as is;
// out-of-range values are clamped there, not rejected here.
type Submission struct {
	LearnerID string  `json:"learner_id" validate:"required,max=128,printascii"`
	TopicID   string  `json:"topic_id" validate:"required,max=128,printascii"`
	Quality   float64 `json:"quality"`
}

// Outcome is the persisted result of a submission. PreviousPhase is the
// card's phase before the review, New for a first review.
type Outcome struct {
	sm2.Result
	LearnerID     string    `json:"learner_id"`
	TopicID       string    `json:"topic_id"`
	PreviousPhase sm2.Phase `json:"previous_phase"`
	Phase         sm2.Phase `json:"phase"`
	Version       int64     `json:"version"`
	Attempts      int       `json:"-"`
}

// CardStatus is a stored card and whether it is due at the time of the lookup.
type CardStatus struct {
	storage.CardRecord
	Due bool `json:"due"`
}

// Queue lists what a learner should study next: due cards first, then
// topics never reviewed.
type Queue struct {
	Due    []storage.DueCard `json:"due"`
	Unseen []domain.Topic    `json:"unseen"`
}

// Service runs reviews against a Store.
type Service struct {
	store       Store
	scheduler   *sm2.Scheduler
	validate    *validator.Validate
	logger      *slog.Logger
	maxAttempts int
}

// Option configures a Service.
type Option func(*Service)

// WithScheduler sets the scheduler, typically to inject a clock.
func WithScheduler(s *sm2.Scheduler) Option {
	return func(svc *Service) { svc.scheduler = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

// WithMaxAttempts sets how many times Submit tries before giving up on conflicts.
func WithMaxAttempts(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.maxAttempts = n
		}
	}
}

// NewService creates a Service.
func NewService(store Store, opts ...Option) *Service {
	svc := &Service{
		store:       store,
		scheduler:   sm2.NewScheduler(),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      slog.Default(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Submit records a review and returns the new card state.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Outcome, error) {
	if err := s.validate.StructCtx(ctx, sub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}

	topic, err := s.store.FindTopicByHash(ctx, sub.TopicID)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, sub.TopicID)
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		out, err := s.attempt(ctx, sub)
		if err == nil {
			out.Attempts = attempt
			s.logger.Info("review recorded",
				"learner", sub.LearnerID,
				"topic", sub.TopicID,
				"quality", sm2.NormalizeQuality(sub.Quality),
				"successful", out.WasSuccessful,
				"from_phase", out.PreviousPhase.String(),
				"phase", out.Phase.String(),
				"interval_days", out.Card.IntervalDays,
				"next_review_at", out.Card.NextReviewAt,
			)
			return out, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return nil, err
		}
		s.logger.Debug("review conflicted, retrying",
			"learner", sub.LearnerID, "topic", sub.TopicID, "attempt", attempt)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("failed to record review after %d attempts: %w", s.maxAttempts, storage.ErrConflict)
}

func (s *Service) attempt(ctx context.Context, sub Submission) (*Outcome, error) {
	current, err := s.store.FindCard(ctx, sub.LearnerID, sub.TopicID)
	if err != nil {
		return nil, err
	}

	rec := storage.CardRecord{LearnerID: sub.LearnerID, TopicID: sub.TopicID}
	var previous *sm2.RetentionCard
	if current != nil {
		rec.Version = current.Version
		previous = &current.Card
	}

	res := s.scheduler.Update(previous, sub.Quality)
	rec.Card = res.Card

	saved, err := s.store.SaveReview(ctx, rec, domain.ReviewLog{
		ID:            uuid.NewString(),
		LearnerID:     sub.LearnerID,
		TopicID:       sub.TopicID,
		Quality:       sm2.NormalizeQuality(sub.Quality),
		WasSuccessful: res.WasSuccessful,
		ReviewedAt:    res.Card.LastReviewedAt,
	})
	if err != nil {
		return nil, err
	}

	return &Outcome{
		Result:        res,
		LearnerID:     saved.LearnerID,
		TopicID:       saved.TopicID,
		PreviousPhase: sm2.PhaseOf(previous),
		Phase:         saved.Phase,
		Version:       saved.Version,
	}, nil
}

// Card returns the learner's stored card for a topic, or nil if none exists.
func (s *Service) Card(ctx context.Context, learnerID, topicID string) (*CardStatus, error) {
	if err := s.checkIDs(learnerID, topicID); err != nil {
		return nil, err
	}
	rec, err := s.store.FindCard(ctx, learnerID, topicID)
	if err != nil || rec == nil {
		return nil, err
	}
	return &CardStatus{CardRecord: *rec, Due: rec.Card.IsDue(s.scheduler.Now())}, nil
}

// Due returns up to limit cards due for the learner now.
func (s *Service) Due(ctx context.Context, learnerID string, limit int) ([]storage.DueCard, error) {
	if err := s.checkIDs(learnerID); err != nil {
		return nil, err
	}
	return s.store.DueCards(ctx, learnerID, s.scheduler.Now(), limit)
}

// Queue returns up to limit items: due cards, topped up with unseen topics.
func (s *Service) Queue(ctx context.Context, learnerID string, limit int) (*Queue, error) {
	due, err := s.Due(ctx, learnerID, limit)
	if err != nil {
		return nil, err
	}
	q := &Queue{Due: due}
	if rest := limit - len(due); rest > 0 {
		if q.Unseen, err = s.store.UnseenTopics(ctx, learnerID, rest); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// History returns up to limit past reviews, newest first.
func (s *Service) History(ctx context.Context, learnerID, topicID string, limit int) ([]domain.ReviewLog, error) {
	if err := s.checkIDs(learnerID, topicID); err != nil {
		return nil, err
	}
	return s.store.ReviewLogs(ctx, learnerID, topicID, limit)
}

func (s *Service) checkIDs(ids ...string) error {
	for _, id := range ids {
		if err := s.validate.Var(id, "required,max=128,printascii"); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidSubmission, id, err)
		}
	}
	return nil
}
