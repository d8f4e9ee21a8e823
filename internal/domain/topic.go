package domain

import "time"

// Topic is a single question-answer-context entry a learner can be reviewed on.
// Hash is derived from the content and doubles as the topic ID.
type Topic struct {
	Hash     string `json:"hash"`
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	Context  string `json:"context,omitempty"`
	SourceID int64  `json:"source_id,omitempty"`
}

// ReviewLog records a single review of a topic by a learner.
// Quality is the normalized 0-5 score fed to the scheduler.
type ReviewLog struct {
	ID            string    `json:"id"`
	LearnerID     string    `json:"learner_id"`
	TopicID       string    `json:"topic_id"`
	Quality       int       `json:"quality"`
	WasSuccessful bool      `json:"was_successful"`
	ReviewedAt    time.Time `json:"reviewed_at"`
}
