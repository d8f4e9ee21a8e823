package storage

const schema = `
-- The 'sources' table tracks where topics come from, either a local directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local', -- 'local' or 'git'
    last_scanned INTEGER -- Unix seconds
);

-- The 'topics' table is the catalog of reviewable question/answer entries.
CREATE TABLE IF NOT EXISTS topics (
    hash TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    answer TEXT NOT NULL DEFAULT '',
    context TEXT NOT NULL DEFAULT '',
    source_id INTEGER,

    FOREIGN KEY(source_id) REFERENCES sources(id) ON DELETE CASCADE
);

-- The 'retention_cards' table holds one scheduling row per (learner, topic).
-- Rows survive topic removal so a topic that reappears keeps its history.
CREATE TABLE IF NOT EXISTS retention_cards (
    learner_id TEXT NOT NULL,
    topic_id TEXT NOT NULL,
    ease_factor REAL NOT NULL,
    interval_days INTEGER NOT NULL,
    repetitions INTEGER NOT NULL,
    phase INTEGER NOT NULL, -- 1: Learning, 2: Young, 3: Mature, 4: Relapsed
    last_reviewed_at INTEGER NOT NULL, -- Unix seconds
    next_review_at INTEGER NOT NULL,
    version INTEGER NOT NULL,

    PRIMARY KEY (learner_id, topic_id)
);

CREATE INDEX IF NOT EXISTS idx_retention_cards_due ON retention_cards (learner_id, next_review_at);

-- The 'review_logs' table is an append-only history of reviews.
CREATE TABLE IF NOT EXISTS review_logs (
    id TEXT PRIMARY KEY,
    learner_id TEXT NOT NULL,
    topic_id TEXT NOT NULL,
    quality INTEGER NOT NULL,
    was_successful INTEGER NOT NULL,
    reviewed_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_logs_card ON review_logs (learner_id, topic_id, reviewed_at);
`
