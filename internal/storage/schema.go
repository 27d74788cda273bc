package storage

const schema = `
PRAGMA foreign_keys = ON;

-- 'cards' holds card content; 'seq' preserves insertion order for listings.
CREATE TABLE IF NOT EXISTS cards (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL UNIQUE,
    front      TEXT NOT NULL,
    back       TEXT NOT NULL,
    card_type  TEXT NOT NULL DEFAULT 'basic',
    deck       TEXT NOT NULL DEFAULT '',
    tags       TEXT NOT NULL DEFAULT '[]',
    created_at DATETIME NOT NULL
);

-- 'scheduling' is the single active scheduling state per card.
-- 'version' is the optimistic-concurrency token checked on every write.
CREATE TABLE IF NOT EXISTS scheduling (
    card_id          TEXT PRIMARY KEY REFERENCES cards(id),
    stage            INTEGER NOT NULL DEFAULT 0,
    repetitions      INTEGER NOT NULL DEFAULT 0,
    ease_factor      REAL NOT NULL,
    interval_days    INTEGER NOT NULL DEFAULT 0,
    due_at           DATETIME NOT NULL,
    last_reviewed_at DATETIME,
    version          INTEGER NOT NULL DEFAULT 1
);

-- 'review_log' is the append-only ledger; rowid order is append order.
CREATE TABLE IF NOT EXISTS review_log (
    id             TEXT PRIMARY KEY,
    card_id        TEXT NOT NULL REFERENCES cards(id),
    reviewed_at    DATETIME NOT NULL,
    grade          INTEGER NOT NULL,
    stage_before   INTEGER NOT NULL,
    interval_after INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_log_card ON review_log(card_id);
`
