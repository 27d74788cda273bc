// Package storage is the durable card store: card content, the single
// active scheduling state per card, and the append-only review ledger,
// backed by SQLite.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mynotes/srs/internal/domain"
	"github.com/mynotes/srs/internal/sm2"
	_ "modernc.org/sqlite" // registers the sqlite driver
)

var validate = validator.New()

// Store wraps the SQL database connection.
type Store struct {
	conn *sql.DB
}

// Open creates a database connection and ensures the schema is up to date.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w: %w", domain.ErrStorage, err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w: %w", domain.ErrStorage, err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w: %w", domain.ErrStorage, err)
	}

	return &Store{conn: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// NewCard is the validated input for card creation, as produced by the
// import/entry collaborator.
type NewCard struct {
	Front string `validate:"required"`
	Back  string `validate:"required"`
	Type  domain.CardType
	Deck  string
	Tags  []string `validate:"dive,required"`
}

// CreateCard inserts a card with the initial scheduling state: stage New,
// interval 0, due immediately.
func (s *Store) CreateCard(nc NewCard, now time.Time) (domain.Card, domain.SchedulingState, error) {
	if err := validate.Struct(nc); err != nil {
		return domain.Card{}, domain.SchedulingState{}, fmt.Errorf("invalid card: %w", err)
	}

	card := domain.Card{
		ID:        uuid.NewString(),
		Front:     nc.Front,
		Back:      nc.Back,
		Type:      nc.Type,
		Deck:      nc.Deck,
		Tags:      nc.Tags,
		CreatedAt: now,
	}
	state := domain.NewState(now)

	tags, err := json.Marshal(card.Tags)
	if err != nil {
		return domain.Card{}, domain.SchedulingState{}, fmt.Errorf("encode tags: %w", err)
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return domain.Card{}, domain.SchedulingState{}, fmt.Errorf("begin create: %w: %w", domain.ErrStorage, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO cards (id, front, back, card_type, deck, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, card.ID, card.Front, card.Back, card.Type.String(), card.Deck, string(tags), card.CreatedAt)
	if err != nil {
		return domain.Card{}, domain.SchedulingState{}, fmt.Errorf("insert card %s: %w: %w", card.ID, domain.ErrStorage, err)
	}

	_, err = tx.Exec(`
		INSERT INTO scheduling (card_id, stage, repetitions, ease_factor, interval_days, due_at, last_reviewed_at, version)
		VALUES (?, ?, ?, ?, ?, ?, NULL, ?)
	`, card.ID, int(state.Stage), state.Repetitions, state.EaseFactor, state.IntervalDays, state.DueAt, state.Version)
	if err != nil {
		return domain.Card{}, domain.SchedulingState{}, fmt.Errorf("insert scheduling for %s: %w: %w", card.ID, domain.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Card{}, domain.SchedulingState{}, fmt.Errorf("commit create: %w: %w", domain.ErrStorage, err)
	}
	return card, state, nil
}

const cardColumns = `
	c.id, c.front, c.back, c.card_type, c.deck, c.tags, c.created_at,
	s.stage, s.repetitions, s.ease_factor, s.interval_days, s.due_at, s.last_reviewed_at, s.version
`

// GetCard retrieves a card and its scheduling state by id.
func (s *Store) GetCard(id string) (domain.Card, domain.SchedulingState, error) {
	row := s.conn.QueryRow(`
		SELECT `+cardColumns+`
		FROM cards c JOIN scheduling s ON s.card_id = c.id
		WHERE c.id = ?
	`, id)

	card, state, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Card{}, domain.SchedulingState{}, fmt.Errorf("card %s: %w", id, domain.ErrNotFound)
		}
		return domain.Card{}, domain.SchedulingState{}, fmt.Errorf("get card %s: %w: %w", id, domain.ErrStorage, err)
	}
	return card, state, nil
}

// ListCards returns all cards in insertion order, optionally filtered to a
// deck. The result is a complete snapshot; there is no cursor state.
func (s *Store) ListCards(deck string) ([]domain.CardWithState, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM cards c JOIN scheduling s ON s.card_id = c.id
	`
	args := []any{}
	if deck != "" {
		query += ` WHERE c.deck = ?`
		args = append(args, deck)
	}
	query += ` ORDER BY c.seq`

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w: %w", domain.ErrStorage, err)
	}
	defer rows.Close()

	var out []domain.CardWithState
	for rows.Next() {
		card, state, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card row: %w: %w", domain.ErrStorage, err)
		}
		out = append(out, domain.CardWithState{Card: card, State: state})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cards: %w: %w", domain.ErrStorage, err)
	}
	return out, nil
}

// ApplyReview atomically replaces the card's scheduling state and appends
// the review record: either both take effect or neither does. The version
// carried in next must match the stored version or the write fails with
// ErrConflict. On success the returned state carries the new version and
// the returned record its assigned id.
func (s *Store) ApplyReview(cardID string, next domain.SchedulingState, rec domain.ReviewRecord) (domain.SchedulingState, domain.ReviewRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CardID = cardID

	tx, err := s.conn.Begin()
	if err != nil {
		return domain.SchedulingState{}, domain.ReviewRecord{}, fmt.Errorf("begin apply: %w: %w", domain.ErrStorage, err)
	}
	defer tx.Rollback()

	applied := next
	applied.Version = next.Version + 1
	if err := updateState(tx, cardID, applied, next.Version); err != nil {
		return domain.SchedulingState{}, domain.ReviewRecord{}, err
	}

	_, err = tx.Exec(`
		INSERT INTO review_log (id, card_id, reviewed_at, grade, stage_before, interval_after)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.CardID, rec.ReviewedAt, int(rec.Grade), int(rec.StageBefore), rec.IntervalAfter)
	if err != nil {
		return domain.SchedulingState{}, domain.ReviewRecord{}, fmt.Errorf("append review for %s: %w: %w", cardID, domain.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.SchedulingState{}, domain.ReviewRecord{}, fmt.Errorf("commit apply: %w: %w", domain.ErrStorage, err)
	}
	return applied, rec, nil
}

// RevertReview removes a just-appended review record and restores the prior
// scheduling state in one transaction. expectVersion is the version the
// grade produced; a mismatch means something else wrote in between and the
// revert fails with ErrConflict.
func (s *Store) RevertReview(cardID string, prev domain.SchedulingState, recordID string, expectVersion int64) (domain.SchedulingState, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return domain.SchedulingState{}, fmt.Errorf("begin revert: %w: %w", domain.ErrStorage, err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM review_log WHERE id = ? AND card_id = ?`, recordID, cardID)
	if err != nil {
		return domain.SchedulingState{}, fmt.Errorf("remove review %s: %w: %w", recordID, domain.ErrStorage, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.SchedulingState{}, fmt.Errorf("remove review %s: %w: %w", recordID, domain.ErrStorage, err)
	} else if n == 0 {
		return domain.SchedulingState{}, fmt.Errorf("review record %s: %w", recordID, domain.ErrNotFound)
	}

	// The prior version token is restored exactly, so a grade/undo pair is
	// a true round trip.
	if err := updateState(tx, cardID, prev, expectVersion); err != nil {
		return domain.SchedulingState{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.SchedulingState{}, fmt.Errorf("commit revert: %w: %w", domain.ErrStorage, err)
	}
	return prev, nil
}

// History returns the card's full review ledger, oldest first.
func (s *Store) History(cardID string) ([]domain.ReviewRecord, error) {
	if err := s.ensureCard(cardID); err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(`
		SELECT id, card_id, reviewed_at, grade, stage_before, interval_after
		FROM review_log
		WHERE card_id = ?
		ORDER BY rowid
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("history for %s: %w: %w", cardID, domain.ErrStorage, err)
	}
	defer rows.Close()

	var out []domain.ReviewRecord
	for rows.Next() {
		var rec domain.ReviewRecord
		var grade, stageBefore int
		if err := rows.Scan(&rec.ID, &rec.CardID, &rec.ReviewedAt, &grade, &stageBefore, &rec.IntervalAfter); err != nil {
			return nil, fmt.Errorf("scan review row: %w: %w", domain.ErrStorage, err)
		}
		rec.Grade = domain.Grade(grade)
		rec.StageBefore = domain.Stage(stageBefore)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history for %s: %w: %w", cardID, domain.ErrStorage, err)
	}
	return out, nil
}

// CardStats is the per-card summary shown by the surrounding application.
type CardStats struct {
	Reviews        int
	LastReviewedAt *time.Time
	Bucket         domain.Bucket
}

// Stats summarizes a card's review history and current standing.
func (s *Store) Stats(cardID string) (CardStats, error) {
	_, state, err := s.GetCard(cardID)
	if err != nil {
		return CardStats{}, err
	}

	var count int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM review_log WHERE card_id = ?`, cardID).Scan(&count); err != nil {
		return CardStats{}, fmt.Errorf("count reviews for %s: %w: %w", cardID, domain.ErrStorage, err)
	}

	return CardStats{
		Reviews:        count,
		LastReviewedAt: state.LastReviewedAt,
		Bucket:         domain.BucketOf(state),
	}, nil
}

// RebuildState rederives a card's scheduling state by replaying its review
// ledger through the scheduler and overwrites the cached state with the
// result. This is the recovery path for suspected corruption; it bumps the
// version without a token check.
func (s *Store) RebuildState(cardID string, params *sm2.Params) (domain.SchedulingState, error) {
	card, current, err := s.GetCard(cardID)
	if err != nil {
		return domain.SchedulingState{}, err
	}
	history, err := s.History(cardID)
	if err != nil {
		return domain.SchedulingState{}, err
	}

	rebuilt, err := params.Replay(cardID, card.CreatedAt, history)
	if err != nil {
		return domain.SchedulingState{}, err
	}
	rebuilt.Version = current.Version + 1

	tx, err := s.conn.Begin()
	if err != nil {
		return domain.SchedulingState{}, fmt.Errorf("begin rebuild: %w: %w", domain.ErrStorage, err)
	}
	defer tx.Rollback()

	if err := updateState(tx, cardID, rebuilt, current.Version); err != nil {
		return domain.SchedulingState{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.SchedulingState{}, fmt.Errorf("commit rebuild: %w: %w", domain.ErrStorage, err)
	}
	return rebuilt, nil
}

// updateState writes a full scheduling state guarded by the expected
// version token. Zero rows affected means either the card is unknown or the
// token is stale.
func updateState(tx *sql.Tx, cardID string, state domain.SchedulingState, expectVersion int64) error {
	var lastReviewed sql.NullTime
	if state.LastReviewedAt != nil {
		lastReviewed = sql.NullTime{Time: *state.LastReviewedAt, Valid: true}
	}

	res, err := tx.Exec(`
		UPDATE scheduling
		SET stage = ?, repetitions = ?, ease_factor = ?, interval_days = ?,
		    due_at = ?, last_reviewed_at = ?, version = ?
		WHERE card_id = ? AND version = ?
	`, int(state.Stage), state.Repetitions, state.EaseFactor, state.IntervalDays,
		state.DueAt, lastReviewed, state.Version, cardID, expectVersion)
	if err != nil {
		return fmt.Errorf("update state for %s: %w: %w", cardID, domain.ErrStorage, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update state for %s: %w: %w", cardID, domain.ErrStorage, err)
	}
	if n == 0 {
		var v int64
		err := tx.QueryRow(`SELECT version FROM scheduling WHERE card_id = ?`, cardID).Scan(&v)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("check version for %s: %w: %w", cardID, domain.ErrStorage, err)
		}
		return fmt.Errorf("card %s at version %d, expected %d: %w", cardID, v, expectVersion, domain.ErrConflict)
	}
	return nil
}

func (s *Store) ensureCard(cardID string) error {
	var one int
	err := s.conn.QueryRow(`SELECT 1 FROM cards WHERE id = ?`, cardID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("card %s: %w", cardID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check card %s: %w: %w", cardID, domain.ErrStorage, err)
	}
	return nil
}

// scanCard reads one joined cards+scheduling row.
func scanCard(row interface{ Scan(...any) error }) (domain.Card, domain.SchedulingState, error) {
	var (
		card         domain.Card
		state        domain.SchedulingState
		cardType     string
		tags         string
		stage        int
		lastReviewed sql.NullTime
	)

	err := row.Scan(
		&card.ID, &card.Front, &card.Back, &cardType, &card.Deck, &tags, &card.CreatedAt,
		&stage, &state.Repetitions, &state.EaseFactor, &state.IntervalDays,
		&state.DueAt, &lastReviewed, &state.Version,
	)
	if err != nil {
		return domain.Card{}, domain.SchedulingState{}, err
	}

	card.Type, err = domain.ParseCardType(cardType)
	if err != nil {
		return domain.Card{}, domain.SchedulingState{}, err
	}
	if err := json.Unmarshal([]byte(tags), &card.Tags); err != nil {
		return domain.Card{}, domain.SchedulingState{}, fmt.Errorf("decode tags for %s: %w", card.ID, err)
	}
	state.Stage = domain.Stage(stage)
	if lastReviewed.Valid {
		t := lastReviewed.Time
		state.LastReviewedAt = &t
	}
	return card, state, nil
}
