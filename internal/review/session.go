// Package review orchestrates a review session: it snapshots the due queue,
// runs each grade through the scheduler, persists the result, and supports a
// single-step undo of the most recent grade.
package review

import (
	"errors"
	"fmt"
	"time"

	"github.com/mynotes/srs/internal/domain"
	"github.com/mynotes/srs/internal/dueset"
	"github.com/mynotes/srs/internal/sm2"
	"go.uber.org/zap"
)

// ErrQueueExhausted is returned by Grade when no card is left to review.
var ErrQueueExhausted = errors.New("srs: review queue exhausted")

// Store is the slice of the card store a session needs.
type Store interface {
	ListCards(deck string) ([]domain.CardWithState, error)
	ApplyReview(cardID string, next domain.SchedulingState, rec domain.ReviewRecord) (domain.SchedulingState, domain.ReviewRecord, error)
	RevertReview(cardID string, prev domain.SchedulingState, recordID string, expectVersion int64) (domain.SchedulingState, error)
}

// Session walks an ordered queue of due cards. The queue is built once at
// Start from a fixed snapshot time; it does not re-query as wall-clock time
// passes, so the due set stays stable for the whole sitting.
type Session struct {
	store  Store
	params *sm2.Params
	log    *zap.Logger

	now   time.Time
	queue []domain.CardWithState
	pos   int

	undo *lastGrade
}

// lastGrade holds what is needed to revert the most recent grade.
type lastGrade struct {
	cardID         string
	prev           domain.SchedulingState
	recordID       string
	appliedVersion int64
}

// Start builds a session over the cards due at now, optionally limited to a
// deck.
func Start(store Store, params *sm2.Params, logger *zap.Logger, now time.Time, deck string) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cards, err := store.ListCards(deck)
	if err != nil {
		return nil, fmt.Errorf("build due queue: %w", err)
	}
	queue := dueset.Due(cards, now)

	logger.Info("review session started",
		zap.Time("now", now),
		zap.String("deck", deck),
		zap.Int("due", len(queue)),
	)

	return &Session{
		store:  store,
		params: params,
		log:    logger,
		now:    now,
		queue:  queue,
	}, nil
}

// Current returns the next card to review, or ok=false once the queue is
// exhausted.
func (s *Session) Current() (domain.CardWithState, bool) {
	if s.pos >= len(s.queue) {
		return domain.CardWithState{}, false
	}
	return s.queue[s.pos], true
}

// Remaining reports how many cards are left, including the current one.
func (s *Session) Remaining() int {
	return len(s.queue) - s.pos
}

// Grade applies a quality grade to the current card: it runs the scheduler
// at the session's snapshot time, persists the new state together with the
// review record, and advances the queue. Store failures (including a stale
// version Conflict) surface unchanged and leave the queue position where it
// was, so the caller can retry or abandon.
func (s *Session) Grade(q domain.Grade) (domain.SchedulingState, error) {
	cur, ok := s.Current()
	if !ok {
		return domain.SchedulingState{}, ErrQueueExhausted
	}

	next, err := s.params.Next(cur.State, q, s.now)
	if err != nil {
		return domain.SchedulingState{}, err
	}

	rec := domain.ReviewRecord{
		CardID:        cur.Card.ID,
		ReviewedAt:    s.now,
		Grade:         q,
		StageBefore:   cur.State.Stage,
		IntervalAfter: next.IntervalDays,
	}

	applied, rec, err := s.store.ApplyReview(cur.Card.ID, next, rec)
	if err != nil {
		return domain.SchedulingState{}, err
	}

	s.undo = &lastGrade{
		cardID:         cur.Card.ID,
		prev:           cur.State,
		recordID:       rec.ID,
		appliedVersion: applied.Version,
	}
	s.pos++

	s.log.Info("card graded",
		zap.String("card_id", cur.Card.ID),
		zap.Int("grade", int(q)),
		zap.String("stage", applied.Stage.String()),
		zap.Int("interval_days", applied.IntervalDays),
		zap.Time("due_at", applied.DueAt),
	)
	return applied, nil
}

// UndoLast reverts the most recent grade: the prior scheduling state is
// restored, the appended review record removed, and the card re-presented.
// Only one level of undo is kept; a second call without an intervening
// grade fails with ErrNothingToUndo.
func (s *Session) UndoLast() (domain.SchedulingState, error) {
	if s.undo == nil {
		return domain.SchedulingState{}, domain.ErrNothingToUndo
	}
	u := s.undo

	restored, err := s.store.RevertReview(u.cardID, u.prev, u.recordID, u.appliedVersion)
	if err != nil {
		return domain.SchedulingState{}, err
	}

	s.undo = nil
	s.pos--
	s.queue[s.pos].State = restored

	s.log.Info("grade undone", zap.String("card_id", u.cardID))
	return restored, nil
}

// Preview shows what each grade would do to the current card, for interval
// hints next to the grading keys.
func (s *Session) Preview() (map[domain.Grade]domain.SchedulingState, bool) {
	cur, ok := s.Current()
	if !ok {
		return nil, false
	}
	return s.params.Preview(cur.State, s.now), true
}
