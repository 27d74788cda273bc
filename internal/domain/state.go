package domain

import (
	"fmt"
	"time"
)

// Stage is a card's position in the scheduling state machine.
// Every card starts as New; no stage is terminal.
type Stage int

const (
	New        Stage = iota // never reviewed
	Learning                // passed at least once, still on the learning ladder
	Review                  // graduated, intervals grow with the ease factor
	Relearning              // lapsed, back on the ladder
)

func (s Stage) String() string {
	switch s {
	case New:
		return "new"
	case Learning:
		return "learning"
	case Review:
		return "review"
	case Relearning:
		return "relearning"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Grade is the 0-5 quality of a graded review:
// 0 total blackout, 5 perfect recall.
type Grade int

const (
	MinGrade Grade = 0
	MaxGrade Grade = 5

	// PassingGrade separates a pass from a lapse: grades below it reset
	// the card's repetition streak.
	PassingGrade Grade = 3
)

// Valid reports whether the grade is within the 0-5 contract.
func (g Grade) Valid() bool {
	return g >= MinGrade && g <= MaxGrade
}

// Pass reports whether the grade counts as a successful recall.
func (g Grade) Pass() bool {
	return g >= PassingGrade
}

// SchedulingState is the mutable scheduling record attached 1:1 to a card.
// It is replaced atomically on each review, never partially updated.
type SchedulingState struct {
	Stage          Stage
	Repetitions    int     // consecutive passes since the last lapse
	EaseFactor     float64 // interval growth multiplier, floored at 1.3
	IntervalDays   int     // days until the next scheduled review; 0 for new cards
	DueAt          time.Time
	LastReviewedAt *time.Time // nil if never reviewed

	// Version is the optimistic-concurrency token. The store compares it
	// on every write and bumps it on success; callers treat it as opaque.
	Version int64
}

// DefaultEase is the ease factor assigned to brand-new cards.
const DefaultEase = 2.5

// NewState returns the scheduling state for a card created at the given
// time: due immediately, interval 0, ease 2.5.
func NewState(createdAt time.Time) SchedulingState {
	return SchedulingState{
		Stage:        New,
		Repetitions:  0,
		EaseFactor:   DefaultEase,
		IntervalDays: 0,
		DueAt:        createdAt,
		Version:      1,
	}
}

// ReviewRecord is one entry in a card's append-only review ledger.
// Records are only ever appended (or removed again by a single-step undo);
// the current SchedulingState is rederivable by replaying them in order.
type ReviewRecord struct {
	ID            string
	CardID        string
	ReviewedAt    time.Time
	Grade         Grade
	StageBefore   Stage
	IntervalAfter int // days assigned by the review
}
