// Package sm2 implements the SM-2 spaced-repetition transition function.
//
// The scheduler is a pure function: the review timestamp is passed in rather
// than read from a clock, and the input state is never mutated, so identical
// inputs always produce identical outputs.
package sm2

import (
	"fmt"
	"math"
	"time"

	"github.com/mynotes/srs/internal/domain"
)

// Params holds the tunable constants of the algorithm.
type Params struct {
	EaseFloor    float64 // lower bound for the ease factor
	InitialEase  float64 // ease assigned to new cards
	LapsePenalty float64 // subtracted from ease on a failed review
	LadderDays   []int   // learning-ladder intervals before promotion to Review
}

// DefaultParams returns the conventional SM-2 constants: ease floor 1.3,
// initial ease 2.5, a 0.20 lapse penalty, and a 1-day/6-day learning ladder.
func DefaultParams() *Params {
	return &Params{
		EaseFloor:    1.3,
		InitialEase:  domain.DefaultEase,
		LapsePenalty: 0.20,
		LadderDays:   []int{1, 6},
	}
}

// Next computes the scheduling state that follows a review of quality q at
// time at. It returns domain.ErrInvalidGrade for qualities outside [0,5].
func (p *Params) Next(state domain.SchedulingState, q domain.Grade, at time.Time) (domain.SchedulingState, error) {
	if !q.Valid() {
		return domain.SchedulingState{}, fmt.Errorf("%w: %d", domain.ErrInvalidGrade, q)
	}

	next := state
	if q.Pass() {
		p.advance(&next, q)
	} else {
		p.lapse(&next)
	}

	reviewed := at
	next.LastReviewedAt = &reviewed
	next.DueAt = at.AddDate(0, 0, next.IntervalDays)
	return next, nil
}

// lapse handles a failed recall: the repetition streak resets, the card
// drops to Relearning due again tomorrow, and the ease factor takes a fixed
// penalty clamped at the floor.
func (p *Params) lapse(s *domain.SchedulingState) {
	s.Repetitions = 0
	s.Stage = domain.Relearning
	s.IntervalDays = 1
	s.EaseFactor = math.Max(p.EaseFloor, s.EaseFactor-p.LapsePenalty)
}

// advance handles a successful recall.
func (p *Params) advance(s *domain.SchedulingState, q domain.Grade) {
	if s.Stage == domain.Review {
		s.Repetitions++
		s.EaseFactor = math.Max(p.EaseFloor, s.EaseFactor+easeDelta(q))
		s.IntervalDays = p.grow(s.IntervalDays, s.EaseFactor)
		return
	}

	// Learning-type stages walk the fixed ladder, indexed by the
	// repetition streak; ease is left untouched until graduation.
	step := s.Repetitions
	if step < len(p.LadderDays) {
		s.IntervalDays = p.LadderDays[step]
		if s.Stage == domain.New {
			s.Stage = domain.Learning
		}
	} else {
		s.Stage = domain.Review
		s.IntervalDays = p.grow(s.IntervalDays, s.EaseFactor)
	}
	s.Repetitions++
}

// easeDelta is the classic SM-2 adjustment: zero at quality 4, +0.1 at 5,
// -0.14 at 3.
func easeDelta(q domain.Grade) float64 {
	diff := float64(domain.MaxGrade - q)
	return 0.1 - diff*(0.08+diff*0.02)
}

// grow multiplies the interval by the ease factor, guaranteeing at least one
// day of forward progress so a card is never due again the moment it was
// reviewed.
func (p *Params) grow(days int, ease float64) int {
	next := int(math.Round(float64(days) * ease))
	if next <= days {
		next = days + 1
	}
	if next < 1 {
		next = 1
	}
	return next
}

// Preview returns the state that each possible grade would produce, without
// committing anything. Useful for showing interval hints next to the 0-5
// keys.
func (p *Params) Preview(state domain.SchedulingState, at time.Time) map[domain.Grade]domain.SchedulingState {
	out := make(map[domain.Grade]domain.SchedulingState, int(domain.MaxGrade)+1)
	for q := domain.MinGrade; q <= domain.MaxGrade; q++ {
		next, err := p.Next(state, q, at)
		if err != nil {
			continue
		}
		out[q] = next
	}
	return out
}

// Replay rebuilds a card's scheduling state by running its review ledger
// through the transition function, starting from the state a card has at
// creation. It is the recovery path for a suspect cached state.
func (p *Params) Replay(cardID string, createdAt time.Time, records []domain.ReviewRecord) (domain.SchedulingState, error) {
	state := domain.NewState(createdAt)
	for _, rec := range records {
		if rec.CardID != cardID {
			return domain.SchedulingState{}, fmt.Errorf("replay: record %s belongs to card %s, not %s", rec.ID, rec.CardID, cardID)
		}
		next, err := p.Next(state, rec.Grade, rec.ReviewedAt)
		if err != nil {
			return domain.SchedulingState{}, fmt.Errorf("replay record %s: %w", rec.ID, err)
		}
		state = next
	}
	return state, nil
}
