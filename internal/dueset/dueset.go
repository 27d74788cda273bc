// Package dueset computes which cards are due at a given time and in what
// order. It is pure: same inputs, same sequence.
package dueset

import (
	"fmt"
	"sort"
	"time"

	"github.com/mynotes/srs/internal/domain"
)

// Due returns the cards whose due time has arrived, most overdue first.
// Ties are broken by stage priority (Relearning > Learning > Review > New)
// so struggling cards surface first, then by card id for determinism.
func Due(cards []domain.CardWithState, now time.Time) []domain.CardWithState {
	var due []domain.CardWithState
	for _, c := range cards {
		if !c.State.DueAt.After(now) {
			due = append(due, c)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if !a.State.DueAt.Equal(b.State.DueAt) {
			return a.State.DueAt.Before(b.State.DueAt)
		}
		if pa, pb := stagePriority(a.State.Stage), stagePriority(b.State.Stage); pa != pb {
			return pa > pb
		}
		return a.Card.ID < b.Card.ID
	})
	return due
}

func stagePriority(s domain.Stage) int {
	switch s {
	case domain.Relearning:
		return 3
	case domain.Learning:
		return 2
	case domain.Review:
		return 1
	default:
		return 0
	}
}

// Filter selects cards by review standing, mirroring the filter tabs of the
// card list view.
type Filter int

const (
	All      Filter = iota
	New             // never reviewed
	DueNow          // due at the query time
	Blackout        // ease bucket filters
	Hard
	Medium
	Easy
	Perfect
	Mastered
)

func (f Filter) String() string {
	switch f {
	case All:
		return "all"
	case New:
		return "new"
	case DueNow:
		return "due"
	case Blackout:
		return "blackout"
	case Hard:
		return "hard"
	case Medium:
		return "medium"
	case Easy:
		return "easy"
	case Perfect:
		return "perfect"
	case Mastered:
		return "mastered"
	default:
		return fmt.Sprintf("Filter(%d)", int(f))
	}
}

// Matches reports whether the card passes the filter at the given time.
func (f Filter) Matches(c domain.CardWithState, now time.Time) bool {
	switch f {
	case All:
		return true
	case New:
		return c.State.Stage == domain.New
	case DueNow:
		return !c.State.DueAt.After(now)
	case Blackout:
		return domain.BucketOf(c.State) == domain.Blackout
	case Hard:
		return domain.BucketOf(c.State) == domain.Hard
	case Medium:
		return domain.BucketOf(c.State) == domain.Medium
	case Easy:
		return domain.BucketOf(c.State) == domain.Easy
	case Perfect:
		return domain.BucketOf(c.State) == domain.Perfect
	case Mastered:
		return domain.BucketOf(c.State) == domain.Mastered
	default:
		return false
	}
}

// Apply returns the cards matching the filter, preserving input order.
func Apply(cards []domain.CardWithState, f Filter, now time.Time) []domain.CardWithState {
	var out []domain.CardWithState
	for _, c := range cards {
		if f.Matches(c, now) {
			out = append(out, c)
		}
	}
	return out
}
