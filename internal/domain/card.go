package domain

import (
	"fmt"
	"strings"
	"time"
)

// Card represents a single front/back flashcard.
// Content edits happen outside the scheduling core; the engine only ever
// replaces the card's SchedulingState.
type Card struct {
	ID        string
	Front     string
	Back      string
	Type      CardType
	Deck      string
	Tags      []string
	CreatedAt time.Time
}

// CardWithState pairs a card with its current scheduling state, as returned
// by store listings and consumed by the due-set query.
type CardWithState struct {
	Card  Card
	State SchedulingState
}

// CardType distinguishes how a card's content is presented.
type CardType int

const (
	Basic          CardType = iota // plain front/back
	Cloze                          // text with {{c1::deletion}} markers
	MultipleChoice                 // front with options in the back
)

func (t CardType) String() string {
	switch t {
	case Basic:
		return "basic"
	case Cloze:
		return "cloze"
	case MultipleChoice:
		return "multiplechoice"
	default:
		return fmt.Sprintf("CardType(%d)", int(t))
	}
}

// ParseCardType converts a user-supplied type name into a CardType.
// It is lenient about the aliases seen in imported decks.
func ParseCardType(s string) (CardType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic", "frontback", "front_back", "":
		return Basic, nil
	case "cloze":
		return Cloze, nil
	case "mc", "multiplechoice", "multiple choice", "multiple_choice":
		return MultipleChoice, nil
	default:
		return Basic, fmt.Errorf("unknown card type %q; use basic, cloze, or mc/multiplechoice", s)
	}
}
