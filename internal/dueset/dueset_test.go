package dueset

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mynotes/srs/internal/domain"
)

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func card(id string, stage domain.Stage, due time.Time) domain.CardWithState {
	return domain.CardWithState{
		Card:  domain.Card{ID: id},
		State: domain.SchedulingState{Stage: stage, EaseFactor: 2.5, DueAt: due},
	}
}

func ids(cards []domain.CardWithState) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Card.ID
	}
	return out
}

func TestDueSelectsAndOrders(t *testing.T) {
	yesterday := now.AddDate(0, 0, -1)
	lastWeek := now.AddDate(0, 0, -7)
	tomorrow := now.AddDate(0, 0, 1)

	cards := []domain.CardWithState{
		card("e", domain.Review, tomorrow), // not due
		card("d", domain.Review, yesterday),
		card("c", domain.New, lastWeek),
		card("b", domain.Review, lastWeek),
		card("a", domain.Review, now), // due right now counts
	}

	got := ids(Due(cards, now))
	// Most overdue first; equal due times fall back to stage then id.
	want := []string{"b", "c", "d", "a"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestDueStagePriorityBreaksTies(t *testing.T) {
	due := now.AddDate(0, 0, -1)
	cards := []domain.CardWithState{
		card("a", domain.New, due),
		card("b", domain.Review, due),
		card("c", domain.Learning, due),
		card("d", domain.Relearning, due),
	}

	got := ids(Due(cards, now))
	// Struggling cards surface first: Relearning > Learning > Review > New.
	want := []string{"d", "c", "b", "a"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestDueIDBreaksFinalTies(t *testing.T) {
	due := now.AddDate(0, 0, -1)
	cards := []domain.CardWithState{
		card("z", domain.Review, due),
		card("a", domain.Review, due),
		card("m", domain.Review, due),
	}

	got := ids(Due(cards, now))
	want := []string{"a", "m", "z"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestDueIsDeterministic(t *testing.T) {
	due := now.AddDate(0, 0, -2)
	cards := []domain.CardWithState{
		card("c", domain.Learning, due),
		card("a", domain.Relearning, now.AddDate(0, 0, -1)),
		card("b", domain.Review, due),
	}

	first := ids(Due(cards, now))
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, ids(Due(cards, now))); diff != "" {
			t.Fatalf("order changed between runs (-first +rerun):\n%s", diff)
		}
	}
}

func TestDueEmptyPopulation(t *testing.T) {
	if got := Due(nil, now); len(got) != 0 {
		t.Errorf("expected no due cards, got %d", len(got))
	}
}

func TestFilters(t *testing.T) {
	overdue := card("a", domain.Review, now.AddDate(0, 0, -1))
	fresh := card("b", domain.New, now)
	hard := card("c", domain.Review, now.AddDate(0, 0, 3))
	hard.State.EaseFactor = 1.5
	mastered := card("d", domain.Review, now.AddDate(0, 0, 30))
	mastered.State.EaseFactor = 2.9
	mastered.State.Repetitions = 7

	cards := []domain.CardWithState{overdue, fresh, hard, mastered}

	cases := []struct {
		filter Filter
		want   []string
	}{
		{All, []string{"a", "b", "c", "d"}},
		{New, []string{"b"}},
		{DueNow, []string{"a", "b"}},
		{Hard, []string{"c"}},
		{Easy, []string{"a"}},
		{Mastered, []string{"d"}},
		{Blackout, nil},
	}

	for _, tc := range cases {
		t.Run(tc.filter.String(), func(t *testing.T) {
			got := ids(Apply(cards, tc.filter, now))
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("unexpected selection (-want +got):\n%s", diff)
			}
		})
	}
}
